package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Version conflict policies for explicit version requests that name an
// existing version directory.
const (
	ConflictReject = "reject"
	ConflictReuse  = "reuse"
)

// Paths contains the job store root and optional log directory.
type Paths struct {
	Root   string `toml:"root"`
	LogDir string `toml:"log_dir"`
}

// Registrar contains intake policy for job registration.
type Registrar struct {
	ConsumerSuffix    string `toml:"consumer_suffix"`
	OwnedBy           string `toml:"owned_by"`
	IntakeMode        string `toml:"intake_mode"`
	VersionWidth      int    `toml:"version_width"`
	OnVersionConflict string `toml:"on_version_conflict"`
}

// Worker contains polling configuration for job workers.
type Worker struct {
	PollSeconds       float64 `toml:"poll_seconds"`
	ErrorRetrySeconds int     `toml:"error_retry_seconds"`
	ClaimedBy         string  `toml:"claimed_by"`
}

// Manifest contains locking behaviour for the shared manifest file.
type Manifest struct {
	LockTimeoutSeconds int  `toml:"lock_timeout_seconds"`
	LockRetryMillis    int  `toml:"lock_retry_millis"`
	PreserveCorrupt    bool `toml:"preserve_corrupt"`
}

// Journal contains configuration for the transition journal.
type Journal struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for jobspine.
//
// Configuration sections by subsystem:
//   - Paths: job store root and optional log directory
//   - Registrar: consumer policy, version formatting, conflict handling
//   - Worker: poll and error retry intervals
//   - Manifest: manifest lock timing and corrupt-file preservation
//   - Journal: SQLite transition journal
//   - Logging: log format and level
type Config struct {
	Paths     Paths     `toml:"paths"`
	Registrar Registrar `toml:"registrar"`
	Worker    Worker    `toml:"worker"`
	Manifest  Manifest  `toml:"manifest"`
	Journal   Journal   `toml:"journal"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(defaultProjectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// SetRoot overrides the job store root and re-derives dependent paths.
func (c *Config) SetRoot(root string) error {
	expanded, err := expandPath(strings.TrimSpace(root))
	if err != nil {
		return fmt.Errorf("paths.root: %w", err)
	}
	if expanded == "" {
		return errors.New("paths.root must be set")
	}
	journalDefault := c.Journal.Path == "" || c.Journal.Path == filepath.Join(c.Paths.Root, defaultJournalFile)
	c.Paths.Root = expanded
	if journalDefault {
		c.Journal.Path = filepath.Join(expanded, defaultJournalFile)
	}
	return nil
}

// IntakeDir returns the directory holding per-job intake markers.
func (c *Config) IntakeDir() string {
	return filepath.Join(c.Paths.Root, "INTAKE")
}

// JobsDir returns the directory holding per-job version trees.
func (c *Config) JobsDir() string {
	return filepath.Join(c.Paths.Root, "JOBS")
}

// ManifestPath returns the location of the shared jobs manifest.
func (c *Config) ManifestPath() string {
	return filepath.Join(c.Paths.Root, "_JOBS_MANIFEST.json")
}

// JournalPath returns the SQLite journal location.
func (c *Config) JournalPath() string {
	if strings.TrimSpace(c.Journal.Path) != "" {
		return c.Journal.Path
	}
	return filepath.Join(c.Paths.Root, defaultJournalFile)
}

// PollInterval returns the worker idle poll interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Worker.PollSeconds * float64(time.Second))
}

// ErrorRetryInterval returns the delay applied after a failed worker cycle.
func (c *Config) ErrorRetryInterval() time.Duration {
	return time.Duration(c.Worker.ErrorRetrySeconds) * time.Second
}

// LockTimeout returns how long manifest and registration locks are awaited.
func (c *Config) LockTimeout() time.Duration {
	return time.Duration(c.Manifest.LockTimeoutSeconds) * time.Second
}

// LockRetryDelay returns the interval between lock attempts.
func (c *Config) LockRetryDelay() time.Duration {
	return time.Duration(c.Manifest.LockRetryMillis) * time.Millisecond
}

// EnsureDirectories creates the root, intake, and jobs directories plus the
// log directory when one is configured.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.Root, c.IntakeDir(), c.JobsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.LogDir) != "" {
		if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
			return fmt.Errorf("create log directory %q: %w", c.Paths.LogDir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
