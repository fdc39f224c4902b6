package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRegistrar()
	c.normalizeWorker()
	c.normalizeManifest()
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	if value, ok := os.LookupEnv(rootEnvVar); ok && strings.TrimSpace(value) != "" {
		c.Paths.Root = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.Root) == "" {
		c.Paths.Root = defaultRoot
	}
	var err error
	if c.Paths.Root, err = expandPath(strings.TrimSpace(c.Paths.Root)); err != nil {
		return fmt.Errorf("paths.root: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(strings.TrimSpace(c.Paths.LogDir)); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRegistrar() {
	c.Registrar.ConsumerSuffix = strings.TrimSpace(c.Registrar.ConsumerSuffix)
	if c.Registrar.ConsumerSuffix == "" {
		c.Registrar.ConsumerSuffix = defaultConsumerSuffix
	}
	c.Registrar.OwnedBy = strings.TrimSpace(c.Registrar.OwnedBy)
	if c.Registrar.OwnedBy == "" {
		c.Registrar.OwnedBy = defaultOwnedBy
	}
	c.Registrar.IntakeMode = strings.TrimSpace(c.Registrar.IntakeMode)
	if c.Registrar.IntakeMode == "" {
		c.Registrar.IntakeMode = defaultIntakeMode
	}
	if c.Registrar.VersionWidth == 0 {
		c.Registrar.VersionWidth = defaultVersionWidth
	}
	c.Registrar.OnVersionConflict = strings.ToLower(strings.TrimSpace(c.Registrar.OnVersionConflict))
	if c.Registrar.OnVersionConflict == "" {
		c.Registrar.OnVersionConflict = defaultVersionConflict
	}
}

func (c *Config) normalizeWorker() {
	if c.Worker.PollSeconds == 0 {
		c.Worker.PollSeconds = defaultPollSeconds
	}
	if c.Worker.ErrorRetrySeconds == 0 {
		c.Worker.ErrorRetrySeconds = defaultErrorRetrySeconds
	}
	c.Worker.ClaimedBy = strings.TrimSpace(c.Worker.ClaimedBy)
	if c.Worker.ClaimedBy == "" {
		c.Worker.ClaimedBy = defaultClaimedBy
	}
}

func (c *Config) normalizeManifest() {
	if c.Manifest.LockTimeoutSeconds == 0 {
		c.Manifest.LockTimeoutSeconds = defaultLockTimeoutSeconds
	}
	if c.Manifest.LockRetryMillis == 0 {
		c.Manifest.LockRetryMillis = defaultLockRetryMillis
	}
}

func (c *Config) normalizeJournal() error {
	path := strings.TrimSpace(c.Journal.Path)
	if path == "" {
		c.Journal.Path = filepath.Join(c.Paths.Root, defaultJournalFile)
		return nil
	}
	var err error
	if c.Journal.Path, err = expandPath(path); err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
