package testsupport

import (
	"path/filepath"
	"testing"

	"jobspine/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with a unique temp store root per test.
// The journal is disabled unless WithJournal is supplied.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	if err := cfgVal.SetRoot(filepath.Join(base, "WIRED_CHAOS_3DT")); err != nil {
		t.Fatalf("set root: %v", err)
	}
	cfgVal.Journal.Enabled = false
	cfgVal.Manifest.LockTimeoutSeconds = 5
	cfgVal.Manifest.LockRetryMillis = 5
	cfgVal.Worker.PollSeconds = 0.05

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	return builder.cfg
}

// WithConflictPolicy sets registrar.on_version_conflict.
func WithConflictPolicy(policy string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Registrar.OnVersionConflict = policy
	}
}

// WithJournal enables the SQLite journal inside the temp root.
func WithJournal() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Journal.Enabled = true
	}
}

// WithLogDir points paths.log_dir into the temp directory.
func WithLogDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.LogDir = filepath.Join(b.baseDir, "logs")
	}
}

// BaseDir returns the temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.Root)
}
