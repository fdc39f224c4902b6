package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"jobspine/internal/config"
	"jobspine/internal/journal"
	"jobspine/internal/logging"
	"jobspine/internal/manifest"
	"jobspine/internal/queue"
)

type commandContext struct {
	configFlag *string
	rootFlag   *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, rootFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		rootFlag:   rootFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if c.rootFlag != nil && strings.TrimSpace(*c.rootFlag) != "" {
			if err := cfg.SetRoot(*c.rootFlag); err != nil {
				c.configErr = err
				return
			}
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// logger builds the process logger. A non-empty level replaces logging.level.
func (c *commandContext) logger(level string) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if level != "" {
		override := *cfg
		override.Logging.Level = level
		cfg = &override
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return logger, nil
}

func (c *commandContext) stores(logger *slog.Logger) (*queue.Store, *manifest.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	return queue.NewStore(cfg, logger), manifest.NewStore(cfg, logger), nil
}

// openJournal returns a recorder for the journal when it is enabled. The
// journal file is opened on the first recorded entry, so a command that fails
// validation leaves no journal behind.
func (c *commandContext) openJournal(logger *slog.Logger) (journal.Recorder, func()) {
	cfg, err := c.ensureConfig()
	if err != nil || !cfg.Journal.Enabled {
		return nil, func() {}
	}
	recorder := &deferredJournal{path: cfg.JournalPath(), logger: logger}
	return recorder, recorder.close
}

type deferredJournal struct {
	path   string
	logger *slog.Logger

	once sync.Once
	j    *journal.Journal
}

// Record opens the journal once and appends entry. A journal that cannot be
// opened is logged and later entries are dropped.
func (d *deferredJournal) Record(ctx context.Context, entry journal.Entry) error {
	d.once.Do(func() {
		j, err := journal.Open(ctx, d.path)
		if err != nil {
			logging.WarnWithContext(d.logger, "journal unavailable", "journal_open_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "transition will not be recorded in history"),
				logging.String(logging.FieldErrorHint, "check journal.path or set journal.enabled = false"),
			)
			return
		}
		d.j = j
	})
	if d.j == nil {
		return nil
	}
	return d.j.Record(ctx, entry)
}

func (d *deferredJournal) close() {
	if d.j != nil {
		_ = d.j.Close()
	}
}

// readJournal opens an existing journal for queries. ok is false when the
// journal is disabled or has not been created yet.
func (c *commandContext) readJournal(ctx context.Context) (*journal.Journal, bool, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, false, err
	}
	if !cfg.Journal.Enabled {
		return nil, false, nil
	}
	if _, err := os.Stat(cfg.JournalPath()); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("stat journal: %w", err)
	}
	j, err := journal.Open(ctx, cfg.JournalPath())
	if err != nil {
		return nil, false, err
	}
	return j, true, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
