package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateRegistrar(); err != nil {
		return err
	}
	if err := c.validateWorker(); err != nil {
		return err
	}
	if err := c.validateManifest(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.Root) == "" {
		return errors.New("paths.root must be set")
	}
	return nil
}

func (c *Config) validateRegistrar() error {
	if strings.TrimSpace(c.Registrar.ConsumerSuffix) == "" {
		return errors.New("registrar.consumer_suffix must be set")
	}
	if c.Registrar.VersionWidth < 1 || c.Registrar.VersionWidth > maxVersionWidth {
		return fmt.Errorf("registrar.version_width must be between 1 and %d", maxVersionWidth)
	}
	switch c.Registrar.OnVersionConflict {
	case ConflictReject, ConflictReuse:
	default:
		return fmt.Errorf("registrar.on_version_conflict must be %q or %q, got %q",
			ConflictReject, ConflictReuse, c.Registrar.OnVersionConflict)
	}
	return nil
}

func (c *Config) validateWorker() error {
	if c.Worker.PollSeconds < minPollSeconds {
		return fmt.Errorf("worker.poll_seconds must be at least %g", minPollSeconds)
	}
	if c.Worker.ErrorRetrySeconds <= 0 {
		return errors.New("worker.error_retry_seconds must be positive")
	}
	return nil
}

func (c *Config) validateManifest() error {
	if err := ensurePositiveMap(map[string]int{
		"manifest.lock_timeout_seconds": c.Manifest.LockTimeoutSeconds,
		"manifest.lock_retry_millis":    c.Manifest.LockRetryMillis,
	}); err != nil {
		return err
	}
	if c.Manifest.LockTimeoutSeconds > maxLockTimeoutSeconds {
		return fmt.Errorf("manifest.lock_timeout_seconds must be at most %d", maxLockTimeoutSeconds)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
