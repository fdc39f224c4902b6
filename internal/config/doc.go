// Package config loads, normalizes, and validates jobspine configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the JOBSPINE_ROOT environment
// fallback. The Config type centralizes the job store root, registrar
// policy, worker timing, manifest locking, journal, and logging knobs so the
// CLI and worker runtime discover them in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
