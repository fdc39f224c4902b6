package preflight

import (
	"context"

	"jobspine/internal/config"
	"jobspine/internal/manifest"
	"jobspine/internal/queue"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunDirectoryChecks verifies the store directories are usable.
func RunDirectoryChecks(cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	results := []Result{
		CheckDirectoryAccess("Store root", cfg.Paths.Root),
		CheckDirectoryAccess("Intake directory", cfg.IntakeDir()),
		CheckDirectoryAccess("Jobs directory", cfg.JobsDir()),
	}
	if cfg.Paths.LogDir != "" {
		results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir))
	}
	return results
}

// RunAll executes every check for the given config.
func RunAll(ctx context.Context, cfg *config.Config, store *queue.Store, manifests *manifest.Store) []Result {
	if cfg == nil {
		return nil
	}

	results := RunDirectoryChecks(cfg)

	scan, err := ScanStore(ctx, store)
	if err != nil {
		return append(results, Result{Name: "Job metadata", Detail: err.Error()})
	}
	results = append(results,
		CheckMetadata(scan),
		CheckRunningVersions(scan),
		CheckStaleClaims(scan),
	)
	results = append(results, CheckManifest(ctx, manifests, scan)...)

	if cfg.Journal.Enabled {
		results = append(results, CheckJournal(ctx, cfg.JournalPath()))
	}
	return results
}

// Failed reports whether any result did not pass.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed {
			return true
		}
	}
	return false
}
