package preflight

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"jobspine/internal/fileutil"
	"jobspine/internal/journal"
	"jobspine/internal/manifest"
	"jobspine/internal/queue"
)

const maxListed = 5

// VersionState is one version as seen by ScanStore.
type VersionState struct {
	Ref      queue.VersionRef
	Metadata *queue.Metadata
	State    fileutil.ReadState
	Claim    *queue.ClaimInfo
}

// StoreScan is a read-only snapshot of every version in the store.
type StoreScan struct {
	Versions []VersionState
}

// ScanStore walks the store once and records metadata and claim markers.
func ScanStore(ctx context.Context, store *queue.Store) (StoreScan, error) {
	var scan StoreScan
	err := store.Walk(ctx, func(ref queue.VersionRef, meta *queue.Metadata, state fileutil.ReadState) error {
		entry := VersionState{Ref: ref, Metadata: meta, State: state}
		info, ok, err := store.ReadClaim(ref)
		if err != nil {
			return err
		}
		if ok {
			entry.Claim = &info
		}
		scan.Versions = append(scan.Versions, entry)
		return nil
	})
	if err != nil {
		return StoreScan{}, fmt.Errorf("scan store: %w", err)
	}
	return scan, nil
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckMetadata fails when any version has missing or corrupt metadata.
func CheckMetadata(scan StoreScan) Result {
	const name = "Job metadata"
	var bad []string
	for _, v := range scan.Versions {
		if v.State != fileutil.ReadOK {
			bad = append(bad, fmt.Sprintf("%s (%s)", v.Ref, v.State))
		}
	}
	if len(bad) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%d unreadable: %s", len(bad), summarize(bad))}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%d versions readable", len(scan.Versions))}
}

// CheckRunningVersions reports versions left running. A worker that died
// mid-execution leaves its version here; nothing recovers it automatically.
func CheckRunningVersions(scan StoreScan) Result {
	const name = "Running versions"
	var running []string
	for _, v := range scan.Versions {
		if v.Metadata == nil || v.Metadata.Status != queue.StatusRunning {
			continue
		}
		label := v.Ref.String()
		if v.Claim != nil && v.Claim.WorkerID != "" {
			label += fmt.Sprintf(" (worker %s on %s since %s)", v.Claim.WorkerID, v.Claim.Host, v.Metadata.StartedAt)
		}
		running = append(running, label)
	}
	if len(running) > 0 {
		return Result{
			Name:   name,
			Detail: fmt.Sprintf("%d running; if no worker is active, set status to queued in metadata.json and remove %s: %s", len(running), queue.ClaimFileName, summarize(running)),
		}
	}
	return Result{Name: name, Passed: true, Detail: "none"}
}

// CheckStaleClaims reports queued or completed versions that carry a claim
// marker. Workers skip such a queued version and reuse refuses it until the
// marker is removed.
func CheckStaleClaims(scan StoreScan) Result {
	const name = "Claim markers"
	var stale []string
	for _, v := range scan.Versions {
		if v.Claim != nil && v.Metadata != nil && v.Metadata.Status != queue.StatusRunning {
			stale = append(stale, v.Ref.String())
		}
	}
	if len(stale) > 0 {
		return Result{Name: name, Detail: fmt.Sprintf("%d idle versions carry a stale %s: %s", len(stale), queue.ClaimFileName, summarize(stale))}
	}
	return Result{Name: name, Passed: true, Detail: "no stale markers"}
}

// CheckManifest verifies the manifest parses and agrees with metadata.
func CheckManifest(ctx context.Context, manifests *manifest.Store, scan StoreScan) []Result {
	const name = "Manifest"
	m, state, err := manifests.Load(ctx)
	if err != nil {
		return []Result{{Name: name, Detail: err.Error()}}
	}
	switch state {
	case fileutil.ReadCorrupt:
		return []Result{{Name: name, Detail: fmt.Sprintf("%s is corrupt; run 'jobspine manifest rebuild'", manifests.Path())}}
	case fileutil.ReadMissing:
		if len(scan.Versions) == 0 {
			return []Result{{Name: name, Passed: true, Detail: "not created yet"}}
		}
		return []Result{{Name: name, Detail: fmt.Sprintf("%s missing but %d versions exist; run 'jobspine manifest rebuild'", manifests.Path(), len(scan.Versions))}}
	}

	results := []Result{{Name: name, Passed: true, Detail: fmt.Sprintf("%d jobs", len(m.Jobs))}}
	drift := Drift(m, scan)
	if len(drift) > 0 {
		results = append(results, Result{Name: "Manifest consistency", Detail: fmt.Sprintf("%d entries disagree with metadata: %s", len(drift), summarize(drift))})
	} else {
		results = append(results, Result{Name: "Manifest consistency", Passed: true, Detail: "matches metadata"})
	}
	return results
}

// Drift lists versions whose manifest summary is missing or differs from
// metadata in status or timestamps.
func Drift(m *manifest.Manifest, scan StoreScan) []string {
	var drift []string
	for _, v := range scan.Versions {
		if v.Metadata == nil {
			continue
		}
		record, ok := m.Jobs[v.Ref.JobID]
		if !ok {
			drift = append(drift, v.Ref.String()+" (missing)")
			continue
		}
		summary := record.FindVersion(v.Ref.Version)
		if summary == nil {
			drift = append(drift, v.Ref.String()+" (missing)")
			continue
		}
		if summary.Status != v.Metadata.Status ||
			summary.StartedAt != v.Metadata.StartedAt ||
			summary.CompletedAt != v.Metadata.CompletedAt {
			drift = append(drift, fmt.Sprintf("%s (manifest %s, metadata %s)", v.Ref, summary.Status, v.Metadata.Status))
		}
	}
	return drift
}

// CheckJournal verifies the journal database opens and is queryable.
func CheckJournal(ctx context.Context, path string) Result {
	const name = "Journal"
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return Result{Name: name, Passed: true, Detail: "not created yet"}
	}
	j, err := journal.Open(ctx, path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer j.Close()
	if _, err := j.List(ctx, journal.Filter{Limit: 1}); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: path}
}

func summarize(items []string) string {
	if len(items) <= maxListed {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:maxListed], ", ") + fmt.Sprintf(", and %d more", len(items)-maxListed)
}
