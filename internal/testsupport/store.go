package testsupport

import (
	"context"
	"sync"
	"testing"
	"time"

	"jobspine/internal/config"
	"jobspine/internal/journal"
	"jobspine/internal/logging"
	"jobspine/internal/queue"
)

// Clock is a manually advanced time source for deterministic timestamps.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock starting at start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current reading and advances the clock by one second so
// successive timestamps are strictly ordered.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	current := c.now
	c.now = c.now.Add(time.Second)
	return current
}

// NewQueueStore builds a queue store for cfg with a silent logger.
func NewQueueStore(t testing.TB, cfg *config.Config, opts ...queue.Option) *queue.Store {
	t.Helper()
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return queue.NewStore(cfg, logging.NewNop(), opts...)
}

// MustOpenJournal opens the journal configured for cfg and closes it on cleanup.
func MustOpenJournal(t testing.TB, cfg *config.Config) *journal.Journal {
	t.Helper()
	j, err := journal.Open(context.Background(), cfg.JournalPath())
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() {
		_ = j.Close()
	})
	return j
}

// SeedVersion writes metadata for a version directly, bypassing the registrar.
func SeedVersion(t testing.TB, store *queue.Store, jobID, version string, status queue.Status) queue.VersionRef {
	t.Helper()
	dir, err := store.EnsureLayout(jobID, version)
	if err != nil {
		t.Fatalf("ensure layout: %v", err)
	}
	ref := queue.VersionRef{JobID: jobID, Version: version, Dir: dir}
	meta := &queue.Metadata{
		JobID:      jobID,
		Consumer:   "studio-3DT",
		Version:    version,
		Timestamp:  "2026-01-02T15:04:05Z",
		IntakePath: store.IntakeDir(jobID),
		OwnedBy:    "Wired Chaos",
		IntakeMode: "job",
		Rendering:  queue.RenderingPending,
		Status:     status,
	}
	if status != queue.StatusQueued {
		meta.StartedAt = "2026-01-02T15:04:06Z"
	}
	if status == queue.StatusCompleted {
		meta.CompletedAt = "2026-01-02T15:04:07Z"
		meta.Rendering = queue.RenderingStub
	}
	if err := store.WriteMetadata(ref.MetadataPath(), meta); err != nil {
		t.Fatalf("write metadata: %v", err)
	}
	return ref
}
