package stage_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"jobspine/internal/logging"
	"jobspine/internal/queue"
	"jobspine/internal/stage"
	"jobspine/internal/testsupport"
)

func TestStubExecutorWritesMarker(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.NewQueueStore(t, cfg)
	ref := testsupport.SeedVersion(t, store, "alpha", "v0001", queue.StatusRunning)
	meta, _, err := store.ReadMetadata(ref.MetadataPath())
	if err != nil {
		t.Fatal(err)
	}

	stub := stage.NewStubExecutor("Wired Chaos worker", logging.NewNop())
	job := &stage.Job{Ref: ref, Metadata: meta}
	ctx := context.Background()
	if err := stub.Prepare(ctx, job); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if err := stub.Execute(ctx, job); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	got := string(testsupport.ReadFile(t, filepath.Join(ref.Dir, queue.StubFileName)))
	want := "# STUB_EXECUTION\n" +
		"- Rendering mocked for deterministic pipeline bring-up.\n" +
		"- No GPU or renderer selected; this is a placeholder output stage.\n" +
		"- Job: alpha, Version: v0001.\n" +
		"- Claimed by: Wired Chaos worker.\n"
	if got != want {
		t.Fatalf("unexpected stub content:\n%s", got)
	}
	if health := stub.HealthCheck(ctx); !health.Ready {
		t.Fatalf("expected healthy stub, got %#v", health)
	}
}

func TestStubExecutorPrepareRequiresDirectory(t *testing.T) {
	stub := stage.NewStubExecutor("w", nil)
	job := &stage.Job{
		Ref:      queue.VersionRef{JobID: "a", Version: "v0001", Dir: filepath.Join(t.TempDir(), "missing")},
		Metadata: &queue.Metadata{JobID: "a", Version: "v0001"},
	}
	if err := stub.Prepare(context.Background(), job); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func TestStubExecutorUnhealthyWithoutClaimant(t *testing.T) {
	health := stage.NewStubExecutor("  ", nil).HealthCheck(context.Background())
	if health.Ready {
		t.Fatal("expected stub without claimant to be unhealthy")
	}
	if err := health.Err(); err == nil || !strings.Contains(err.Error(), "claimed_by") {
		t.Fatalf("expected claimed_by in error, got %v", err)
	}
}
