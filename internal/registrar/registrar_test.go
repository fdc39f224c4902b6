package registrar_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"jobspine/internal/config"
	"jobspine/internal/fileutil"
	"jobspine/internal/journal"
	"jobspine/internal/logging"
	"jobspine/internal/manifest"
	"jobspine/internal/queue"
	"jobspine/internal/registrar"
	"jobspine/internal/testsupport"
)

type fixture struct {
	cfg       *config.Config
	store     *queue.Store
	manifests *manifest.Store
	reg       *registrar.Registrar
}

func newFixture(t *testing.T, recorder journal.Recorder, opts ...testsupport.ConfigOption) fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	clock := testsupport.NewClock(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC))
	store := queue.NewStore(cfg, logging.NewNop(), queue.WithClock(clock.Now))
	manifests := manifest.NewStore(cfg, logging.NewNop())
	return fixture{
		cfg:       cfg,
		store:     store,
		manifests: manifests,
		reg:       registrar.New(cfg, store, manifests, recorder, logging.NewNop()),
	}
}

func TestRegisterSequentialVersions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i, want := range []string{"v0001", "v0002", "v0003"} {
		res, err := f.reg.Register(ctx, registrar.Request{JobID: "alpha", Consumer: "studio-3DT", Notes: " pass "})
		if err != nil {
			t.Fatalf("Register %d: %v", i, err)
		}
		if res.Version != want {
			t.Fatalf("registration %d: got %s want %s", i, res.Version, want)
		}
	}

	meta, state, err := f.store.ReadMetadata(f.store.Ref("alpha", "v0003").MetadataPath())
	if err != nil || state != fileutil.ReadOK {
		t.Fatalf("ReadMetadata: state=%s err=%v", state, err)
	}
	want := queue.Metadata{
		JobID:      "alpha",
		Consumer:   "studio-3DT",
		Version:    "v0003",
		Timestamp:  "2026-01-02T15:04:07Z",
		IntakePath: filepath.Join(f.cfg.Paths.Root, "INTAKE", "alpha"),
		OwnedBy:    "Wired Chaos",
		IntakeMode: "job",
		Rendering:  "pending",
		Status:     queue.StatusQueued,
		Notes:      "pass",
	}
	if *meta != want {
		t.Fatalf("unexpected metadata:\n got %#v\nwant %#v", *meta, want)
	}

	placeholder := testsupport.ReadFile(t, filepath.Join(f.store.Ref("alpha", "v0003").Dir, queue.PlaceholderFileName))
	if !strings.HasPrefix(string(placeholder), "# Placeholder artifacts\n") {
		t.Fatalf("unexpected placeholder: %q", placeholder)
	}

	m, _, err := f.manifests.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	record := m.Jobs["alpha"]
	if record == nil || record.LastVersion != "v0003" || len(record.Versions) != 3 {
		t.Fatalf("unexpected manifest record %#v", record)
	}
	if m.IntakeRoot != f.cfg.IntakeDir() {
		t.Fatalf("unexpected intake root %q", m.IntakeRoot)
	}
}

func TestRegisterExplicitNumericVersion(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.reg.Register(context.Background(), registrar.Request{JobID: "alpha", Consumer: "studio-3dt", RequestedVersion: "7"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Version != "v0007" {
		t.Fatalf("expected v0007, got %s", res.Version)
	}
	next, err := f.reg.Register(context.Background(), registrar.Request{JobID: "alpha", Consumer: "studio-3DT"})
	if err != nil {
		t.Fatal(err)
	}
	if next.Version != "v0008" {
		t.Fatalf("expected auto version after explicit, got %s", next.Version)
	}
}

func TestRegisterPolicyErrorCreatesNothing(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.reg.Register(context.Background(), registrar.Request{JobID: "alpha", Consumer: "studio"})
	var perr *registrar.PolicyError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PolicyError, got %v", err)
	}
	if perr.Field != "consumer" || queue.ErrorKind(err) != "policy" {
		t.Fatalf("unexpected policy error %#v", perr)
	}
	if _, statErr := os.Stat(f.cfg.Paths.Root); !os.IsNotExist(statErr) {
		t.Fatalf("expected no root directory, stat err=%v", statErr)
	}
}

func TestRegisterValidationErrorsCreateNothing(t *testing.T) {
	f := newFixture(t, nil)
	cases := []registrar.Request{
		{JobID: "..", Consumer: "studio-3DT"},
		{JobID: ".", Consumer: "studio-3DT"},
		{JobID: "alpha", Consumer: "studio-3DT", RequestedVersion: "."},
		{JobID: "a/b", Consumer: "studio-3DT"},
		{JobID: "", Consumer: "studio-3DT"},
		{JobID: "alpha", Consumer: "bad name-3DT"},
		{JobID: "alpha", Consumer: "studio-3DT", RequestedVersion: "../v1"},
	}
	for _, req := range cases {
		_, err := f.reg.Register(context.Background(), req)
		var verr *registrar.ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("expected ValidationError for %#v, got %v", req, err)
		}
	}
	if _, statErr := os.Stat(f.cfg.Paths.Root); !os.IsNotExist(statErr) {
		t.Fatalf("expected no root directory, stat err=%v", statErr)
	}
}

func TestRegisterRejectsExistingVersion(t *testing.T) {
	f := newFixture(t, nil, testsupport.WithConflictPolicy(config.ConflictReject))
	ctx := context.Background()
	if _, err := f.reg.Register(ctx, registrar.Request{JobID: "alpha", Consumer: "studio-3DT", Notes: "original"}); err != nil {
		t.Fatal(err)
	}
	before := testsupport.Snapshot(t, f.cfg.Paths.Root)

	_, err := f.reg.Register(ctx, registrar.Request{JobID: "alpha", Consumer: "studio-3DT", RequestedVersion: "v1", Notes: "again"})
	var cerr *registrar.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if cerr.Version != "v0001" || cerr.ErrorKind() != "conflict" {
		t.Fatalf("unexpected conflict %#v", cerr)
	}

	after := testsupport.Snapshot(t, f.cfg.Paths.Root)
	for _, key := range testsupport.SortedKeys(before) {
		if before[key] != after[key] {
			t.Fatalf("file %s changed after rejected registration", key)
		}
	}
}

func TestRegisterReuseOverwritesAndRequeues(t *testing.T) {
	f := newFixture(t, nil, testsupport.WithConflictPolicy(config.ConflictReuse))
	ctx := context.Background()
	if _, err := f.reg.Register(ctx, registrar.Request{JobID: "alpha", Consumer: "studio-3DT"}); err != nil {
		t.Fatal(err)
	}
	ref := f.store.Ref("alpha", "v0001")
	if _, err := f.store.Claim(ctx, ref, "w"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reg.Register(ctx, registrar.Request{JobID: "alpha", Consumer: "studio-3DT", RequestedVersion: "1"}); err == nil {
		t.Fatal("expected running version to be protected from reuse")
	}

	if _, err := f.store.Advance(ref, queue.StatusCompleted, queue.RenderingStub); err != nil {
		t.Fatal(err)
	}
	if err := f.store.Release(ref); err != nil {
		t.Fatal(err)
	}
	res, err := f.reg.Register(ctx, registrar.Request{JobID: "alpha", Consumer: "studio-3DT", RequestedVersion: "1", Notes: "redo"})
	if err != nil {
		t.Fatalf("Register reuse: %v", err)
	}
	if !res.Reused || res.Metadata.Status != queue.StatusQueued || res.Metadata.Notes != "redo" {
		t.Fatalf("unexpected reuse result %#v", res)
	}
	if _, ok, _ := f.store.ReadClaim(ref); ok {
		t.Fatal("expected claim marker to be released after reuse")
	}

	m, _, err := f.manifests.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	versions := m.Jobs["alpha"].Versions
	if len(versions) != 1 || versions[0].Notes != "redo" || versions[0].Status != queue.StatusQueued {
		t.Fatalf("expected replaced manifest summary, got %#v", versions)
	}
}

func TestRegisterReuseRefusesClaimedQueuedVersion(t *testing.T) {
	f := newFixture(t, nil, testsupport.WithConflictPolicy(config.ConflictReuse))
	ctx := context.Background()
	if _, err := f.reg.Register(ctx, registrar.Request{JobID: "alpha", Consumer: "studio-3DT", Notes: "original"}); err != nil {
		t.Fatal(err)
	}
	ref := f.store.Ref("alpha", "v0001")
	// A worker that has created its marker but not yet moved the version to running.
	if err := f.store.Reserve(ref, "worker-1", time.Date(2026, 1, 2, 16, 0, 0, 0, time.UTC)); err != nil {
		t.Fatal(err)
	}
	before := testsupport.Snapshot(t, f.cfg.Paths.Root)

	_, err := f.reg.Register(ctx, registrar.Request{JobID: "alpha", Consumer: "studio-3DT", RequestedVersion: "1", Notes: "redo"})
	var cerr *registrar.ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if !strings.Contains(cerr.Error(), "claimed") {
		t.Fatalf("unexpected conflict reason %q", cerr.Error())
	}

	after := testsupport.Snapshot(t, f.cfg.Paths.Root)
	for _, key := range testsupport.SortedKeys(before) {
		if before[key] != after[key] {
			t.Fatalf("file %s changed while the version was claimed", key)
		}
	}
	info, ok, err := f.store.ReadClaim(ref)
	if err != nil || !ok || info.WorkerID != "worker-1" {
		t.Fatalf("worker claim marker disturbed: %#v ok=%v err=%v", info, ok, err)
	}
}

func TestRegisterLeavesNoClaimMarker(t *testing.T) {
	f := newFixture(t, nil)
	res, err := f.reg.Register(context.Background(), registrar.Request{JobID: "alpha", Consumer: "studio-3DT"})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok, err := f.store.ReadClaim(f.store.Ref(res.JobID, res.Version)); err != nil || ok {
		t.Fatalf("registration left a claim marker: ok=%v err=%v", ok, err)
	}
}

func TestConcurrentRegistrationsGetDistinctVersions(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const callers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		versions = map[string]int{}
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.reg.Register(ctx, registrar.Request{JobID: "alpha", Consumer: "studio-3DT"})
			if err != nil {
				t.Errorf("Register: %v", err)
				return
			}
			mu.Lock()
			versions[res.Version]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if len(versions) != callers {
		t.Fatalf("expected %d distinct versions, got %v", callers, versions)
	}
	m, _, err := f.manifests.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := len(m.Jobs["alpha"].Versions); got != callers {
		t.Fatalf("manifest lost entries: %d of %d", got, callers)
	}
}

func TestRegisterRecordsJournalEvent(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithJournal())
	j := testsupport.MustOpenJournal(t, cfg)
	store := queue.NewStore(cfg, logging.NewNop())
	reg := registrar.New(cfg, store, manifest.NewStore(cfg, logging.NewNop()), j, logging.NewNop())

	if _, err := reg.Register(context.Background(), registrar.Request{JobID: "alpha", Consumer: "studio-3DT"}); err != nil {
		t.Fatal(err)
	}
	entries, err := j.List(context.Background(), journal.Filter{JobID: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Event != journal.EventRegistered || entries[0].ToStatus != queue.StatusQueued {
		t.Fatalf("unexpected journal entries %#v", entries)
	}
}
