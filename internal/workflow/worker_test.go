package workflow_test

import (
	"context"
	"errors"
	"path/filepath"
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
	"jobspine/internal/stage"
	"jobspine/internal/testsupport"
	"jobspine/internal/workflow"
)

type env struct {
	cfg       *config.Config
	store     *queue.Store
	manifests *manifest.Store
	reg       *registrar.Registrar
}

func newEnv(t *testing.T, opts ...testsupport.ConfigOption) env {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	clock := testsupport.NewClock(time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC))
	store := queue.NewStore(cfg, logging.NewNop(), queue.WithClock(clock.Now))
	manifests := manifest.NewStore(cfg, logging.NewNop())
	return env{
		cfg:       cfg,
		store:     store,
		manifests: manifests,
		reg:       registrar.New(cfg, store, manifests, nil, logging.NewNop()),
	}
}

func (e env) worker(opts ...workflow.Option) *workflow.Worker {
	stub := stage.NewStubExecutor(e.cfg.Worker.ClaimedBy, logging.NewNop())
	return workflow.New(e.cfg, e.store, e.manifests, stub, logging.NewNop(), opts...)
}

func (e env) register(t *testing.T, jobID string) registrar.Result {
	t.Helper()
	res, err := e.reg.Register(context.Background(), registrar.Request{JobID: jobID, Consumer: "studio-3DT"})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	return res
}

func TestRunOnceCompletesRegisteredJob(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alpha")
	w := e.worker(workflow.WithWorkerID("worker-1"))

	outcome, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if outcome.Kind != workflow.OutcomeCompleted || outcome.JobID != "alpha" || outcome.Version != "v0001" {
		t.Fatalf("unexpected outcome %#v", outcome)
	}

	ref := e.store.Ref("alpha", "v0001")
	meta, state, err := e.store.ReadMetadata(ref.MetadataPath())
	if err != nil || state != fileutil.ReadOK {
		t.Fatalf("ReadMetadata: state=%s err=%v", state, err)
	}
	if meta.Status != queue.StatusCompleted || meta.Rendering != queue.RenderingStub {
		t.Fatalf("unexpected metadata %#v", meta)
	}
	if meta.Timestamp != "2026-01-02T15:04:05Z" || meta.StartedAt != "2026-01-02T15:04:07Z" || meta.CompletedAt != "2026-01-02T15:04:08Z" {
		t.Fatalf("unexpected timestamps: %s %s %s", meta.Timestamp, meta.StartedAt, meta.CompletedAt)
	}

	stub := string(testsupport.ReadFile(t, filepath.Join(ref.Dir, queue.StubFileName)))
	if want := stage.StubContent(meta, "Wired Chaos worker"); stub != want {
		t.Fatalf("unexpected stub content:\n%s", stub)
	}

	if _, ok, err := e.store.ReadClaim(ref); err != nil || ok {
		t.Fatalf("claim marker not released after completion: ok=%v err=%v", ok, err)
	}

	m, _, err := e.manifests.Load(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	summary := m.Jobs["alpha"].FindVersion("v0001")
	if summary == nil {
		t.Fatal("manifest summary missing")
	}
	if *summary != manifest.SummaryFromMetadata(meta) {
		t.Fatalf("manifest disagrees with metadata:\n%#v\n%#v", *summary, manifest.SummaryFromMetadata(meta))
	}

	if stats := w.Stats(); stats.Completed != 1 || stats.WorkerID != "worker-1" {
		t.Fatalf("unexpected stats %#v", stats)
	}
}

func TestRunOnceIdleMutatesNothing(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alpha")
	w := e.worker()
	if _, err := w.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}

	before := testsupport.Snapshot(t, e.cfg.Paths.Root)
	outcome, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if outcome.Kind != workflow.OutcomeIdle {
		t.Fatalf("expected idle, got %#v", outcome)
	}
	after := testsupport.Snapshot(t, e.cfg.Paths.Root)
	if len(before) != len(after) {
		t.Fatalf("file set changed: %v vs %v", testsupport.SortedKeys(before), testsupport.SortedKeys(after))
	}
	for key, value := range before {
		if after[key] != value {
			t.Fatalf("file %s changed during idle cycle", key)
		}
	}
}

func TestRunOnceProcessesInLexicalOrder(t *testing.T) {
	e := newEnv(t)
	e.register(t, "beta")
	e.register(t, "alpha")
	e.register(t, "alpha")
	w := e.worker()

	var got []string
	for i := 0; i < 3; i++ {
		outcome, err := w.RunOnce(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, outcome.JobID+"/"+outcome.Version)
	}
	want := []string{"alpha/v0001", "alpha/v0002", "beta/v0001"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("processing order %v, want %v", got, want)
		}
	}
}

func TestRunOnceProcessesDotLeadingNames(t *testing.T) {
	e := newEnv(t)
	e.register(t, ".alpha")
	if _, err := e.reg.Register(context.Background(), registrar.Request{
		JobID:            "beta",
		Consumer:         "studio-3DT",
		RequestedVersion: ".draft",
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	w := e.worker()

	var got []string
	for i := 0; i < 2; i++ {
		outcome, err := w.RunOnce(context.Background())
		if err != nil {
			t.Fatal(err)
		}
		if outcome.Kind != workflow.OutcomeCompleted {
			t.Fatalf("expected completion, got %#v", outcome)
		}
		got = append(got, outcome.JobID+"/"+outcome.Version)
	}
	if got[0] != ".alpha/v0001" || got[1] != "beta/.draft" {
		t.Fatalf("unexpected processing order %v", got)
	}
	if outcome, err := w.RunOnce(context.Background()); err != nil || outcome.Kind != workflow.OutcomeIdle {
		t.Fatalf("expected idle after draining, got %#v err=%v", outcome, err)
	}
}

func TestReuseRegistrationRacingWorkers(t *testing.T) {
	e := newEnv(t, testsupport.WithConflictPolicy(config.ConflictReuse))
	req := registrar.Request{JobID: "alpha", Consumer: "studio-3DT", RequestedVersion: "1"}
	if _, err := e.reg.Register(context.Background(), req); err != nil {
		t.Fatal(err)
	}

	const rounds = 40
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < rounds; i++ {
			_, err := e.reg.Register(context.Background(), req)
			var conflict *registrar.ConflictError
			if err != nil && !errors.As(err, &conflict) {
				t.Errorf("Register: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		w := e.worker()
		for i := 0; i < rounds; i++ {
			if _, err := w.RunOnce(context.Background()); err != nil {
				t.Errorf("RunOnce: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	ref := e.store.Ref("alpha", "v0001")
	meta, state, err := e.store.ReadMetadata(ref.MetadataPath())
	if err != nil || state != fileutil.ReadOK {
		t.Fatalf("ReadMetadata: state=%s err=%v", state, err)
	}
	if meta.Status != queue.StatusQueued && meta.Status != queue.StatusCompleted {
		t.Fatalf("unexpected final status %s", meta.Status)
	}
	if _, ok, err := e.store.ReadClaim(ref); err != nil || ok {
		t.Fatalf("claim marker left behind: ok=%v err=%v", ok, err)
	}
}

func TestConcurrentRunOnceCompletesExactlyOnce(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alpha")

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		outcomes = map[workflow.OutcomeKind]int{}
	)
	for i := 0; i < workers; i++ {
		w := e.worker()
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := w.RunOnce(context.Background())
			if err != nil {
				t.Errorf("RunOnce: %v", err)
				return
			}
			mu.Lock()
			outcomes[outcome.Kind]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	if outcomes[workflow.OutcomeCompleted] != 1 {
		t.Fatalf("expected exactly one completion, got %v", outcomes)
	}
	if outcomes[workflow.OutcomeCompleted]+outcomes[workflow.OutcomeRaceLost]+outcomes[workflow.OutcomeIdle] != workers {
		t.Fatalf("unexpected outcomes %v", outcomes)
	}
}

type failingHandler struct{}

func (failingHandler) Prepare(context.Context, *stage.Job) error { return nil }

func (failingHandler) Execute(context.Context, *stage.Job) error { return errors.New("renderer exploded") }

func (failingHandler) HealthCheck(context.Context) stage.Health { return stage.Unhealthy("failing", "always fails") }

func TestExecutionFailureLeavesVersionRunning(t *testing.T) {
	e := newEnv(t)
	e.register(t, "alpha")
	w := workflow.New(e.cfg, e.store, e.manifests, failingHandler{}, logging.NewNop())

	outcome, err := w.RunOnce(context.Background())
	if err == nil {
		t.Fatal("expected execution error")
	}
	if outcome.Kind != workflow.OutcomeFailed {
		t.Fatalf("expected failed outcome, got %#v", outcome)
	}
	meta, _, err := e.store.ReadMetadata(e.store.Ref("alpha", "v0001").MetadataPath())
	if err != nil {
		t.Fatal(err)
	}
	if meta.Status != queue.StatusRunning || meta.CompletedAt != "" {
		t.Fatalf("expected version to stay running, got %#v", meta)
	}

	next, err := w.RunOnce(context.Background())
	if err != nil || next.Kind != workflow.OutcomeIdle {
		t.Fatalf("running version must not be rediscovered: %#v err=%v", next, err)
	}
}

func TestRunLoopDrainsQueueAndStopsOnCancel(t *testing.T) {
	e := newEnv(t, testsupport.WithJournal())
	j := testsupport.MustOpenJournal(t, e.cfg)
	e.register(t, "alpha")
	e.register(t, "beta")
	w := e.worker(workflow.WithRecorder(j))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.RunLoop(ctx, 10*time.Millisecond)
	}()

	deadline := time.After(5 * time.Second)
	for w.Stats().Completed < 2 {
		select {
		case <-deadline:
			cancel()
			t.Fatalf("worker did not drain queue: %#v", w.Stats())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("RunLoop did not stop after cancel")
	}

	entries, err := j.List(context.Background(), journal.Filter{JobID: "alpha"})
	if err != nil {
		t.Fatal(err)
	}
	var events []string
	for _, entry := range entries {
		events = append(events, entry.Event)
	}
	if len(events) != 2 || events[0] != journal.EventClaimed || events[1] != journal.EventCompleted {
		t.Fatalf("unexpected journal events %v", events)
	}
}
