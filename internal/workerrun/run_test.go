package workerrun_test

import (
	"context"
	"testing"
	"time"

	"jobspine/internal/logging"
	"jobspine/internal/manifest"
	"jobspine/internal/queue"
	"jobspine/internal/registrar"
	"jobspine/internal/testsupport"
	"jobspine/internal/workerrun"
	"jobspine/internal/workflow"
)

func TestRunSinglePass(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithJournal())
	store := queue.NewStore(cfg, logging.NewNop())
	reg := registrar.New(cfg, store, manifest.NewStore(cfg, logging.NewNop()), nil, logging.NewNop())
	if _, err := reg.Register(context.Background(), registrar.Request{JobID: "alpha", Consumer: "studio-3DT"}); err != nil {
		t.Fatal(err)
	}

	outcome, err := workerrun.Run(context.Background(), cfg, logging.NewNop(), workerrun.Options{WorkerID: "w-test"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Kind != workflow.OutcomeCompleted {
		t.Fatalf("expected completed outcome, got %#v", outcome)
	}

	outcome, err = workerrun.Run(context.Background(), cfg, logging.NewNop(), workerrun.Options{})
	if err != nil || outcome.Kind != workflow.OutcomeIdle {
		t.Fatalf("expected idle second pass, got %#v err=%v", outcome, err)
	}
}

func TestRunWatchStopsWithParentContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := workerrun.Run(ctx, cfg, logging.NewNop(), workerrun.Options{Watch: true, PollInterval: 10 * time.Millisecond})
	if err == nil {
		t.Fatal("expected parent cancellation to be reported")
	}
}

func TestRunRefusesUnhealthyStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Worker.ClaimedBy = ""

	if _, err := workerrun.Run(context.Background(), cfg, logging.NewNop(), workerrun.Options{}); err == nil {
		t.Fatal("expected stage health failure")
	}
}
