package workerrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"jobspine/internal/config"
	"jobspine/internal/journal"
	"jobspine/internal/logging"
	"jobspine/internal/manifest"
	"jobspine/internal/preflight"
	"jobspine/internal/queue"
	"jobspine/internal/stage"
	"jobspine/internal/workflow"
)

// Options configures worker process runtime behavior.
type Options struct {
	// Watch keeps polling until a signal arrives; otherwise one cycle runs.
	Watch        bool
	PollInterval time.Duration
	WorkerID     string
}

// Run hosts a worker until SIGINT or SIGTERM, or for a single cycle when
// Watch is false. Cancellation by signal is a clean exit.
func Run(cmdCtx context.Context, cfg *config.Config, logger *slog.Logger, opts Options) (workflow.Outcome, error) {
	if cfg == nil {
		return workflow.Outcome{}, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cfg.EnsureDirectories(); err != nil {
		return workflow.Outcome{}, fmt.Errorf("ensure directories: %w", err)
	}
	for _, result := range preflight.RunDirectoryChecks(cfg) {
		if !result.Passed {
			return workflow.Outcome{}, fmt.Errorf("preflight %s: %s", result.Name, result.Detail)
		}
	}

	store := queue.NewStore(cfg, logger)
	manifests := manifest.NewStore(cfg, logger)
	handler := stage.NewStubExecutor(cfg.Worker.ClaimedBy, logger)
	if err := handler.HealthCheck(signalCtx).Err(); err != nil {
		return workflow.Outcome{}, fmt.Errorf("stage health: %w", err)
	}

	workerOpts := []workflow.Option{workflow.WithWorkerID(opts.WorkerID)}
	if cfg.Journal.Enabled {
		j, err := journal.Open(signalCtx, cfg.JournalPath())
		if err != nil {
			logging.WarnWithContext(logger, "journal unavailable", "journal_open_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "transitions will not be recorded in history"),
				logging.String(logging.FieldErrorHint, "check journal.path or set journal.enabled = false"),
			)
		} else {
			defer j.Close()
			workerOpts = append(workerOpts, workflow.WithRecorder(j))
		}
	}
	worker := workflow.New(cfg, store, manifests, handler, logger, workerOpts...)

	logger.Info("worker starting",
		logging.String(logging.FieldEventType, "worker_start"),
		logging.String(logging.FieldWorkerID, worker.ID()),
		logging.String("root", cfg.Paths.Root),
		logging.Bool("watch", opts.Watch),
	)

	if !opts.Watch {
		return worker.RunOnce(signalCtx)
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = cfg.PollInterval()
	}
	err := worker.RunLoop(signalCtx, poll)
	stats := worker.Stats()
	logger.Info("worker shutting down",
		logging.String(logging.FieldEventType, "worker_stop"),
		logging.Int("completed", stats.Completed),
		logging.Int("race_lost", stats.RaceLost),
		logging.Int("failed", stats.Failed),
	)
	if errors.Is(err, context.Canceled) && cmdCtx.Err() == nil {
		return workflow.Outcome{}, nil
	}
	return workflow.Outcome{}, err
}
