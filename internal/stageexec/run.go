package stageexec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"jobspine/internal/logging"
	"jobspine/internal/stage"
)

// Options controls a single stage execution.
type Options struct {
	Logger    *slog.Logger
	Handler   stage.Handler
	StageName string
	Job       *stage.Job
}

// Run prepares and executes one claimed job, logging start, completion, and
// failure. Status transitions are left to the caller.
func Run(ctx context.Context, opts Options) error {
	if opts.Handler == nil {
		return fmt.Errorf("stage handler unavailable: %s", opts.StageName)
	}
	if opts.Job == nil || opts.Job.Metadata == nil {
		return errors.New("stage job is required")
	}

	jobCtx := logging.WithJob(ctx, opts.Job.Ref.JobID, opts.Job.Ref.Version)
	jobCtx = logging.WithWorkerID(jobCtx, opts.Job.WorkerID)
	stageLogger := logging.WithContext(jobCtx, opts.Logger).With(logging.String("stage", opts.StageName))
	if aware, ok := opts.Handler.(stage.LoggerAware); ok {
		aware.SetLogger(stageLogger)
	}

	started := time.Now()
	stageLogger.Info(
		"stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("consumer", opts.Job.Metadata.Consumer),
	)

	if err := opts.Handler.Prepare(jobCtx, opts.Job); err != nil {
		return handleFailure(stageLogger, "prepare", err)
	}
	if err := opts.Handler.Execute(jobCtx, opts.Job); err != nil {
		return handleFailure(stageLogger, "execute", err)
	}

	stageLogger.Info(
		"stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func handleFailure(logger *slog.Logger, phase string, stageErr error) error {
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String("phase", phase),
		logging.Error(stageErr),
		logging.String(logging.FieldErrorHint, "version stays running; see jobspine doctor for recovery"),
	)
	return fmt.Errorf("%s: %w", phase, stageErr)
}
