package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"jobspine/internal/config"
	"jobspine/internal/journal"
	"jobspine/internal/logging"
	"jobspine/internal/manifest"
	"jobspine/internal/queue"
	"jobspine/internal/stage"
	"jobspine/internal/stageexec"
)

// Worker claims and executes queued versions.
type Worker struct {
	cfg       *config.Config
	store     *queue.Store
	manifests *manifest.Store
	handler   stage.Handler
	recorder  journal.Recorder
	logger    *slog.Logger
	workerID  string

	mu    sync.Mutex
	stats Stats
}

// Option configures optional Worker behavior.
type Option func(*Worker)

// WithWorkerID overrides the generated worker id.
func WithWorkerID(id string) Option {
	return func(w *Worker) {
		if id != "" {
			w.workerID = id
		}
	}
}

// WithRecorder attaches a journal recorder.
func WithRecorder(recorder journal.Recorder) Option {
	return func(w *Worker) {
		w.recorder = recorder
	}
}

// New constructs a worker.
func New(cfg *config.Config, store *queue.Store, manifests *manifest.Store, handler stage.Handler, logger *slog.Logger, opts ...Option) *Worker {
	w := &Worker{
		cfg:       cfg,
		store:     store,
		manifests: manifests,
		handler:   handler,
		workerID:  uuid.NewString(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = logging.NewComponentLogger(logger, "worker").With(logging.String(logging.FieldWorkerID, w.workerID))
	w.stats.WorkerID = w.workerID
	return w
}

// ID returns the worker id written into claim markers.
func (w *Worker) ID() string {
	return w.workerID
}

// Stats returns a snapshot of worker activity.
func (w *Worker) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// RunOnce performs at most one discover, claim, execute, complete cycle.
// Losing a claim race is reported as OutcomeRaceLost with a nil error. An
// execution failure leaves the version running and claimed and is returned.
// A completed version's claim marker is released.
func (w *Worker) RunOnce(ctx context.Context) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return Outcome{}, err
	}

	ref, _, found, err := w.store.NextQueued(ctx)
	if err != nil {
		w.noteError(err)
		return Outcome{}, fmt.Errorf("discover queued version: %w", err)
	}
	if !found {
		w.logger.Debug("no queued jobs discovered")
		return Outcome{Kind: OutcomeIdle}, nil
	}

	outcome := Outcome{JobID: ref.JobID, Version: ref.Version}
	jobCtx := logging.WithJob(ctx, ref.JobID, ref.Version)
	logger := logging.WithContext(jobCtx, w.logger)
	logger.Debug("claiming version")

	claimed, err := w.store.Claim(ctx, ref, w.workerID)
	if err != nil {
		if errors.Is(err, queue.ErrAlreadyClaimed) {
			logger.Debug("version already claimed by another worker", logging.Error(err))
			w.bump(func(s *Stats) { s.RaceLost++ })
			outcome.Kind = OutcomeRaceLost
			return outcome, nil
		}
		w.noteError(err)
		return outcome, fmt.Errorf("claim %s: %w", ref, err)
	}
	logger.Info("version claimed", logging.String(logging.FieldEventType, "job_claimed"))
	w.mirror(jobCtx, logger, claimed, queue.StatusQueued, claimed.StartedAt, journal.EventClaimed)

	err = stageexec.Run(ctx, stageexec.Options{
		Logger:    w.logger,
		Handler:   w.handler,
		StageName: stage.StubName,
		Job:       &stage.Job{Ref: ref, Metadata: claimed, WorkerID: w.workerID},
	})
	if err != nil {
		w.noteError(err)
		w.bump(func(s *Stats) { s.Failed++ })
		outcome.Kind = OutcomeFailed
		return outcome, fmt.Errorf("execute %s: %w", ref, err)
	}

	completed, err := w.store.Advance(ref, queue.StatusCompleted, queue.RenderingStub)
	if err != nil {
		w.noteError(err)
		w.bump(func(s *Stats) { s.Failed++ })
		outcome.Kind = OutcomeFailed
		return outcome, fmt.Errorf("complete %s: %w", ref, err)
	}
	w.mirror(jobCtx, logger, completed, queue.StatusRunning, completed.CompletedAt, journal.EventCompleted)
	if err := w.store.Release(ref); err != nil {
		logging.WarnWithContext(logger, "claim marker not released", "claim_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "completed version cannot be reused until the marker is removed"),
			logging.String(logging.FieldErrorHint, "remove "+ref.ClaimPath()+" manually"),
		)
	}
	logger.Info("version completed", logging.String(logging.FieldEventType, "job_completed"))

	w.bump(func(s *Stats) { s.Completed++ })
	outcome.Kind = OutcomeCompleted
	return outcome, nil
}

// RunLoop calls RunOnce until ctx is cancelled and then returns ctx.Err().
// Idle cycles wait pollInterval, failed cycles wait the configured error
// retry interval, and completed or lost claims retry immediately.
func (w *Worker) RunLoop(ctx context.Context, pollInterval time.Duration) error {
	if pollInterval <= 0 {
		pollInterval = w.cfg.PollInterval()
	}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := w.RunOnce(ctx)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.ErrorWithContext(w.logger, "worker cycle failed", "worker_cycle_failed",
				logging.String(logging.FieldJobID, outcome.JobID),
				logging.String(logging.FieldVersion, outcome.Version),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check store permissions; a failed version stays running"),
			)
			if err := wait(ctx, w.cfg.ErrorRetryInterval()); err != nil {
				return err
			}
		case outcome.Kind == OutcomeIdle:
			w.logger.Debug("sleeping before next check", logging.Duration("poll_interval", pollInterval))
			if err := wait(ctx, pollInterval); err != nil {
				return err
			}
		}
	}
}

func wait(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// mirror copies a status change into the manifest and journal. Failures are
// logged and do not undo the metadata write.
func (w *Worker) mirror(ctx context.Context, logger *slog.Logger, meta *queue.Metadata, from queue.Status, stamp string, event string) {
	at, err := queue.ParseTime(stamp)
	if err != nil {
		at = w.store.Now()
	}
	if _, err := w.manifests.SetVersionStatus(ctx, meta.JobID, meta.Version, meta.Status, at); err != nil {
		logging.WarnWithContext(logger, "manifest status not updated", "manifest_update_failed",
			logging.String(logging.FieldStatus, string(meta.Status)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "manifest disagrees with version metadata"),
			logging.String(logging.FieldErrorHint, "run 'jobspine manifest rebuild'"),
		)
	}
	if w.recorder == nil {
		return
	}
	err = w.recorder.Record(ctx, journal.Entry{
		Event:      event,
		JobID:      meta.JobID,
		Version:    meta.Version,
		FromStatus: from,
		ToStatus:   meta.Status,
		WorkerID:   w.workerID,
		At:         at,
	})
	if err != nil {
		logging.WarnWithContext(logger, "journal write failed", "journal_write_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "transition missing from history"),
			logging.String(logging.FieldErrorHint, "check journal path permissions"),
		)
	}
}

func (w *Worker) noteError(err error) {
	w.bump(func(s *Stats) { s.LastError = err.Error() })
}

func (w *Worker) bump(fn func(*Stats)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.stats)
}
