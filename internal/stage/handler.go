package stage

import (
	"context"
	"log/slog"

	"jobspine/internal/queue"
)

// Job is a claimed version handed to a stage.
type Job struct {
	Ref      queue.VersionRef
	Metadata *queue.Metadata
	WorkerID string
}

// Handler describes the contract the worker needs from an execution stage.
type Handler interface {
	Prepare(context.Context, *Job) error
	Execute(context.Context, *Job) error
	HealthCheck(context.Context) Health
}

// LoggerAware is implemented by handlers that accept a per-job logger.
type LoggerAware interface {
	SetLogger(*slog.Logger)
}
