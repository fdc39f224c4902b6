package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent names the subsystem; console output renders it as a prefix.
	FieldComponent = "component"
	FieldJobID     = "job_id"
	FieldVersion   = "version"
	FieldWorkerID  = "worker_id"
	// FieldStatus carries a lifecycle status (queued, running, completed).
	FieldStatus = "status"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact describes what a warning means for the job store.
	FieldImpact = "impact"
)

type contextKey int

const (
	jobIDKey contextKey = iota
	versionKey
	workerIDKey
)

// WithJob returns a context carrying the job id and version for log enrichment.
func WithJob(ctx context.Context, jobID, version string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if jobID != "" {
		ctx = context.WithValue(ctx, jobIDKey, jobID)
	}
	if version != "" {
		ctx = context.WithValue(ctx, versionKey, version)
	}
	return ctx
}

// WithWorkerID returns a context carrying the worker id.
func WithWorkerID(ctx context.Context, workerID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if workerID == "" {
		return ctx
	}
	return context.WithValue(ctx, workerIDKey, workerID)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := ctx.Value(jobIDKey).(string); ok {
		fields = append(fields, slog.String(FieldJobID, id))
	}
	if version, ok := ctx.Value(versionKey).(string); ok {
		fields = append(fields, slog.String(FieldVersion, version))
	}
	if worker, ok := ctx.Value(workerIDKey).(string); ok {
		fields = append(fields, slog.String(FieldWorkerID, worker))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return logger.With(args...)
}
