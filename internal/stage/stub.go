package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"jobspine/internal/fileutil"
	"jobspine/internal/logging"
	"jobspine/internal/queue"
)

// StubName identifies the stub executor in health reports and logs.
const StubName = "stub_execution"

// StubExecutor stands in for rendering: it writes STUB_EXECUTION.md into the
// version directory and nothing else.
type StubExecutor struct {
	claimedBy string
	logger    *slog.Logger
}

// NewStubExecutor returns a stub executor that names claimedBy in its output.
func NewStubExecutor(claimedBy string, logger *slog.Logger) *StubExecutor {
	return &StubExecutor{
		claimedBy: claimedBy,
		logger:    logging.NewComponentLogger(logger, StubName),
	}
}

// SetLogger implements LoggerAware.
func (s *StubExecutor) SetLogger(logger *slog.Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// Prepare checks that the version directory is present.
func (s *StubExecutor) Prepare(_ context.Context, job *Job) error {
	if job == nil || job.Metadata == nil {
		return errors.New("stub execution: job metadata is required")
	}
	info, err := os.Stat(job.Ref.Dir)
	if err != nil {
		return fmt.Errorf("stub execution: version directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("stub execution: %s is not a directory", job.Ref.Dir)
	}
	return nil
}

// Execute writes the stub marker file.
func (s *StubExecutor) Execute(ctx context.Context, job *Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := filepath.Join(job.Ref.Dir, queue.StubFileName)
	if err := fileutil.WriteFileAtomic(path, []byte(StubContent(job.Metadata, s.claimedBy)), 0o644); err != nil {
		return fmt.Errorf("stub execution: %w", err)
	}
	s.logger.Debug("stub output written", logging.String("path", path))
	return nil
}

// HealthCheck reports the stub ready once it has a claimant name to record.
func (s *StubExecutor) HealthCheck(context.Context) Health {
	if strings.TrimSpace(s.claimedBy) == "" {
		return Unhealthy(StubName, "worker.claimed_by is empty")
	}
	return Healthy(StubName)
}

// StubContent renders STUB_EXECUTION.md for meta.
func StubContent(meta *queue.Metadata, claimedBy string) string {
	return strings.Join([]string{
		"# STUB_EXECUTION",
		"- Rendering mocked for deterministic pipeline bring-up.",
		"- No GPU or renderer selected; this is a placeholder output stage.",
		fmt.Sprintf("- Job: %s, Version: %s.", meta.JobID, meta.Version),
		fmt.Sprintf("- Claimed by: %s.", claimedBy),
	}, "\n") + "\n"
}
