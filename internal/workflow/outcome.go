package workflow

// OutcomeKind classifies the result of one RunOnce cycle.
type OutcomeKind string

const (
	// OutcomeIdle means no queued version was found.
	OutcomeIdle OutcomeKind = "idle"
	// OutcomeRaceLost means another worker claimed the discovered version first.
	OutcomeRaceLost OutcomeKind = "race_lost"
	// OutcomeCompleted means a version was claimed, executed, and completed.
	OutcomeCompleted OutcomeKind = "completed"
	// OutcomeFailed means a claimed version failed during execution and
	// remains running.
	OutcomeFailed OutcomeKind = "failed"
)

// Outcome reports what RunOnce did.
type Outcome struct {
	Kind    OutcomeKind
	JobID   string
	Version string
}

// Stats summarizes a worker's activity since construction.
type Stats struct {
	WorkerID  string
	Completed int
	RaceLost  int
	Failed    int
	LastError string
}
