package registrar

import "fmt"

// ValidationError reports an input that is not a safe path segment.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ErrorKind implements queue.ErrorClassifier.
func (e *ValidationError) ErrorKind() string { return "validation" }

// PolicyError reports an input that is well-formed but not accepted.
type PolicyError struct {
	Field  string
	Reason string
}

func (e *PolicyError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// ErrorKind implements queue.ErrorClassifier.
func (e *PolicyError) ErrorKind() string { return "policy" }

// ConflictError reports an explicit version that already exists.
type ConflictError struct {
	JobID   string
	Version string
	Reason  string
}

func (e *ConflictError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "already exists"
	}
	return fmt.Sprintf("version %s of job %s %s", e.Version, e.JobID, reason)
}

// ErrorKind implements queue.ErrorClassifier.
func (e *ConflictError) ErrorKind() string { return "conflict" }
