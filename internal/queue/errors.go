package queue

import "errors"

var (
	// ErrAlreadyClaimed reports that another worker owns the version's claim
	// marker or that the version left the queued state before the claim landed.
	ErrAlreadyClaimed = errors.New("version already claimed")
	// ErrInvalidTransition reports a status change that is not a forward step.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrMetadataUnavailable reports a version whose metadata is missing or corrupt.
	ErrMetadataUnavailable = errors.New("version metadata unavailable")
)

// ErrorClassifier allows errors to declare their classification.
// Known kinds: "validation", "policy", "conflict".
type ErrorClassifier interface {
	// ErrorKind returns a string classification of the error.
	ErrorKind() string
}

// ErrorKind returns the classification of err, or "" when err does not
// implement ErrorClassifier.
func ErrorKind(err error) string {
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		return classifier.ErrorKind()
	}
	return ""
}
