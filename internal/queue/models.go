package queue

import (
	"path/filepath"
	"strings"
	"time"
)

// Status represents the lifecycle of a job version.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
)

// Rendering markers stored in metadata.
const (
	RenderingPending = "pending"
	RenderingStub    = "STUB_EXECUTION"
)

var allStatuses = []Status{
	StatusQueued,
	StatusRunning,
	StatusCompleted,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

var forwardTransitions = map[Status]Status{
	StatusQueued:  StatusRunning,
	StatusRunning: StatusCompleted,
}

// AllStatuses returns the lifecycle statuses in order.
func AllStatuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// ParseStatus converts a raw string into a Status if recognized.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	_, ok := statusSet[normalized]
	return normalized, ok
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// CanTransition reports whether a version may move from one status to the next.
// Only queued to running and running to completed are allowed.
func CanTransition(from, to Status) bool {
	next, ok := forwardTransitions[from]
	return ok && next == to
}

// Metadata is the per-version metadata.json document. Fields are declared
// alphabetically so the encoded document has sorted keys.
type Metadata struct {
	CompletedAt string `json:"completed_at,omitempty"`
	Consumer    string `json:"consumer"`
	IntakeMode  string `json:"intake_mode"`
	IntakePath  string `json:"intake_path"`
	JobID       string `json:"job_id"`
	Notes       string `json:"notes"`
	OwnedBy     string `json:"owned_by"`
	Rendering   string `json:"rendering"`
	StartedAt   string `json:"started_at,omitempty"`
	Status      Status `json:"status"`
	Timestamp   string `json:"timestamp"`
	Version     string `json:"version"`
}

// VersionRef locates one version directory in the store.
type VersionRef struct {
	JobID   string
	Version string
	Dir     string
}

// MetadataPath returns the metadata.json location for the version.
func (r VersionRef) MetadataPath() string {
	return filepath.Join(r.Dir, MetadataFileName)
}

// ClaimPath returns the claim marker location for the version.
func (r VersionRef) ClaimPath() string {
	return filepath.Join(r.Dir, ClaimFileName)
}

// String renders the ref as job/version for logs and messages.
func (r VersionRef) String() string {
	return r.JobID + "/" + r.Version
}

// FormatTime renders t as a UTC RFC 3339 timestamp with second precision.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// ParseTime parses a timestamp written by FormatTime.
func ParseTime(value string) (time.Time, error) {
	return time.Parse(time.RFC3339, strings.TrimSpace(value))
}
