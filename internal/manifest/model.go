package manifest

import (
	"sort"

	"jobspine/internal/queue"
)

// Manifest is the decoded _JOBS_MANIFEST.json document.
type Manifest struct {
	IntakeRoot string                `json:"intake_root"`
	Jobs       map[string]*JobRecord `json:"jobs"`
}

// JobRecord summarizes one job and its versions in registration order.
// Fields are declared alphabetically so the encoded document has sorted keys.
type JobRecord struct {
	IntakePath  string           `json:"intake_path"`
	JobID       string           `json:"job_id"`
	LastVersion string           `json:"last_version"`
	OwnedBy     string           `json:"owned_by"`
	Versions    []VersionSummary `json:"versions"`
}

// VersionSummary mirrors the metadata of one version.
type VersionSummary struct {
	CompletedAt string       `json:"completed_at,omitempty"`
	Consumer    string       `json:"consumer"`
	IntakeMode  string       `json:"intake_mode"`
	Notes       string       `json:"notes"`
	OwnedBy     string       `json:"owned_by"`
	Rendering   string       `json:"rendering"`
	StartedAt   string       `json:"started_at,omitempty"`
	Status      queue.Status `json:"status"`
	Timestamp   string       `json:"timestamp"`
	Version     string       `json:"version"`
}

// New returns an empty manifest for intakeRoot.
func New(intakeRoot string) *Manifest {
	return &Manifest{IntakeRoot: intakeRoot, Jobs: map[string]*JobRecord{}}
}

// SummaryFromMetadata builds the manifest summary for a version.
func SummaryFromMetadata(meta *queue.Metadata) VersionSummary {
	return VersionSummary{
		CompletedAt: meta.CompletedAt,
		Consumer:    meta.Consumer,
		IntakeMode:  meta.IntakeMode,
		Notes:       meta.Notes,
		OwnedBy:     meta.OwnedBy,
		Rendering:   meta.Rendering,
		StartedAt:   meta.StartedAt,
		Status:      meta.Status,
		Timestamp:   meta.Timestamp,
		Version:     meta.Version,
	}
}

// JobIDs returns the job ids in lexical order.
func (m *Manifest) JobIDs() []string {
	ids := make([]string, 0, len(m.Jobs))
	for id := range m.Jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UpsertVersion records a version summary for meta's job, creating the job
// record when needed. A summary for the same version is replaced in place;
// otherwise the summary is appended. last_version always becomes meta's
// version.
func (m *Manifest) UpsertVersion(meta *queue.Metadata) {
	if m.Jobs == nil {
		m.Jobs = map[string]*JobRecord{}
	}
	record, ok := m.Jobs[meta.JobID]
	if !ok || record == nil {
		record = &JobRecord{JobID: meta.JobID}
		m.Jobs[meta.JobID] = record
	}
	record.IntakePath = meta.IntakePath
	record.OwnedBy = meta.OwnedBy
	record.LastVersion = meta.Version

	summary := SummaryFromMetadata(meta)
	if existing := record.FindVersion(meta.Version); existing != nil {
		*existing = summary
		return
	}
	record.Versions = append(record.Versions, summary)
}

// FindVersion returns the summary for version, or nil.
func (r *JobRecord) FindVersion(version string) *VersionSummary {
	for i := range r.Versions {
		if r.Versions[i].Version == version {
			return &r.Versions[i]
		}
	}
	return nil
}

// normalize replaces nil collections so the encoded document never contains
// null where an object or array is expected.
func (m *Manifest) normalize(intakeRoot string) {
	if m.IntakeRoot == "" {
		m.IntakeRoot = intakeRoot
	}
	if m.Jobs == nil {
		m.Jobs = map[string]*JobRecord{}
	}
	for id, record := range m.Jobs {
		if record == nil {
			delete(m.Jobs, id)
			continue
		}
		if record.Versions == nil {
			record.Versions = []VersionSummary{}
		}
	}
}
