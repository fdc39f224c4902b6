package queue

import "path/filepath"

// File and directory names inside the store.
const (
	IntakeDirName       = "INTAKE"
	JobsDirName         = "JOBS"
	VersionsDirName     = "versions"
	MetadataFileName    = "metadata.json"
	ClaimFileName       = ".claim"
	RegisterLockName    = ".register.lock"
	PlaceholderFileName = "ARTIFACTS_PLACEHOLDER.md"
	StubFileName        = "STUB_EXECUTION.md"
)

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// IntakeDir returns the intake directory for jobID.
func (s *Store) IntakeDir(jobID string) string {
	return filepath.Join(s.root, IntakeDirName, jobID)
}

// JobDir returns the job directory for jobID.
func (s *Store) JobDir(jobID string) string {
	return filepath.Join(s.root, JobsDirName, jobID)
}

// VersionsDir returns the directory holding every version of jobID.
func (s *Store) VersionsDir(jobID string) string {
	return filepath.Join(s.JobDir(jobID), VersionsDirName)
}

// Ref returns the reference for a version without touching the filesystem.
func (s *Store) Ref(jobID, version string) VersionRef {
	return VersionRef{
		JobID:   jobID,
		Version: version,
		Dir:     filepath.Join(s.VersionsDir(jobID), version),
	}
}

// RegisterLockPath returns the per-job registration lock file.
func (s *Store) RegisterLockPath(jobID string) string {
	return filepath.Join(s.JobDir(jobID), RegisterLockName)
}
