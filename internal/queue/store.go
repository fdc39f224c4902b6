package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"jobspine/internal/config"
	"jobspine/internal/fileutil"
	"jobspine/internal/logging"
)

// Store manages the filesystem job store rooted at paths.root.
type Store struct {
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source used for started_at and completed_at.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns a store rooted at the configured job store root.
func NewStore(cfg *config.Config, logger *slog.Logger, opts ...Option) *Store {
	s := &Store{
		root:   cfg.Paths.Root,
		logger: logging.NewComponentLogger(logger, "queue"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the store clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// EnsureLayout creates the intake and version directories for a version and
// returns the version directory. Calling it again is harmless.
func (s *Store) EnsureLayout(jobID, version string) (string, error) {
	if err := os.MkdirAll(s.IntakeDir(jobID), 0o755); err != nil {
		return "", fmt.Errorf("create intake directory: %w", err)
	}
	dir := s.Ref(jobID, version).Dir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create version directory: %w", err)
	}
	return dir, nil
}

// ReadMetadata reads a metadata.json file. Missing and corrupt files are
// reported through the returned state with a nil metadata and nil error.
func (s *Store) ReadMetadata(path string) (*Metadata, fileutil.ReadState, error) {
	var meta Metadata
	state, _, err := fileutil.ReadJSON(path, &meta)
	if err != nil {
		return nil, state, err
	}
	if state != fileutil.ReadOK {
		return nil, state, nil
	}
	return &meta, state, nil
}

// WriteMetadata atomically replaces the metadata file at path.
func (s *Store) WriteMetadata(path string, meta *Metadata) error {
	if meta == nil {
		return errors.New("write metadata: nil metadata")
	}
	if err := fileutil.WriteJSONAtomic(path, meta); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	return nil
}

// ListJobs returns job ids under JOBS in lexical order.
func (s *Store) ListJobs() ([]string, error) {
	return listDirs(filepath.Join(s.root, JobsDirName))
}

// ListVersions returns the version directory names of jobID in lexical order.
// An unknown job yields an empty list.
func (s *Store) ListVersions(jobID string) ([]string, error) {
	return listDirs(s.VersionsDir(jobID))
}

func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// WalkFunc receives every version found by Walk. meta is nil unless state is
// fileutil.ReadOK.
type WalkFunc func(ref VersionRef, meta *Metadata, state fileutil.ReadState) error

// SkipAll stops Walk without reporting an error.
var SkipAll = errors.New("skip all versions")

// Walk visits every version in lexical job then version order. Unreadable
// metadata is passed through as missing or corrupt; only directory listing
// failures and callback errors stop the walk.
func (s *Store) Walk(ctx context.Context, fn WalkFunc) error {
	jobs, err := s.ListJobs()
	if err != nil {
		return err
	}
	for _, jobID := range jobs {
		versions, err := s.ListVersions(jobID)
		if err != nil {
			return err
		}
		for _, version := range versions {
			if err := ctx.Err(); err != nil {
				return err
			}
			ref := s.Ref(jobID, version)
			meta, state, err := s.ReadMetadata(ref.MetadataPath())
			if err != nil {
				s.logger.Debug("metadata unreadable",
					logging.String(logging.FieldJobID, jobID),
					logging.String(logging.FieldVersion, version),
					logging.Error(err),
				)
				meta, state = nil, fileutil.ReadCorrupt
			}
			if err := fn(ref, meta, state); err != nil {
				if errors.Is(err, SkipAll) {
					return nil
				}
				return err
			}
		}
	}
	return nil
}

// NextQueued returns the first queued, unclaimed version in lexical job then
// version order. found is false when nothing is queued.
func (s *Store) NextQueued(ctx context.Context) (ref VersionRef, meta *Metadata, found bool, err error) {
	err = s.Walk(ctx, func(candidate VersionRef, candidateMeta *Metadata, state fileutil.ReadState) error {
		if state != fileutil.ReadOK {
			s.logger.Debug("skipping version without readable metadata",
				logging.String(logging.FieldJobID, candidate.JobID),
				logging.String(logging.FieldVersion, candidate.Version),
				logging.String("state", state.String()),
			)
			return nil
		}
		if candidateMeta.Status != StatusQueued {
			return nil
		}
		if s.claimExists(candidate) {
			s.logger.Debug("skipping claimed version",
				logging.String(logging.FieldJobID, candidate.JobID),
				logging.String(logging.FieldVersion, candidate.Version),
			)
			return nil
		}
		ref, meta, found = candidate, candidateMeta, true
		return SkipAll
	})
	if err != nil {
		return VersionRef{}, nil, false, err
	}
	return ref, meta, found, nil
}

// Advance moves a claimed version one step forward to status to, stamping the
// matching timestamp. rendering, when non-empty, replaces the rendering marker.
func (s *Store) Advance(ref VersionRef, to Status, rendering string) (*Metadata, error) {
	meta, state, err := s.ReadMetadata(ref.MetadataPath())
	if err != nil {
		return nil, err
	}
	if state != fileutil.ReadOK {
		return nil, fmt.Errorf("%w: %s (%s)", ErrMetadataUnavailable, ref, state)
	}
	if !CanTransition(meta.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s for %s", ErrInvalidTransition, meta.Status, to, ref)
	}

	stamp := FormatTime(s.now())
	switch to {
	case StatusRunning:
		meta.StartedAt = stamp
	case StatusCompleted:
		meta.CompletedAt = stamp
	}
	meta.Status = to
	if rendering != "" {
		meta.Rendering = rendering
	}
	if err := s.WriteMetadata(ref.MetadataPath(), meta); err != nil {
		return nil, err
	}
	return meta, nil
}
