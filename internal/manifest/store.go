package manifest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"time"

	"jobspine/internal/config"
	"jobspine/internal/fileutil"
	"jobspine/internal/logging"
	"jobspine/internal/queue"
)

// Store reads and writes the manifest file.
type Store struct {
	path            string
	intakeRoot      string
	lockTimeout     time.Duration
	lockRetry       time.Duration
	preserveCorrupt bool
	logger          *slog.Logger
	now             func() time.Time
}

// NewStore returns a manifest store using cfg's paths and lock settings.
func NewStore(cfg *config.Config, logger *slog.Logger) *Store {
	return &Store{
		path:            cfg.ManifestPath(),
		intakeRoot:      cfg.IntakeDir(),
		lockTimeout:     cfg.LockTimeout(),
		lockRetry:       cfg.LockRetryDelay(),
		preserveCorrupt: cfg.Manifest.PreserveCorrupt,
		logger:          logging.NewComponentLogger(logger, "manifest"),
		now:             time.Now,
	}
}

// Path returns the manifest file location.
func (s *Store) Path() string {
	return s.path
}

// LockPath returns the advisory lock file guarding manifest updates.
func (s *Store) LockPath() string {
	return s.path + ".lock"
}

// Load reads the manifest. A missing or corrupt file yields an empty manifest
// and the matching read state; only other I/O failures are errors.
func (s *Store) Load(ctx context.Context) (*Manifest, fileutil.ReadState, error) {
	if err := ctx.Err(); err != nil {
		return nil, fileutil.ReadMissing, err
	}
	m := &Manifest{}
	state, _, err := fileutil.ReadJSON(s.path, m)
	if err != nil {
		return nil, state, fmt.Errorf("load manifest: %w", err)
	}
	if state != fileutil.ReadOK {
		m = New(s.intakeRoot)
	}
	m.normalize(s.intakeRoot)
	return m, state, nil
}

// Save atomically replaces the manifest file. Callers that modify a loaded
// manifest should use Update so concurrent writers are serialized.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m == nil {
		return errors.New("save manifest: nil manifest")
	}
	m.normalize(s.intakeRoot)
	if err := fileutil.WriteJSONAtomic(s.path, m); err != nil {
		return fmt.Errorf("save manifest: %w", err)
	}
	return nil
}

// Update loads the manifest under the lock, applies fn, and saves when fn
// reports a change.
func (s *Store) Update(ctx context.Context, fn func(*Manifest) (bool, error)) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	m, state, err := s.Load(ctx)
	if err != nil {
		return err
	}
	if state == fileutil.ReadCorrupt {
		s.handleCorrupt()
	}

	changed, err := fn(m)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}
	return s.Save(ctx, m)
}

// SetVersionStatus mirrors a status change into the manifest. Nothing is
// written when the job or version is not present. Running stamps started_at;
// completed stamps completed_at and the stub rendering marker.
func (s *Store) SetVersionStatus(ctx context.Context, jobID, version string, status queue.Status, at time.Time) (bool, error) {
	applied := false
	err := s.Update(ctx, func(m *Manifest) (bool, error) {
		record, ok := m.Jobs[jobID]
		if !ok {
			return false, nil
		}
		summary := record.FindVersion(version)
		if summary == nil {
			return false, nil
		}
		summary.Status = status
		switch status {
		case queue.StatusRunning:
			summary.StartedAt = queue.FormatTime(at)
		case queue.StatusCompleted:
			summary.CompletedAt = queue.FormatTime(at)
			summary.Rendering = queue.RenderingStub
		}
		applied = true
		return true, nil
	})
	if err != nil {
		return false, err
	}
	if !applied {
		s.logger.Debug("manifest entry absent; status not mirrored",
			logging.String(logging.FieldJobID, jobID),
			logging.String(logging.FieldVersion, version),
			logging.String(logging.FieldStatus, string(status)),
		)
	}
	return applied, nil
}

// Rebuild regenerates the manifest from per-version metadata. Jobs keep
// lexical order and each job's versions are listed in lexical order with
// last_version set to the final one.
func (s *Store) Rebuild(ctx context.Context, metas []queue.Metadata) (*Manifest, error) {
	sorted := make([]queue.Metadata, len(metas))
	copy(sorted, metas)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].JobID != sorted[j].JobID {
			return sorted[i].JobID < sorted[j].JobID
		}
		return sorted[i].Version < sorted[j].Version
	})

	rebuilt := New(s.intakeRoot)
	for i := range sorted {
		rebuilt.UpsertVersion(&sorted[i])
	}

	err := s.Update(ctx, func(m *Manifest) (bool, error) {
		if m.IntakeRoot != "" {
			rebuilt.IntakeRoot = m.IntakeRoot
		}
		*m = *rebuilt
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	return rebuilt, nil
}

func (s *Store) lock(ctx context.Context) (func(), error) {
	unlock, err := fileutil.LockFile(ctx, s.LockPath(), s.lockTimeout, s.lockRetry)
	if err != nil {
		return nil, fmt.Errorf("manifest: %w", err)
	}
	return func() {
		if err := unlock(); err != nil {
			s.logger.Debug("manifest unlock failed", logging.Error(err))
		}
	}, nil
}

func (s *Store) handleCorrupt() {
	attrs := []logging.Attr{
		logging.String("path", s.path),
		logging.String(logging.FieldImpact, "manifest treated as empty; existing entries will be dropped on write"),
		logging.String(logging.FieldErrorHint, "run 'jobspine manifest rebuild' to restore entries from metadata"),
	}
	if s.preserveCorrupt {
		preserved, err := s.preserve()
		if err != nil {
			attrs = append(attrs, logging.Error(err))
		} else {
			attrs = append(attrs, logging.String("preserved_path", preserved))
		}
	}
	logging.WarnWithContext(s.logger, "manifest corrupt", "manifest_corrupt", attrs...)
}

func (s *Store) preserve() (string, error) {
	base := s.path + ".corrupt-" + s.now().UTC().Format("20060102T150405Z")
	target := base
	for i := 1; ; i++ {
		if _, err := os.Lstat(target); errors.Is(err, os.ErrNotExist) {
			break
		}
		target = base + "-" + strconv.Itoa(i)
	}
	if err := fileutil.CopyFileVerified(s.path, target); err != nil {
		return "", fmt.Errorf("preserve corrupt manifest: %w", err)
	}
	return target, nil
}
