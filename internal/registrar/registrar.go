package registrar

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"jobspine/internal/config"
	"jobspine/internal/fileutil"
	"jobspine/internal/journal"
	"jobspine/internal/logging"
	"jobspine/internal/manifest"
	"jobspine/internal/queue"
)

var placeholderContent = strings.Join([]string{
	"# Placeholder artifacts",
	"- Rendering intentionally not executed.",
	"- No rendering engine selected; no GPU assumptions made.",
	"- Replace this placeholder when render-ready assets exist.",
}, "\n") + "\n"

// Request describes one intake registration.
type Request struct {
	JobID            string
	Consumer         string
	RequestedVersion string
	Notes            string
}

// Result describes the registered version.
type Result struct {
	JobID        string
	Consumer     string
	Version      string
	VersionDir   string
	MetadataPath string
	// Reused is true when an existing version directory was overwritten.
	Reused   bool
	Metadata *queue.Metadata
}

// Registrar registers intake jobs as queued versions.
type Registrar struct {
	cfg       *config.Config
	store     *queue.Store
	manifests *manifest.Store
	recorder  journal.Recorder
	logger    *slog.Logger
}

// New constructs a registrar. recorder may be nil when the journal is disabled.
func New(cfg *config.Config, store *queue.Store, manifests *manifest.Store, recorder journal.Recorder, logger *slog.Logger) *Registrar {
	return &Registrar{
		cfg:       cfg,
		store:     store,
		manifests: manifests,
		recorder:  recorder,
		logger:    logging.NewComponentLogger(logger, "registrar"),
	}
}

type validated struct {
	jobID     string
	consumer  string
	requested string
	notes     string
}

func (r *Registrar) validate(req Request) (validated, error) {
	consumer := strings.TrimSpace(req.Consumer)
	suffix := r.cfg.Registrar.ConsumerSuffix
	if !strings.HasSuffix(strings.ToLower(consumer), strings.ToLower(suffix)) {
		return validated{}, &PolicyError{
			Field:  "consumer",
			Reason: fmt.Sprintf("must end with '%s' to be treated as an execution consumer", suffix),
		}
	}
	consumer, err := ValidateSegment("consumer", consumer)
	if err != nil {
		return validated{}, err
	}
	jobID, err := ValidateSegment("intake_id", req.JobID)
	if err != nil {
		return validated{}, err
	}

	var requested string
	if strings.TrimSpace(req.RequestedVersion) != "" {
		if _, err := ValidateSegment("version", req.RequestedVersion); err != nil {
			return validated{}, err
		}
		requested, err = NextVersion(nil, req.RequestedVersion, r.cfg.Registrar.VersionWidth)
		if err != nil {
			return validated{}, err
		}
		if _, err := ValidateSegment("version", requested); err != nil {
			return validated{}, err
		}
	}

	return validated{
		jobID:     jobID,
		consumer:  consumer,
		requested: requested,
		notes:     strings.TrimSpace(req.Notes),
	}, nil
}

// Register validates req and records a new queued version.
//
// Validation and policy failures return before anything is written. With
// the reject conflict policy an explicit version that already exists yields
// a ConflictError; with reuse the version is overwritten and requeued unless
// it is running or claimed. The version's claim marker is held while its
// files are written, so workers never see a half-rewritten version.
func (r *Registrar) Register(ctx context.Context, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	in, err := r.validate(req)
	if err != nil {
		return Result{}, err
	}
	if in.requested != "" {
		if err := r.checkConflict(r.store.Ref(in.jobID, in.requested)); err != nil {
			return Result{}, err
		}
	}

	if err := r.cfg.EnsureDirectories(); err != nil {
		return Result{}, err
	}
	unlock, err := fileutil.LockFile(ctx, r.store.RegisterLockPath(in.jobID), r.cfg.LockTimeout(), r.cfg.LockRetryDelay())
	if err != nil {
		return Result{}, fmt.Errorf("registration lock: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			r.logger.Debug("registration unlock failed", logging.Error(err))
		}
	}()

	existing, err := r.store.ListVersions(in.jobID)
	if err != nil {
		return Result{}, err
	}
	version := in.requested
	if version == "" {
		version, err = NextVersion(existing, "", r.cfg.Registrar.VersionWidth)
		if err != nil {
			return Result{}, err
		}
	}
	ref := r.store.Ref(in.jobID, version)
	reused := slices.Contains(existing, version)
	if reused {
		if err := r.checkConflict(ref); err != nil {
			return Result{}, err
		}
	}

	dir, err := r.store.EnsureLayout(in.jobID, version)
	if err != nil {
		return Result{}, err
	}
	ref.Dir = dir
	now := r.store.Now()
	if err := r.reserve(ref, reused, now); err != nil {
		return Result{}, err
	}
	defer r.releaseReservation(ref)

	meta := &queue.Metadata{
		JobID:      in.jobID,
		Consumer:   in.consumer,
		Version:    version,
		Timestamp:  queue.FormatTime(now),
		IntakePath: r.store.IntakeDir(in.jobID),
		OwnedBy:    r.cfg.Registrar.OwnedBy,
		IntakeMode: r.cfg.Registrar.IntakeMode,
		Rendering:  queue.RenderingPending,
		Status:     queue.StatusQueued,
		Notes:      in.notes,
	}
	if err := r.store.WriteMetadata(ref.MetadataPath(), meta); err != nil {
		return Result{}, err
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, queue.PlaceholderFileName), []byte(placeholderContent), 0o644); err != nil {
		return Result{}, fmt.Errorf("write placeholder: %w", err)
	}
	if reused {
		r.clearStubOutput(ref)
	}

	if err := r.manifests.Update(ctx, func(m *manifest.Manifest) (bool, error) {
		m.UpsertVersion(meta)
		return true, nil
	}); err != nil {
		return Result{}, fmt.Errorf("update manifest: %w", err)
	}

	r.record(ctx, meta, now)

	logger := logging.WithContext(logging.WithJob(ctx, in.jobID, version), r.logger)
	logger.Info("job registered",
		logging.String(logging.FieldEventType, "job_registered"),
		logging.String("consumer", in.consumer),
		logging.Bool("reused", reused),
	)

	return Result{
		JobID:        in.jobID,
		Consumer:     in.consumer,
		Version:      version,
		VersionDir:   dir,
		MetadataPath: ref.MetadataPath(),
		Reused:       reused,
		Metadata:     meta,
	}, nil
}

// checkConflict applies the conflict policy to an existing version directory.
// A version that does not exist yet never conflicts.
func (r *Registrar) checkConflict(ref queue.VersionRef) error {
	if _, err := os.Stat(ref.Dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("inspect version directory: %w", err)
	}
	if r.cfg.Registrar.OnVersionConflict != config.ConflictReuse {
		return &ConflictError{JobID: ref.JobID, Version: ref.Version, Reason: "already exists (on_version_conflict=reject)"}
	}
	meta, state, err := r.store.ReadMetadata(ref.MetadataPath())
	if err != nil {
		return err
	}
	if state == fileutil.ReadOK && meta.Status == queue.StatusRunning {
		return &ConflictError{JobID: ref.JobID, Version: ref.Version, Reason: "is running and cannot be reused"}
	}
	return nil
}

// reserve takes the claim marker of ref. A reused version is checked again
// once the marker is held, since a worker may have claimed it after the
// first check.
func (r *Registrar) reserve(ref queue.VersionRef, reused bool, at time.Time) error {
	if err := r.store.Reserve(ref, "registrar", at); err != nil {
		if !errors.Is(err, queue.ErrAlreadyClaimed) {
			return err
		}
		reason := "is claimed by a worker (remove .claim if no worker is active)"
		if meta, state, readErr := r.store.ReadMetadata(ref.MetadataPath()); readErr == nil &&
			state == fileutil.ReadOK && meta.Status == queue.StatusRunning {
			reason = "is running and cannot be reused"
		}
		return &ConflictError{JobID: ref.JobID, Version: ref.Version, Reason: reason}
	}
	if !reused {
		return nil
	}
	meta, state, err := r.store.ReadMetadata(ref.MetadataPath())
	if err != nil {
		r.releaseReservation(ref)
		return err
	}
	if state == fileutil.ReadOK && meta.Status == queue.StatusRunning {
		r.releaseReservation(ref)
		return &ConflictError{JobID: ref.JobID, Version: ref.Version, Reason: "is running and cannot be reused"}
	}
	return nil
}

func (r *Registrar) releaseReservation(ref queue.VersionRef) {
	if err := r.store.Release(ref); err != nil {
		logging.WarnWithContext(r.logger, "registration claim marker not removed", "claim_release_failed",
			logging.String(logging.FieldJobID, ref.JobID),
			logging.String(logging.FieldVersion, ref.Version),
			logging.Error(err),
			logging.String(logging.FieldImpact, "workers will skip the version until the marker is removed"),
			logging.String(logging.FieldErrorHint, "remove "+ref.ClaimPath()+" manually"),
		)
	}
}

// clearStubOutput removes the stub output of a reused version.
func (r *Registrar) clearStubOutput(ref queue.VersionRef) {
	stub := filepath.Join(ref.Dir, queue.StubFileName)
	if err := os.Remove(stub); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.logger.Debug("previous stub output not removed", logging.String("path", stub), logging.Error(err))
	}
}

func (r *Registrar) record(ctx context.Context, meta *queue.Metadata, at time.Time) {
	if r.recorder == nil {
		return
	}
	err := r.recorder.Record(ctx, journal.Entry{
		Event:    journal.EventRegistered,
		JobID:    meta.JobID,
		Version:  meta.Version,
		ToStatus: queue.StatusQueued,
		At:       at,
	})
	if err != nil {
		logging.WarnWithContext(r.logger, "journal write failed", "journal_write_failed",
			logging.String(logging.FieldJobID, meta.JobID),
			logging.String(logging.FieldVersion, meta.Version),
			logging.Error(err),
			logging.String(logging.FieldImpact, "registration succeeded but is missing from history"),
			logging.String(logging.FieldErrorHint, "check journal path permissions"),
		)
	}
}
