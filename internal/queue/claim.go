package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"jobspine/internal/fileutil"
	"jobspine/internal/logging"
)

// ClaimInfo is the owner record written into a claim marker.
type ClaimInfo struct {
	WorkerID  string `json:"worker_id"`
	PID       int    `json:"pid"`
	Host      string `json:"host"`
	ClaimedAt string `json:"claimed_at"`
}

// Claim takes exclusive ownership of a queued version and moves it to running.
//
// The claim marker is created with O_EXCL, so exactly one caller wins. A
// loser gets ErrAlreadyClaimed. The winner re-reads metadata; if the version
// is no longer queued the marker is released and ErrAlreadyClaimed is returned.
// The marker stays in place until the holder calls Release.
func (s *Store) Claim(ctx context.Context, ref VersionRef, workerID string) (*Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := s.createMarker(ref, workerID, s.now()); err != nil {
		return nil, err
	}

	meta, state, err := s.ReadMetadata(ref.MetadataPath())
	if err != nil {
		s.release(ref)
		return nil, err
	}
	if state != fileutil.ReadOK || meta.Status != StatusQueued {
		s.release(ref)
		return nil, fmt.Errorf("%w: %s is no longer queued", ErrAlreadyClaimed, ref)
	}

	meta, err = s.Advance(ref, StatusRunning, "")
	if err != nil {
		s.release(ref)
		return nil, err
	}
	return meta, nil
}

// Reserve takes the claim marker of ref without changing its status, so no
// worker can claim the version while its files are rewritten. An existing
// marker yields ErrAlreadyClaimed. The caller must Release it.
func (s *Store) Reserve(ref VersionRef, owner string, at time.Time) error {
	return s.createMarker(ref, owner, at)
}

func (s *Store) createMarker(ref VersionRef, owner string, at time.Time) error {
	file, err := os.OpenFile(ref.ClaimPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrAlreadyClaimed, ref)
		}
		return fmt.Errorf("create claim marker: %w", err)
	}

	host, _ := os.Hostname()
	info := ClaimInfo{
		WorkerID:  owner,
		PID:       os.Getpid(),
		Host:      host,
		ClaimedAt: FormatTime(at),
	}
	payload, err := fileutil.MarshalJSON(info)
	if err == nil {
		_, err = file.Write(payload)
	}
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		s.release(ref)
		return fmt.Errorf("write claim marker: %w", err)
	}
	return nil
}

// ReadClaim returns the owner record of a version's claim marker. ok is false
// when no marker exists; a marker that cannot be decoded yields an empty
// ClaimInfo with ok true.
func (s *Store) ReadClaim(ref VersionRef) (ClaimInfo, bool, error) {
	var info ClaimInfo
	state, _, err := fileutil.ReadJSON(ref.ClaimPath(), &info)
	if err != nil {
		return ClaimInfo{}, false, err
	}
	switch state {
	case fileutil.ReadMissing:
		return ClaimInfo{}, false, nil
	case fileutil.ReadCorrupt:
		return ClaimInfo{}, true, nil
	}
	return info, true, nil
}

// Release removes a version's claim marker. Releasing an unclaimed version is
// not an error.
func (s *Store) Release(ref VersionRef) error {
	if err := os.Remove(ref.ClaimPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("release claim: %w", err)
	}
	return nil
}

func (s *Store) release(ref VersionRef) {
	if err := s.Release(ref); err != nil {
		logging.WarnWithContext(s.logger, "claim marker not released", "claim_release_failed",
			logging.String(logging.FieldJobID, ref.JobID),
			logging.String(logging.FieldVersion, ref.Version),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "remove "+ref.ClaimPath()+" manually"),
			logging.String(logging.FieldImpact, "version will be skipped by workers until the marker is removed"),
		)
	}
}

func (s *Store) claimExists(ref VersionRef) bool {
	_, err := os.Lstat(ref.ClaimPath())
	return err == nil
}
