package fileutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrLockTimeout reports that an advisory lock was not acquired in time.
var ErrLockTimeout = errors.New("lock timeout")

const defaultLockRetry = 50 * time.Millisecond

// LockFile takes an exclusive advisory lock on path, retrying every retry
// until timeout elapses or ctx is cancelled. A non-positive timeout waits for
// ctx alone. The returned function releases the lock.
func LockFile(ctx context.Context, path string, timeout, retry time.Duration) (func() error, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}
	lockCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		lockCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	if retry <= 0 {
		retry = defaultLockRetry
	}
	fileLock := flock.New(path)
	locked, err := fileLock.TryLockContext(lockCtx, retry)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %s", ErrLockTimeout, timeout, path)
		}
		return nil, fmt.Errorf("acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLockTimeout, path)
	}
	return fileLock.Unlock, nil
}
