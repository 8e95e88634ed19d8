package utils

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// DefaultLockTimeout bounds how long a run waits for another run to finish
const DefaultLockTimeout = 5 * time.Second

// ErrLocked is returned when another runner holds the run lock
var ErrLocked = errors.New("another biosim-runner is already running")

// AcquireRunLock takes the host-wide run lock at path.
// It respects the context deadline if set, otherwise uses DefaultLockTimeout.
func AcquireRunLock(ctx context.Context, path string) (*flock.Flock, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create lock directory: %w", err)
	}

	fileLock := flock.New(path)

	lockCtx := ctx
	if _, hasTimeout := ctx.Deadline(); !hasTimeout {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, DefaultLockTimeout)
		defer cancel()
	}

	locked, err := fileLock.TryLockContext(lockCtx, 10*time.Millisecond)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
		}
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
	}

	return fileLock, nil
}
