// Package lockfile guards batch entrypoints against concurrent runs on the
// same host. Cron overlap is the usual culprit: a slow batch still running
// when the next one fires.
package lockfile

import (
	"fmt"

	"github.com/gofrs/flock"
)

// ErrAlreadyRunning is returned when another process holds the lock.
var ErrAlreadyRunning = fmt.Errorf("another instance is already running")

type Lock struct {
	fl *flock.Flock
}

// Acquire takes a non-blocking exclusive lock on path. The caller exits
// immediately on ErrAlreadyRunning rather than queueing behind the holder.
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}
	return &Lock{fl: fl}, nil
}

func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
