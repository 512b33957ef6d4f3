package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// lockRetryInterval is how often TryLock polls while waiting.
const lockRetryInterval = 100 * time.Millisecond

// IndexLock guards an index directory against concurrent writers using an
// advisory file lock.
type IndexLock struct {
	fl *flock.Flock
}

// AcquireIndexLock takes an exclusive lock on the index directory, waiting
// up to timeout for another process to release it.
func AcquireIndexLock(dir string, timeout time.Duration) (*IndexLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	fl := flock.New(filepath.Join(dir, ".lock"))

	deadline := time.Now().Add(timeout)
	for {
		locked, err := fl.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire index lock: %w", err)
		}
		if locked {
			return &IndexLock{fl: fl}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("index directory %s is locked by another process", dir)
		}
		time.Sleep(lockRetryInterval)
	}
}

// Release unlocks the index directory.
func (l *IndexLock) Release() error {
	return l.fl.Unlock()
}
