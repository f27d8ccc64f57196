//go:build windows

package reconcile

import (
	"fmt"
	"os"
)

// acquireLock acquires an exclusive lock to prevent concurrent runs.
// Windows has no flock; an exclusive-create lock file stands in. A stale
// file from a crashed run must be removed by hand.
func (r *Reconciler) acquireLock() error {
	fd, err := os.OpenFile(r.lockFile, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
	if err != nil {
		return fmt.Errorf("lock already held: %w", err)
	}

	r.lockFd = fd
	return nil
}

// releaseLock releases and removes the lock file.
func (r *Reconciler) releaseLock() {
	if r.lockFd != nil {
		r.lockFd.Close()
		os.Remove(r.lockFile)
		r.lockFd = nil
	}
}
