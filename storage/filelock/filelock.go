// Package filelock implements a lock backend using flock(2) advisory
// locks on a dedicated lock file per loc.
package filelock

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/tez-capital/cryptoblob/internal/errkind"
	"github.com/tez-capital/cryptoblob/storage"
)

const pollInterval = 20 * time.Millisecond

// Backend acquires locks as files under Root, named after loc.
type Backend struct {
	Root string
}

var _ storage.LockBackend = (*Backend)(nil)

// New returns a Backend rooted at root; root is created if missing.
func New(root string) (*Backend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir %s: %v", errkind.ErrBackend, root, err)
	}
	return &Backend{Root: root}, nil
}

type heldLock struct {
	f *os.File
}

func (h *heldLock) Close() error {
	defer h.f.Close()
	return unix.Flock(int(h.f.Fd()), unix.LOCK_UN)
}

// Acquire blocks, polling at pollInterval, until the lock named loc is
// held exclusively or ctx is done / timeout elapses, whichever first.
// Acquire's caller is expected to derive ctx with the timeout it
// wants; on expiry this returns errkind.ErrTimeout.
func (b *Backend) Acquire(ctx context.Context, loc string) (storage.Lock, error) {
	path := filepath.Join(b.Root, filepath.FromSlash(loc)+".lock")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir %s: %v", errkind.ErrBackend, filepath.Dir(path), err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: open lock %s: %v", errkind.ErrBackend, path, err)
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &heldLock{f: f}, nil
		}
		if err != unix.EWOULDBLOCK {
			f.Close()
			return nil, fmt.Errorf("%w: flock %s: %v", errkind.ErrBackend, path, err)
		}

		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("%w: lock %s", errkind.ErrTimeout, loc)
		case <-ticker.C:
		}
	}
}
