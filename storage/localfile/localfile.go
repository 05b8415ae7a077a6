// Package localfile is a storage.Backend where the blob object is a
// plain file, written via temp-file-plus-rename so a crash mid write
// never leaves a torn blob on disk.
package localfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tez-capital/cryptoblob/internal/errkind"
	"github.com/tez-capital/cryptoblob/storage"
)

// Backend stores every loc as a file relative to Root.
type Backend struct {
	Root string
}

var _ storage.Backend = (*Backend)(nil)

// New returns a Backend rooted at root; root is created if missing.
func New(root string) (*Backend, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: mkdir %s: %v", errkind.ErrBackend, root, err)
	}
	return &Backend{Root: root}, nil
}

func (b *Backend) path(loc string) string {
	return filepath.Join(b.Root, filepath.FromSlash(loc))
}

// Load reads loc's current bytes. A missing file surfaces as
// errkind.ErrBackend wrapping os.ErrNotExist.
func (b *Backend) Load(ctx context.Context, loc string) ([]byte, error) {
	data, err := os.ReadFile(b.path(loc))
	if err != nil {
		return nil, fmt.Errorf("%w: load %s: %v", errkind.ErrBackend, loc, err)
	}
	return data, nil
}

// Modify reads loc (nil if absent), applies fn, and atomically
// replaces the file with the result — or deletes it if fn returns
// nil, or does nothing if the result is byte-identical to the input.
func (b *Backend) Modify(ctx context.Context, loc string, fn storage.Modifier) error {
	full := b.path(loc)
	current, err := os.ReadFile(full)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: read %s: %v", errkind.ErrBackend, loc, err)
		}
		current = nil
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	switch {
	case next == nil:
		if current == nil {
			return nil
		}
		if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: remove %s: %v", errkind.ErrBackend, loc, err)
		}
		return nil
	case current != nil && string(next) == string(current):
		return nil
	default:
		return writeAtomic(full, next)
	}
}

func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", errkind.ErrBackend, filepath.Dir(path), err)
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %v", errkind.ErrBackend, path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: write temp for %s: %v", errkind.ErrBackend, path, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: sync temp for %s: %v", errkind.ErrBackend, path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: close temp for %s: %v", errkind.ErrBackend, path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("%w: rename %s: %v", errkind.ErrBackend, path, err)
	}
	return nil
}
