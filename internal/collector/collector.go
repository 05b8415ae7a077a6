// Package collector walks a source directory into a deduplicated
// FilesCollection.
package collector

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tez-capital/cryptoblob/internal/blobmodel"
	"github.com/tez-capital/cryptoblob/internal/errkind"
)

// Collect walks root recursively and returns a flat, deduplicated
// inventory. Paths in the returned collection are forward-slash
// separated and relative to root.
func Collect(root string) (*blobmodel.FilesCollection, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("collect: resolve root: %w", err)
	}
	rootAbs = filepath.Clean(rootAbs)

	fc := blobmodel.NewFilesCollection()

	walkErr := filepath.WalkDir(rootAbs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: walk %s: %v", errkind.ErrBackend, path, err)
		}
		if path == rootAbs {
			return nil
		}
		rel, err := filepath.Rel(rootAbs, path)
		if err != nil {
			return fmt.Errorf("collect: relativize %s: %w", path, err)
		}
		relSlash := filepath.ToSlash(rel)

		switch {
		case d.IsDir():
			return nil

		case d.Type()&os.ModeSymlink != 0:
			item, err := collectSymlink(rootAbs, path, d)
			if err != nil {
				return err
			}
			fc.Files[relSlash] = blobmodel.FilesCollectionItem{
				Metadata: item.Metadata,
				BodyID:   fc.Intern(item.body),
			}
			return nil

		case d.Type().IsRegular():
			info, err := d.Info()
			if err != nil {
				return fmt.Errorf("%w: stat %s: %v", errkind.ErrBackend, path, err)
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("%w: read %s: %v", errkind.ErrBackend, path, err)
			}
			fc.Files[relSlash] = blobmodel.FilesCollectionItem{
				Metadata: blobmodel.FileMetadata{MtimeNs: info.ModTime().UnixNano()},
				BodyID:   fc.Intern(data),
			}
			return nil

		default:
			return fmt.Errorf("%w: %s is neither a file, directory, nor symlink", errkind.ErrUnsupportedNode, relSlash)
		}
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return fc, nil
}

type symlinkItem struct {
	Metadata blobmodel.FileMetadata
	body     []byte
}

// collectSymlink captures a symlink's own mtime and target string.
// Absolute targets are resolved against the source root and
// normalised to a root-relative path; targets resolving outside the
// root fail with OUT_OF_TREE. Relative targets are stored verbatim, to
// be re-validated during partitioning.
func collectSymlink(rootAbs, path string, d fs.DirEntry) (symlinkItem, error) {
	info, err := d.Info()
	if err != nil {
		return symlinkItem{}, fmt.Errorf("%w: lstat %s: %v", errkind.ErrBackend, path, err)
	}
	target, err := os.Readlink(path)
	if err != nil {
		return symlinkItem{}, fmt.Errorf("%w: readlink %s: %v", errkind.ErrBackend, path, err)
	}

	meta := blobmodel.FileMetadata{MtimeNs: info.ModTime().UnixNano(), Flags: blobmodel.FlagSymlink}

	if !filepath.IsAbs(target) {
		return symlinkItem{Metadata: meta, body: []byte(filepath.ToSlash(target))}, nil
	}

	resolved := filepath.Clean(target)
	rel, ok := rootRelative(rootAbs, resolved)
	if !ok {
		return symlinkItem{}, fmt.Errorf("%w: symlink %s target %q resolves outside source root", errkind.ErrOutOfTree, path, target)
	}

	meta.Flags |= blobmodel.FlagSymlinkAbs
	return symlinkItem{Metadata: meta, body: []byte(rel)}, nil
}

// rootRelative reports whether abs lies within rootAbs and, if so,
// returns its forward-slash root-relative path.
func rootRelative(rootAbs, abs string) (string, bool) {
	if abs == rootAbs {
		return "", true
	}
	prefix := rootAbs + string(filepath.Separator)
	if !strings.HasPrefix(abs, prefix) {
		return "", false
	}
	return filepath.ToSlash(strings.TrimPrefix(abs, prefix)), true
}
