// Package writeout reconstructs a directory tree from a decoded
// manifest and decrypted partition bodies.
package writeout

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/tez-capital/cryptoblob/internal/blobmodel"
	"github.com/tez-capital/cryptoblob/internal/errkind"
)

// BodySource resolves a file entry's partition/body reference to its
// plaintext bytes, decrypting and caching partitions as needed.
type BodySource interface {
	Body(partitionID blobmodel.PartitionID, bodyID blobmodel.BodyID) ([]byte, error)
}

// Master writes every principal's files under dest/<prefix>/<path>.
func Master(dest string, files map[string]map[string]blobmodel.FilesPartitionsItem, bodies BodySource) error {
	created := make(map[string]struct{})
	principals := lo.Keys(files)
	sort.Strings(principals)
	for _, principal := range principals {
		prefix := blobmodel.PrincipalPrefix(principal)
		if err := writeFiles(dest, prefix, files[principal], bodies, created); err != nil {
			return err
		}
	}
	return nil
}

// Tenant writes a tenant's files directly under dest/<path>, with no
// principal prefix.
func Tenant(dest string, files map[string]blobmodel.FilesPartitionsItem, bodies BodySource) error {
	return writeFiles(dest, "", files, bodies, make(map[string]struct{}))
}

func writeFiles(dest, prefix string, files map[string]blobmodel.FilesPartitionsItem, bodies BodySource, created map[string]struct{}) error {
	paths := lo.Keys(files)
	sort.Strings(paths)
	for _, relPath := range paths {
		if err := writeEntry(dest, prefix, relPath, files[relPath], bodies, created); err != nil {
			return err
		}
	}
	return nil
}

func writeEntry(dest, prefix, relPath string, item blobmodel.FilesPartitionsItem, bodies BodySource, created map[string]struct{}) error {
	destPath := filepath.Join(dest, filepath.FromSlash(prefix+relPath))
	dir := filepath.Dir(destPath)
	if _, ok := created[dir]; !ok {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: mkdir %s: %v", errkind.ErrBackend, dir, err)
		}
		created[dir] = struct{}{}
	}

	body, err := bodies.Body(item.PartitionID, item.BodyID)
	if err != nil {
		return err
	}

	if item.Metadata.IsSymlink() {
		var target string
		if item.Metadata.IsSymlinkAbs() {
			target = filepath.Join(dest, filepath.FromSlash(prefix+string(body)))
		} else {
			target = string(body)
		}
		if err := os.Symlink(target, destPath); err != nil {
			return fmt.Errorf("%w: symlink %s: %v", errkind.ErrBackend, destPath, err)
		}
		return nil
	}

	if err := os.WriteFile(destPath, body, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", errkind.ErrBackend, destPath, err)
	}
	mtime := time.Unix(0, item.Metadata.MtimeNs)
	if err := os.Chtimes(destPath, mtime, mtime); err != nil {
		return fmt.Errorf("%w: chtimes %s: %v", errkind.ErrBackend, destPath, err)
	}
	return nil
}
