// Package partition classifies collected files by principal and
// groups their bodies into visibility-set partitions.
package partition

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/tez-capital/cryptoblob/internal/blobmodel"
	"github.com/tez-capital/cryptoblob/internal/errkind"
)

const tenantsPrefix = "tenants/"
const masterPrefix = "master/"

type classifiedFile struct {
	principal string
	relPath   string
	item      blobmodel.FilesCollectionItem
}

// Partition classifies every file in fc into a principal, validates
// and rewrites symlink bodies, and groups bodies into the minimal set
// of visibility partitions. Iteration is over sorted source paths so
// the result is deterministic for a given input.
func Partition(fc *blobmodel.FilesCollection) (*blobmodel.FilesPartitions, error) {
	paths := lo.Keys(fc.Files)
	sort.Strings(paths)

	entries := make([]classifiedFile, 0, len(paths))
	for _, p := range paths {
		principal, relPath, err := classify(p)
		if err != nil {
			return nil, err
		}
		entries = append(entries, classifiedFile{principal, relPath, fc.Files[p]})
	}

	bodies := append([][]byte(nil), fc.Bodies...)
	bodyIndex := make(map[string]blobmodel.BodyID, len(bodies))
	for i, b := range bodies {
		bodyIndex[string(b)] = blobmodel.BodyID(i)
	}
	intern := func(b []byte) blobmodel.BodyID {
		key := string(b)
		if id, ok := bodyIndex[key]; ok {
			return id
		}
		id := blobmodel.BodyID(len(bodies))
		bodies = append(bodies, b)
		bodyIndex[key] = id
		return id
	}

	resolvedBodyID := make([]blobmodel.BodyID, len(entries))
	for i, e := range entries {
		bodyID := e.item.BodyID
		if e.item.Metadata.IsSymlink() {
			target := bodies[bodyID]
			var err error
			if e.item.Metadata.IsSymlinkAbs() {
				bodyID, err = rewriteAbsoluteSymlink(e.principal, target, intern)
			} else {
				err = validateRelativeTraversal(e.relPath, string(target), e.principal)
			}
			if err != nil {
				return nil, err
			}
		}
		resolvedBodyID[i] = bodyID
	}

	visibility := make(map[blobmodel.BodyID]map[string]struct{})
	for i, e := range entries {
		bodyID := resolvedBodyID[i]
		set, ok := visibility[bodyID]
		if !ok {
			set = make(map[string]struct{})
			visibility[bodyID] = set
		}
		set[e.principal] = struct{}{}
	}

	referencedBodyIDs := lo.Keys(visibility)
	sort.Slice(referencedBodyIDs, func(i, j int) bool { return referencedBodyIDs[i] < referencedBodyIDs[j] })

	type location struct {
		partitionID blobmodel.PartitionID
		index       blobmodel.BodyID
	}
	keysetToPartition := make(map[string]blobmodel.PartitionID)
	bodyLocation := make(map[blobmodel.BodyID]location, len(referencedBodyIDs))
	var partitions [][][]byte

	for _, bodyID := range referencedBodyIDs {
		sig := visibilitySignature(visibility[bodyID])
		pid, ok := keysetToPartition[sig]
		if !ok {
			pid = blobmodel.PartitionID(len(partitions))
			keysetToPartition[sig] = pid
			partitions = append(partitions, nil)
		}
		idx := blobmodel.BodyID(len(partitions[pid]))
		partitions[pid] = append(partitions[pid], bodies[bodyID])
		bodyLocation[bodyID] = location{partitionID: pid, index: idx}
	}

	files := make(map[string]map[string]blobmodel.FilesPartitionsItem)
	used := make(map[string]map[blobmodel.PartitionID]struct{})
	for i, e := range entries {
		loc := bodyLocation[resolvedBodyID[i]]
		if files[e.principal] == nil {
			files[e.principal] = make(map[string]blobmodel.FilesPartitionsItem)
		}
		files[e.principal][e.relPath] = blobmodel.FilesPartitionsItem{
			Metadata:    e.item.Metadata,
			PartitionID: loc.partitionID,
			BodyID:      loc.index,
		}
		if used[e.principal] == nil {
			used[e.principal] = make(map[blobmodel.PartitionID]struct{})
		}
		used[e.principal][loc.partitionID] = struct{}{}
	}

	return &blobmodel.FilesPartitions{
		Partitions:     partitions,
		Files:          files,
		UsedPartitions: used,
	}, nil
}

// classify splits a collected path into its principal and the path
// relative to that principal's root.
func classify(p string) (principal, relPath string, err error) {
	if p == "master" || strings.HasPrefix(p, masterPrefix) {
		rest := strings.TrimPrefix(p, masterPrefix)
		if p == "master" || rest == "" {
			return "", "", fmt.Errorf("%w: %q has no path under master/", errkind.ErrBadLayout, p)
		}
		return blobmodel.MasterPrincipal, rest, nil
	}
	if strings.HasPrefix(p, tenantsPrefix) {
		rest := strings.TrimPrefix(p, tenantsPrefix)
		idx := strings.Index(rest, "/")
		if idx <= 0 || idx == len(rest)-1 {
			return "", "", fmt.Errorf("%w: %q is not tenants/<name>/<path>", errkind.ErrBadLayout, p)
		}
		return rest[:idx], rest[idx+1:], nil
	}
	return "", "", fmt.Errorf("%w: %q is neither under master/ nor tenants/<name>/", errkind.ErrBadLayout, p)
}

// principalRootPrefix returns the "master" or "tenants/<name>" prefix
// (no trailing slash) an absolute symlink's normalised target must
// begin with to stay inside that principal's subtree.
func principalRootPrefix(principal string) string {
	if principal == blobmodel.MasterPrincipal {
		return "master"
	}
	return tenantsPrefix + principal
}

// rewriteAbsoluteSymlink handles an absolute symlink target: the
// root-relative target normalised at collection time must fall
// under the entry's own principal prefix, and is rewritten to be
// relative to that prefix.
func rewriteAbsoluteSymlink(principal string, target []byte, intern func([]byte) blobmodel.BodyID) (blobmodel.BodyID, error) {
	prefix := principalRootPrefix(principal)
	t := string(target)
	var rewritten string
	switch {
	case t == prefix:
		rewritten = ""
	case strings.HasPrefix(t, prefix+"/"):
		rewritten = strings.TrimPrefix(t, prefix+"/")
	default:
		return 0, fmt.Errorf("%w: absolute symlink target %q escapes principal root %q", errkind.ErrOutOfTree, t, prefix)
	}
	return intern([]byte(rewritten)), nil
}

// validateRelativeTraversal simulates resolving a relative symlink
// target from relPath's directory without touching the filesystem:
// "." is ignored, ".." pops and must never pop above the principal
// root, anything else pushes.
func validateRelativeTraversal(relPath, target, principal string) error {
	dir := path.Dir(relPath)
	var stack []string
	if dir != "." {
		stack = strings.Split(dir, "/")
	}
	for _, comp := range strings.Split(target, "/") {
		switch comp {
		case "", ".":
			continue
		case "..":
			if len(stack) == 0 {
				return fmt.Errorf("%w: relative symlink at %s escapes %s root via ..", errkind.ErrOutOfTree, relPath, principalRootPrefix(principal))
			}
			stack = stack[:len(stack)-1]
		default:
			stack = append(stack, comp)
		}
	}
	return nil
}

// visibilitySignature produces a deterministic string key for a
// visibility set so first-seen insertion order can be tracked with a
// plain map.
func visibilitySignature(set map[string]struct{}) string {
	names := lo.Keys(set)
	sort.Strings(names)
	return strings.Join(names, "\x00")
}
