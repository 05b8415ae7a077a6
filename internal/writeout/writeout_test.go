package writeout

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tez-capital/cryptoblob/internal/blobmodel"
)

type fakeBodySource struct {
	partitions [][][]byte
}

func (f fakeBodySource) Body(partitionID blobmodel.PartitionID, bodyID blobmodel.BodyID) ([]byte, error) {
	return f.partitions[partitionID][bodyID], nil
}

func TestMasterWriteoutReproducesFileContentAndMtime(t *testing.T) {
	dest := t.TempDir()
	src := fakeBodySource{partitions: [][][]byte{{[]byte("abc")}}}
	mtime := int64(1_700_000_000_000_000_000)

	files := map[string]map[string]blobmodel.FilesPartitionsItem{
		blobmodel.MasterPrincipal: {
			"a": {Metadata: blobmodel.FileMetadata{MtimeNs: mtime}, PartitionID: 0, BodyID: 0},
		},
	}
	if err := Master(dest, files, src); err != nil {
		t.Fatalf("master writeout: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(dest, "master", "a"))
	if err != nil {
		t.Fatalf("read written file: %v", err)
	}
	if string(got) != "abc" {
		t.Fatalf("content mismatch: got %q", got)
	}
	info, err := os.Stat(filepath.Join(dest, "master", "a"))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.ModTime().UnixNano() != mtime {
		t.Fatalf("mtime mismatch: got %d, want %d", info.ModTime().UnixNano(), mtime)
	}
}

func TestMasterWriteoutRelativeSymlink(t *testing.T) {
	dest := t.TempDir()
	src := fakeBodySource{partitions: [][][]byte{{[]byte("target")}}}
	files := map[string]map[string]blobmodel.FilesPartitionsItem{
		blobmodel.MasterPrincipal: {
			"link": {Metadata: blobmodel.FileMetadata{Flags: blobmodel.FlagSymlink}, PartitionID: 0, BodyID: 0},
		},
	}
	if err := Master(dest, files, src); err != nil {
		t.Fatalf("master writeout: %v", err)
	}
	got, err := os.Readlink(filepath.Join(dest, "master", "link"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	if got != "target" {
		t.Fatalf("expected verbatim relative target, got %q", got)
	}
}

func TestMasterWriteoutAbsoluteSymlink(t *testing.T) {
	dest := t.TempDir()
	src := fakeBodySource{partitions: [][][]byte{{[]byte("secret")}}}
	files := map[string]map[string]blobmodel.FilesPartitionsItem{
		blobmodel.MasterPrincipal: {
			"link": {Metadata: blobmodel.FileMetadata{Flags: blobmodel.FlagSymlink | blobmodel.FlagSymlinkAbs}, PartitionID: 0, BodyID: 0},
		},
	}
	if err := Master(dest, files, src); err != nil {
		t.Fatalf("master writeout: %v", err)
	}
	got, err := os.Readlink(filepath.Join(dest, "master", "link"))
	if err != nil {
		t.Fatalf("readlink: %v", err)
	}
	want := filepath.Join(dest, "master", "secret")
	if got != want {
		t.Fatalf("expected absolute target under destination, got %q want %q", got, want)
	}
}

func TestTenantWriteoutStripsPrincipalPrefix(t *testing.T) {
	dest := t.TempDir()
	src := fakeBodySource{partitions: [][][]byte{{[]byte("v")}}}
	files := map[string]blobmodel.FilesPartitionsItem{
		"b": {PartitionID: 0, BodyID: 0},
	}
	if err := Tenant(dest, files, src); err != nil {
		t.Fatalf("tenant writeout: %v", err)
	}
	got, err := os.ReadFile(filepath.Join(dest, "b"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "v" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestWriteoutCreatesDirectoriesIdempotently(t *testing.T) {
	dest := t.TempDir()
	src := fakeBodySource{partitions: [][][]byte{{[]byte("1"), []byte("2")}}}
	files := map[string]map[string]blobmodel.FilesPartitionsItem{
		blobmodel.MasterPrincipal: {
			"dir/a": {PartitionID: 0, BodyID: 0},
			"dir/b": {PartitionID: 0, BodyID: 1},
		},
	}
	if err := Master(dest, files, src); err != nil {
		t.Fatalf("master writeout: %v", err)
	}
	for _, name := range []string{"a", "b"} {
		if _, err := os.Stat(filepath.Join(dest, "master", "dir", name)); err != nil {
			t.Fatalf("stat %s: %v", name, err)
		}
	}
}
