package collector

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/tez-capital/cryptoblob/internal/errkind"
)

func TestCollectRegularFiles(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "master", "a"), "abc")
	mustMkdirAll(t, filepath.Join(root, "tenants", "one"))
	mustWriteFile(t, filepath.Join(root, "tenants", "one", "x"), "k")

	fc, err := Collect(root)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(fc.Files) != 2 {
		t.Fatalf("expected 2 files, got %d: %v", len(fc.Files), fc.Files)
	}
	item, ok := fc.Files["master/a"]
	if !ok {
		t.Fatalf("expected master/a in collection")
	}
	if string(fc.Bodies[item.BodyID]) != "abc" {
		t.Fatalf("expected body abc, got %q", fc.Bodies[item.BodyID])
	}
}

func TestCollectDedupesIdenticalBodies(t *testing.T) {
	root := t.TempDir()
	mustWriteFile(t, filepath.Join(root, "master", "x"), "k")
	mustMkdirAll(t, filepath.Join(root, "tenants", "one"))
	mustWriteFile(t, filepath.Join(root, "tenants", "one", "x"), "k")

	fc, err := Collect(root)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(fc.Bodies) != 1 {
		t.Fatalf("expected identical bytes to dedup to one body, got %d", len(fc.Bodies))
	}
}

func TestCollectRelativeSymlinkStoredVerbatim(t *testing.T) {
	root := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, "master"))
	mustWriteFile(t, filepath.Join(root, "master", "target"), "hi")
	if err := os.Symlink("target", filepath.Join(root, "master", "link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	fc, err := Collect(root)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	item, ok := fc.Files["master/link"]
	if !ok {
		t.Fatalf("expected master/link in collection")
	}
	if !item.Metadata.IsSymlink() || item.Metadata.IsSymlinkAbs() {
		t.Fatalf("expected SYMLINK without SYMLINK_ABS: %+v", item.Metadata)
	}
	if string(fc.Bodies[item.BodyID]) != "target" {
		t.Fatalf("expected verbatim relative target, got %q", fc.Bodies[item.BodyID])
	}
}

func TestCollectAbsoluteSymlinkInsideRootNormalised(t *testing.T) {
	root := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, "master"))
	mustWriteFile(t, filepath.Join(root, "master", "secret"), "hi")
	absTarget := filepath.Join(root, "master", "secret")
	if err := os.Symlink(absTarget, filepath.Join(root, "master", "link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	fc, err := Collect(root)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	item, ok := fc.Files["master/link"]
	if !ok {
		t.Fatalf("expected master/link in collection")
	}
	if !item.Metadata.IsSymlink() || !item.Metadata.IsSymlinkAbs() {
		t.Fatalf("expected SYMLINK and SYMLINK_ABS: %+v", item.Metadata)
	}
	if string(fc.Bodies[item.BodyID]) != "master/secret" {
		t.Fatalf("expected root-relative normalised target, got %q", fc.Bodies[item.BodyID])
	}
}

func TestCollectAbsoluteSymlinkOutsideRootFails(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, "master"))
	mustWriteFile(t, filepath.Join(outside, "secret"), "hi")
	if err := os.Symlink(filepath.Join(outside, "secret"), filepath.Join(root, "master", "link")); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	_, err := Collect(root)
	if !errors.Is(err, errkind.ErrOutOfTree) {
		t.Fatalf("expected ErrOutOfTree, got %v", err)
	}
}

func TestCollectUnsupportedNodeFails(t *testing.T) {
	root := t.TempDir()
	mustMkdirAll(t, filepath.Join(root, "master"))
	fifoPath := filepath.Join(root, "master", "fifo")
	if err := syscall.Mkfifo(fifoPath, 0o600); err != nil {
		t.Skipf("mkfifo unsupported on this platform: %v", err)
	}

	_, err := Collect(root)
	if !errors.Is(err, errkind.ErrUnsupportedNode) {
		t.Fatalf("expected ErrUnsupportedNode, got %v", err)
	}
}

func mustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func mustMkdirAll(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(path, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", path, err)
	}
}
