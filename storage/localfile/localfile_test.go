package localfile

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFails(t *testing.T) {
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := b.Load(context.Background(), "nope"); err == nil {
		t.Fatalf("expected error for missing object")
	}
}

func TestModifyCreatesUpdatesDeletes(t *testing.T) {
	b, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	ctx := context.Background()

	if err := b.Modify(ctx, "a/b", func(cur []byte) ([]byte, error) {
		if cur != nil {
			t.Fatalf("expected nil current on create")
		}
		return []byte("v1"), nil
	}); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := b.Load(ctx, "a/b")
	if err != nil || string(got) != "v1" {
		t.Fatalf("got %q, %v", got, err)
	}

	if err := b.Modify(ctx, "a/b", func(cur []byte) ([]byte, error) {
		if string(cur) != "v1" {
			t.Fatalf("expected v1, got %q", cur)
		}
		return []byte("v2"), nil
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = b.Load(ctx, "a/b")
	if string(got) != "v2" {
		t.Fatalf("expected v2, got %q", got)
	}

	if err := b.Modify(ctx, "a/b", func(cur []byte) ([]byte, error) {
		return nil, nil
	}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := b.Load(ctx, "a/b"); err == nil {
		t.Fatalf("expected object to be gone")
	}
}

func TestModifyNoopOnIdenticalResult(t *testing.T) {
	b, _ := New(t.TempDir())
	ctx := context.Background()
	_ = b.Modify(ctx, "x", func([]byte) ([]byte, error) { return []byte("same"), nil })

	full := filepath.Join(b.Root, "x")
	before, _ := os.Stat(full)

	if err := b.Modify(ctx, "x", func(cur []byte) ([]byte, error) { return cur, nil }); err != nil {
		t.Fatalf("noop modify: %v", err)
	}
	after, _ := os.Stat(full)
	if !before.ModTime().Equal(after.ModTime()) {
		t.Fatalf("expected no write on identical result")
	}
}

func TestModifyNoWriteOnError(t *testing.T) {
	b, _ := New(t.TempDir())
	ctx := context.Background()
	sentinel := bytes.ErrTooLarge
	err := b.Modify(ctx, "y", func([]byte) ([]byte, error) { return nil, sentinel })
	if err != sentinel {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if _, err := b.Load(ctx, "y"); err == nil {
		t.Fatalf("expected no object to be created on error")
	}
}
