package blobmodel

import "testing"

func TestInternDedupesIdenticalBodies(t *testing.T) {
	fc := NewFilesCollection()
	a := fc.Intern([]byte("same"))
	b := fc.Intern([]byte("same"))
	c := fc.Intern([]byte("different"))

	if a != b {
		t.Fatalf("identical bodies got different ids: %d vs %d", a, b)
	}
	if a == c {
		t.Fatalf("distinct bodies got the same id: %d", a)
	}
	if len(fc.Bodies) != 2 {
		t.Fatalf("expected 2 distinct bodies, got %d", len(fc.Bodies))
	}
}

func TestPrincipalPrefix(t *testing.T) {
	if got := PrincipalPrefix(MasterPrincipal); got != "master/" {
		t.Fatalf("master prefix: got %q", got)
	}
	if got := PrincipalPrefix("acme"); got != "tenants/acme/" {
		t.Fatalf("tenant prefix: got %q", got)
	}
}

func TestFlagsHelpers(t *testing.T) {
	m := FileMetadata{Flags: FlagSymlink | FlagSymlinkAbs}
	if !m.IsSymlink() || !m.IsSymlinkAbs() {
		t.Fatalf("expected both flags set: %+v", m)
	}
	plain := FileMetadata{}
	if plain.IsSymlink() || plain.IsSymlinkAbs() {
		t.Fatalf("expected no flags set: %+v", plain)
	}
}
