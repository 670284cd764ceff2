package ops

import (
	"context"
	"os"
	"testing"

	"trak/internal/status"
	"trak/internal/wcerr"
)

func cp(c *Context, src, dst string) error {
	return Copy(context.Background(), c, c.AbsPath(src), c.AbsPath(dst))
}

func TestCopyFile(t *testing.T) {
	c, _ := fixtureWC(t)

	if err := cp(c, "README", "copy.txt"); err != nil {
		t.Fatalf("Copy: %v", err)
	}

	if got := readWC(t, c, "copy.txt"); got != "hello\n" {
		t.Errorf("copy.txt = %q", got)
	}
	src := mustResolve(t, c, "README")
	if src.Code != status.StatusNormal {
		t.Errorf("source = %s after copy, want normal", src.Code)
	}

	dst := mustResolve(t, c, "copy.txt")
	if dst.Code != status.StatusAdded {
		t.Errorf("destination = %s, want added", dst.Code)
	}
	if dst.MovedHere {
		t.Error("copy marked moved_here")
	}
	// Copy-with-history: the added layer references the source's base.
	if dst.Checksum != src.Checksum || dst.Revision != src.Revision {
		t.Errorf("destination lost history reference: %+v vs %+v", dst, src)
	}
}

func TestCopyDir(t *testing.T) {
	c, _ := fixtureWC(t)
	if err := cp(c, "src", "vendor"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	for _, p := range []string{"vendor", "vendor/main.go", "vendor/util.go"} {
		if st := mustResolve(t, c, p); st.Code != status.StatusAdded {
			t.Errorf("%s = %s, want added", p, st.Code)
		}
	}
	if got := readWC(t, c, "vendor/main.go"); got != "package main\n" {
		t.Errorf("vendor/main.go = %q", got)
	}
}

func TestCopyOntoExisting(t *testing.T) {
	c, _ := fixtureWC(t)
	err := cp(c, "README", "src/main.go")
	if !wcerr.Is(err, wcerr.InvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestCopyDeletedSource(t *testing.T) {
	c, _ := fixtureWC(t)
	if err := del(c, DeleteOpts{}, "README"); err != nil {
		t.Fatal(err)
	}
	err := cp(c, "README", "copy.txt")
	if !wcerr.Is(err, wcerr.InvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

// When materializing the copy on disk fails, the committed schedule is
// visible (the destination reports missing) but no orphan file exists.
func TestCopyDiskFailure(t *testing.T) {
	c, _ := fixtureWC(t)
	if err := os.Remove(c.AbsPath("README")); err != nil {
		t.Fatal(err)
	}

	err := cp(c, "README", "copy.txt")
	if !wcerr.Is(err, wcerr.IOFailure) {
		t.Fatalf("expected IOFailure, got %v", err)
	}
	if onDisk(c, "copy.txt") {
		t.Error("failed copy left a working file behind")
	}
	if st := mustResolve(t, c, "copy.txt"); st.Code != status.StatusAdded {
		t.Errorf("copy.txt = %s, want added", st.Code)
	}
}

// Copying over a tombstoned path resolves as replaced.
func TestCopyOverTombstone(t *testing.T) {
	c, _ := fixtureWC(t)
	if err := del(c, DeleteOpts{}, "README"); err != nil {
		t.Fatal(err)
	}
	if err := cp(c, "src/main.go", "README"); err != nil {
		t.Fatalf("Copy: %v", err)
	}
	if st := mustResolve(t, c, "README"); st.Code != status.StatusReplaced {
		t.Errorf("README = %s, want replaced", st.Code)
	}
}
