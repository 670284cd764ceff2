package ops

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"trak/internal/status"
	"trak/internal/wcerr"
)

func add(c *Context, opts AddOpts, relPaths ...string) error {
	targets := make([]string, len(relPaths))
	for i, p := range relPaths {
		targets[i] = c.AbsPath(p)
	}
	return Add(context.Background(), c, targets, opts)
}

func TestAddFile(t *testing.T) {
	c, _ := fixtureWC(t)
	if err := os.WriteFile(c.AbsPath("notes.txt"), []byte("todo\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := add(c, AddOpts{}, "notes.txt"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	st := mustResolve(t, c, "notes.txt")
	if st.Code != status.StatusAdded {
		t.Errorf("status = %s, want added", st.Code)
	}
	layers := mustLayers(t, c, "notes.txt")
	if len(layers) != 1 || layers[0].OpDepth != 1 {
		t.Errorf("layers = %+v, want single added layer at depth 1", layers)
	}
}

func TestAddAlreadyVersioned(t *testing.T) {
	c, _ := fixtureWC(t)
	err := add(c, AddOpts{}, "README")
	if !wcerr.Is(err, wcerr.InvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestAddMissingOnDisk(t *testing.T) {
	c, _ := fixtureWC(t)
	err := add(c, AddOpts{}, "ghost.txt")
	if !wcerr.Is(err, wcerr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestAddTree(t *testing.T) {
	c, _ := fixtureWC(t)
	if err := os.MkdirAll(c.AbsPath("assets"), 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"logo.png", "scratch.tmp"} {
		if err := os.WriteFile(filepath.Join(c.AbsPath("assets"), name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if err := add(c, AddOpts{}, "assets"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if st := mustResolve(t, c, "assets"); st.Code != status.StatusAdded {
		t.Errorf("assets = %s, want added", st.Code)
	}
	if st := mustResolve(t, c, "assets/logo.png"); st.Code != status.StatusAdded {
		t.Errorf("assets/logo.png = %s, want added", st.Code)
	}
	// Ignored by default pattern; not scheduled.
	if layers := mustLayers(t, c, "assets/scratch.tmp"); len(layers) != 0 {
		t.Errorf("assets/scratch.tmp tracked: %+v", layers)
	}
}

func TestAddTreeNoIgnore(t *testing.T) {
	c, _ := fixtureWC(t)
	if err := os.MkdirAll(c.AbsPath("assets"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.AbsPath("assets/scratch.tmp"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := add(c, AddOpts{NoIgnore: true}, "assets"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if st := mustResolve(t, c, "assets/scratch.tmp"); st.Code != status.StatusAdded {
		t.Errorf("assets/scratch.tmp = %s, want added", st.Code)
	}
}

// Re-adding a tombstoned path stacks the new layer above the tombstone and
// resolves as replaced.
func TestAddReplacesTombstoned(t *testing.T) {
	c, _ := fixtureWC(t)
	if err := del(c, DeleteOpts{}, "README"); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(c.AbsPath("README"), []byte("reborn\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := add(c, AddOpts{}, "README"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	st := mustResolve(t, c, "README")
	if st.Code != status.StatusReplaced {
		t.Errorf("status = %s, want replaced", st.Code)
	}
	layers := mustLayers(t, c, "README")
	if len(layers) != 3 {
		t.Errorf("layers = %+v, want base + tombstone + added", layers)
	}
}

func TestAddWCRoot(t *testing.T) {
	c, _ := fixtureWC(t)
	err := add(c, AddOpts{}, "")
	if !wcerr.Is(err, wcerr.InvalidState) {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}
