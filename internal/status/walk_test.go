package status

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"trak/internal/ignore"
	"trak/internal/util"
	"trak/internal/wcdb"
	"trak/internal/wcerr"
)

// walkFixture builds a store plus a working tree with one base-tracked file.
func walkFixture(t *testing.T) (*wcdb.DB, string) {
	t.Helper()
	workDir := t.TempDir()
	db, err := wcdb.Create(filepath.Join(workDir, ".trak"), "file:///repo", 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	content := []byte("hello\n")
	if err := os.WriteFile(filepath.Join(workDir, "a.txt"), content, 0644); err != nil {
		t.Fatal(err)
	}

	tx, err := db.BeginTx()
	if err != nil {
		t.Fatal(err)
	}
	defer tx.Rollback()
	recs := []*wcdb.NodeRecord{
		{RelPath: "", OpDepth: 0, Kind: wcdb.KindDir, Presence: wcdb.Normal, Revision: 1},
		{RelPath: "a.txt", OpDepth: 0, Kind: wcdb.KindFile, Presence: wcdb.Normal,
			Revision: 1, Checksum: util.Blake3HashHex(content)},
	}
	for _, rec := range recs {
		if err := db.WriteLayer(tx, rec); err != nil {
			t.Fatal(err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	return db, workDir
}

func walkCodes(t *testing.T, db *wcdb.DB, workDir, relPath string) map[string]Code {
	t.Helper()
	results, err := NewWalker(db, workDir, ignore.NewMatcher(nil)).Walk(context.Background(), relPath)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	codes := make(map[string]Code, len(results))
	for _, st := range results {
		codes[st.RelPath] = st.Code
	}
	return codes
}

func TestWalkClean(t *testing.T) {
	db, workDir := walkFixture(t)
	codes := walkCodes(t, db, workDir, "")
	if codes["a.txt"] != StatusNormal {
		t.Errorf("a.txt = %s, want normal", codes["a.txt"])
	}
	if _, ok := codes[".trak"]; ok {
		t.Error("administrative directory reported")
	}
}

func TestWalkModified(t *testing.T) {
	db, workDir := walkFixture(t)
	if err := os.WriteFile(filepath.Join(workDir, "a.txt"), []byte("changed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if codes := walkCodes(t, db, workDir, ""); codes["a.txt"] != StatusModified {
		t.Errorf("a.txt = %s, want modified", codes["a.txt"])
	}
}

func TestWalkMissing(t *testing.T) {
	db, workDir := walkFixture(t)
	if err := os.Remove(filepath.Join(workDir, "a.txt")); err != nil {
		t.Fatal(err)
	}
	if codes := walkCodes(t, db, workDir, ""); codes["a.txt"] != StatusMissing {
		t.Errorf("a.txt = %s, want missing", codes["a.txt"])
	}
}

func TestWalkObstructed(t *testing.T) {
	db, workDir := walkFixture(t)
	if err := os.Remove(filepath.Join(workDir, "a.txt")); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(workDir, "a.txt"), 0755); err != nil {
		t.Fatal(err)
	}
	if codes := walkCodes(t, db, workDir, ""); codes["a.txt"] != StatusObstructed {
		t.Errorf("a.txt = %s, want obstructed", codes["a.txt"])
	}
}

func TestWalkUnversioned(t *testing.T) {
	db, workDir := walkFixture(t)
	if err := os.WriteFile(filepath.Join(workDir, "stray.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(workDir, "junk.tmp"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	// Children of an unversioned directory are implied, not listed.
	if err := os.MkdirAll(filepath.Join(workDir, "newdir", "sub"), 0755); err != nil {
		t.Fatal(err)
	}

	codes := walkCodes(t, db, workDir, "")
	if codes["stray.txt"] != StatusUnversioned {
		t.Errorf("stray.txt = %s, want unversioned", codes["stray.txt"])
	}
	if _, ok := codes["junk.tmp"]; ok {
		t.Error("ignored file reported")
	}
	if codes["newdir"] != StatusUnversioned {
		t.Errorf("newdir = %s, want unversioned", codes["newdir"])
	}
	if _, ok := codes["newdir/sub"]; ok {
		t.Error("child of unversioned directory reported")
	}
}

func TestWalkUntrackedTarget(t *testing.T) {
	db, workDir := walkFixture(t)
	_, err := NewWalker(db, workDir, nil).Walk(context.Background(), "ghost")
	if !wcerr.Is(err, wcerr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestWalkCancellation(t *testing.T) {
	db, workDir := walkFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewWalker(db, workDir, nil).Walk(ctx, "")
	if err == nil {
		t.Fatal("expected cancellation error")
	}
}
