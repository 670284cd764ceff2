package conflict

import (
	"os"
	"path/filepath"
	"testing"

	"trak/internal/wcdb"
)

func testStore(t *testing.T) (*Store, *wcdb.DB) {
	t.Helper()
	dir := t.TempDir()
	db, err := wcdb.Create(filepath.Join(dir, ".trak"), "file:///repo", 1)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	artifactDir := filepath.Join(dir, ".trak", "conflicts")
	if err := os.MkdirAll(artifactDir, 0755); err != nil {
		t.Fatal(err)
	}
	return NewStore(db, artifactDir), db
}

func TestSetRead(t *testing.T) {
	s, db := testStore(t)
	want := &Descriptor{
		Tree: &TreeConflict{Operation: "update", LocalChange: "delete", IncomingChange: "edit"},
		Props: []PropConflict{
			{Name: "mime", Old: "text/plain", Mine: "text/x-go", Theirs: "text/html"},
		},
	}

	tx, err := db.BeginTx()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(tx, "src/main.go", want); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	got, err := s.Read("src/main.go")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.Tree == nil || got.Tree.IncomingChange != "edit" {
		t.Errorf("tree conflict lost: %+v", got.Tree)
	}
	if len(got.Props) != 1 || got.Props[0].Theirs != "text/html" {
		t.Errorf("prop conflict lost: %+v", got.Props)
	}
}

func TestReadConflictFree(t *testing.T) {
	s, _ := testStore(t)
	d, err := s.Read("clean.txt")
	if err != nil || d != nil {
		t.Fatalf("Read = (%+v, %v), want (nil, nil)", d, err)
	}
}

// Setting a conflict preserves unrelated overlay state at the path.
func TestSetPreservesOverlay(t *testing.T) {
	s, db := testStore(t)
	tx, err := db.BeginTx()
	if err != nil {
		t.Fatal(err)
	}
	if err := db.SetActual(tx, &wcdb.ActualNode{RelPath: "a", Changelist: "hotfix"}); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	tx, err = db.BeginTx()
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set(tx, "a", &Descriptor{Tree: &TreeConflict{Operation: "merge"}}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	actual, err := db.ReadActual("a")
	if err != nil {
		t.Fatal(err)
	}
	if actual.Changelist != "hotfix" {
		t.Errorf("changelist = %q, want hotfix", actual.Changelist)
	}
	if actual.ConflictData == "" {
		t.Error("conflict data missing")
	}
}

func TestRemoveArtifacts(t *testing.T) {
	s, _ := testStore(t)
	name := ArtifactName("src/main.go", "mine")
	if err := os.WriteFile(filepath.Join(s.ArtifactDir(), name), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	d := &Descriptor{Text: &TextConflict{MineFile: name, TheirFile: "never-written.theirs"}}

	if err := s.RemoveArtifacts(d); err != nil {
		t.Fatalf("RemoveArtifacts: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.ArtifactDir(), name)); !os.IsNotExist(err) {
		t.Error("artifact still present")
	}
}

func TestArtifactName(t *testing.T) {
	if got := ArtifactName("src/main.go", "theirs"); got != "src_main.go.theirs" {
		t.Errorf("ArtifactName = %q", got)
	}
}

func TestDescriptorEmpty(t *testing.T) {
	if !(&Descriptor{}).Empty() {
		t.Error("zero descriptor not empty")
	}
	if (&Descriptor{Tree: &TreeConflict{}}).Empty() {
		t.Error("tree conflict reported empty")
	}
}
