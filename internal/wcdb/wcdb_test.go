package wcdb

import (
	"path/filepath"
	"reflect"
	"testing"

	"trak/internal/wcerr"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Create(filepath.Join(t.TempDir(), ".trak"), "file:///repo", 7)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func mustWrite(t *testing.T, db *DB, recs ...*NodeRecord) {
	t.Helper()
	tx, err := db.BeginTx()
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	defer tx.Rollback()
	for _, rec := range recs {
		if err := db.WriteLayer(tx, rec); err != nil {
			t.Fatalf("WriteLayer(%s@%d): %v", rec.RelPath, rec.OpDepth, err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func TestCreateAndOpen(t *testing.T) {
	adminDir := filepath.Join(t.TempDir(), ".trak")
	db, err := Create(adminDir, "file:///repo", 42)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	db.Close()

	db, err = Open(adminDir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	url, revision, err := db.Info()
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if url != "file:///repo" || revision != 42 {
		t.Errorf("Info = (%q, %d), want (file:///repo, 42)", url, revision)
	}
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), ".trak"))
	if !wcerr.Is(err, wcerr.NotFound) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestLayerRoundTrip(t *testing.T) {
	db := testDB(t)
	want := &NodeRecord{
		RelPath:    "src/main.go",
		OpDepth:    2,
		Kind:       KindFile,
		Presence:   Added,
		Revision:   7,
		Checksum:   "abc123",
		Properties: map[string]string{"eol": "native"},
		MovedHere:  true,
	}
	mustWrite(t, db, want)

	layers, err := db.ReadLayers("src/main.go")
	if err != nil {
		t.Fatalf("ReadLayers: %v", err)
	}
	if len(layers) != 1 {
		t.Fatalf("got %d layers, want 1", len(layers))
	}
	if !reflect.DeepEqual(layers[0], want) {
		t.Errorf("got %+v, want %+v", layers[0], want)
	}
}

func TestReadLayersOrder(t *testing.T) {
	db := testDB(t)
	mustWrite(t, db,
		&NodeRecord{RelPath: "a", OpDepth: 3, Kind: KindFile, Presence: Added},
		&NodeRecord{RelPath: "a", OpDepth: 0, Kind: KindFile, Presence: Normal},
		&NodeRecord{RelPath: "a", OpDepth: 1, Kind: KindFile, Presence: Deleted},
	)
	layers, err := db.ReadLayers("a")
	if err != nil {
		t.Fatalf("ReadLayers: %v", err)
	}
	var depths []int
	for _, l := range layers {
		depths = append(depths, l.OpDepth)
	}
	if !reflect.DeepEqual(depths, []int{0, 1, 3}) {
		t.Errorf("depths = %v, want [0 1 3]", depths)
	}
}

func TestWriteLayerReplaces(t *testing.T) {
	db := testDB(t)
	mustWrite(t, db, &NodeRecord{RelPath: "a", OpDepth: 1, Kind: KindFile, Presence: Added})
	mustWrite(t, db, &NodeRecord{RelPath: "a", OpDepth: 1, Kind: KindFile, Presence: Deleted})

	layers, err := db.ReadLayers("a")
	if err != nil {
		t.Fatalf("ReadLayers: %v", err)
	}
	if len(layers) != 1 || layers[0].Presence != Deleted {
		t.Errorf("got %+v, want single deleted layer", layers)
	}
}

func TestRollbackLeavesStoreUnchanged(t *testing.T) {
	db := testDB(t)
	mustWrite(t, db, &NodeRecord{RelPath: "a", OpDepth: 0, Kind: KindFile, Presence: Normal})

	tx, err := db.BeginTx()
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := db.WriteLayer(tx, &NodeRecord{RelPath: "a", OpDepth: 1, Kind: KindFile, Presence: Deleted}); err != nil {
		t.Fatalf("WriteLayer: %v", err)
	}
	if err := db.DeleteAllLayers(tx, "a"); err != nil {
		t.Fatalf("DeleteAllLayers: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	layers, err := db.ReadLayers("a")
	if err != nil {
		t.Fatalf("ReadLayers: %v", err)
	}
	if len(layers) != 1 || layers[0].OpDepth != 0 || layers[0].Presence != Normal {
		t.Errorf("store changed after rollback: %+v", layers)
	}
}

func TestDeleteLayersAbove(t *testing.T) {
	db := testDB(t)
	mustWrite(t, db,
		&NodeRecord{RelPath: "a", OpDepth: 0, Kind: KindFile, Presence: Normal},
		&NodeRecord{RelPath: "a", OpDepth: 1, Kind: KindFile, Presence: Deleted},
		&NodeRecord{RelPath: "a", OpDepth: 2, Kind: KindFile, Presence: Added},
	)
	tx, err := db.BeginTx()
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	if err := db.DeleteLayersAbove(tx, "a", 0); err != nil {
		t.Fatalf("DeleteLayersAbove: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	layers, err := db.ReadLayers("a")
	if err != nil {
		t.Fatalf("ReadLayers: %v", err)
	}
	if len(layers) != 1 || layers[0].OpDepth != 0 {
		t.Errorf("got %+v, want base only", layers)
	}
}

func TestMaxOpDepth(t *testing.T) {
	db := testDB(t)
	if depth, err := db.MaxOpDepth("nope"); err != nil || depth != -1 {
		t.Errorf("MaxOpDepth(untracked) = (%d, %v), want (-1, nil)", depth, err)
	}
	mustWrite(t, db,
		&NodeRecord{RelPath: "a", OpDepth: 0, Kind: KindFile, Presence: Normal},
		&NodeRecord{RelPath: "a", OpDepth: 4, Kind: KindFile, Presence: Added},
	)
	if depth, err := db.MaxOpDepth("a"); err != nil || depth != 4 {
		t.Errorf("MaxOpDepth(a) = (%d, %v), want (4, nil)", depth, err)
	}
}

func TestDescendants(t *testing.T) {
	db := testDB(t)
	mustWrite(t, db,
		&NodeRecord{RelPath: "", OpDepth: 0, Kind: KindDir, Presence: Normal},
		&NodeRecord{RelPath: "src", OpDepth: 0, Kind: KindDir, Presence: Normal},
		&NodeRecord{RelPath: "src/a", OpDepth: 0, Kind: KindFile, Presence: Normal},
		&NodeRecord{RelPath: "src/b", OpDepth: 0, Kind: KindFile, Presence: Normal},
		&NodeRecord{RelPath: "srcx", OpDepth: 0, Kind: KindFile, Presence: Normal},
		&NodeRecord{RelPath: "other", OpDepth: 0, Kind: KindFile, Presence: Normal},
	)

	got, err := db.Descendants("src")
	if err != nil {
		t.Fatalf("Descendants: %v", err)
	}
	// srcx shares the prefix bytes but is not below src/.
	want := []string{"src/a", "src/b"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Descendants(src) = %v, want %v", got, want)
	}

	all, err := db.Descendants("")
	if err != nil {
		t.Fatalf("Descendants(root): %v", err)
	}
	want = []string{"other", "src", "src/a", "src/b", "srcx"}
	if !reflect.DeepEqual(all, want) {
		t.Errorf("Descendants(\"\") = %v, want %v", all, want)
	}
}

func TestMovedToCandidates(t *testing.T) {
	db := testDB(t)
	mustWrite(t, db,
		&NodeRecord{RelPath: "a", OpDepth: 0, Kind: KindFile, Presence: Normal},
		&NodeRecord{RelPath: "a", OpDepth: 1, Kind: KindFile, Presence: Deleted, MovedTo: "b"},
		&NodeRecord{RelPath: "b", OpDepth: 1, Kind: KindFile, Presence: Added, MovedHere: true},
	)
	cands, err := db.MovedToCandidates("b")
	if err != nil {
		t.Fatalf("MovedToCandidates: %v", err)
	}
	if len(cands) != 1 || cands[0].RelPath != "a" || cands[0].OpDepth != 1 {
		t.Errorf("candidates = %+v, want a@1", cands)
	}
}

func TestActualRoundTrip(t *testing.T) {
	db := testDB(t)
	if an, err := db.ReadActual("a"); err != nil || an != nil {
		t.Fatalf("ReadActual(absent) = (%+v, %v), want (nil, nil)", an, err)
	}

	tx, err := db.BeginTx()
	if err != nil {
		t.Fatalf("BeginTx: %v", err)
	}
	want := &ActualNode{
		RelPath:      "a",
		Properties:   map[string]string{"mime": "text/plain"},
		ConflictData: `{"tree":{"operation":"update"}}`,
		Changelist:   "hotfix",
	}
	if err := db.SetActual(tx, want); err != nil {
		t.Fatalf("SetActual: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := db.ReadActual("a")
	if err != nil {
		t.Fatalf("ReadActual: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}
