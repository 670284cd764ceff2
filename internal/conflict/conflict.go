// Package conflict persists tree, text, and property conflict descriptors.
package conflict

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"trak/internal/wcdb"
	"trak/internal/wcerr"
)

// TextConflict references the three conflict artifact files left next to a
// file whose content merge failed.
type TextConflict struct {
	BaseFile  string `json:"baseFile"`
	MineFile  string `json:"mineFile"`
	TheirFile string `json:"theirFile"`
}

// PropConflict records the competing values of one property.
type PropConflict struct {
	Name   string `json:"name"`
	Old    string `json:"old"`
	Mine   string `json:"mine"`
	Theirs string `json:"theirs"`
}

// TreeConflict records a structural conflict: the operation that ran into
// it and the local and incoming change actions that collided.
type TreeConflict struct {
	Operation      string `json:"operation"`
	LocalChange    string `json:"localChange"`
	IncomingChange string `json:"incomingChange"`
}

// Descriptor is the conflict state of one path. The kinds are not mutually
// exclusive; any combination may be present.
type Descriptor struct {
	Text  *TextConflict  `json:"text,omitempty"`
	Props []PropConflict `json:"props,omitempty"`
	Tree  *TreeConflict  `json:"tree,omitempty"`
}

// Empty reports whether no conflict of any kind is recorded.
func (d *Descriptor) Empty() bool {
	return d.Text == nil && len(d.Props) == 0 && d.Tree == nil
}

// Marshal encodes the descriptor for storage in the actual_node overlay.
func Marshal(d *Descriptor) (string, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshaling conflict: %w", err)
	}
	return string(data), nil
}

// Unmarshal decodes a stored descriptor blob.
func Unmarshal(blob string) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal([]byte(blob), &d); err != nil {
		return nil, wcerr.Wrap(wcerr.StoreCorruption, "", err)
	}
	return &d, nil
}

// ArtifactName returns the conventional artifact file name for a path and
// conflict role ("base", "mine", "theirs", "prej").
func ArtifactName(relPath, role string) string {
	flat := strings.ReplaceAll(relPath, "/", "_")
	return flat + "." + role
}

// Store reads and writes conflict descriptors through the actual_node
// overlay of one administrative root.
type Store struct {
	db          *wcdb.DB
	artifactDir string
}

// NewStore creates a conflict store over db with artifacts kept in
// artifactDir.
func NewStore(db *wcdb.DB, artifactDir string) *Store {
	return &Store{db: db, artifactDir: artifactDir}
}

// ArtifactDir returns the directory holding conflict artifact files.
func (s *Store) ArtifactDir() string {
	return s.artifactDir
}

// Read returns the conflict descriptor for relPath, or nil when the path is
// conflict-free.
func (s *Store) Read(relPath string) (*Descriptor, error) {
	actual, err := s.db.ReadActual(relPath)
	if err != nil {
		return nil, err
	}
	if actual == nil || actual.ConflictData == "" {
		return nil, nil
	}
	return Unmarshal(actual.ConflictData)
}

// Set records a conflict descriptor for relPath inside the caller's
// transaction, preserving any other overlay state at the path.
func (s *Store) Set(tx *sql.Tx, relPath string, d *Descriptor) error {
	blob, err := Marshal(d)
	if err != nil {
		return err
	}
	actual, err := s.db.ReadActual(relPath)
	if err != nil {
		return err
	}
	if actual == nil {
		actual = &wcdb.ActualNode{RelPath: relPath}
	}
	actual.ConflictData = blob
	return s.db.SetActual(tx, actual)
}

// RemoveArtifacts deletes the artifact files referenced by d. Missing files
// are not an error; the descriptor may never have written some roles.
func (s *Store) RemoveArtifacts(d *Descriptor) error {
	if d == nil || d.Text == nil {
		return nil
	}
	for _, name := range []string{d.Text.BaseFile, d.Text.MineFile, d.Text.TheirFile} {
		if name == "" {
			continue
		}
		err := os.Remove(filepath.Join(s.artifactDir, name))
		if err != nil && !os.IsNotExist(err) {
			return wcerr.Wrap(wcerr.IOFailure, name, err)
		}
	}
	return nil
}
