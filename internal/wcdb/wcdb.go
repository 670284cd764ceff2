// Package wcdb provides the SQLite-backed node layer store of one
// administrative root.
//
// Every tracked path is represented as a stack of layers: op_depth 0 is the
// base (last-synced repository state), each higher depth is one pending
// local operation (add, copy, move, delete). Lower layers are retained until
// the operation that shadowed them is committed or reverted; they carry the
// information needed to undo it.
package wcdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"trak/internal/wcerr"
)

// Kind is the node kind of a layer.
type Kind string

const (
	KindFile    Kind = "file"
	KindDir     Kind = "dir"
	KindSymlink Kind = "symlink"
	KindUnknown Kind = "unknown"
)

// Presence is the stored status of one layer.
type Presence string

const (
	Normal         Presence = "normal"
	Added          Presence = "added"
	Deleted        Presence = "deleted"
	NotPresent     Presence = "not-present"
	Excluded       Presence = "excluded"
	ServerExcluded Presence = "server-excluded"
	Incomplete     Presence = "incomplete"
)

// DBFile is the store file inside the administrative directory.
const DBFile = "wc.sqlite"

// NodeRecord is one layer of one path.
type NodeRecord struct {
	RelPath    string
	OpDepth    int
	Kind       Kind
	Presence   Presence
	Revision   int64
	Checksum   string
	Properties map[string]string
	// MovedTo is set on the source record when this layer's content was
	// relocated; it names the destination relpath.
	MovedTo string
	// MovedHere is set on the destination record to mark that it was
	// populated by a move rather than by plain add or copy.
	MovedHere bool
}

// ActualNode is the uncommitted overlay for one path.
type ActualNode struct {
	RelPath      string
	Properties   map[string]string
	ConflictData string
	Changelist   string
}

// DB is the node layer store of one administrative root. It is exclusively
// owned by that root and never shared across roots.
type DB struct {
	conn *sql.DB
	wcID string
}

// Create initializes a new store in adminDir for a working copy of
// reposURL at revision.
func Create(adminDir, reposURL string, revision int64) (*DB, error) {
	if err := os.MkdirAll(adminDir, 0755); err != nil {
		return nil, wcerr.Wrap(wcerr.IOFailure, adminDir, err)
	}
	db, err := open(filepath.Join(adminDir, DBFile))
	if err != nil {
		return nil, err
	}
	wcID := uuid.NewString()
	if _, err := db.conn.Exec(`
		INSERT INTO wcroot (id, wc_id, repos_url, revision) VALUES (1, ?, ?, ?)
	`, wcID, reposURL, revision); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing wcroot: %w", err)
	}
	db.wcID = wcID
	return db, nil
}

// Open opens the existing store in adminDir.
func Open(adminDir string) (*DB, error) {
	dbPath := filepath.Join(adminDir, DBFile)
	if _, err := os.Stat(dbPath); err != nil {
		return nil, wcerr.New(wcerr.NotFound, adminDir, "no working copy store")
	}
	db, err := open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := db.conn.QueryRow(`SELECT wc_id FROM wcroot WHERE id = 1`).Scan(&db.wcID); err != nil {
		db.Close()
		return nil, wcerr.Wrap(wcerr.StoreCorruption, adminDir, err)
	}
	return db, nil
}

func open(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the store.
func (db *DB) Close() error {
	return db.conn.Close()
}

// BeginTx starts a transaction. Mutating calls must run inside one; a
// failed transaction leaves the store unchanged.
func (db *DB) BeginTx() (*sql.Tx, error) {
	return db.conn.Begin()
}

// Info returns the repository URL and base revision recorded for this store.
func (db *DB) Info() (reposURL string, revision int64, err error) {
	err = db.conn.QueryRow(`SELECT repos_url, revision FROM wcroot WHERE id = 1`).
		Scan(&reposURL, &revision)
	if err != nil {
		return "", 0, wcerr.Wrap(wcerr.StoreCorruption, "", err)
	}
	return reposURL, revision, nil
}

// SetRevision records a new base revision for the store.
func (db *DB) SetRevision(tx *sql.Tx, revision int64) error {
	_, err := tx.Exec(`UPDATE wcroot SET revision = ? WHERE id = 1`, revision)
	if err != nil {
		return fmt.Errorf("updating revision: %w", err)
	}
	return nil
}

// IsWCRoot reports whether relPath is the administrative root of this store.
func (db *DB) IsWCRoot(relPath string) bool {
	return relPath == ""
}

const nodeColumns = `local_relpath, op_depth, kind, presence, revision, checksum, properties, moved_to, moved_here`

func scanNode(scan func(dest ...interface{}) error) (*NodeRecord, error) {
	var rec NodeRecord
	var propsJSON string
	var movedHere int
	err := scan(&rec.RelPath, &rec.OpDepth, (*string)(&rec.Kind), (*string)(&rec.Presence),
		&rec.Revision, &rec.Checksum, &propsJSON, &rec.MovedTo, &movedHere)
	if err != nil {
		return nil, err
	}
	rec.MovedHere = movedHere != 0
	if err := json.Unmarshal([]byte(propsJSON), &rec.Properties); err != nil {
		return nil, wcerr.Wrap(wcerr.StoreCorruption, rec.RelPath, err)
	}
	return &rec, nil
}

// ReadLayers returns all layers of relPath ordered shallowest (base) first.
// The result is empty when the path is not tracked.
func (db *DB) ReadLayers(relPath string) ([]*NodeRecord, error) {
	rows, err := db.conn.Query(`
		SELECT `+nodeColumns+` FROM nodes
		WHERE wc_id = ? AND local_relpath = ?
		ORDER BY op_depth ASC
	`, db.wcID, relPath)
	if err != nil {
		return nil, fmt.Errorf("querying layers: %w", err)
	}
	defer rows.Close()

	var layers []*NodeRecord
	for rows.Next() {
		rec, err := scanNode(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning layer: %w", err)
		}
		layers = append(layers, rec)
	}
	return layers, rows.Err()
}

// WriteLayer inserts or replaces the layer (rec.RelPath, rec.OpDepth).
func (db *DB) WriteLayer(tx *sql.Tx, rec *NodeRecord) error {
	props := rec.Properties
	if props == nil {
		props = map[string]string{}
	}
	propsJSON, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("marshaling properties: %w", err)
	}
	movedHere := 0
	if rec.MovedHere {
		movedHere = 1
	}
	_, err = tx.Exec(`
		INSERT OR REPLACE INTO nodes
			(wc_id, local_relpath, op_depth, parent_relpath, kind, presence,
			 revision, checksum, properties, moved_to, moved_here)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, db.wcID, rec.RelPath, rec.OpDepth, parentOf(rec.RelPath), string(rec.Kind),
		string(rec.Presence), rec.Revision, rec.Checksum, string(propsJSON),
		rec.MovedTo, movedHere)
	if err != nil {
		return fmt.Errorf("writing layer: %w", err)
	}
	return nil
}

// DeleteLayersAbove removes all layers of relPath with op_depth > depth.
func (db *DB) DeleteLayersAbove(tx *sql.Tx, relPath string, depth int) error {
	_, err := tx.Exec(`
		DELETE FROM nodes WHERE wc_id = ? AND local_relpath = ? AND op_depth > ?
	`, db.wcID, relPath, depth)
	if err != nil {
		return fmt.Errorf("deleting layers: %w", err)
	}
	return nil
}

// DeleteAllLayers removes every layer of relPath.
func (db *DB) DeleteAllLayers(tx *sql.Tx, relPath string) error {
	_, err := tx.Exec(`
		DELETE FROM nodes WHERE wc_id = ? AND local_relpath = ?
	`, db.wcID, relPath)
	if err != nil {
		return fmt.Errorf("deleting layers: %w", err)
	}
	return nil
}

// MaxOpDepth returns the greatest op_depth stored for relPath, or -1 when
// the path is not tracked.
func (db *DB) MaxOpDepth(relPath string) (int, error) {
	var depth sql.NullInt64
	err := db.conn.QueryRow(`
		SELECT MAX(op_depth) FROM nodes WHERE wc_id = ? AND local_relpath = ?
	`, db.wcID, relPath).Scan(&depth)
	if err != nil {
		return -1, fmt.Errorf("querying max op depth: %w", err)
	}
	if !depth.Valid {
		return -1, nil
	}
	return int(depth.Int64), nil
}

// Descendants returns the distinct tracked relpaths strictly below relPath,
// sorted. An empty relPath selects every tracked path except the root.
func (db *DB) Descendants(relPath string) ([]string, error) {
	prefix := relPath
	if prefix != "" {
		prefix += "/"
	}
	rows, err := db.conn.Query(`
		SELECT DISTINCT local_relpath FROM nodes
		WHERE wc_id = ? AND local_relpath LIKE ? ESCAPE '\' AND local_relpath != ?
		ORDER BY local_relpath ASC
	`, db.wcID, likeEscape(prefix)+"%", relPath)
	if err != nil {
		return nil, fmt.Errorf("querying descendants: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scanning path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// MovedToCandidates returns every overlay layer whose moved_to points at
// dstRelPath. The base layer cannot carry a move pointer.
func (db *DB) MovedToCandidates(dstRelPath string) ([]*NodeRecord, error) {
	rows, err := db.conn.Query(`
		SELECT `+nodeColumns+` FROM nodes
		WHERE wc_id = ? AND moved_to = ? AND op_depth > 0
		ORDER BY local_relpath ASC, op_depth ASC
	`, db.wcID, dstRelPath)
	if err != nil {
		return nil, fmt.Errorf("querying move candidates: %w", err)
	}
	defer rows.Close()

	var recs []*NodeRecord
	for rows.Next() {
		rec, err := scanNode(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning candidate: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// DumpAll returns every layer in the store ordered by (relpath, op_depth).
// Used by the info command and by upgrade verification.
func (db *DB) DumpAll() ([]*NodeRecord, error) {
	rows, err := db.conn.Query(`
		SELECT ` + nodeColumns + ` FROM nodes
		ORDER BY local_relpath ASC, op_depth ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("dumping nodes: %w", err)
	}
	defer rows.Close()

	var recs []*NodeRecord
	for rows.Next() {
		rec, err := scanNode(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func parentOf(relPath string) string {
	if relPath == "" {
		return ""
	}
	i := strings.LastIndexByte(relPath, '/')
	if i < 0 {
		return ""
	}
	return relPath[:i]
}

func likeEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return strings.ReplaceAll(s, `_`, `\_`)
}
