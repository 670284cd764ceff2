package wcdb

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"trak/internal/wcerr"
)

// ReadActual returns the uncommitted overlay for relPath, or nil when the
// path has no uncommitted state.
func (db *DB) ReadActual(relPath string) (*ActualNode, error) {
	var propsJSON, conflictData sql.NullString
	var changelist string
	err := db.conn.QueryRow(`
		SELECT properties, conflict_data, changelist FROM actual_node
		WHERE wc_id = ? AND local_relpath = ?
	`, db.wcID, relPath).Scan(&propsJSON, &conflictData, &changelist)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying actual node: %w", err)
	}

	actual := &ActualNode{RelPath: relPath, Changelist: changelist}
	if conflictData.Valid {
		actual.ConflictData = conflictData.String
	}
	if propsJSON.Valid && propsJSON.String != "" {
		if err := json.Unmarshal([]byte(propsJSON.String), &actual.Properties); err != nil {
			return nil, wcerr.Wrap(wcerr.StoreCorruption, relPath, err)
		}
	}
	return actual, nil
}

// SetActual inserts or replaces the overlay row for actual.RelPath.
func (db *DB) SetActual(tx *sql.Tx, actual *ActualNode) error {
	var propsJSON interface{}
	if actual.Properties != nil {
		data, err := json.Marshal(actual.Properties)
		if err != nil {
			return fmt.Errorf("marshaling properties: %w", err)
		}
		propsJSON = string(data)
	}
	var conflictData interface{}
	if actual.ConflictData != "" {
		conflictData = actual.ConflictData
	}
	_, err := tx.Exec(`
		INSERT OR REPLACE INTO actual_node
			(wc_id, local_relpath, properties, conflict_data, changelist)
		VALUES (?, ?, ?, ?, ?)
	`, db.wcID, actual.RelPath, propsJSON, conflictData, actual.Changelist)
	if err != nil {
		return fmt.Errorf("writing actual node: %w", err)
	}
	return nil
}

// DeleteActual removes the overlay row for relPath. The row disappears when
// the path becomes unmodified and conflict-free.
func (db *DB) DeleteActual(tx *sql.Tx, relPath string) error {
	_, err := tx.Exec(`
		DELETE FROM actual_node WHERE wc_id = ? AND local_relpath = ?
	`, db.wcID, relPath)
	if err != nil {
		return fmt.Errorf("deleting actual node: %w", err)
	}
	return nil
}

// ActualDescendants returns overlay rows at or below relPath, sorted by path.
func (db *DB) ActualDescendants(relPath string) ([]*ActualNode, error) {
	prefix := relPath
	if prefix != "" {
		prefix += "/"
	}
	rows, err := db.conn.Query(`
		SELECT local_relpath, properties, conflict_data, changelist FROM actual_node
		WHERE wc_id = ? AND (local_relpath = ? OR local_relpath LIKE ? ESCAPE '\')
		ORDER BY local_relpath ASC
	`, db.wcID, relPath, likeEscape(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("querying actual nodes: %w", err)
	}
	defer rows.Close()

	var actuals []*ActualNode
	for rows.Next() {
		var propsJSON, conflictData sql.NullString
		actual := &ActualNode{}
		if err := rows.Scan(&actual.RelPath, &propsJSON, &conflictData, &actual.Changelist); err != nil {
			return nil, fmt.Errorf("scanning actual node: %w", err)
		}
		if conflictData.Valid {
			actual.ConflictData = conflictData.String
		}
		if propsJSON.Valid && propsJSON.String != "" {
			if err := json.Unmarshal([]byte(propsJSON.String), &actual.Properties); err != nil {
				return nil, wcerr.Wrap(wcerr.StoreCorruption, actual.RelPath, err)
			}
		}
		actuals = append(actuals, actual)
	}
	return actuals, rows.Err()
}
