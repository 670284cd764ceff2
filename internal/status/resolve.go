// Package status computes the effective state of tracked paths.
package status

import (
	"trak/internal/wcdb"
	"trak/internal/wcerr"
)

// Code is the effective status of a path after collapsing its layer stack.
type Code string

const (
	StatusNormal         Code = "normal"
	StatusAdded          Code = "added"
	StatusReplaced       Code = "replaced"
	StatusDeleted        Code = "deleted"
	StatusDeletedViaMove Code = "deleted-via-move"
	StatusNotPresent     Code = "not-present"
	StatusExcluded       Code = "excluded"
	StatusServerExcluded Code = "server-excluded"
	StatusIncomplete     Code = "incomplete"

	// Working-tree codes, produced only by the walk, never by Resolve.
	StatusModified    Code = "modified"
	StatusMissing     Code = "missing"
	StatusUnversioned Code = "unversioned"
	StatusObstructed  Code = "obstructed"
)

// Status is the resolved state of one path.
type Status struct {
	RelPath string
	Kind    wcdb.Kind
	Code    Code
	// Conflicted is an overlay flag reported in addition to Code, never
	// instead of it.
	Conflicted bool
	// MovedTo is the destination relpath when Code is deleted-via-move.
	MovedTo string
	// MovedHere marks an added layer populated by a move.
	MovedHere bool
	// PropsModified marks uncommitted property changes in the overlay.
	PropsModified bool
	Changelist    string
	Revision      int64
	Checksum      string
	// OpDepth is the depth of the layer that determined Code.
	OpDepth int
}

// Resolve collapses the layer stack of one path into its effective status.
// Layers must be ordered base first, as ReadLayers returns them. The result
// is deterministic given the inputs; no I/O is performed.
//
// Priority: a deepest layer of not-present or excluded kinds is reported
// verbatim; a delete tombstone carrying a move pointer reports
// deleted-via-move; a conflict in the overlay sets the Conflicted flag on
// top of the structural status; an added layer above a tombstone reports
// replaced.
func Resolve(layers []*wcdb.NodeRecord, actual *wcdb.ActualNode) (*Status, error) {
	if len(layers) == 0 {
		return nil, wcerr.New(wcerr.NotFound, "", "path is not under version control")
	}

	deepest := layers[len(layers)-1]
	st := &Status{
		RelPath:   deepest.RelPath,
		Kind:      deepest.Kind,
		OpDepth:   deepest.OpDepth,
		Revision:  deepest.Revision,
		Checksum:  deepest.Checksum,
		MovedHere: deepest.MovedHere,
	}

	switch deepest.Presence {
	case wcdb.NotPresent:
		st.Code = StatusNotPresent
	case wcdb.Excluded:
		st.Code = StatusExcluded
	case wcdb.ServerExcluded:
		st.Code = StatusServerExcluded
	case wcdb.Incomplete:
		st.Code = StatusIncomplete
	case wcdb.Deleted:
		if deepest.MovedTo != "" {
			st.Code = StatusDeletedViaMove
			st.MovedTo = deepest.MovedTo
		} else {
			st.Code = StatusDeleted
		}
		// A tombstone hides the deleted node's kind; report the kind of
		// the layer it shadows.
		for i := len(layers) - 2; i >= 0; i-- {
			if layers[i].Presence == wcdb.Normal || layers[i].Presence == wcdb.Added {
				st.Kind = layers[i].Kind
				st.Revision = layers[i].Revision
				st.Checksum = layers[i].Checksum
				break
			}
		}
	case wcdb.Added:
		st.Code = StatusAdded
		for _, l := range layers[:len(layers)-1] {
			if l.Presence == wcdb.Deleted {
				st.Code = StatusReplaced
				break
			}
		}
	case wcdb.Normal:
		st.Code = StatusNormal
	default:
		return nil, wcerr.New(wcerr.StoreCorruption, deepest.RelPath,
			"unknown presence %q at op depth %d", deepest.Presence, deepest.OpDepth)
	}

	if actual != nil {
		st.Changelist = actual.Changelist
		st.PropsModified = len(actual.Properties) > 0
		st.Conflicted = actual.ConflictData != ""
	}
	return st, nil
}

// ResolvePath loads the layers and overlay of relPath from db and resolves
// them.
func ResolvePath(db *wcdb.DB, relPath string) (*Status, error) {
	layers, err := db.ReadLayers(relPath)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, wcerr.New(wcerr.NotFound, relPath, "path is not under version control")
	}
	actual, err := db.ReadActual(relPath)
	if err != nil {
		return nil, err
	}
	return Resolve(layers, actual)
}
