// Package moves resolves move provenance between source and destination
// layers.
package moves

import (
	"github.com/golang/glog"

	"trak/internal/wcdb"
)

// Binding is the result of the moved-from lookup for a path under deletion.
type Binding struct {
	// SrcRelPath is the source path whose moved_to points at the deleted
	// path.
	SrcRelPath string
	// SrcOpDepth is the op depth of that source record.
	SrcOpDepth int
	// MovedHereDepth is the op depth at which the move was originally
	// recorded at the destination. Further unrelated operations may exist
	// above it.
	MovedHereDepth int
}

// Tracker answers move-provenance questions over one store.
type Tracker struct {
	db *wcdb.DB
}

// NewTracker creates a tracker over db.
func NewTracker(db *wcdb.DB) *Tracker {
	return &Tracker{db: db}
}

// MovedFromForDelete reports whether deleting relPath severs the source
// side of an in-progress move. It returns nil when the deletion is
// ordinary.
//
// The lookup runs in two phases: first every overlay record whose moved_to
// names relPath is materialized as a candidate, then for each candidate the
// destination's own layer stack is scanned in memory for the nearest record
// at or below the candidate's depth with moved_here set. That record pins the
// depth at which the move was performed; destinations can accumulate
// further local operations after the move, so the deepest layer is not
// authoritative. A candidate with no moved_here record below it is a stale
// pointer and is skipped.
func (t *Tracker) MovedFromForDelete(relPath string) (*Binding, error) {
	candidates, err := t.db.MovedToCandidates(relPath)
	if err != nil {
		return nil, err
	}

	for _, cand := range candidates {
		depth, err := t.DestinationMoveDepth(relPath, cand.OpDepth)
		if err != nil {
			return nil, err
		}
		if depth < 0 {
			glog.Warningf("stale move pointer %s@%d -> %s, treating as ordinary delete",
				cand.RelPath, cand.OpDepth, relPath)
			continue
		}
		return &Binding{
			SrcRelPath:     cand.RelPath,
			SrcOpDepth:     cand.OpDepth,
			MovedHereDepth: depth,
		}, nil
	}
	return nil, nil
}

// DestinationMoveDepth confirms that dstRelPath still claims a move
// recorded at or below atOrBelow. It returns the greatest op depth <=
// atOrBelow carrying a moved_here record, or -1 when the destination no
// longer claims the origin (reverted or overwritten since the move).
func (t *Tracker) DestinationMoveDepth(dstRelPath string, atOrBelow int) (int, error) {
	layers, err := t.db.ReadLayers(dstRelPath)
	if err != nil {
		return -1, err
	}
	best := -1
	for _, l := range layers {
		if l.OpDepth <= atOrBelow && l.MovedHere && l.OpDepth > best {
			best = l.OpDepth
		}
	}
	return best, nil
}
