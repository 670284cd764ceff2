package ops

import (
	"context"
	"os"

	"github.com/golang/glog"

	"trak/internal/conflict"
	"trak/internal/notify"
	"trak/internal/status"
	"trak/internal/wcdb"
	"trak/internal/wcerr"
)

// DeleteOpts configures the delete driver.
type DeleteOpts struct {
	// Force skips the local-modification precondition.
	Force bool
	// KeepLocal schedules the deletion in the store but leaves the on-disk
	// content in place.
	KeepLocal bool
	// DryRun validates preconditions without mutating anything.
	DryRun bool
}

// Delete schedules each target for deletion. Targets are evaluated
// independently: a failure on a later target does not roll back earlier
// targets that already committed, so callers must assume partial completion
// on error. Within one target the transition is all-or-nothing.
func Delete(ctx context.Context, c *Context, targets []string, opts DeleteOpts) error {
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		relPath, err := c.RelPath(target)
		if err != nil {
			return err
		}
		if err := c.deleteOne(ctx, relPath, opts); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) deleteOne(ctx context.Context, relPath string, opts DeleteOpts) error {
	if err := c.acquireWrite(); err != nil {
		return err
	}
	defer c.releaseWrite()

	if !opts.Force {
		if err := c.checkCanDelete(ctx, relPath); err != nil {
			return err
		}
	}
	if opts.DryRun {
		return nil
	}
	return c.delete(relPath, opts.KeepLocal, opts.Force)
}

// checkCanDelete refuses the deletion if any node in the subtree carries
// local modifications: content, property, or schedule. The whole target is
// validated before any mutation.
func (c *Context) checkCanDelete(ctx context.Context, relPath string) error {
	walker := status.NewWalker(c.DB, c.WorkDir, c.Ignore)
	results, err := walker.Walk(ctx, relPath)
	if err != nil {
		return err
	}
	for _, st := range results {
		switch st.Code {
		case status.StatusNormal, status.StatusDeleted, status.StatusDeletedViaMove,
			status.StatusMissing:
		case status.StatusUnversioned:
			continue
		case status.StatusObstructed:
			return wcerr.New(wcerr.InvalidState, st.RelPath,
				"is in the way of the resource actually under version control")
		default:
			return wcerr.New(wcerr.LocalModification, st.RelPath,
				"has local modifications -- commit or revert them first")
		}
		if st.PropsModified {
			return wcerr.New(wcerr.LocalModification, st.RelPath,
				"has property modifications -- commit or revert them first")
		}
	}
	return nil
}

func (c *Context) delete(relPath string, keepLocal, force bool) error {
	st, err := c.resolve(relPath)
	if err != nil {
		if force && wcerr.Is(err, wcerr.NotFound) {
			// Unversioned path under a forced delete: plain filesystem
			// removal, the store is not involved.
			if rmErr := os.RemoveAll(c.AbsPath(relPath)); rmErr != nil {
				return wcerr.Wrap(wcerr.IOFailure, relPath, rmErr)
			}
			notify.Path(c.Notify, relPath, notify.ActionDeleted)
			return nil
		}
		return err
	}

	switch st.Code {
	case status.StatusNotPresent, status.StatusExcluded, status.StatusServerExcluded:
		return wcerr.New(wcerr.InvalidState, relPath, "cannot be deleted")
	case status.StatusDeleted, status.StatusDeletedViaMove:
		return wcerr.New(wcerr.InvalidState, relPath, "is already scheduled for deletion")
	}
	if st.Kind == wcdb.KindDir && c.DB.IsWCRoot(relPath) {
		return wcerr.New(wcerr.InvalidState, relPath,
			"is the root of a working copy and cannot be deleted")
	}

	// Residual conflicts are collected up front so their artifacts can be
	// removed once the transition commits.
	var conflicts *conflict.Descriptor
	if !keepLocal && st.Conflicted {
		conflicts, err = c.Conflicts.Read(relPath)
		if err != nil {
			return err
		}
	}

	// Move-aware lookup: is this deletion the source half of a recorded
	// move, and does the destination still claim it?
	var linkage *moveLinkage
	if !keepLocal {
		linkage, err = c.moveLinkageForDelete(relPath)
		if err != nil {
			return err
		}
	}

	if err := c.opDelete(relPath, linkage, keepLocal); err != nil {
		return err
	}

	if !keepLocal {
		if conflicts != nil {
			if err := c.Conflicts.RemoveArtifacts(conflicts); err != nil {
				return err
			}
		}
		if err := os.RemoveAll(c.AbsPath(relPath)); err != nil {
			return wcerr.Wrap(wcerr.IOFailure, relPath, err)
		}
		c.DB.DropCachedDigest(relPath)
	}
	notify.Path(c.Notify, relPath, notify.ActionDeleted)
	return nil
}

// moveLinkage is the outcome of the move-aware deletion lookup.
type moveLinkage struct {
	// preserveMovedTo keeps the move pointer on the new tombstone when the
	// deleted path is a move source whose destination still claims it.
	preserveMovedTo string
	// severSrc demotes an inbound move when the deleted path is a move
	// destination: moved_to is cleared on that source layer.
	severSrc      string
	severSrcDepth int
}

// moveLinkageForDelete decides whether the tombstone written for relPath
// keeps a move pointer. Two cases: relPath is itself a recorded move source
// (its layer carries moved_to), or relPath is a move destination some other
// record points at. Malformed or orphaned pointers are not fatal; they
// degrade to an ordinary delete and are logged.
func (c *Context) moveLinkageForDelete(relPath string) (*moveLinkage, error) {
	layers, err := c.DB.ReadLayers(relPath)
	if err != nil {
		return nil, err
	}
	for _, l := range layers {
		if l.MovedTo == "" {
			continue
		}
		depth, err := c.Moves.DestinationMoveDepth(l.MovedTo, l.OpDepth)
		if err != nil {
			return nil, err
		}
		if depth >= 0 {
			// The destination still claims this origin; the tombstone
			// preserves the linkage.
			return &moveLinkage{preserveMovedTo: l.MovedTo}, nil
		}
		glog.Warningf("move pointer %s@%d -> %s no longer claimed, severing",
			relPath, l.OpDepth, l.MovedTo)
	}

	// Deleting a move destination severs the inbound move: the source
	// becomes an ordinary delete.
	binding, err := c.Moves.MovedFromForDelete(relPath)
	if err != nil {
		return nil, err
	}
	if binding != nil {
		return &moveLinkage{severSrc: binding.SrcRelPath, severSrcDepth: binding.SrcOpDepth}, nil
	}
	return nil, nil
}

// opDelete writes the delete tombstones for relPath and its tracked
// descendants, and applies any move-linkage adjustment, in one transaction.
// Lower layers are retained; they carry the information needed to undo the
// operation.
func (c *Context) opDelete(relPath string, linkage *moveLinkage, keepLocal bool) error {
	descendants, err := c.DB.Descendants(relPath)
	if err != nil {
		return err
	}
	// The tombstones must shadow every layer in the subtree, so the depth is
	// derived from the deepest stack among the root and its descendants: a
	// replaced descendant carries layers deeper than the root's own.
	maxDepth, err := c.subtreeMaxOpDepth(relPath, descendants)
	if err != nil {
		return err
	}
	newDepth := maxDepth + 1
	if newDepth < 1 {
		newDepth = 1
	}

	tx, err := c.DB.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	movedTo := ""
	if linkage != nil {
		movedTo = linkage.preserveMovedTo
		if linkage.severSrc != "" {
			srcLayers, err := c.DB.ReadLayers(linkage.severSrc)
			if err != nil {
				return err
			}
			for _, l := range srcLayers {
				if l.OpDepth == linkage.severSrcDepth && l.MovedTo != "" {
					l.MovedTo = ""
					if err := c.DB.WriteLayer(tx, l); err != nil {
						return err
					}
				}
			}
		}
	}

	tombstone := func(p string, movedTo string) error {
		layers, err := c.DB.ReadLayers(p)
		if err != nil {
			return err
		}
		if len(layers) == 0 {
			return nil
		}
		deepest := layers[len(layers)-1]
		return c.DB.WriteLayer(tx, &wcdb.NodeRecord{
			RelPath:  p,
			OpDepth:  newDepth,
			Kind:     deepest.Kind,
			Presence: wcdb.Deleted,
			MovedTo:  movedTo,
		})
	}

	if err := tombstone(relPath, movedTo); err != nil {
		return err
	}
	for _, d := range descendants {
		if err := tombstone(d, ""); err != nil {
			return err
		}
	}

	if !keepLocal {
		for _, p := range append([]string{relPath}, descendants...) {
			if err := c.DB.DeleteActual(tx, p); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

// subtreeMaxOpDepth returns the greatest op depth stored anywhere in the
// subtree rooted at relPath, or -1 when nothing is tracked.
func (c *Context) subtreeMaxOpDepth(relPath string, descendants []string) (int, error) {
	maxDepth, err := c.DB.MaxOpDepth(relPath)
	if err != nil {
		return -1, err
	}
	for _, d := range descendants {
		depth, err := c.DB.MaxOpDepth(d)
		if err != nil {
			return -1, err
		}
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth, nil
}
