package ops

import (
	"context"
	"os"
	"path/filepath"

	"trak/internal/notify"
	"trak/internal/status"
	"trak/internal/wcdb"
	"trak/internal/wcerr"
)

// Move relocates a versioned path. The destination's added layer is marked
// moved_here and the source's tombstone carries moved_to, both written at
// the same op depth in the same transaction so the pairing invariant holds
// or nothing is recorded at all.
func Move(ctx context.Context, c *Context, src, dst string) error {
	srcRel, err := c.RelPath(src)
	if err != nil {
		return err
	}
	dstRel, err := c.RelPath(dst)
	if err != nil {
		return err
	}

	if err := c.acquireWrite(); err != nil {
		return err
	}
	defer c.releaseWrite()

	if c.DB.IsWCRoot(srcRel) {
		return wcerr.New(wcerr.InvalidState, srcRel,
			"is the root of a working copy and cannot be moved")
	}
	if err := c.checkCopySource(srcRel); err != nil {
		return err
	}
	if err := c.checkCopyDestination(dstRel); err != nil {
		return err
	}

	paths := []string{srcRel}
	descendants, err := c.DB.Descendants(srcRel)
	if err != nil {
		return err
	}
	paths = append(paths, descendants...)

	// Both sides record the move at one depth, chosen to shadow every layer
	// in the source subtree as well as the destination's stack.
	srcDepth, err := c.subtreeMaxOpDepth(srcRel, descendants)
	if err != nil {
		return err
	}
	dstDepth, err := c.DB.MaxOpDepth(dstRel)
	if err != nil {
		return err
	}
	moveDepth := srcDepth + 1
	if dstDepth+1 > moveDepth {
		moveDepth = dstDepth + 1
	}
	if moveDepth < 1 {
		moveDepth = 1
	}

	tx, err := c.DB.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, p := range paths {
		if err := ctx.Err(); err != nil {
			return err
		}
		st, err := c.resolve(p)
		if err != nil {
			return err
		}
		switch st.Code {
		case status.StatusNormal, status.StatusAdded, status.StatusReplaced:
		default:
			continue
		}
		target := dstRel + p[len(srcRel):]
		if err := c.DB.WriteLayer(tx, &wcdb.NodeRecord{
			RelPath:   target,
			OpDepth:   moveDepth,
			Kind:      st.Kind,
			Presence:  wcdb.Added,
			Revision:  st.Revision,
			Checksum:  st.Checksum,
			MovedHere: p == srcRel,
		}); err != nil {
			return err
		}
		movedTo := ""
		if p == srcRel {
			movedTo = dstRel
		}
		if err := c.DB.WriteLayer(tx, &wcdb.NodeRecord{
			RelPath:  p,
			OpDepth:  moveDepth,
			Kind:     st.Kind,
			Presence: wcdb.Deleted,
			MovedTo:  movedTo,
		}); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(c.AbsPath(dstRel)), 0755); err != nil {
		return wcerr.Wrap(wcerr.IOFailure, dstRel, err)
	}
	if err := os.Rename(c.AbsPath(srcRel), c.AbsPath(dstRel)); err != nil {
		return wcerr.Wrap(wcerr.IOFailure, srcRel, err)
	}
	c.DB.DropCachedDigest(srcRel)
	notify.Path(c.Notify, srcRel, notify.ActionDeleted)
	notify.Path(c.Notify, dstRel, notify.ActionMoved)
	return nil
}
