package ops

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"trak/internal/notify"
	"trak/internal/status"
	"trak/internal/wcdb"
	"trak/internal/wcerr"
)

// Copy copies a versioned path to a new location inside the same working
// copy, carrying its history reference (revision, checksum, properties)
// into the destination's added layer.
func Copy(ctx context.Context, c *Context, src, dst string) error {
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

	if err := c.checkCopySource(srcRel); err != nil {
		return err
	}
	if err := c.checkCopyDestination(dstRel); err != nil {
		return err
	}
	// Store transition first, disk second, as Move does: a failure here
	// leaves no unrecorded on-disk copy behind.
	if err := c.copyLayers(ctx, srcRel, dstRel, false); err != nil {
		return err
	}
	if err := c.copyOnDisk(srcRel, dstRel); err != nil {
		return err
	}
	notify.Path(c.Notify, dstRel, notify.ActionCopied)
	return nil
}

func (c *Context) checkCopySource(srcRel string) error {
	st, err := c.resolve(srcRel)
	if err != nil {
		return err
	}
	switch st.Code {
	case status.StatusNormal, status.StatusAdded, status.StatusReplaced:
		return nil
	default:
		return wcerr.New(wcerr.InvalidState, srcRel,
			"has status %s and cannot be copied", st.Code)
	}
}

func (c *Context) checkCopyDestination(dstRel string) error {
	if dstRel == "" {
		return wcerr.New(wcerr.InvalidState, dstRel, "cannot copy over the working copy root")
	}
	layers, err := c.DB.ReadLayers(dstRel)
	if err != nil {
		return err
	}
	if len(layers) > 0 {
		deepest := layers[len(layers)-1]
		if deepest.Presence != wcdb.Deleted && deepest.Presence != wcdb.NotPresent {
			return wcerr.New(wcerr.InvalidState, dstRel, "already exists in the store")
		}
	}
	if _, err := os.Lstat(c.AbsPath(dstRel)); err == nil {
		return wcerr.New(wcerr.InvalidState, dstRel, "already exists on disk")
	}
	if err := c.checkParentVersioned(dstRel); err != nil {
		return err
	}
	return nil
}

// copyLayers writes added layers for dst mirroring the effective state of
// src and its descendants, in one transaction. When movedHere is set the
// destination records are marked as populated by a move.
func (c *Context) copyLayers(ctx context.Context, srcRel, dstRel string, movedHere bool) error {
	paths := []string{srcRel}
	descendants, err := c.DB.Descendants(srcRel)
	if err != nil {
		return err
	}
	paths = append(paths, descendants...)

	dstDepth, err := c.nextOpDepth(dstRel)
	if err != nil {
		return err
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
			// Deleted or absent below the copy root: no record to carry.
			continue
		}
		target := dstRel + p[len(srcRel):]
		if err := c.DB.WriteLayer(tx, &wcdb.NodeRecord{
			RelPath:   target,
			OpDepth:   dstDepth,
			Kind:      st.Kind,
			Presence:  wcdb.Added,
			Revision:  st.Revision,
			Checksum:  st.Checksum,
			MovedHere: movedHere && p == srcRel,
		}); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (c *Context) nextOpDepth(relPath string) (int, error) {
	maxDepth, err := c.DB.MaxOpDepth(relPath)
	if err != nil {
		return 0, err
	}
	if maxDepth < 0 {
		return 1, nil
	}
	return maxDepth + 1, nil
}

func (c *Context) copyOnDisk(srcRel, dstRel string) error {
	src := c.AbsPath(srcRel)
	dst := c.AbsPath(dstRel)
	info, err := os.Lstat(src)
	if err != nil {
		return wcerr.Wrap(wcerr.IOFailure, srcRel, err)
	}
	if info.IsDir() {
		return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			rel, err := filepath.Rel(src, path)
			if err != nil {
				return err
			}
			target := filepath.Join(dst, rel)
			if info.IsDir() {
				return os.MkdirAll(target, info.Mode())
			}
			return copyFile(path, target, info.Mode())
		})
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return wcerr.Wrap(wcerr.IOFailure, dstRel, err)
	}
	return copyFile(src, dst, info.Mode())
}

func copyFile(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
