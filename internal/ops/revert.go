package ops

import (
	"context"
	"os"

	"trak/internal/notify"
	"trak/internal/wcdb"
	"trak/internal/wcerr"
)

// RevertOpts configures the revert driver.
type RevertOpts struct {
	// Recursive reverts the whole subtree under each target.
	Recursive bool
}

// Revert discards pending local operations: overlay layers above the base
// are dropped, uncommitted overlay state is cleared, and base content is
// restored from the pristine store. A node that was only ever added becomes
// unversioned; its on-disk content is left in place.
func Revert(ctx context.Context, c *Context, targets []string, opts RevertOpts) error {
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		relPath, err := c.RelPath(target)
		if err != nil {
			return err
		}
		if err := c.revertOne(ctx, relPath, opts); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) revertOne(ctx context.Context, relPath string, opts RevertOpts) error {
	if err := c.acquireWrite(); err != nil {
		return err
	}
	defer c.releaseWrite()

	layers, err := c.DB.ReadLayers(relPath)
	if err != nil {
		return err
	}
	if len(layers) == 0 {
		return wcerr.New(wcerr.NotFound, relPath, "path is not under version control")
	}

	paths := []string{relPath}
	if opts.Recursive {
		descendants, err := c.DB.Descendants(relPath)
		if err != nil {
			return err
		}
		paths = append(paths, descendants...)
	}

	for _, p := range paths {
		// Cancellation is honored between visits; the per-path transaction
		// below completes or rolls back before we stop.
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.revertPath(p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) revertPath(relPath string) error {
	layers, err := c.DB.ReadLayers(relPath)
	if err != nil {
		return err
	}
	if len(layers) == 0 {
		return nil
	}
	base := layers[0]
	hasBase := base.OpDepth == 0
	hadOverlay := len(layers) > 1 || !hasBase

	conflicts, err := c.Conflicts.Read(relPath)
	if err != nil {
		return err
	}

	actual, err := c.DB.ReadActual(relPath)
	if err != nil {
		return err
	}
	if !hadOverlay && actual == nil {
		// No pending operation; the working file itself may still differ
		// from base.
		restored, err := c.restoreBase(relPath, base, hasBase)
		if err != nil {
			return err
		}
		if restored {
			notify.Path(c.Notify, relPath, notify.ActionRestored)
		}
		return nil
	}

	tx, err := c.DB.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if hasBase {
		if err := c.DB.DeleteLayersAbove(tx, relPath, 0); err != nil {
			return err
		}
	} else {
		if err := c.DB.DeleteAllLayers(tx, relPath); err != nil {
			return err
		}
	}
	if err := c.DB.DeleteActual(tx, relPath); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	if conflicts != nil {
		if err := c.Conflicts.RemoveArtifacts(conflicts); err != nil {
			return err
		}
	}

	restored, err := c.restoreBase(relPath, base, hasBase)
	if err != nil {
		return err
	}
	action := notify.ActionReverted
	if restored {
		action = notify.ActionRestored
	}
	notify.Path(c.Notify, relPath, action)
	return nil
}

// restoreBase puts the base-revision content back on disk when the working
// file is missing or differs from the base checksum.
func (c *Context) restoreBase(relPath string, base *wcdb.NodeRecord, hasBase bool) (bool, error) {
	if !hasBase || base.Kind != wcdb.KindFile || base.Checksum == "" {
		if hasBase && base.Kind == wcdb.KindDir {
			if err := os.MkdirAll(c.AbsPath(relPath), 0755); err != nil {
				return false, wcerr.Wrap(wcerr.IOFailure, relPath, err)
			}
		}
		return false, nil
	}

	abs := c.AbsPath(relPath)
	if info, err := os.Lstat(abs); err == nil && !info.IsDir() {
		content, err := os.ReadFile(abs)
		if err == nil && c.DB.DigestFor(relPath, info, content) == base.Checksum {
			return false, nil
		}
	}

	content, err := c.Pristine.Read(base.Checksum)
	if err != nil {
		return false, err
	}
	if err := os.WriteFile(abs, content, 0644); err != nil {
		return false, wcerr.Wrap(wcerr.IOFailure, relPath, err)
	}
	c.DB.DropCachedDigest(relPath)
	return true, nil
}
