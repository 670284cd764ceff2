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

// AddOpts configures the add driver.
type AddOpts struct {
	// NoIgnore schedules paths even when they match ignore patterns.
	NoIgnore bool
}

// Add schedules targets for addition. Directories are added recursively.
// Like delete, targets are independent: earlier targets stay committed when
// a later one fails.
func Add(ctx context.Context, c *Context, targets []string, opts AddOpts) error {
	for _, target := range targets {
		if err := ctx.Err(); err != nil {
			return err
		}
		relPath, err := c.RelPath(target)
		if err != nil {
			return err
		}
		if err := c.addOne(ctx, relPath, opts); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) addOne(ctx context.Context, relPath string, opts AddOpts) error {
	if err := c.acquireWrite(); err != nil {
		return err
	}
	defer c.releaseWrite()

	if relPath == "" {
		return wcerr.New(wcerr.InvalidState, relPath,
			"is the root of a working copy and is already versioned")
	}
	info, err := os.Lstat(c.AbsPath(relPath))
	if err != nil {
		return wcerr.New(wcerr.NotFound, relPath, "no such path on disk")
	}
	if err := c.checkParentVersioned(relPath); err != nil {
		return err
	}

	if info.IsDir() {
		return c.addTree(ctx, relPath, opts)
	}
	return c.addPath(relPath, wcdb.KindFile)
}

// checkParentVersioned requires the parent to be tracked and not deleted.
func (c *Context) checkParentVersioned(relPath string) error {
	parent := ""
	if i := len(relPath) - len(filepath.Base(relPath)) - 1; i > 0 {
		parent = relPath[:i]
	}
	st, err := c.resolve(parent)
	if err != nil {
		return wcerr.New(wcerr.NotFound, parent, "parent is not under version control")
	}
	switch st.Code {
	case status.StatusNormal, status.StatusAdded, status.StatusReplaced:
		return nil
	default:
		return wcerr.New(wcerr.InvalidState, parent,
			"parent has status %s and cannot receive additions", st.Code)
	}
}

func (c *Context) addTree(ctx context.Context, relPath string, opts AddOpts) error {
	if err := c.addPath(relPath, wcdb.KindDir); err != nil {
		return err
	}
	root := c.AbsPath(relPath)
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(c.WorkDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == relPath {
			return nil
		}
		if !opts.NoIgnore && c.Ignore.Match(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		kind := wcdb.KindFile
		if info.IsDir() {
			kind = wcdb.KindDir
		}
		if err := c.addPath(rel, kind); err != nil {
			if wcerr.Is(err, wcerr.InvalidState) {
				// Already versioned: fine during a recursive add.
				notify.Path(c.Notify, rel, notify.ActionSkipped)
				return nil
			}
			return err
		}
		return nil
	})
}

// addPath writes one added layer. A tombstoned path gains an added layer
// above its tombstone and resolves as replaced.
func (c *Context) addPath(relPath string, kind wcdb.Kind) error {
	layers, err := c.DB.ReadLayers(relPath)
	if err != nil {
		return err
	}
	newDepth := 1
	if len(layers) > 0 {
		deepest := layers[len(layers)-1]
		switch deepest.Presence {
		case wcdb.Deleted, wcdb.NotPresent:
			newDepth = deepest.OpDepth + 1
		default:
			return wcerr.New(wcerr.InvalidState, relPath, "is already under version control")
		}
	}

	tx, err := c.DB.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := c.DB.WriteLayer(tx, &wcdb.NodeRecord{
		RelPath:  relPath,
		OpDepth:  newDepth,
		Kind:     kind,
		Presence: wcdb.Added,
	}); err != nil {
		return err
	}
	if cl := c.Config.ChangelistFor(relPath); cl != "" {
		actual, err := c.DB.ReadActual(relPath)
		if err != nil {
			return err
		}
		if actual == nil {
			actual = &wcdb.ActualNode{RelPath: relPath}
		}
		actual.Changelist = cl
		if err := c.DB.SetActual(tx, actual); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	notify.Path(c.Notify, relPath, notify.ActionAdded)
	return nil
}
