package ops

import (
	"context"
	"os"
	"path/filepath"

	"trak/internal/config"
	"trak/internal/conflict"
	"trak/internal/format"
	"trak/internal/ignore"
	"trak/internal/lock"
	"trak/internal/moves"
	"trak/internal/notify"
	"trak/internal/pristine"
	"trak/internal/ra"
	"trak/internal/wcdb"
	"trak/internal/wcerr"
)

// Checkout creates a working copy of session's tree at revision into
// workDir and returns the opened context. The administrative area is
// created at the current format.
func Checkout(ctx context.Context, session ra.Session, url, workDir string, locks *lock.Manager, fn notify.Func) (*Context, error) {
	revision, err := session.LatestRevision()
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(workDir, 0755); err != nil {
		return nil, wcerr.Wrap(wcerr.IOFailure, workDir, err)
	}
	workDir, err = filepath.Abs(workDir)
	if err != nil {
		return nil, err
	}
	adminDir := filepath.Join(workDir, AdminDirName)
	if _, err := os.Stat(adminDir); err == nil {
		return nil, wcerr.New(wcerr.InvalidState, workDir, "is already a working copy")
	}

	db, err := wcdb.Create(adminDir, url, revision)
	if err != nil {
		return nil, err
	}
	if err := format.WriteMarker(adminDir, format.Current); err != nil {
		db.Close()
		return nil, err
	}
	pris, err := pristine.Open(filepath.Join(adminDir, PristineDirName))
	if err != nil {
		db.Close()
		return nil, err
	}

	c := &Context{
		WorkDir:   workDir,
		AdminDir:  adminDir,
		DB:        db,
		Conflicts: conflict.NewStore(db, filepath.Join(adminDir, ConflictDirName)),
		Pristine:  pris,
		Moves:     moves.NewTracker(db),
		Config:    &config.Config{},
		Ignore:    ignore.NewMatcher(nil),
		Locks:     locks,
		Owner:     lock.NewOwner(),
		Notify:    fn,
	}

	notify.Send(fn, notify.Event{Action: notify.ActionCheckoutStarted, Revision: revision, Progress: 0})
	if err := c.populate(ctx, session, revision); err != nil {
		c.Close()
		return nil, err
	}
	notify.Send(fn, notify.Event{Action: notify.ActionCheckoutDone, Revision: revision, Progress: 1})
	return c, nil
}

// populate fills the base layer from the repository via one update-style
// exchange, then records every node in a single transaction.
func (c *Context) populate(ctx context.Context, session ra.Session, revision int64) error {
	ed := &checkoutEditor{ctx: ctx, c: c, revision: revision}
	if err := session.Update(revision, "", nil, ed); err != nil {
		return err
	}

	tx, err := c.DB.BeginTx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := c.DB.WriteLayer(tx, &wcdb.NodeRecord{
		RelPath:  "",
		OpDepth:  0,
		Kind:     wcdb.KindDir,
		Presence: wcdb.Normal,
		Revision: revision,
	}); err != nil {
		return err
	}
	for _, rec := range ed.records {
		if err := c.DB.WriteLayer(tx, rec); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	for _, rec := range ed.records {
		notify.Send(c.Notify, notify.Event{
			Path:     rec.RelPath,
			Action:   notify.ActionAdded,
			Revision: revision,
			Progress: -1,
		})
	}
	return nil
}

// checkoutEditor receives the repository delta, writes the working files,
// and accumulates the base records for one transaction.
type checkoutEditor struct {
	ctx      context.Context
	c        *Context
	revision int64
	records  []*wcdb.NodeRecord
}

func (e *checkoutEditor) OpenRoot(revision int64) error {
	return e.ctx.Err()
}

func (e *checkoutEditor) AddDir(path string) error {
	if err := e.ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(e.c.AbsPath(path), 0755); err != nil {
		return wcerr.Wrap(wcerr.IOFailure, path, err)
	}
	e.records = append(e.records, &wcdb.NodeRecord{
		RelPath:  path,
		OpDepth:  0,
		Kind:     wcdb.KindDir,
		Presence: wcdb.Normal,
		Revision: e.revision,
	})
	return nil
}

func (e *checkoutEditor) AddFile(path string, content []byte, props map[string]string) error {
	if err := e.ctx.Err(); err != nil {
		return err
	}
	digest, err := e.c.Pristine.Write(content)
	if err != nil {
		return err
	}
	abs := e.c.AbsPath(path)
	if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
		return wcerr.Wrap(wcerr.IOFailure, path, err)
	}
	if err := os.WriteFile(abs, content, 0644); err != nil {
		return wcerr.Wrap(wcerr.IOFailure, path, err)
	}
	e.records = append(e.records, &wcdb.NodeRecord{
		RelPath:    path,
		OpDepth:    0,
		Kind:       wcdb.KindFile,
		Presence:   wcdb.Normal,
		Revision:   e.revision,
		Checksum:   digest,
		Properties: props,
	})
	return nil
}

func (e *checkoutEditor) DeleteEntry(path string) error {
	return nil
}

func (e *checkoutEditor) CloseEdit() (int64, error) {
	return e.revision, nil
}

func (e *checkoutEditor) AbortEdit() error {
	return nil
}
