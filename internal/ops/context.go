// Package ops implements the operation drivers that mediate between the
// working tree, the node layer store, and the repository session.
package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"trak/internal/config"
	"trak/internal/conflict"
	"trak/internal/format"
	"trak/internal/ignore"
	"trak/internal/lock"
	"trak/internal/moves"
	"trak/internal/notify"
	"trak/internal/pristine"
	"trak/internal/status"
	"trak/internal/wcdb"
	"trak/internal/wcerr"
)

const (
	// AdminDirName is the administrative directory at the working-copy root.
	AdminDirName = ".trak"
	// PristineDirName holds the base-revision content store.
	PristineDirName = "pristine"
	// ConflictDirName holds conflict artifact files.
	ConflictDirName = "conflicts"
)

// Context is one opened working copy. It owns the store of exactly one
// administrative root and is not shared across roots.
type Context struct {
	// WorkDir is the working-copy root on disk.
	WorkDir string
	// AdminDir is WorkDir/.trak.
	AdminDir string

	DB        *wcdb.DB
	Conflicts *conflict.Store
	Pristine  *pristine.Store
	Moves     *moves.Tracker
	Config    *config.Config
	Ignore    *ignore.Matcher

	Locks  *lock.Manager
	Owner  lock.Owner
	Notify notify.Func
}

// Open locates the administrative root containing path, runs any pending
// format upgrade, and opens the working copy.
func Open(path string, registry *format.Registry, locks *lock.Manager, fn notify.Func) (*Context, error) {
	workDir, err := findRoot(path)
	if err != nil {
		return nil, err
	}
	adminDir := filepath.Join(workDir, AdminDirName)

	db, err := registry.Open(adminDir, fn)
	if err != nil {
		return nil, err
	}
	pris, err := pristine.Open(filepath.Join(adminDir, PristineDirName))
	if err != nil {
		db.Close()
		return nil, err
	}
	cfg, err := config.Load(adminDir)
	if err != nil {
		pris.Close()
		db.Close()
		return nil, err
	}

	return &Context{
		WorkDir:   workDir,
		AdminDir:  adminDir,
		DB:        db,
		Conflicts: conflict.NewStore(db, filepath.Join(adminDir, ConflictDirName)),
		Pristine:  pris,
		Moves:     moves.NewTracker(db),
		Config:    cfg,
		Ignore:    ignore.NewMatcher(cfg.Ignore),
		Locks:     locks,
		Owner:     lock.NewOwner(),
		Notify:    fn,
	}, nil
}

// Close releases the working copy's resources.
func (c *Context) Close() error {
	c.Pristine.Close()
	return c.DB.Close()
}

// findRoot walks upward from path to the nearest directory containing an
// administrative subdirectory.
func findRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}
	if info, err := os.Stat(abs); err == nil && !info.IsDir() {
		abs = filepath.Dir(abs)
	}
	for dir := abs; ; {
		if info, err := os.Stat(filepath.Join(dir, AdminDirName)); err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", wcerr.New(wcerr.NotFound, path, "not inside a working copy")
		}
		dir = parent
	}
}

// RelPath converts an absolute or cwd-relative target into a
// slash-separated path relative to the working-copy root.
func (c *Context) RelPath(target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", fmt.Errorf("getting absolute path: %w", err)
	}
	rel, err := filepath.Rel(c.WorkDir, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", wcerr.New(wcerr.NotFound, target, "path is outside the working copy")
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// AbsPath converts a store relpath to the on-disk location.
func (c *Context) AbsPath(relPath string) string {
	return filepath.Join(c.WorkDir, filepath.FromSlash(relPath))
}

// acquireWrite takes the write lock for this administrative root. Nested
// operations in the same context reacquire it reentrantly.
func (c *Context) acquireWrite() error {
	return c.Locks.Acquire(c.AdminDir, c.Owner)
}

func (c *Context) releaseWrite() {
	// Release failures mean the lock bookkeeping is already wrong; there
	// is nothing useful to do on an exit path.
	_ = c.Locks.Release(c.AdminDir, c.Owner)
}

// resolve loads and resolves the stored status of relPath.
func (c *Context) resolve(relPath string) (*status.Status, error) {
	return status.ResolvePath(c.DB, relPath)
}
