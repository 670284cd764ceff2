package status

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"trak/internal/ignore"
	"trak/internal/wcdb"
	"trak/internal/wcerr"
)

// Walker compares the working tree against the store.
type Walker struct {
	db      *wcdb.DB
	workDir string
	ignore  *ignore.Matcher
}

// NewWalker creates a walker for the working copy rooted at workDir.
func NewWalker(db *wcdb.DB, workDir string, ign *ignore.Matcher) *Walker {
	if ign == nil {
		ign = ignore.NewMatcher(nil)
	}
	return &Walker{db: db, workDir: workDir, ignore: ign}
}

// Walk resolves the status of relPath and every tracked descendant,
// upgrading stored statuses with on-disk observations (modified, missing,
// obstructed) and appending unversioned paths found on disk. Results are
// sorted by path. The context is polled between visits; cancellation aborts
// the remaining traversal.
func (w *Walker) Walk(ctx context.Context, relPath string) ([]*Status, error) {
	targets, err := w.targets(relPath)
	if err != nil {
		return nil, err
	}

	var results []*Status
	for _, p := range targets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		st, err := ResolvePath(w.db, p)
		if err != nil {
			return nil, err
		}
		w.observeDisk(st)
		results = append(results, st)
	}

	unversioned, err := w.unversioned(ctx, relPath)
	if err != nil {
		return nil, err
	}
	results = append(results, unversioned...)

	sort.Slice(results, func(i, j int) bool {
		return results[i].RelPath < results[j].RelPath
	})
	return results, nil
}

func (w *Walker) targets(relPath string) ([]string, error) {
	layers, err := w.db.ReadLayers(relPath)
	if err != nil {
		return nil, err
	}
	if len(layers) == 0 {
		return nil, wcerr.New(wcerr.NotFound, relPath, "path is not under version control")
	}
	descendants, err := w.db.Descendants(relPath)
	if err != nil {
		return nil, err
	}
	return append([]string{relPath}, descendants...), nil
}

// observeDisk upgrades a stored-normal status with what the filesystem
// actually shows.
func (w *Walker) observeDisk(st *Status) {
	if st.Code != StatusNormal {
		return
	}
	abs := filepath.Join(w.workDir, filepath.FromSlash(st.RelPath))
	info, err := os.Lstat(abs)
	if err != nil {
		st.Code = StatusMissing
		return
	}
	switch st.Kind {
	case wcdb.KindDir:
		if !info.IsDir() {
			st.Code = StatusObstructed
		}
	case wcdb.KindFile:
		if info.IsDir() {
			st.Code = StatusObstructed
			return
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			st.Code = StatusMissing
			return
		}
		if w.db.DigestFor(st.RelPath, info, content) != st.Checksum {
			st.Code = StatusModified
		}
	}
}

// unversioned walks the on-disk tree below relPath and reports paths that
// are neither tracked nor ignored.
func (w *Walker) unversioned(ctx context.Context, relPath string) ([]*Status, error) {
	root := filepath.Join(w.workDir, filepath.FromSlash(relPath))
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, nil
	}

	var results []*Status
	err = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(w.workDir, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." || rel == relPath {
			return nil
		}
		if w.ignore.Match(rel) {
			if info.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		layers, err := w.db.ReadLayers(rel)
		if err != nil {
			return err
		}
		if len(layers) > 0 {
			return nil
		}
		kind := wcdb.KindFile
		if info.IsDir() {
			kind = wcdb.KindDir
		}
		results = append(results, &Status{RelPath: rel, Kind: kind, Code: StatusUnversioned})
		if info.IsDir() {
			// Everything below an unversioned directory is implied.
			return filepath.SkipDir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
