package ra

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"trak/internal/wcdb"
	"trak/internal/wcerr"
)

// LocalSession serves a plain directory tree as a read-only repository at a
// single revision. It backs checkout from local exports and the test suite.
type LocalSession struct {
	root     string
	revision int64

	mu    sync.Mutex
	locks map[string]bool
}

// OpenLocal opens root as a repository exposing revision 1.
func OpenLocal(root string) (*LocalSession, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, wcerr.Wrap(wcerr.IOFailure, root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}
	return &LocalSession{root: abs, revision: 1, locks: make(map[string]bool)}, nil
}

// URL returns the session's root location.
func (s *LocalSession) URL() string {
	return "file://" + s.root
}

func (s *LocalSession) LatestRevision() (int64, error) {
	return s.revision, nil
}

func (s *LocalSession) CheckPath(path string, revision int64) (wcdb.Kind, error) {
	info, err := os.Lstat(s.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return wcdb.KindUnknown, nil
		}
		return wcdb.KindUnknown, wcerr.Wrap(wcerr.IOFailure, path, err)
	}
	return kindOf(info), nil
}

func (s *LocalSession) GetFile(path string, revision int64) ([]byte, map[string]string, error) {
	content, err := os.ReadFile(s.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, wcerr.New(wcerr.NotFound, path, "no such file in repository")
		}
		return nil, nil, wcerr.Wrap(wcerr.IOFailure, path, err)
	}
	return content, map[string]string{}, nil
}

func (s *LocalSession) GetDir(path string, revision int64) ([]DirEntry, error) {
	entries, err := os.ReadDir(s.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, wcerr.New(wcerr.NotFound, path, "no such directory in repository")
		}
		return nil, wcerr.Wrap(wcerr.IOFailure, path, err)
	}
	var result []DirEntry
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return nil, wcerr.Wrap(wcerr.IOFailure, path, err)
		}
		result = append(result, DirEntry{Name: e.Name(), Kind: kindOf(info), Size: info.Size()})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (s *LocalSession) Log(startRev, endRev int64, fn LogFunc) error {
	if startRev > s.revision {
		return nil
	}
	return fn(LogEntry{Revision: s.revision, Author: "local", Message: "imported tree"})
}

// Update drives editor with the full tree; a local export has no history to
// diff against.
func (s *LocalSession) Update(revision int64, target string, reporter func(Reporter) error, editor Editor) error {
	if reporter != nil {
		if err := reporter(discardReporter{}); err != nil {
			return err
		}
	}
	if err := editor.OpenRoot(s.revision); err != nil {
		return err
	}
	if err := s.sendTree(target, editor); err != nil {
		editor.AbortEdit()
		return err
	}
	_, err := editor.CloseEdit()
	return err
}

func (s *LocalSession) sendTree(dir string, editor Editor) error {
	entries, err := s.GetDir(dir, s.revision)
	if err != nil {
		return err
	}
	for _, e := range entries {
		child := e.Name
		if dir != "" {
			child = dir + "/" + e.Name
		}
		switch e.Kind {
		case wcdb.KindDir:
			if err := editor.AddDir(child); err != nil {
				return err
			}
			if err := s.sendTree(child, editor); err != nil {
				return err
			}
		case wcdb.KindFile:
			content, props, err := s.GetFile(child, s.revision)
			if err != nil {
				return err
			}
			if err := editor.AddFile(child, content, props); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *LocalSession) GetCommitEditor(message string) (Editor, error) {
	return nil, wcerr.New(wcerr.InvalidState, s.root, "local sessions are read-only")
}

func (s *LocalSession) Lock(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[path] {
		return wcerr.New(wcerr.InvalidState, path, "path is already locked")
	}
	s.locks[path] = true
	return nil
}

func (s *LocalSession) Unlock(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.locks[path] {
		return wcerr.New(wcerr.InvalidState, path, "path is not locked")
	}
	delete(s.locks, path)
	return nil
}

func (s *LocalSession) Close() error {
	return nil
}

func (s *LocalSession) abs(path string) string {
	return filepath.Join(s.root, filepath.FromSlash(path))
}

func kindOf(info os.FileInfo) wcdb.Kind {
	switch {
	case info.IsDir():
		return wcdb.KindDir
	case info.Mode()&os.ModeSymlink != 0:
		return wcdb.KindSymlink
	case info.Mode().IsRegular():
		return wcdb.KindFile
	default:
		return wcdb.KindUnknown
	}
}

type discardReporter struct{}

func (discardReporter) SetPath(path string, revision int64) error { return nil }
func (discardReporter) DeletePath(path string) error              { return nil }
func (discardReporter) FinishReport() error                       { return nil }
