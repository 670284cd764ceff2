// Package ra defines the repository session capability consumed by the
// working-copy engine. Transports are external; this package carries the
// contract, the non-reentrancy guard, and a filesystem-backed session used
// for checkout against local repositories and for tests.
package ra

import (
	"trak/internal/wcdb"
)

// DirEntry is one entry of a repository directory listing.
type DirEntry struct {
	Name string
	Kind wcdb.Kind
	Size int64
}

// LogEntry describes one repository revision.
type LogEntry struct {
	Revision int64
	Author   string
	Message  string
	Date     int64
}

// LogFunc receives log entries oldest first.
type LogFunc func(LogEntry) error

// Reporter describes the working copy's current state to the repository at
// the start of an update-style exchange.
type Reporter interface {
	SetPath(path string, revision int64) error
	DeletePath(path string) error
	FinishReport() error
}

// Editor receives the repository's tree delta during an update-style
// exchange and at commit time.
type Editor interface {
	OpenRoot(revision int64) error
	AddDir(path string) error
	AddFile(path string, content []byte, props map[string]string) error
	DeleteEntry(path string) error
	CloseEdit() (int64, error)
	AbortEdit() error
}

// Session is one connection to a repository. A session is not reenterable:
// once a reporter/editor exchange has begun, no further operation may be
// issued until it completes. Violations are fatal programming errors, not
// recoverable conditions; see Guard.
type Session interface {
	LatestRevision() (int64, error)
	CheckPath(path string, revision int64) (wcdb.Kind, error)
	GetFile(path string, revision int64) (content []byte, props map[string]string, err error)
	GetDir(path string, revision int64) ([]DirEntry, error)
	Log(startRev, endRev int64, fn LogFunc) error
	// Update drives editor with the delta between the reported state and
	// revision under target.
	Update(revision int64, target string, reporter func(Reporter) error, editor Editor) error
	GetCommitEditor(message string) (Editor, error)
	Lock(path string) error
	Unlock(path string) error
	Close() error
}
