package ra

import (
	"sync/atomic"

	"trak/internal/wcdb"
	"trak/internal/wcerr"
)

// Guard wraps a Session and detects reentrant use. Every operation marks
// the session busy for its duration; a second operation arriving while one
// is in flight fails with ProtocolViolation. Callers must treat that as an
// assertion failure, not a condition to retry.
type Guard struct {
	inner Session
	busy  atomic.Bool
}

// NewGuard wraps session with reentrancy detection.
func NewGuard(session Session) *Guard {
	return &Guard{inner: session}
}

func (g *Guard) enter() error {
	if !g.busy.CompareAndSwap(false, true) {
		return wcerr.New(wcerr.ProtocolViolation, "",
			"repository session used while another exchange is in progress")
	}
	return nil
}

func (g *Guard) exit() {
	g.busy.Store(false)
}

func (g *Guard) LatestRevision() (int64, error) {
	if err := g.enter(); err != nil {
		return 0, err
	}
	defer g.exit()
	return g.inner.LatestRevision()
}

func (g *Guard) CheckPath(path string, revision int64) (wcdb.Kind, error) {
	if err := g.enter(); err != nil {
		return wcdb.KindUnknown, err
	}
	defer g.exit()
	return g.inner.CheckPath(path, revision)
}

func (g *Guard) GetFile(path string, revision int64) ([]byte, map[string]string, error) {
	if err := g.enter(); err != nil {
		return nil, nil, err
	}
	defer g.exit()
	return g.inner.GetFile(path, revision)
}

func (g *Guard) GetDir(path string, revision int64) ([]DirEntry, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	defer g.exit()
	return g.inner.GetDir(path, revision)
}

func (g *Guard) Log(startRev, endRev int64, fn LogFunc) error {
	if err := g.enter(); err != nil {
		return err
	}
	defer g.exit()
	return g.inner.Log(startRev, endRev, fn)
}

func (g *Guard) Update(revision int64, target string, reporter func(Reporter) error, editor Editor) error {
	if err := g.enter(); err != nil {
		return err
	}
	defer g.exit()
	return g.inner.Update(revision, target, reporter, editor)
}

func (g *Guard) GetCommitEditor(message string) (Editor, error) {
	if err := g.enter(); err != nil {
		return nil, err
	}
	defer g.exit()
	return g.inner.GetCommitEditor(message)
}

func (g *Guard) Lock(path string) error {
	if err := g.enter(); err != nil {
		return err
	}
	defer g.exit()
	return g.inner.Lock(path)
}

func (g *Guard) Unlock(path string) error {
	if err := g.enter(); err != nil {
		return err
	}
	defer g.exit()
	return g.inner.Unlock(path)
}

func (g *Guard) Close() error {
	return g.inner.Close()
}
