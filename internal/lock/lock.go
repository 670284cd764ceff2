// Package lock provides the advisory write lock guarding one administrative root.
package lock

import (
	"sync"

	"github.com/google/uuid"

	"trak/internal/wcerr"
)

// Owner identifies one logical operation context. Nested operations reuse
// their caller's owner token to reacquire the lock reentrantly.
type Owner string

// NewOwner returns a fresh owner token.
func NewOwner() Owner {
	return Owner(uuid.NewString())
}

// Manager tracks write locks keyed by administrative root path. It is
// constructed once per process and passed to the components that need it.
type Manager struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	owner Owner
	count int
}

// NewManager creates an empty lock manager.
func NewManager() *Manager {
	return &Manager{locks: make(map[string]*entry)}
}

// Acquire takes the write lock for root on behalf of owner. Reacquisition
// by the same owner succeeds and nests; acquisition while another owner
// holds the lock fails fast with ProtocolViolation instead of blocking.
func (m *Manager) Acquire(root string, owner Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, held := m.locks[root]
	if !held {
		m.locks[root] = &entry{owner: owner, count: 1}
		return nil
	}
	if e.owner != owner {
		return wcerr.New(wcerr.ProtocolViolation, root,
			"write lock held by another operation context")
	}
	e.count++
	return nil
}

// Release drops one acquisition of the lock for root. Releasing a lock the
// owner does not hold is a programming error.
func (m *Manager) Release(root string, owner Owner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, held := m.locks[root]
	if !held || e.owner != owner {
		return wcerr.New(wcerr.ProtocolViolation, root,
			"releasing a write lock that is not held by this context")
	}
	e.count--
	if e.count == 0 {
		delete(m.locks, root)
	}
	return nil
}

// Held reports whether owner currently holds the lock for root.
func (m *Manager) Held(root string, owner Owner) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, held := m.locks[root]
	return held && e.owner == owner
}
