// Package notify delivers per-path operation events to a caller-provided sink.
package notify

// Action tags what happened to a path.
type Action string

const (
	ActionAdded            Action = "added"
	ActionCopied           Action = "copied"
	ActionMoved            Action = "moved"
	ActionDeleted          Action = "deleted"
	ActionRestored         Action = "restored"
	ActionReverted         Action = "reverted"
	ActionUpgraded         Action = "upgraded"
	ActionConflictDetected Action = "conflict-detected"
	ActionSkipped          Action = "skipped"
	ActionCheckoutStarted  Action = "checkout-started"
	ActionCheckoutDone     Action = "checkout-done"
)

// Event is one notification for one path. Progress is a 0..1 fraction when
// the emitting driver can estimate it, or -1 when it cannot.
type Event struct {
	Path     string
	Action   Action
	Revision int64
	Progress float64
}

// Func receives events synchronously, in traversal order.
type Func func(Event)

// Send delivers ev to fn if fn is non-nil.
func Send(fn Func, ev Event) {
	if fn != nil {
		fn(ev)
	}
}

// Path sends a plain path event with no progress estimate.
func Path(fn Func, path string, action Action) {
	Send(fn, Event{Path: path, Action: action, Progress: -1})
}

// Collector accumulates events, for tests and for batch reporting.
type Collector struct {
	Events []Event
}

// Func returns a Func appending to the collector.
func (c *Collector) Func() Func {
	return func(ev Event) {
		c.Events = append(c.Events, ev)
	}
}

// Has reports whether an event for path with the given action was collected.
func (c *Collector) Has(path string, action Action) bool {
	for _, ev := range c.Events {
		if ev.Path == path && ev.Action == action {
			return true
		}
	}
	return false
}

// Paths returns the paths of all collected events with the given action.
func (c *Collector) Paths(action Action) []string {
	var paths []string
	for _, ev := range c.Events {
		if ev.Action == action {
			paths = append(paths, ev.Path)
		}
	}
	return paths
}
