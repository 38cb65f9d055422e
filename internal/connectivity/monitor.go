// Package connectivity is the single source of truth for whether the
// remote store is reachable. Monitors report the current state and emit
// one event per genuine edge; flapping faster than the debounce window
// does not storm the reconciler.
package connectivity

import "sync"

type Monitor interface {
	Online() bool
	// Events delivers state edges. The channel is buffered and edges
	// coalesce: a pending unread event absorbs newer ones, and the
	// consumer reads Online() for the current truth.
	Events() <-chan bool
}

// Manual is a monitor driven by the embedding application (or tests):
// the UI layer flips it when the platform reports connectivity changes.
type Manual struct {
	mu     sync.Mutex
	online bool
	events chan bool
}

func NewManual(online bool) *Manual {
	return &Manual{online: online, events: make(chan bool, 1)}
}

func (m *Manual) Online() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

func (m *Manual) Events() <-chan bool {
	return m.events
}

// SetOnline records a transition and emits an edge event if the state
// actually changed.
func (m *Manual) SetOnline(online bool) {
	m.mu.Lock()
	if m.online == online {
		m.mu.Unlock()
		return
	}
	m.online = online
	m.mu.Unlock()

	select {
	case m.events <- online:
	default:
		// An unread edge is still pending; the consumer will read the
		// current state when it gets to it.
	}
}
