package engine

import "sync"

// StatusTracker holds the per-entity sync state machine. Entities without an
// explicit entry are synced. Observers are notified on every transition.
type StatusTracker struct {
	mu       sync.RWMutex
	byID     map[string]Status
	onChange func(id string, s Status)
}

func NewStatusTracker(onChange func(id string, s Status)) *StatusTracker {
	return &StatusTracker{
		byID:     make(map[string]Status),
		onChange: onChange,
	}
}

func (t *StatusTracker) Get(id string) Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if s, ok := t.byID[id]; ok {
		return s
	}
	return StatusSynced
}

func (t *StatusTracker) Set(id string, s Status) {
	t.mu.Lock()
	prev, had := t.byID[id]
	if had && prev == s {
		t.mu.Unlock()
		return
	}
	if s == StatusSynced {
		delete(t.byID, id)
	} else {
		t.byID[id] = s
	}
	cb := t.onChange
	t.mu.Unlock()

	if cb != nil && (had || s != StatusSynced) {
		cb(id, s)
	}
}

// Forget drops the entry without reporting a transition. Used when an entity
// leaves the cache entirely.
func (t *StatusTracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.byID, id)
}

// Unsynced returns every entity currently not in the synced state.
func (t *StatusTracker) Unsynced() map[string]Status {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]Status, len(t.byID))
	for id, s := range t.byID {
		out[id] = s
	}
	return out
}
