package ifstate

import "sync"

// Tracker holds the observation that was last applied successfully.
// All access is protected by a sync.RWMutex so status readers can run
// alongside the reconcile loop.
type Tracker struct {
	mu      sync.RWMutex
	applied Observation
}

// NewTracker returns a Tracker with no applied observation.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Changed reports whether obs differs from the applied observation.
func (t *Tracker) Changed(obs Observation) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return !t.applied.Equal(obs)
}

// Commit replaces the applied observation with a copy of obs.
func (t *Tracker) Commit(obs Observation) {
	c := obs.Clone()
	t.mu.Lock()
	t.applied = c
	t.mu.Unlock()
}

// Applied returns a copy of the applied observation.
func (t *Tracker) Applied() Observation {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.applied.Clone()
}
