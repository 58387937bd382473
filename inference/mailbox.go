// Package inference predicts recovery quality from planner solver states. Solver states arrive
// on a topic, are reduced to corridor features, fed through per-polygon-count regressors and
// the predictions are published back onto a topic.
package inference

import "sync"

// Mailbox holds at most one value. Putting a value replaces any value not yet taken.
type Mailbox[T any] struct {
	mu    sync.Mutex
	value T
	full  bool
}

// Put stores v, dropping any previous value.
func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.value = v
	m.full = true
}

// Take removes and returns the stored value. ok is false when the mailbox is empty.
func (m *Mailbox[T]) Take() (v T, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.full {
		return v, false
	}
	v = m.value
	var zero T
	m.value = zero
	m.full = false
	return v, true
}
