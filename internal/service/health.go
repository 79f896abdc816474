package service

import "sync/atomic"

// ModelHealth remembers the outcome of the most recent provider call so
// the health endpoint can report availability without spending an
// embedding call of its own.
type ModelHealth struct {
	checked atomic.Bool
	up      atomic.Bool
}

func NewModelHealth() *ModelHealth {
	return &ModelHealth{}
}

func (h *ModelHealth) MarkUp() {
	h.checked.Store(true)
	h.up.Store(true)
}

func (h *ModelHealth) MarkDown() {
	h.checked.Store(true)
	h.up.Store(false)
}

// State reports (available, everChecked).
func (h *ModelHealth) State() (bool, bool) {
	return h.up.Load(), h.checked.Load()
}
