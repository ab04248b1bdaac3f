package app

import (
	"sync"
	"time"
)

// Heartbeat records when the hunter last completed a cycle. The health
// endpoint reads it to detect a stuck loop.
type Heartbeat struct {
	mu   sync.RWMutex
	last time.Time
}

// Mark records a completed cycle
func (h *Heartbeat) Mark(t time.Time) {
	h.mu.Lock()
	h.last = t
	h.mu.Unlock()
}

// Last returns the time of the most recent completed cycle, zero if none yet
func (h *Heartbeat) Last() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.last
}
