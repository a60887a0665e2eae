package processor

import (
	"sync"

	"github.com/flowcore/runner/engine/core"
)

// ActiveSet prevents duplicate concurrent execution of the same flow
// session, even under message-bus replay (I1). A narrow interface per the
// spec's Design Notes on shared mutable state, substitutable by a fake in
// tests without touching the dispatcher.
type ActiveSet interface {
	// TryAdd inserts flowSessionID if absent, returning true on success and
	// false if it was already present.
	TryAdd(flowSessionID core.ID) bool
	Remove(flowSessionID core.ID)
	Len() int
}

type mutexActiveSet struct {
	mu   sync.Mutex
	seen map[core.ID]struct{}
}

func NewActiveSet() ActiveSet {
	return &mutexActiveSet{seen: make(map[core.ID]struct{})}
}

func (s *mutexActiveSet) TryAdd(flowSessionID core.ID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[flowSessionID]; ok {
		return false
	}
	s.seen[flowSessionID] = struct{}{}
	return true
}

func (s *mutexActiveSet) Remove(flowSessionID core.ID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, flowSessionID)
}

func (s *mutexActiveSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
