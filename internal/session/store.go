package session

import (
	"sync"
	"time"
)

// Store is a thread-safe in-memory controller registry with TTL eviction.
type Store struct {
	mu          sync.Mutex
	controllers map[string]*Controller
	ttl         time.Duration
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		controllers: make(map[string]*Controller),
		ttl:         ttl,
	}
}

func (s *Store) Put(c *Controller) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controllers[c.ID] = c
}

func (s *Store) Get(id string) *Controller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.controllers[id]
}

// Delete removes and closes the controller with the given id.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	c := s.controllers[id]
	delete(s.controllers, id)
	s.mu.Unlock()
	if c != nil {
		c.Close()
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.controllers)
}

// Add registers c. When limit is positive and already reached, the least
// recently active controller is removed and closed first, preferring ones
// with no submission in flight. Add returns the evicted controller, if any.
func (s *Store) Add(c *Controller, limit int) *Controller {
	s.mu.Lock()
	var victim *Controller
	if limit > 0 && len(s.controllers) >= limit {
		victim = s.oldestLocked()
		delete(s.controllers, victim.ID)
	}
	s.controllers[c.ID] = c
	s.mu.Unlock()

	if victim != nil {
		victim.Close()
	}
	return victim
}

func (s *Store) oldestLocked() *Controller {
	var oldest, oldestIdle *Controller
	for _, c := range s.controllers {
		last := c.LastActive()
		if oldest == nil || last.Before(oldest.LastActive()) {
			oldest = c
		}
		if !c.Busy() && (oldestIdle == nil || last.Before(oldestIdle.LastActive())) {
			oldestIdle = c
		}
	}
	if oldestIdle != nil {
		return oldestIdle
	}
	return oldest
}

// Cleanup removes and closes controllers idle for longer than the TTL.
// Controllers with a submission in flight are kept. It returns the number
// removed.
func (s *Store) Cleanup() int {
	s.mu.Lock()
	now := time.Now()
	var expired []*Controller
	for id, c := range s.controllers {
		if !c.Busy() && now.Sub(c.LastActive()) > s.ttl {
			expired = append(expired, c)
			delete(s.controllers, id)
		}
	}
	s.mu.Unlock()

	for _, c := range expired {
		c.Close()
	}
	return len(expired)
}

// CloseAll removes and closes every controller.
func (s *Store) CloseAll() {
	s.mu.Lock()
	all := s.controllers
	s.controllers = make(map[string]*Controller)
	s.mu.Unlock()
	for _, c := range all {
		c.Close()
	}
}
