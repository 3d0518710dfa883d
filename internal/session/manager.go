package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager creates session controllers and evicts idle ones.
type Manager struct {
	sessions *Store
	deps     Deps
	ttl      time.Duration
	limit    int
	log      *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager returns a Manager that keeps at most limit sessions.
// A non-positive limit means no cap.
func NewManager(deps Deps, ttl time.Duration, limit int, log *slog.Logger) *Manager {
	return &Manager{
		sessions: NewStore(ttl),
		deps:     deps,
		ttl:      ttl,
		limit:    limit,
		log:      log,
	}
}

// Start launches the idle-session cleanup loop.
func (m *Manager) Start(ctx context.Context) {
	loopCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(cleanupInterval(m.ttl))
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				if n := m.sessions.Cleanup(); n > 0 {
					m.log.Info("expired idle sessions", "count", n, "live", m.sessions.Len())
				}
			}
		}
	}()
}

// Stop ends the cleanup loop and closes every session.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.sessions.CloseAll()
}

// New creates and registers a session with a fresh id.
func (m *Manager) New() *Controller {
	c := NewController(uuid.NewString(), m.deps, m.log)
	if evicted := m.sessions.Add(c, m.limit); evicted != nil {
		m.log.Warn("session limit reached, evicted oldest", "session_id", evicted.ID, "limit", m.limit)
	}
	m.log.Info("session created", "session_id", c.ID)
	return c
}

// IdleSnapshot is what a caller without a session sees.
func (m *Manager) IdleSnapshot() Snapshot {
	return IdleSnapshot(m.deps.Gate)
}

// Get returns the session with the given id, or nil.
func (m *Manager) Get(id string) *Controller {
	return m.sessions.Get(id)
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	return m.sessions.Len()
}

func cleanupInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/2, time.Second), 5*time.Minute)
}
