package privacy

import (
	"sort"
	"sync"
	"time"

	"github.com/relevohq/relevo/internal/models"
)

// Registry owns every active live session. The janitor sweeps over it instead
// of ambient global state, which is what lets tests run several concurrent
// sessions with independent clocks.
type Registry struct {
	mu       sync.RWMutex
	cfg      Config
	now      func() time.Time
	sessions map[string]*Session

	// OnPurge is invoked (outside the registry lock) whenever a sweep or an
	// explicit call tears a session down, so the caller can audit it.
	OnPurge func(sessionID string)
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

// WithClock replaces the registry time source; new sessions inherit it.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Start opens (or replaces) the live session for a completed pipeline run.
func (r *Registry) Start(sessionID string, result models.PipelineResult, segmentCount int) *Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := newSession(sessionID, result, segmentCount, r.cfg, r.now)
	r.sessions[sessionID] = s
	return s
}

func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[sessionID]
	return s, ok
}

// End tears a session down and removes it, canceling its lifecycle: a closed
// session can never lock, purge, or reveal again.
func (r *Registry) End(sessionID string) {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	delete(r.sessions, sessionID)
	r.mu.Unlock()
	if ok {
		s.Purge()
	}
}

// EndAll is the purge-all path: every live session is torn down at once.
func (r *Registry) EndAll() int {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	sessions := make([]*Session, 0, len(r.sessions))
	for id, s := range r.sessions {
		ids = append(ids, id)
		sessions = append(sessions, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.Purge()
	}
	if cb := r.OnPurge; cb != nil {
		sort.Strings(ids)
		for _, id := range ids {
			cb(id)
		}
	}
	return len(sessions)
}

// Sweep applies lock/purge deadlines across all sessions and drops the
// purged ones. Idempotent: a session already purged by a concurrent sweep is
// not counted again.
func (r *Registry) Sweep() (purged int) {
	r.mu.Lock()
	var droppedIDs []string
	for id, s := range r.sessions {
		if s.State() == SessionPurged {
			delete(r.sessions, id)
			droppedIDs = append(droppedIDs, id)
		}
	}
	r.mu.Unlock()

	if cb := r.OnPurge; cb != nil {
		sort.Strings(droppedIDs)
		for _, id := range droppedIDs {
			cb(id)
		}
	}
	return len(droppedIDs)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
