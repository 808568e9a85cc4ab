// Package privacy owns the live-session reveal/lock/purge lifecycle. Field
// and session states are derived from recorded instants at read time, the
// same check-on-read rule the vault applies, so redundant sweeps can never
// double-fire and accelerated-duration tests stay deterministic.
package privacy

import (
	"sync"
	"time"

	"github.com/relevohq/relevo/internal/models"
)

type FieldState string

const (
	FieldHidden   FieldState = "hidden"
	FieldRevealed FieldState = "revealed"
)

type SessionState string

const (
	SessionActive SessionState = "active"
	SessionLocked SessionState = "locked"
	SessionPurged SessionState = "purged"
)

// Config carries the three lifecycle timers plus the reveal-hold gate. All
// four are independently tunable; tests run them at millisecond scale.
type Config struct {
	RevealHold   time.Duration // minimum sustained press before a field reveals
	RevealWindow time.Duration // how long a revealed field stays visible
	AutoLock     time.Duration // idle time before the whole view locks
	Purge        time.Duration // elapsed time before live state is torn down
}

func (c Config) withDefaults() Config {
	if c.RevealHold <= 0 {
		c.RevealHold = 600 * time.Millisecond
	}
	if c.RevealWindow <= 0 {
		c.RevealWindow = 10 * time.Second
	}
	if c.AutoLock <= 0 {
		c.AutoLock = 2 * time.Minute
	}
	if c.Purge <= 0 {
		c.Purge = 10 * time.Minute
	}
	return c
}

type fieldState struct {
	pressStart time.Time
	pressed    bool
	revealedAt time.Time
	revealed   bool
}

// Session is the mutable live view of one handoff. The structured result it
// holds is the only in-memory copy of identifying data; Purge discards it
// outright rather than merely hiding it.
type Session struct {
	mu sync.Mutex

	id  string
	cfg Config
	now func() time.Time

	result   *models.PipelineResult
	segments int
	fields   map[string]*fieldState
	started  time.Time
	lastSeen time.Time
	locked   bool
	purged   bool
}

func newSession(id string, result models.PipelineResult, segments int, cfg Config, now func() time.Time) *Session {
	t := now()
	return &Session{
		id:       id,
		cfg:      cfg,
		now:      now,
		result:   &result,
		segments: segments,
		fields:   make(map[string]*fieldState),
		started:  t,
		lastSeen: t,
	}
}

func (s *Session) ID() string { return s.id }

// PressStart begins a sustained-press gesture on an identifying field. It
// never reveals by itself; the gesture completes in PressEnd.
func (s *Session) PressStart(field string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	if s.locked || s.purged {
		return
	}
	f := s.field(field)
	f.pressed = true
	f.pressStart = s.now()
	s.lastSeen = s.now()
}

// PressEnd completes the gesture. The field transitions to Revealed only when
// the press was held for at least the configured minimum; an early release
// cancels and the field stays Hidden.
func (s *Session) PressEnd(field string) FieldState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	if s.locked || s.purged {
		return FieldHidden
	}
	f := s.field(field)
	if !f.pressed {
		return s.fieldStateLocked(f)
	}
	held := s.now().Sub(f.pressStart)
	f.pressed = false
	s.lastSeen = s.now()
	if held < s.cfg.RevealHold {
		return FieldHidden
	}
	f.revealed = true
	f.revealedAt = s.now()
	return FieldRevealed
}

// Reveal performs the whole gesture with a caller-reported hold duration, for
// boundaries that cannot stream press events (the HTTP surface).
func (s *Session) Reveal(field string, held time.Duration) FieldState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	if s.locked || s.purged {
		return FieldHidden
	}
	s.lastSeen = s.now()
	if held < s.cfg.RevealHold {
		return FieldHidden
	}
	f := s.field(field)
	f.revealed = true
	f.revealedAt = s.now()
	return FieldRevealed
}

// FieldState reports a field's current state, applying the reveal-window
// expiry lazily.
func (s *Session) FieldState(field string) FieldState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	f, ok := s.fields[field]
	if !ok {
		return FieldHidden
	}
	return s.fieldStateLocked(f)
}

func (s *Session) fieldStateLocked(f *fieldState) FieldState {
	if s.locked || s.purged || !f.revealed {
		return FieldHidden
	}
	if s.now().Sub(f.revealedAt) >= s.cfg.RevealWindow {
		f.revealed = false
		return FieldHidden
	}
	return FieldRevealed
}

// State reports the session-level overlay state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	switch {
	case s.purged:
		return SessionPurged
	case s.locked:
		return SessionLocked
	default:
		return SessionActive
	}
}

// Unlock clears the Locked overlay. Fields come back Hidden, never Revealed.
func (s *Session) Unlock() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	if s.purged {
		return
	}
	s.locked = false
	s.lastSeen = s.now()
	for _, f := range s.fields {
		f.revealed = false
		f.pressed = false
	}
}

// Purge is the hard teardown: live structured state is discarded so no
// identifying data lingers in process memory. Irreversible for the session.
func (s *Session) Purge() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.purgeLocked()
}

func (s *Session) purgeLocked() {
	s.result = nil
	s.segments = 0
	s.fields = make(map[string]*fieldState)
	s.purged = true
	s.locked = true
}

// refresh applies lock/purge deadlines from recorded instants. Callers hold
// the mutex.
func (s *Session) refresh() {
	if s.purged {
		return
	}
	now := s.now()
	if now.Sub(s.started) >= s.cfg.Purge {
		s.purgeLocked()
		return
	}
	if !s.locked && now.Sub(s.lastSeen) >= s.cfg.AutoLock {
		s.locked = true
	}
}

func (s *Session) field(name string) *fieldState {
	f, ok := s.fields[name]
	if !ok {
		f = &fieldState{}
		s.fields[name] = f
	}
	return f
}

// Snapshot is the de-identified live view handed to the hosting UI. Counts
// drop to zero after a purge; identifying tokens appear only for fields
// currently Revealed.
type Snapshot struct {
	SessionID    string                `json:"session_id"`
	State        SessionState          `json:"state"`
	PatientCount int                   `json:"patient_count"`
	SegmentCount int                   `json:"segment_count"`
	Patients     []models.PatientCard  `json:"patients,omitempty"`
	GlobalTop    []models.GlobalTopItem `json:"global_top,omitempty"`
}

// Snapshot renders the current view. Hidden identifying fields are blanked
// from the copy, never from the underlying result.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()

	snap := Snapshot{SessionID: s.id}
	switch {
	case s.purged:
		snap.State = SessionPurged
		return snap
	case s.locked:
		snap.State = SessionLocked
		return snap
	}
	snap.State = SessionActive
	snap.SegmentCount = s.segments
	if s.result == nil {
		return snap
	}
	snap.PatientCount = len(s.result.Patients)
	snap.GlobalTop = append([]models.GlobalTopItem(nil), s.result.GlobalTop...)
	snap.Patients = make([]models.PatientCard, 0, len(s.result.Patients))
	for _, p := range s.result.Patients {
		cp := p
		if s.fieldStateView(p.PatientKey+":alias") != FieldRevealed {
			cp.AliasToken = ""
		}
		if s.fieldStateView(p.PatientKey+":room") != FieldRevealed {
			cp.RoomToken = ""
		}
		snap.Patients = append(snap.Patients, cp)
	}
	return snap
}

func (s *Session) fieldStateView(name string) FieldState {
	f, ok := s.fields[name]
	if !ok {
		return FieldHidden
	}
	return s.fieldStateLocked(f)
}

// Result returns a copy of the live structured state, or false after a purge.
func (s *Session) Result() (models.PipelineResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh()
	if s.result == nil {
		return models.PipelineResult{}, false
	}
	return s.result.Clone(), true
}
