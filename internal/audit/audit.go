// Package audit keeps the append-only lifecycle trail. The whole log lives in
// a single KV record so it can expire and be wiped as one unit; the event
// ring is count-capped with the oldest entries evicted first.
package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/relevohq/relevo/internal/models"
	"github.com/relevohq/relevo/internal/store"
)

const logKey = "audit:log"

// Defaults match a week of retention on a busy ward.
const (
	DefaultTTL       = 168 * time.Hour
	DefaultMaxEvents = 500
	DefaultDetailMax = 160
)

type Config struct {
	TTL       time.Duration
	MaxEvents int
	DetailMax int
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.MaxEvents <= 0 {
		c.MaxEvents = DefaultMaxEvents
	}
	if c.DetailMax <= 0 {
		c.DetailMax = DefaultDetailMax
	}
	return c
}

// storedLog is the single at-rest record. CreatedAt anchors the whole-log
// TTL: once it passes, the log is deleted as a unit, events and all.
type storedLog struct {
	CreatedAt time.Time           `json:"created_at"`
	Events    []models.AuditEvent `json:"events"`
}

// Log is the append-only audit trail. Writes are best-effort: a failing
// backing store degrades to a warning, never an error surfaced to the caller
// of the lifecycle operation being audited.
type Log struct {
	mu  sync.Mutex
	kv  store.KV
	cfg Config
	log *logrus.Entry
	now func() time.Time
}

func New(kv store.KV, cfg Config, log *logrus.Entry) *Log {
	return &Log{kv: kv, cfg: cfg.withDefaults(), log: log, now: time.Now}
}

// WithClock replaces the time source for accelerated-TTL tests.
func (l *Log) WithClock(now func() time.Time) *Log {
	l.now = now
	return l
}

// Append records one lifecycle event. Detail is sanitized before storage so
// unbounded or unsafe text can never leak into an exportable log. Returns
// false when the backing store rejected the write.
func (l *Log) Append(ctx context.Context, action models.AuditAction, sessionID, detail string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	stored, ok := l.load(ctx)
	if !ok {
		stored = storedLog{CreatedAt: l.now().UTC()}
	}

	stored.Events = append(stored.Events, models.AuditEvent{
		ID:        uuid.NewString(),
		At:        l.now().UTC(),
		Action:    action,
		SessionID: sessionID,
		Detail:    SanitizeDetail(detail, l.cfg.DetailMax),
	})
	if over := len(stored.Events) - l.cfg.MaxEvents; over > 0 {
		stored.Events = stored.Events[over:]
	}

	if err := l.kv.SetJSON(ctx, logKey, stored); err != nil {
		if l.log != nil {
			l.log.WithError(err).Warn("audit append failed, event dropped")
		}
		return false
	}
	return true
}

// Events returns the current trail, oldest first. An expired log reads empty.
func (l *Log) Events(ctx context.Context) []models.AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	stored, ok := l.load(ctx)
	if !ok {
		return []models.AuditEvent{}
	}
	return append([]models.AuditEvent{}, stored.Events...)
}

// ExpireIfDue wipes the whole log once its TTL has elapsed. Idempotent; the
// janitor may call it redundantly.
func (l *Log) ExpireIfDue(ctx context.Context) (wiped bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var stored storedLog
	hit, err := l.kv.GetJSON(ctx, logKey, &stored)
	if err != nil || !hit {
		return false
	}
	if l.now().Before(stored.CreatedAt.Add(l.cfg.TTL)) {
		return false
	}
	if err := l.kv.Del(ctx, logKey); err != nil {
		if l.log != nil {
			l.log.WithError(err).Warn("audit expiry delete failed")
		}
		return false
	}
	return true
}

// Reset deletes the trail immediately, for the purge-all flow.
func (l *Log) Reset(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.kv.Del(ctx, logKey); err != nil && l.log != nil {
		l.log.WithError(err).Warn("audit reset failed")
	}
}

// load reads the stored log, applying the whole-unit TTL on read.
func (l *Log) load(ctx context.Context) (storedLog, bool) {
	var stored storedLog
	hit, err := l.kv.GetJSON(ctx, logKey, &stored)
	if err != nil || !hit {
		return storedLog{}, false
	}
	if !l.now().Before(stored.CreatedAt.Add(l.cfg.TTL)) {
		_ = l.kv.Del(ctx, logKey)
		return storedLog{}, false
	}
	return stored, true
}
