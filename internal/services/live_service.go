package services

import (
	"context"
	"encoding/json"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relevohq/relevo/internal/audit"
	"github.com/relevohq/relevo/internal/models"
	"github.com/relevohq/relevo/internal/privacy"
	"github.com/relevohq/relevo/internal/utils"
)

// EventPublisher fans live session events out to connected viewers. The Redis
// pub/sub implementation lives at the wiring layer; nil means no fan-out.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// LiveEvent is the wire shape pushed on `session:<id>:privacy` whenever a
// session's privacy state changes.
type LiveEvent struct {
	Type      string `json:"type"` // reveal|unlock|purge
	SessionID string `json:"session_id"`
	Field     string `json:"field,omitempty"`
	State     string `json:"state,omitempty"`
	At        int64  `json:"at_ms"`
}

// LiveService exposes the privacy surface of in-memory sessions: identity
// reveal behind a sustained press, lock release, and the hard per-session
// purge. All reads derive state at call time, so expired reveals and overdue
// locks are never observable.
type LiveService interface {
	View(ctx context.Context, sessionID string) (privacy.Snapshot, error)
	Result(ctx context.Context, sessionID string) (models.PipelineResult, error)
	Reveal(ctx context.Context, sessionID, field string, held time.Duration) (privacy.FieldState, error)
	Unlock(ctx context.Context, sessionID string) error
	Purge(ctx context.Context, sessionID string) error
}

type liveService struct {
	registry *privacy.Registry
	audit    *audit.Log
	events   EventPublisher
	log      *logrus.Entry
}

func NewLiveService(reg *privacy.Registry, a *audit.Log, events EventPublisher, log *logrus.Entry) LiveService {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &liveService{registry: reg, audit: a, events: events, log: log}
}

func (s *liveService) session(op, sessionID string) (*privacy.Session, error) {
	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	sess, ok := s.registry.Get(sessionID)
	if !ok {
		return nil, utils.E(utils.CodeNotFound, op, "no live session with that id", utils.ErrNotFound)
	}
	return sess, nil
}

func (s *liveService) View(_ context.Context, sessionID string) (privacy.Snapshot, error) {
	const op = "LiveService.View"

	sess, err := s.session(op, sessionID)
	if err != nil {
		return privacy.Snapshot{}, err
	}
	return sess.Snapshot(), nil
}

func (s *liveService) Result(_ context.Context, sessionID string) (models.PipelineResult, error) {
	const op = "LiveService.Result"

	sess, err := s.session(op, sessionID)
	if err != nil {
		return models.PipelineResult{}, err
	}
	result, ok := sess.Result()
	if !ok {
		return models.PipelineResult{}, utils.E(utils.CodeNotFound, op, "session already purged", utils.ErrNotFound)
	}
	return result, nil
}

// Reveal applies one press-and-hold gesture. A hold below the sustained
// threshold leaves the field hidden; the returned state is what the caller
// should render.
func (s *liveService) Reveal(ctx context.Context, sessionID, field string, held time.Duration) (privacy.FieldState, error) {
	const op = "LiveService.Reveal"

	if field == "" {
		return "", utils.E(utils.CodeInvalidArgument, op, "field is required", nil)
	}
	sess, err := s.session(op, sessionID)
	if err != nil {
		return "", err
	}

	state := sess.Reveal(field, held)
	s.publish(ctx, LiveEvent{Type: "reveal", SessionID: sessionID, Field: field, State: string(state)})
	return state, nil
}

func (s *liveService) Unlock(ctx context.Context, sessionID string) error {
	const op = "LiveService.Unlock"

	sess, err := s.session(op, sessionID)
	if err != nil {
		return err
	}
	sess.Unlock()
	s.publish(ctx, LiveEvent{Type: "unlock", SessionID: sessionID, State: string(sess.State())})
	return nil
}

// Purge is the explicit single-session memory wipe. Unlike registry sweeps,
// which audit through the registry's purge hook, the explicit path records
// the event here so the audit row carries the session id.
func (s *liveService) Purge(ctx context.Context, sessionID string) error {
	const op = "LiveService.Purge"

	sess, err := s.session(op, sessionID)
	if err != nil {
		return err
	}
	sess.Purge()
	s.registry.End(sessionID)
	s.audit.Append(ctx, models.AuditAllDataPurged, sessionID, "live session memory purged")
	s.publish(ctx, LiveEvent{Type: "purge", SessionID: sessionID, State: string(privacy.SessionPurged)})
	return nil
}

func (s *liveService) publish(ctx context.Context, ev LiveEvent) {
	if s.events == nil {
		return
	}
	ev.At = time.Now().UnixMilli()
	payload, err := json.Marshal(ev)
	if err != nil {
		return
	}
	channel := "session:" + ev.SessionID + ":privacy"
	if err := s.events.Publish(ctx, channel, payload); err != nil {
		s.log.WithFields(logrus.Fields{"session_id": ev.SessionID, "channel": channel}).
			WithError(err).Warn("failed to publish live event")
	}
}
