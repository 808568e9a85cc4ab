// Package vault is the ephemeral at-rest store for completed handoff
// sessions. Records carry their own expiry instant and are checked on every
// read, so a stale record is unreachable even between janitor sweeps.
package vault

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/relevohq/relevo/internal/models"
	"github.com/relevohq/relevo/internal/store"
	"github.com/relevohq/relevo/internal/utils"
)

const keyPrefix = "vault:session:"

const DefaultTTL = 72 * time.Hour

// Recorder receives lifecycle events the vault must leave in the audit
// trail. Satisfied by *audit.Log.
type Recorder interface {
	Append(ctx context.Context, action models.AuditAction, sessionID, detail string) bool
}

type Config struct {
	TTL time.Duration
	// SealKey, when 32 bytes long, enables AEAD sealing of payloads at rest.
	SealKey []byte
}

// storedRecord is the at-rest shape. Exactly one of Payload or Sealed is
// populated, depending on whether a seal key is configured.
type storedRecord struct {
	SessionID string          `json:"session_id"`
	CreatedAt time.Time       `json:"created_at"`
	ExpiresAt time.Time       `json:"expires_at"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Sealed    string          `json:"sealed,omitempty"`
}

type Vault struct {
	kv     store.KV
	ttl    time.Duration
	sealer *sealer
	audit  Recorder
	log    *logrus.Entry
	now    func() time.Time

	// serializes purge sweeps so racing janitor triggers cannot count the
	// same expired record twice
	sweepMu sync.Mutex
}

func New(kv store.KV, cfg Config, rec Recorder, log *logrus.Entry) (*Vault, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	v := &Vault{kv: kv, ttl: ttl, audit: rec, log: log, now: time.Now}
	if len(cfg.SealKey) > 0 {
		s, err := newSealer(cfg.SealKey)
		if err != nil {
			return nil, utils.E(utils.CodeInvalidArgument, "vault.New", "invalid seal key", err)
		}
		v.sealer = s
	}
	return v, nil
}

// WithClock replaces the time source for accelerated-TTL tests.
func (v *Vault) WithClock(now func() time.Time) *Vault {
	v.now = now
	return v
}

// Save persists a completed result with expiresAt = now + TTL. Replace-only:
// saving the same session again overwrites the previous record whole.
func (v *Vault) Save(ctx context.Context, sessionID string, result models.PipelineResult) (models.VaultRecord, error) {
	const op = "Vault.Save"
	if sessionID == "" {
		return models.VaultRecord{}, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	now := v.now().UTC()
	rec := models.VaultRecord{
		SessionID: sessionID,
		CreatedAt: now,
		ExpiresAt: now.Add(v.ttl),
		Payload:   result,
	}

	stored := storedRecord{SessionID: sessionID, CreatedAt: rec.CreatedAt, ExpiresAt: rec.ExpiresAt}
	raw, err := json.Marshal(result)
	if err != nil {
		return models.VaultRecord{}, utils.E(utils.CodeInternal, op, "failed to encode payload", err)
	}
	if v.sealer != nil {
		sealed, err := v.sealer.seal(raw)
		if err != nil {
			return models.VaultRecord{}, utils.E(utils.CodeInternal, op, "failed to seal payload", err)
		}
		stored.Sealed = sealed
	} else {
		stored.Payload = raw
	}

	if err := v.kv.SetJSON(ctx, keyPrefix+sessionID, stored); err != nil {
		return models.VaultRecord{}, utils.E(utils.CodeUnavailable, op, "backing store rejected the save", err)
	}

	if v.audit != nil {
		v.audit.Append(ctx, models.AuditSessionSaved, sessionID, "")
	}
	return rec, nil
}

// Get returns a session's record, or utils.CodeNotFound when it is absent or
// already past its expiry (expired records are deleted opportunistically).
func (v *Vault) Get(ctx context.Context, sessionID string) (models.VaultRecord, error) {
	const op = "Vault.Get"
	if sessionID == "" {
		return models.VaultRecord{}, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	var stored storedRecord
	hit, err := v.kv.GetJSON(ctx, keyPrefix+sessionID, &stored)
	if err != nil {
		return models.VaultRecord{}, utils.E(utils.CodeUnavailable, op, "backing store unavailable", err)
	}
	if !hit {
		return models.VaultRecord{}, utils.E(utils.CodeNotFound, op, "session not found", utils.ErrNotFound)
	}
	if !v.now().Before(stored.ExpiresAt) {
		_ = v.kv.Del(ctx, keyPrefix+sessionID)
		return models.VaultRecord{}, utils.E(utils.CodeNotFound, op, "session expired", utils.ErrNotFound)
	}
	return v.open(stored)
}

// List returns every unexpired record, ordered by session id.
func (v *Vault) List(ctx context.Context) ([]models.VaultRecord, error) {
	const op = "Vault.List"

	keys, err := v.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "backing store unavailable", err)
	}

	out := make([]models.VaultRecord, 0, len(keys))
	for _, key := range keys {
		var stored storedRecord
		hit, err := v.kv.GetJSON(ctx, key, &stored)
		if err != nil || !hit {
			continue
		}
		if !v.now().Before(stored.ExpiresAt) {
			_ = v.kv.Del(ctx, key)
			continue
		}
		rec, err := v.open(stored)
		if err != nil {
			if v.log != nil {
				v.log.WithError(err).WithField("session_id", stored.SessionID).Warn("unreadable vault record skipped")
			}
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// PurgeExpired deletes every record past its expiry and returns the count
// removed. Idempotent: a redundant sweep finds nothing and removes nothing.
func (v *Vault) PurgeExpired(ctx context.Context) (int, error) {
	const op = "Vault.PurgeExpired"
	v.sweepMu.Lock()
	defer v.sweepMu.Unlock()

	keys, err := v.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return 0, utils.E(utils.CodeUnavailable, op, "backing store unavailable", err)
	}

	removed := 0
	for _, key := range keys {
		var stored storedRecord
		hit, err := v.kv.GetJSON(ctx, key, &stored)
		if err != nil || !hit {
			continue
		}
		if v.now().Before(stored.ExpiresAt) {
			continue
		}
		if err := v.kv.Del(ctx, key); err == nil {
			removed++
		}
	}
	return removed, nil
}

// Shred deletes a session immediately regardless of TTL and audits it.
func (v *Vault) Shred(ctx context.Context, sessionID string) error {
	const op = "Vault.Shred"
	if sessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if err := v.kv.Del(ctx, keyPrefix+sessionID); err != nil {
		return utils.E(utils.CodeUnavailable, op, "backing store rejected the delete", err)
	}
	if v.audit != nil {
		v.audit.Append(ctx, models.AuditSessionShred, sessionID, "")
	}
	return nil
}

// ShredAll removes every record, for the purge-all flow. Returns the count.
func (v *Vault) ShredAll(ctx context.Context) (int, error) {
	const op = "Vault.ShredAll"
	keys, err := v.kv.Keys(ctx, keyPrefix)
	if err != nil {
		return 0, utils.E(utils.CodeUnavailable, op, "backing store unavailable", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	if err := v.kv.Del(ctx, keys...); err != nil {
		return 0, utils.E(utils.CodeUnavailable, op, "backing store rejected the delete", err)
	}
	return len(keys), nil
}

func (v *Vault) open(stored storedRecord) (models.VaultRecord, error) {
	const op = "Vault.open"
	raw := []byte(stored.Payload)
	if stored.Sealed != "" {
		if v.sealer == nil {
			return models.VaultRecord{}, utils.E(utils.CodeInternal, op, "record sealed but no seal key configured", nil)
		}
		opened, err := v.sealer.open(stored.Sealed)
		if err != nil {
			return models.VaultRecord{}, utils.E(utils.CodeInternal, op, "failed to unseal payload", err)
		}
		raw = opened
	}
	var payload models.PipelineResult
	if err := json.Unmarshal(raw, &payload); err != nil {
		return models.VaultRecord{}, utils.E(utils.CodeInternal, op, "corrupt payload", err)
	}
	return models.VaultRecord{
		SessionID: stored.SessionID,
		CreatedAt: stored.CreatedAt,
		ExpiresAt: stored.ExpiresAt,
		Payload:   payload,
	}, nil
}
