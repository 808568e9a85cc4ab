package models

import "time"

// VaultRecord is the at-rest form of a completed handoff session. Records are
// replace-only: a second save for the same session overwrites the first.
type VaultRecord struct {
	SessionID string         `json:"session_id"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at"`
	Payload   PipelineResult `json:"payload"`
}

func (r VaultRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
