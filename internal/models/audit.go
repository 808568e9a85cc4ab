package models

import "time"

type AuditAction string

const (
	AuditPolicyBlocked AuditAction = "policy_blocked"
	AuditPipelineRun   AuditAction = "pipeline_run"
	AuditSessionSaved  AuditAction = "session_saved"
	AuditSessionShred  AuditAction = "session_shred"
	AuditAllDataPurged AuditAction = "all_data_purged"
)

// AuditEvent is one entry of the append-only lifecycle trail. Detail is
// sanitized before it reaches this struct; the log that owns these events is
// count-capped and expires as a whole unit.
type AuditEvent struct {
	ID        string      `json:"id"`
	At        time.Time   `json:"at"`
	Action    AuditAction `json:"action"`
	SessionID string      `json:"session_id,omitempty"`
	Detail    string      `json:"detail,omitempty"`
}
