package models

// RawSegment is one bounded, time-stamped slice of a handoff transcript.
// Segments are produced by the segmenter, ordered by non-decreasing StartMs,
// and are immutable once emitted.
type RawSegment struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	StartMs int64  `json:"start_ms"`
	EndMs   int64  `json:"end_ms"`
}

type Priority string

const (
	PriorityP0 Priority = "P0" // most urgent, imminent action
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
)

type DueWindow string

const (
	DueNow         DueWindow = "now"
	DueWithin1h    DueWindow = "within_1h"
	DueToday       DueWindow = "today"
	DueNextShift   DueWindow = "next_shift"
	DueUnspecified DueWindow = "unspecified"
)

// Concrete reports whether the due window is one of the four actionable
// values. P0/P1 plan items must be concrete once enrichment has run.
func (d DueWindow) Concrete() bool {
	switch d {
	case DueNow, DueWithin1h, DueToday, DueNextShift:
		return true
	}
	return false
}

type PlanItem struct {
	Text     string    `json:"text"`
	Priority Priority  `json:"priority"`
	Due      DueWindow `json:"due"`
}

type Severity string

const (
	SeverityHigh     Severity = "high"
	SeverityModerate Severity = "moderate"
	SeverityLow      Severity = "low"
)

type RiskItem struct {
	Text     string   `json:"text"`
	Severity Severity `json:"severity"`
}

type VitalSign struct {
	Kind      string `json:"kind"` // bp|hr|rr|temp|spo2|glucose|urine_output
	Value     string `json:"value"`
	SegmentID string `json:"segment_id,omitempty"`
}

// PatientCard is the per-patient structured record assembled across segments.
// PatientKey is a stable de-identified handle (room or alias plus ordinal);
// AliasToken and RoomToken are the only identifying fields and are the ones
// the privacy engine guards.
type PatientCard struct {
	PatientKey string      `json:"patient_key"`
	AliasToken string      `json:"alias_token,omitempty"`
	RoomToken  string      `json:"room_token,omitempty"`
	Summary    string      `json:"summary,omitempty"`
	Vitals     []VitalSign `json:"vitals,omitempty"`
	Plan       []PlanItem  `json:"plan,omitempty"`
	Risks      []RiskItem  `json:"risks,omitempty"`
	Questions  []string    `json:"questions,omitempty"`
}

type UncertaintyKind string

const (
	UncertaintyUnresolvedAbbreviation UncertaintyKind = "unresolved_abbreviation"
	UncertaintyAmbiguousReference     UncertaintyKind = "ambiguous_reference"
	UncertaintyLowConfidenceValue     UncertaintyKind = "low_confidence_value"
	UncertaintyParseFailure           UncertaintyKind = "parse_failure"
)

// UncertaintyItem flags a span the pipeline could not resolve with
// confidence. The pipeline dedupes and caps these so a human can review the
// whole set in seconds.
type UncertaintyItem struct {
	Kind            UncertaintyKind `json:"kind"`
	Text            string          `json:"text"`
	SourceSegmentID string          `json:"source_segment_id,omitempty"`
}

// GlobalTopItem is one entry of the cross-patient ranked summary. Text is
// de-identified: alias/room tokens are replaced by the patient handle before
// the item is emitted.
type GlobalTopItem struct {
	Text       string  `json:"text"`
	PatientKey string  `json:"patient_key"`
	Weight     float64 `json:"weight"`
}

// PipelineResult is the caller-owned output of one extraction run. It is
// fully re-derivable from (sessionID, dutyType, segments) and shares no state
// with the vault.
type PipelineResult struct {
	SessionID        string            `json:"session_id"`
	DutyType         string            `json:"duty_type"`
	Patients         []PatientCard     `json:"patients"`
	GlobalTop        []GlobalTopItem   `json:"global_top"`
	UncertaintyItems []UncertaintyItem `json:"uncertainty_items"`
}

// Clone returns a deep copy. Refiners receive copies so a misbehaving adapter
// can never mutate the caller's result in place.
func (r PipelineResult) Clone() PipelineResult {
	out := r
	out.Patients = make([]PatientCard, len(r.Patients))
	for i, p := range r.Patients {
		cp := p
		cp.Vitals = append([]VitalSign(nil), p.Vitals...)
		cp.Plan = append([]PlanItem(nil), p.Plan...)
		cp.Risks = append([]RiskItem(nil), p.Risks...)
		cp.Questions = append([]string(nil), p.Questions...)
		out.Patients[i] = cp
	}
	out.GlobalTop = append([]GlobalTopItem(nil), r.GlobalTop...)
	out.UncertaintyItems = append([]UncertaintyItem(nil), r.UncertaintyItems...)
	return out
}
