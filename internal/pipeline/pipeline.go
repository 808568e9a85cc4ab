// Package pipeline turns ordered raw segments into a structured per-patient
// handoff record. Run is a pure function: no I/O, no hidden state, and the
// same (sessionID, dutyType, segments) always produces the same result.
package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/relevohq/relevo/internal/models"
)

// run carries the per-invocation state of one extraction pass.
type run struct {
	patients   []*patientState
	tokenIndex map[string]int // normalized token -> patient index

	uncertainSeen map[string]bool
	uncertainties []models.UncertaintyItem

	// abbreviations resolved inline anywhere in the session, e.g. "CMP (a
	// metabolic panel)"; suppressed session-wide.
	inlineResolved map[string]bool
}

type patientState struct {
	card      models.PatientCard
	firstSeen int // segment ordinal of first mention
	mentions  int
	risks     map[string]*riskState // keyed by ranking signal
}

type riskState struct {
	item     models.RiskItem
	signal   string
	count    int
	firstIdx int
}

// Run extracts patients, plan items, risks, vitals, uncertainties, and the
// cross-patient globalTop ranking from the segments. Malformed or empty input
// never fails: it yields an empty-patients result carrying a parse_failure
// uncertainty, since the pipeline has no retry authority.
func Run(sessionID, dutyType string, segs []models.RawSegment) models.PipelineResult {
	result := models.PipelineResult{
		SessionID:        sessionID,
		DutyType:         dutyType,
		Patients:         []models.PatientCard{},
		GlobalTop:        []models.GlobalTopItem{},
		UncertaintyItems: []models.UncertaintyItem{},
	}

	if !hasContent(segs) {
		result.UncertaintyItems = append(result.UncertaintyItems, models.UncertaintyItem{
			Kind: models.UncertaintyParseFailure,
			Text: "transcript empty or unreadable, nothing extracted",
		})
		return result
	}

	r := &run{
		tokenIndex:     make(map[string]int),
		uncertainSeen:  make(map[string]bool),
		inlineResolved: findInlineResolutions(segs),
	}

	var lastPatient = -1
	for i, seg := range segs {
		lastPatient = r.processSegment(i, seg, lastPatient)
	}

	for _, p := range r.patients {
		result.Patients = append(result.Patients, p.card)
	}
	result.GlobalTop = r.rank()
	result.UncertaintyItems = capUncertainties(r.uncertainties, len(segs))
	return result
}

func hasContent(segs []models.RawSegment) bool {
	for _, s := range segs {
		if strings.TrimSpace(s.Text) != "" {
			return true
		}
	}
	return false
}

// processSegment splits one segment into per-patient spans (inline
// multi-patient narration), resolves or opens patient cards, and extracts
// entities from each span. Returns the index of the last patient addressed,
// which the next segment's leading unattributed text continues.
func (r *run) processSegment(segIdx int, seg models.RawSegment, lastPatient int) int {
	text := seg.Text
	groups := findMentionGroups(text)

	r.scanAbbreviations(text, seg.ID)

	if len(groups) == 0 {
		// no identifying token at all: continuation of the previous patient,
		// or an unbindable reference when no patient exists yet
		if lastPatient >= 0 {
			r.extractSpan(lastPatient, text, segIdx, seg.ID)
			return lastPatient
		}
		if pronounLead.MatchString(text) {
			r.addUncertainty(models.UncertaintyAmbiguousReference, firstWords(text, 8), seg.ID)
		}
		return lastPatient
	}

	// leading text before the first mention still belongs to the previous
	// patient
	if lead := text[:groups[0].start]; strings.TrimSpace(lead) != "" && lastPatient >= 0 {
		r.extractSpan(lastPatient, lead, segIdx, seg.ID)
	}

	for gi, g := range groups {
		end := len(text)
		if gi+1 < len(groups) {
			end = groups[gi+1].start
		}
		idx := r.resolvePatient(g, segIdx)
		r.extractSpan(idx, text[g.start:end], segIdx, seg.ID)
		lastPatient = idx
	}
	return lastPatient
}

// mentionGroup is one cluster of identifying tokens that names a single
// patient, e.g. "room 12, Mr. Okafor" read as one mention.
type mentionGroup struct {
	start, end int
	roomToken  string
	aliasToken string
}

// findMentionGroups locates every room/alias token in the text and coalesces
// adjacent ones (separated by at most two filler words) into a single group,
// so "bed 4 Mrs. Tran" opens one card, not two.
func findMentionGroups(text string) []mentionGroup {
	type mention struct {
		start, end  int
		room, alias string
	}
	var ms []mention
	for _, loc := range roomPattern.FindAllStringSubmatchIndex(text, -1) {
		ms = append(ms, mention{start: loc[0], end: loc[1], room: text[loc[2]:loc[3]]})
	}
	for _, loc := range aliasPattern.FindAllStringSubmatchIndex(text, -1) {
		ms = append(ms, mention{start: loc[0], end: loc[1], alias: text[loc[2]:loc[3]]})
	}
	if len(ms) == 0 {
		return nil
	}
	// insertion sort by position; mention lists are tiny
	for i := 1; i < len(ms); i++ {
		for j := i; j > 0 && ms[j].start < ms[j-1].start; j-- {
			ms[j], ms[j-1] = ms[j-1], ms[j]
		}
	}

	var groups []mentionGroup
	cur := mentionGroup{start: ms[0].start, end: ms[0].end, roomToken: ms[0].room, aliasToken: ms[0].alias}
	for _, m := range ms[1:] {
		gap := text[cur.end:m.start]
		if wordCount(gap) <= 2 {
			cur.end = m.end
			if cur.roomToken == "" {
				cur.roomToken = m.room
			}
			if cur.aliasToken == "" {
				cur.aliasToken = m.alias
			}
			continue
		}
		groups = append(groups, cur)
		cur = mentionGroup{start: m.start, end: m.end, roomToken: m.room, aliasToken: m.alias}
	}
	groups = append(groups, cur)
	return groups
}

func wordCount(s string) int {
	n := 0
	for _, w := range strings.Fields(s) {
		if strings.TrimFunc(w, func(r rune) bool { return !isAlnum(r) }) != "" {
			n++
		}
	}
	return n
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

// resolvePatient merges a mention group into an existing card when any of its
// normalized tokens was seen before in the session, otherwise opens a new
// card keyed by the most specific token present (room first, alias second).
func (r *run) resolvePatient(g mentionGroup, segIdx int) int {
	roomKey, aliasKey := "", ""
	if g.roomToken != "" {
		roomKey = "room:" + strings.ToLower(g.roomToken)
	}
	if g.aliasToken != "" {
		aliasKey = "alias:" + normalizeAlias(g.aliasToken)
	}

	idx := -1
	if roomKey != "" {
		if i, ok := r.tokenIndex[roomKey]; ok {
			idx = i
		}
	}
	if idx < 0 && aliasKey != "" {
		if i, ok := r.tokenIndex[aliasKey]; ok {
			idx = i
		}
	}

	if idx < 0 {
		idx = len(r.patients)
		r.patients = append(r.patients, &patientState{
			card: models.PatientCard{
				PatientKey: fmt.Sprintf("patient-%d", idx+1),
			},
			firstSeen: segIdx,
			risks:     make(map[string]*riskState),
		})
	}

	p := r.patients[idx]
	p.mentions++
	if roomKey != "" {
		r.tokenIndex[roomKey] = idx
		if p.card.RoomToken == "" {
			p.card.RoomToken = g.roomToken
		}
	}
	if aliasKey != "" {
		r.tokenIndex[aliasKey] = idx
		if p.card.AliasToken == "" {
			p.card.AliasToken = g.aliasToken
		}
	}
	return idx
}

func normalizeAlias(alias string) string {
	fields := strings.Fields(alias)
	return strings.ToLower(strings.Trim(fields[len(fields)-1], ".,'"))
}

// extractSpan pulls vitals, risks, and plan items out of one patient-scoped
// slice of narration.
func (r *run) extractSpan(patientIdx int, span string, segIdx int, segID string) {
	if strings.TrimSpace(span) == "" {
		return
	}
	p := r.patients[patientIdx]

	r.extractVitals(p, span, segID)
	r.extractRisks(p, span, segIdx)
	r.extractPlans(p, span)
	r.scanHedges(span, segID)
}

func (r *run) extractVitals(p *patientState, span string, segID string) {
	for _, vp := range vitalPatterns {
		for _, m := range vp.Re.FindAllStringSubmatch(span, -1) {
			p.card.Vitals = append(p.card.Vitals, models.VitalSign{
				Kind:      vp.Kind,
				Value:     strings.TrimSpace(m[1]),
				SegmentID: segID,
			})
			r.checkAbnormal(p, vp.Kind, m[1], segID)
		}
	}
	if urineDropPattern.MatchString(span) {
		p.addRisk("urine output monitoring",
			"urine output trending down, monitor intake and output (I&O)",
			models.SeverityHigh, p.firstSeen)
	}
}

// checkAbnormal turns extreme vital values into risks so they reach the
// cross-patient ranking.
func (r *run) checkAbnormal(p *patientState, kind, value, segID string) {
	switch kind {
	case "glucose":
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return
		}
		if v >= glucoseHighThreshold || v <= glucoseLowThreshold {
			p.addRisk("glucose recheck",
				fmt.Sprintf("glucose %s abnormal, needs recheck", strings.TrimSpace(value)),
				models.SeverityHigh, p.firstSeen)
		}
	case "spo2":
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err == nil && v < 90 {
			p.addRisk("oxygen desaturation",
				fmt.Sprintf("oxygen saturation %s%% low, monitor closely", strings.TrimSpace(value)),
				models.SeverityHigh, p.firstSeen)
		}
	}
}

func (r *run) extractRisks(p *patientState, span string, segIdx int) {
	for _, cue := range riskCues {
		if n := len(cue.Re.FindAllStringIndex(span, -1)); n > 0 {
			p.addRisk(cue.Signal, cue.Signal, models.Severity(cue.Severity), segIdx)
			if rs := p.risks[cue.Signal]; rs != nil {
				rs.count += n - 1 // addRisk already counted one
			}
		}
	}
}

func (ps *patientState) addRisk(signal, text string, sev models.Severity, segIdx int) {
	if rs, ok := ps.risks[signal]; ok {
		rs.count++
		return
	}
	ps.risks[signal] = &riskState{
		item:     models.RiskItem{Text: text, Severity: sev},
		signal:   signal,
		count:    1,
		firstIdx: segIdx,
	}
	ps.card.Risks = append(ps.card.Risks, models.RiskItem{Text: text, Severity: sev})
}

func (r *run) extractPlans(p *patientState, span string) {
	for _, sentence := range splitClauses(span) {
		if !planVerbPattern.MatchString(sentence) {
			continue
		}
		item := models.PlanItem{
			Text:     strings.TrimSpace(sentence),
			Priority: inferPriority(sentence),
			Due:      inferDue(sentence),
		}
		p.card.Plan = append(p.card.Plan, item)
	}
}

// clauseHonorifics lists abbreviations whose trailing period never ends a
// clause; cutting inside "Mr. Okafor" would strand the surname from its alias
// and the bare surname would then slip past de-identification.
var clauseHonorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "mx": true, "miss": true, "dr": true,
}

func splitClauses(s string) []string {
	var clauses []string
	var b strings.Builder

	flush := func() {
		if c := strings.TrimSpace(b.String()); c != "" {
			clauses = append(clauses, c)
		}
		b.Reset()
	}

	for _, r := range s {
		if r == ';' || r == '\n' {
			flush()
			continue
		}
		if r == '.' && !clauseHonorifics[trailingClauseWord(b.String())] {
			flush()
			continue
		}
		b.WriteRune(r)
	}
	flush()
	return clauses
}

// trailingClauseWord returns the lowercased word ending s.
func trailingClauseWord(s string) string {
	end := len(s)
	start := end
	for start > 0 {
		c := s[start-1]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			break
		}
		start--
	}
	return strings.ToLower(s[start:end])
}

func inferPriority(sentence string) models.Priority {
	switch {
	case p0Pattern.MatchString(sentence):
		return models.PriorityP0
	case p1Pattern.MatchString(sentence):
		return models.PriorityP1
	default:
		return models.PriorityP2
	}
}

// inferDue maps temporal cues to a due window, most urgent cue first. Absent
// any cue the item stays unspecified; only an enrichment stage may resolve
// it further.
func inferDue(sentence string) models.DueWindow {
	switch {
	case dueNowPattern.MatchString(sentence):
		return models.DueNow
	case dueHourPattern.MatchString(sentence):
		return models.DueWithin1h
	case dueTodayPattern.MatchString(sentence):
		return models.DueToday
	case dueNextShiftPattern.MatchString(sentence):
		return models.DueNextShift
	default:
		return models.DueUnspecified
	}
}

func firstWords(s string, n int) string {
	fields := strings.Fields(strings.TrimSpace(s))
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
