package pipeline

import (
	"regexp"
	"sort"
	"strings"

	"github.com/relevohq/relevo/internal/models"
)

const globalTopLimit = 8

// Ranking weights. Severity-cue presence dominates mention frequency by
// construction: one high-severity hit outranks any realistic mention count,
// and a high-priority plan signal outranks bare frequency.
const (
	weightSeverityHigh     = 300
	weightSeverityModerate = 200
	weightSeverityLow      = 100
	weightPlanP0           = 20
	weightPlanP1           = 10
)

type rankCandidate struct {
	item     models.GlobalTopItem
	firstIdx int
	order    int
}

// rank aggregates risks and high-priority plan items across every patient
// into the single at-a-glance globalTop list. Item text is de-identified
// before emission: alias and room tokens are replaced with the patient's
// stable handle.
func (r *run) rank() []models.GlobalTopItem {
	var cands []rankCandidate

	for _, p := range r.patients {
		// keep card order deterministic: risks were appended in discovery
		// order, so walk the card, not the map
		for _, risk := range p.card.Risks {
			rs := p.risks[riskSignalFor(p, risk)]
			w := severityWeight(risk.Severity)
			count := 1
			first := p.firstSeen
			if rs != nil {
				count = rs.count
				first = rs.firstIdx
			}
			cands = append(cands, rankCandidate{
				item: models.GlobalTopItem{
					Text:       deidentify(risk.Text, p.card),
					PatientKey: p.card.PatientKey,
					Weight:     float64(w + count),
				},
				firstIdx: first,
				order:    len(cands),
			})
		}
		for _, plan := range p.card.Plan {
			if plan.Priority == models.PriorityP2 {
				continue
			}
			w := weightPlanP1
			if plan.Priority == models.PriorityP0 {
				w = weightPlanP0
			}
			cands = append(cands, rankCandidate{
				item: models.GlobalTopItem{
					Text:       deidentify(plan.Text, p.card),
					PatientKey: p.card.PatientKey,
					Weight:     float64(w + p.mentions),
				},
				firstIdx: p.firstSeen,
				order:    len(cands),
			})
		}
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].item.Weight != cands[j].item.Weight {
			return cands[i].item.Weight > cands[j].item.Weight
		}
		if cands[i].firstIdx != cands[j].firstIdx {
			return cands[i].firstIdx < cands[j].firstIdx
		}
		return cands[i].order < cands[j].order
	})

	if len(cands) > globalTopLimit {
		cands = cands[:globalTopLimit]
	}
	out := make([]models.GlobalTopItem, 0, len(cands))
	for _, c := range cands {
		out = append(out, c.item)
	}
	return out
}

// riskSignalFor recovers the ranking signal backing a card risk. Card risks
// and the signal map are written together in addRisk, so a linear probe over
// the small map is enough.
func riskSignalFor(p *patientState, risk models.RiskItem) string {
	for sig, rs := range p.risks {
		if rs.item.Text == risk.Text {
			return sig
		}
	}
	return ""
}

func severityWeight(s models.Severity) int {
	switch s {
	case models.SeverityHigh:
		return weightSeverityHigh
	case models.SeverityModerate:
		return weightSeverityModerate
	default:
		return weightSeverityLow
	}
}

// deidentify strips a patient's identifying tokens from ranking text,
// substituting the de-identified handle.
func deidentify(text string, card models.PatientCard) string {
	if card.AliasToken != "" {
		text = replaceFold(text, card.AliasToken, card.PatientKey)
		// An alias torn from its honorific still identifies the patient,
		// so the surname folds on its own, bounded so short surnames
		// like "Ng" never match inside other words.
		if fields := strings.Fields(card.AliasToken); len(fields) > 1 {
			surname := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(fields[len(fields)-1]) + `\b`)
			text = surname.ReplaceAllString(text, card.PatientKey)
		}
	}
	if card.RoomToken != "" {
		text = replaceFold(text, "room "+card.RoomToken, card.PatientKey)
		text = replaceFold(text, "rm "+card.RoomToken, card.PatientKey)
		text = replaceFold(text, "bed "+card.RoomToken, card.PatientKey)
	}
	return text
}

// replaceFold is a case-insensitive strings.ReplaceAll.
func replaceFold(s, old, new string) string {
	if old == "" {
		return s
	}
	lower := strings.ToLower(s)
	target := strings.ToLower(old)
	var b strings.Builder
	for {
		i := strings.Index(lower, target)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		b.WriteString(new)
		s = s[i+len(old):]
		lower = lower[i+len(target):]
	}
}
