package refine

import (
	"context"
	"fmt"

	"github.com/relevohq/relevo/internal/models"
)

// Heuristic is the local rule-based refiner. It resolves every P0/P1 plan
// item to a concrete due window and guarantees at least one receiving-nurse
// question per patient, filling empty summaries as it goes. It never leaves
// the process, so it passes even the strict privacy profile.
type Heuristic struct{}

func (Heuristic) Name() string   { return "heuristic" }
func (Heuristic) External() bool { return false }

func (Heuristic) Refine(_ context.Context, result models.PipelineResult) (models.PipelineResult, error) {
	out := result.Clone()

	for i := range out.Patients {
		p := &out.Patients[i]
		for j := range p.Plan {
			item := &p.Plan[j]
			if item.Due != models.DueUnspecified {
				continue
			}
			switch item.Priority {
			case models.PriorityP0:
				item.Due = models.DueNow
			case models.PriorityP1:
				item.Due = models.DueWithin1h
			}
			// P2 items may legitimately stay unspecified
		}

		if len(p.Questions) == 0 {
			p.Questions = append(p.Questions, questionsFor(*p, out.UncertaintyItems)...)
		}
		if p.Summary == "" {
			p.Summary = fmt.Sprintf("%s: %d plan item(s), %d risk(s), %d vital sign(s) recorded",
				p.PatientKey, len(p.Plan), len(p.Risks), len(p.Vitals))
		}
	}
	return out, nil
}

// questionsFor derives at least one prompt for the receiving nurse from what
// the extraction left open.
func questionsFor(p models.PatientCard, uncertainties []models.UncertaintyItem) []string {
	var qs []string
	for _, item := range p.Plan {
		if item.Due == models.DueUnspecified {
			qs = append(qs, fmt.Sprintf("When should %q be done for %s?", item.Text, p.PatientKey))
			break
		}
	}
	for _, risk := range p.Risks {
		if risk.Severity == models.SeverityHigh {
			qs = append(qs, fmt.Sprintf("What is the current status of %q for %s?", risk.Text, p.PatientKey))
			break
		}
	}
	if len(qs) == 0 && len(uncertainties) > 0 {
		qs = append(qs, fmt.Sprintf("Can you confirm %q mentioned in the handoff?", uncertainties[0].Text))
	}
	if len(qs) == 0 {
		qs = append(qs, fmt.Sprintf("Anything else to watch for %s this shift?", p.PatientKey))
	}
	return qs
}
