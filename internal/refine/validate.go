package refine

import (
	"fmt"

	"github.com/relevohq/relevo/internal/models"
)

// Validate checks an enriched result against the refinement contract before
// the caller accepts it. A violation means the caller must discard the
// enrichment and keep the unenriched original:
//   - the patient set (keys and order) must be unchanged
//   - identifying tokens must be byte-identical to the input's
//   - every P0/P1 plan item must carry a concrete due window
//   - every patient must carry at least one question
func Validate(in, out models.PipelineResult) error {
	if len(out.Patients) != len(in.Patients) {
		return fmt.Errorf("patient count changed: %d -> %d", len(in.Patients), len(out.Patients))
	}
	for i, op := range out.Patients {
		ip := in.Patients[i]
		if op.PatientKey != ip.PatientKey {
			return fmt.Errorf("patient %d: handle changed %q -> %q", i, ip.PatientKey, op.PatientKey)
		}
		if op.AliasToken != ip.AliasToken {
			return fmt.Errorf("patient %s: alias token altered", ip.PatientKey)
		}
		if op.RoomToken != ip.RoomToken {
			return fmt.Errorf("patient %s: room token altered", ip.PatientKey)
		}
		for _, item := range op.Plan {
			if (item.Priority == models.PriorityP0 || item.Priority == models.PriorityP1) && !item.Due.Concrete() {
				return fmt.Errorf("patient %s: %s item %q left without a concrete due window",
					ip.PatientKey, item.Priority, item.Text)
			}
		}
		if len(op.Questions) == 0 {
			return fmt.Errorf("patient %s: no receiving-nurse question", ip.PatientKey)
		}
	}
	return nil
}
