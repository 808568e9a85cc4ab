package refine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relevohq/relevo/internal/models"
)

func baseResult() models.PipelineResult {
	return models.PipelineResult{
		SessionID: "s1",
		DutyType:  "day",
		Patients: []models.PatientCard{
			{
				PatientKey: "patient-1",
				AliasToken: "Mr. Okafor",
				RoomToken:  "12",
				Plan: []models.PlanItem{
					{Text: "recheck glucose stat", Priority: models.PriorityP0, Due: models.DueUnspecified},
					{Text: "draw morning labs", Priority: models.PriorityP1, Due: models.DueUnspecified},
					{Text: "update the whiteboard", Priority: models.PriorityP2, Due: models.DueUnspecified},
				},
				Risks: []models.RiskItem{{Text: "glucose 320 abnormal, needs recheck", Severity: models.SeverityHigh}},
			},
			{
				PatientKey: "patient-2",
				RoomToken:  "7",
				Plan:       []models.PlanItem{{Text: "ambulate after lunch", Priority: models.PriorityP2, Due: models.DueToday}},
			},
		},
	}
}

func TestHeuristicResolvesHighPriorityDues(t *testing.T) {
	in := baseResult()
	out, err := Heuristic{}.Refine(context.Background(), in)
	require.NoError(t, err)

	for _, p := range out.Patients {
		for _, item := range p.Plan {
			if item.Priority == models.PriorityP0 || item.Priority == models.PriorityP1 {
				assert.True(t, item.Due.Concrete(), "%s item %q must have a concrete due", item.Priority, item.Text)
			}
		}
	}
	assert.Equal(t, models.DueNow, out.Patients[0].Plan[0].Due)
	assert.Equal(t, models.DueWithin1h, out.Patients[0].Plan[1].Due)
	// lower-priority item untouched
	assert.Equal(t, models.DueUnspecified, out.Patients[0].Plan[2].Due)
}

func TestHeuristicQuestionsPerPatient(t *testing.T) {
	out, err := Heuristic{}.Refine(context.Background(), baseResult())
	require.NoError(t, err)

	for _, p := range out.Patients {
		assert.NotEmpty(t, p.Questions, "patient %s must get at least one question", p.PatientKey)
	}
}

func TestHeuristicSummariesUseHandleOnly(t *testing.T) {
	out, err := Heuristic{}.Refine(context.Background(), baseResult())
	require.NoError(t, err)

	for _, p := range out.Patients {
		require.NotEmpty(t, p.Summary)
		assert.Contains(t, p.Summary, p.PatientKey)
		assert.NotContains(t, p.Summary, "Okafor")
		assert.NotContains(t, p.Summary, "12")
	}
}

func TestHeuristicDoesNotMutateInput(t *testing.T) {
	in := baseResult()
	_, err := Heuristic{}.Refine(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, models.DueUnspecified, in.Patients[0].Plan[0].Due, "refiners operate on a copy")
	assert.Empty(t, in.Patients[0].Questions)
}

func TestHeuristicOutputPassesValidate(t *testing.T) {
	in := baseResult()
	out, err := Heuristic{}.Refine(context.Background(), in)
	require.NoError(t, err)
	assert.NoError(t, Validate(in, out))
}

func TestNoOpIdentity(t *testing.T) {
	in := baseResult()
	out, err := NoOp{}.Refine(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.False(t, NoOp{}.External())
}

func TestValidateRejectsAlteredIdentifyingTokens(t *testing.T) {
	in := baseResult()

	out, err := Heuristic{}.Refine(context.Background(), in)
	require.NoError(t, err)
	out.Patients[0].AliasToken = "Mr. O."
	assert.Error(t, Validate(in, out), "altered alias token must be rejected")

	out, err = Heuristic{}.Refine(context.Background(), in)
	require.NoError(t, err)
	out.Patients[1].RoomToken = "room seven"
	assert.Error(t, Validate(in, out), "altered room token must be rejected")

	out, err = Heuristic{}.Refine(context.Background(), in)
	require.NoError(t, err)
	out.Patients[0].PatientKey = "bed-12"
	assert.Error(t, Validate(in, out), "re-labelled patient handle must be rejected")
}

func TestValidateRejectsPatientSetChanges(t *testing.T) {
	in := baseResult()
	out, err := Heuristic{}.Refine(context.Background(), in)
	require.NoError(t, err)

	out.Patients = out.Patients[:1]
	assert.Error(t, Validate(in, out))
}

func TestValidateRejectsUnresolvedHighPriorityDue(t *testing.T) {
	in := baseResult()
	out, err := Heuristic{}.Refine(context.Background(), in)
	require.NoError(t, err)

	out.Patients[0].Plan[0].Due = models.DueUnspecified
	assert.Error(t, Validate(in, out))
}

func TestValidateRejectsMissingQuestions(t *testing.T) {
	in := baseResult()
	out, err := Heuristic{}.Refine(context.Background(), in)
	require.NoError(t, err)

	out.Patients[1].Questions = nil
	assert.Error(t, Validate(in, out))
}

func TestFactorySelection(t *testing.T) {
	ctx := context.Background()

	r, err := New(ctx, Config{Provider: "disabled"})
	require.NoError(t, err)
	assert.Equal(t, "noop", r.Name())

	r, err = New(ctx, Config{Provider: "heuristic"})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", r.Name())

	r, err = New(ctx, Config{})
	require.NoError(t, err)
	assert.Equal(t, "heuristic", r.Name())

	_, err = New(ctx, Config{Provider: "vertex"})
	assert.Error(t, err, "vertex without a project id must fail fast")

	_, err = New(ctx, Config{Provider: "crystal-ball"})
	assert.Error(t, err)
}
