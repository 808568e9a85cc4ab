package pipeline

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relevohq/relevo/internal/models"
	"github.com/relevohq/relevo/internal/segmenter"
)

func runTranscript(t *testing.T, transcript string) models.PipelineResult {
	t.Helper()
	segs := segmenter.Segment(transcript, segmenter.Config{})
	return Run("sess-1", "day", segs)
}

func TestRunEmptyInputNeverFails(t *testing.T) {
	for _, segs := range [][]models.RawSegment{
		nil,
		{},
		{{ID: "seg-0", Text: "   "}},
	} {
		res := Run("s", "day", segs)
		assert.Empty(t, res.Patients)
		require.Len(t, res.UncertaintyItems, 1)
		assert.Equal(t, models.UncertaintyParseFailure, res.UncertaintyItems[0].Kind)
	}
}

func TestRunDeterministic(t *testing.T) {
	segs := segmenter.Segment(
		"Room 12 Mr. Okafor glucose 320, recheck within the hour. Bed 7 is a fall risk.",
		segmenter.Config{})
	a := Run("s", "night", segs)
	b := Run("s", "night", segs)
	assert.Equal(t, a, b)
}

func TestInlineMultiPatientNarration(t *testing.T) {
	res := runTranscript(t,
		"Room 12 Mr. Okafor needs a glucose recheck within the hour, and bed 7 Ms. Tran is a fall risk tonight.")

	require.GreaterOrEqual(t, len(res.Patients), 2)

	hasWork := false
	for _, p := range res.Patients {
		if len(p.Plan)+len(p.Risks) >= 1 {
			hasWork = true
		}
	}
	assert.True(t, hasWork, "at least one patient must carry plan or risk items")

	assert.Equal(t, "Mr. Okafor", res.Patients[0].AliasToken)
	assert.Equal(t, "12", res.Patients[0].RoomToken)
	assert.Equal(t, "7", res.Patients[1].RoomToken)
}

func TestPatientMergeAcrossSegments(t *testing.T) {
	res := runTranscript(t,
		"Room 12 Mr. Okafor is NPO since midnight. Later on Mr. Okafor asked for water. Room 12 pulse 88 this morning.")

	require.Len(t, res.Patients, 1)
	p := res.Patients[0]
	assert.Equal(t, "patient-1", p.PatientKey)
	assert.Equal(t, "12", p.RoomToken)
	assert.Equal(t, "Mr. Okafor", p.AliasToken)
}

func TestLexiconAbbreviationsNeverUncertain(t *testing.T) {
	var b strings.Builder
	b.WriteString("Room 3 Mrs. Park. ")
	for abbr := range abbreviations {
		fmt.Fprintf(&b, "Check %s today. ", abbr)
	}

	res := runTranscript(t, b.String())
	for _, u := range res.UncertaintyItems {
		assert.NotEqual(t, models.UncertaintyUnresolvedAbbreviation, u.Kind,
			"lexicon token leaked as uncertainty: %q", u.Text)
	}
}

func TestUnknownAbbreviationFlagged(t *testing.T) {
	res := runTranscript(t, "Room 3 Mrs. Park is on QXZ drip. QXZ again at noon.")

	var found int
	for _, u := range res.UncertaintyItems {
		if u.Kind == models.UncertaintyUnresolvedAbbreviation && u.Text == "QXZ" {
			found++
		}
	}
	assert.Equal(t, 1, found, "unknown abbreviation must be flagged exactly once (deduped)")
}

func TestInlineResolvedAbbreviationSuppressed(t *testing.T) {
	res := runTranscript(t,
		"Room 3 Mrs. Park had a QXZ (quick xylem zip) earlier. QXZ pending review.")

	for _, u := range res.UncertaintyItems {
		assert.NotEqual(t, "QXZ", u.Text, "inline-expanded token must be suppressed")
	}
}

func TestAmbiguousReferenceBeforeAnyPatient(t *testing.T) {
	res := runTranscript(t, "She was restless overnight and pulled at her lines.")

	require.NotEmpty(t, res.UncertaintyItems)
	assert.Equal(t, models.UncertaintyAmbiguousReference, res.UncertaintyItems[0].Kind)
	assert.Empty(t, res.Patients)
}

func TestUncertaintyBoundShortTranscript(t *testing.T) {
	res := runTranscript(t,
		"Room 9 Mr. Diaz fell this morning near the bathroom.\n"+
			"He has a ZZQ and a YYX pending, maybe 40 of something was given.\n"+
			"Recheck BP within the hour.\n"+
			"WWJ called about the KKL form and the MMN consult.")

	assert.LessOrEqual(t, len(res.UncertaintyItems), 4)
}

func TestUncertaintyBoundLongTranscript(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&b, "Room %d Mr. Chen%d has XQ%d pending, maybe %d units given. ", i+1, i, i, i)
		fmt.Fprintf(&b, "Recheck BP within the hour for room %d. ", i+1)
		fmt.Fprintf(&b, "He seemed tired around %d. ", i)
	}

	res := runTranscript(t, b.String())
	assert.LessOrEqual(t, len(res.UncertaintyItems), 24)
}

func TestGlobalTopSurfacesGlucoseAndUrineSignals(t *testing.T) {
	res := runTranscript(t,
		"Room 12 Mr. Okafor glucose 320 this morning, recheck within the hour. "+
			"Bed 7 Ms. Tran urine output trending down, only 80 ml this shift, keep monitoring I&O.")

	require.GreaterOrEqual(t, len(res.Patients), 2)
	require.NotEmpty(t, res.GlobalTop)

	joined := strings.ToLower(fmt.Sprint(res.GlobalTop))
	assert.Contains(t, joined, "glucose")
	assert.Contains(t, joined, "recheck")
	assert.Contains(t, joined, "urine output")

	// de-identification: no alias or room token survives in ranking text
	for _, item := range res.GlobalTop {
		assert.NotContains(t, item.Text, "Okafor")
		assert.NotContains(t, item.Text, "Tran")
		assert.NotContains(t, strings.ToLower(item.Text), "room 12")
		assert.NotContains(t, strings.ToLower(item.Text), "bed 7")
	}
}

func TestGlobalTopNeverLeaksBareSurname(t *testing.T) {
	// Plan clauses split after the honorific period used to start at the
	// bare surname, which de-identification then failed to fold.
	res := runTranscript(t,
		"Room 12 Mr. Okafor glucose 320 this morning, recheck within the hour.")

	require.NotEmpty(t, res.GlobalTop)
	for _, item := range res.GlobalTop {
		assert.NotContains(t, strings.ToLower(item.Text), "okafor")
	}
	joined := fmt.Sprint(res.GlobalTop)
	assert.Contains(t, joined, "patient-1")
}

func TestSplitClausesKeepsHonorificsIntact(t *testing.T) {
	clauses := splitClauses("Mr. Okafor glucose 320; recheck within the hour. Ask Dr. Reyes about insulin.")
	require.Len(t, clauses, 3)
	assert.Equal(t, "Mr. Okafor glucose 320", clauses[0])
	assert.Equal(t, "recheck within the hour", clauses[1])
	assert.Equal(t, "Ask Dr. Reyes about insulin", clauses[2])
}

func TestGlobalTopSeverityDominatesFrequency(t *testing.T) {
	res := runTranscript(t,
		"Room 1 Mr. Low needs a routine turn today. Turn him again later today. One more turn today. "+
			"Room 2 Ms. High is unstable, page the team now.")

	require.NotEmpty(t, res.GlobalTop)
	assert.Equal(t, "patient-2", res.GlobalTop[0].PatientKey,
		"high-severity cue must outrank repeated routine mentions")
}

func TestPlanPriorityAndDueInference(t *testing.T) {
	res := runTranscript(t,
		"Room 4 Mrs. Ng: recheck vitals stat. Draw labs within the hour. Change the dressing today. Hold the diuretic for the next shift. Document intake.")

	require.Len(t, res.Patients, 1)
	plan := res.Patients[0].Plan
	require.GreaterOrEqual(t, len(plan), 5)

	byText := func(sub string) models.PlanItem {
		for _, it := range plan {
			if strings.Contains(strings.ToLower(it.Text), sub) {
				return it
			}
		}
		t.Fatalf("no plan item containing %q in %v", sub, plan)
		return models.PlanItem{}
	}

	assert.Equal(t, models.PriorityP0, byText("stat").Priority)
	assert.Equal(t, models.DueNow, byText("stat").Due)

	assert.Equal(t, models.PriorityP1, byText("labs").Priority)
	assert.Equal(t, models.DueWithin1h, byText("labs").Due)

	assert.Equal(t, models.DueToday, byText("dressing").Due)
	assert.Equal(t, models.DueNextShift, byText("diuretic").Due)

	assert.Equal(t, models.PriorityP2, byText("document").Priority)
	assert.Equal(t, models.DueUnspecified, byText("document").Due)
}

func TestVitalsExtraction(t *testing.T) {
	res := runTranscript(t, "Room 6 Mr. Webb BP 118/76, pulse 92, temp 99.1, sats 93%.")

	require.Len(t, res.Patients, 1)
	kinds := map[string]string{}
	for _, v := range res.Patients[0].Vitals {
		kinds[v.Kind] = v.Value
	}
	assert.Equal(t, "118/76", kinds["bp"])
	assert.Equal(t, "92", kinds["hr"])
	assert.Equal(t, "99.1", kinds["temp"])
	assert.Equal(t, "93", kinds["spo2"])
}

func TestContinuationAttachesToLastPatient(t *testing.T) {
	res := runTranscript(t,
		"Room 8 Mrs. Cole had a rough night. She is a fall risk and needs the bed alarm checked today.")

	require.Len(t, res.Patients, 1)
	p := res.Patients[0]
	assert.NotEmpty(t, p.Risks, "risk narrated in the continuation sentence must attach to the open card")

	// bound references are not uncertainties
	for _, u := range res.UncertaintyItems {
		assert.NotEqual(t, models.UncertaintyAmbiguousReference, u.Kind)
	}
}
