package segmenter

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relevohq/relevo/internal/models"
)

func TestSegmentBasicSplitting(t *testing.T) {
	segs := Segment("Room 12 is stable. Recheck glucose at 6! Any questions?", Config{})

	require.Len(t, segs, 3)
	assert.Equal(t, "Room 12 is stable.", segs[0].Text)
	assert.Equal(t, "Recheck glucose at 6!", segs[1].Text)
	assert.Equal(t, "Any questions?", segs[2].Text)

	for i, s := range segs {
		assert.Equal(t, fmt.Sprintf("seg-%d", i), s.ID)
		assert.Equal(t, int64(i)*DefaultSegmentDurationMs, s.StartMs)
		assert.Equal(t, s.StartMs+DefaultSegmentDurationMs, s.EndMs)
	}
}

func TestSegmentKeepsDecimalsIntact(t *testing.T) {
	segs := Segment("Temp is 98.6 this morning. BP 120/80; pulse 72.", Config{})

	require.Len(t, segs, 3)
	assert.Equal(t, "Temp is 98.6 this morning.", segs[0].Text)
	assert.Equal(t, "BP 120/80;", segs[1].Text)
	assert.Equal(t, "pulse 72.", segs[2].Text)
}

func TestSegmentKeepsHonorificsIntact(t *testing.T) {
	segs := Segment("Mr. Okafor in bed 4 is NPO. Dr. Reyes was paged.", Config{})

	require.Len(t, segs, 2)
	assert.Equal(t, "Mr. Okafor in bed 4 is NPO.", segs[0].Text)
	assert.Equal(t, "Dr. Reyes was paged.", segs[1].Text)
}

func TestSegmentNewlinesSplit(t *testing.T) {
	segs := Segment("first line\nsecond line\n\nthird", Config{})
	require.Len(t, segs, 3)
	assert.Equal(t, "second line", segs[1].Text)
}

func TestSegmentEmptyTranscript(t *testing.T) {
	assert.Empty(t, Segment("", Config{}))
	assert.Empty(t, Segment("   \n\t ", Config{}))
}

func TestSegmentCeilingWithOverflowMarker(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 500; i++ {
		fmt.Fprintf(&b, "sentence %d. ", i)
	}

	segs := Segment(b.String(), Config{})
	require.Len(t, segs, DefaultMaxSegments)

	last := segs[len(segs)-1]
	assert.True(t, HasOverflowMarker(last.Text), "final segment must mark consolidation: %q", last.Text)
	assert.Contains(t, last.Text, "[+140 more merged]")
	// nothing silently dropped: the folded tail still contains the last sentence
	assert.Contains(t, last.Text, "sentence 499.")

	for _, s := range segs[:len(segs)-1] {
		assert.False(t, HasOverflowMarker(s.Text))
	}
}

func TestSegmentCeilingOverridable(t *testing.T) {
	segs := Segment("a. b. c. d. e.", Config{MaxSegments: 2, SegmentDurationMs: 100, IDPrefix: "x"})
	require.Len(t, segs, 2)
	assert.Equal(t, "x-1", segs[1].ID)
	assert.True(t, HasOverflowMarker(segs[1].Text))
}

func TestSegmentDeterministic(t *testing.T) {
	transcript := "Bed 4, Mr. Okafor, NPO since midnight. Recheck BP within the hour; fall risk."
	cfg := Config{IDPrefix: "h", SegmentDurationMs: 2500}

	a := Segment(transcript, cfg)
	b := Segment(transcript, cfg)
	assert.Equal(t, a, b)
}

func TestSegmentMonotonicStarts(t *testing.T) {
	segs := Segment(strings.Repeat("again and again. ", 50), Config{})
	var prev int64 = -1
	for _, s := range segs {
		require.GreaterOrEqual(t, s.StartMs, prev)
		prev = s.StartMs
	}
}

func TestNormalizeClampsTimings(t *testing.T) {
	in := []models.TimedText{
		{Text: "patient in twelve resting", StartMs: -500, EndMs: -100, Confidence: 0.9},
		{Text: "glucose was high", StartMs: 1000, EndMs: 1000, Confidence: 0.7},
		{Text: "   ", StartMs: 2000, EndMs: 3000},
		{Text: "recheck at six", StartMs: 500, EndMs: 9000, Confidence: 0.8},
	}

	segs := Normalize(in, Config{SegmentDurationMs: 1000})
	require.Len(t, segs, 3)

	// negative timings clamp to zero with a minimum-duration window
	assert.Equal(t, int64(0), segs[0].StartMs)
	assert.Equal(t, int64(1000), segs[0].EndMs)

	// zero-length window widens to the minimum duration
	assert.Equal(t, int64(1000), segs[1].StartMs)
	assert.Equal(t, int64(2000), segs[1].EndMs)

	// out-of-order start clamps up to keep StartMs monotonic
	assert.Equal(t, int64(1000), segs[2].StartMs)
	assert.Equal(t, int64(9000), segs[2].EndMs)
}

func TestNormalizeCeiling(t *testing.T) {
	in := make([]models.TimedText, 400)
	for i := range in {
		in[i] = models.TimedText{Text: fmt.Sprintf("span %d", i), StartMs: int64(i) * 100, EndMs: int64(i)*100 + 80}
	}

	segs := Normalize(in, Config{})
	require.Len(t, segs, DefaultMaxSegments)
	assert.True(t, HasOverflowMarker(segs[len(segs)-1].Text))
}
