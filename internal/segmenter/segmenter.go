// Package segmenter turns free-form handoff transcripts into bounded,
// time-stamped segments. Segmentation is deterministic: identical input and
// config always produce identical output, which audit replay and the
// pipeline's reproducibility tests rely on.
package segmenter

import (
	"fmt"
	"strings"

	"github.com/relevohq/relevo/internal/models"
)

const (
	DefaultSegmentDurationMs = 4000
	DefaultMaxSegments       = 360
	DefaultIDPrefix          = "seg"

	overflowMarkerSuffix = "more merged]"
)

type Config struct {
	IDPrefix          string
	SegmentDurationMs int64
	MaxSegments       int
}

func (c Config) withDefaults() Config {
	if c.IDPrefix == "" {
		c.IDPrefix = DefaultIDPrefix
	}
	if c.SegmentDurationMs <= 0 {
		c.SegmentDurationMs = DefaultSegmentDurationMs
	}
	if c.MaxSegments <= 0 {
		c.MaxSegments = DefaultMaxSegments
	}
	return c
}

// Segment splits a transcript into sentence/clause-scale chunks and assigns
// each a synthetic, sequential, non-overlapping time window starting at 0.
// The number of emitted segments never exceeds cfg.MaxSegments; when raw
// splitting would, the excess is folded into the final segment and its text
// gains a human-readable overflow marker so truncation is detectable.
func Segment(transcript string, cfg Config) []models.RawSegment {
	cfg = cfg.withDefaults()

	chunks := split(transcript)
	chunks = fold(chunks, cfg.MaxSegments)

	segs := make([]models.RawSegment, 0, len(chunks))
	for i, text := range chunks {
		start := int64(i) * cfg.SegmentDurationMs
		segs = append(segs, models.RawSegment{
			ID:      fmt.Sprintf("%s-%d", cfg.IDPrefix, i),
			Text:    text,
			StartMs: start,
			EndMs:   start + cfg.SegmentDurationMs,
		})
	}
	return segs
}

// Normalize converts ASR provider output into the same RawSegment form that
// Segment produces, so dictated and typed handoffs are equivalent pipeline
// inputs. Missing or invalid timings are clamped to non-negative windows of
// at least the configured segment duration, and start times are forced
// monotonic non-decreasing.
func Normalize(results []models.TimedText, cfg Config) []models.RawSegment {
	cfg = cfg.withDefaults()

	texts := make([]string, 0, len(results))
	starts := make([]int64, 0, len(results))
	ends := make([]int64, 0, len(results))

	var prevStart int64
	for _, r := range results {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		start := r.StartMs
		if start < 0 {
			start = 0
		}
		if start < prevStart {
			start = prevStart
		}
		end := r.EndMs
		if end < start+cfg.SegmentDurationMs {
			end = start + cfg.SegmentDurationMs
		}
		texts = append(texts, text)
		starts = append(starts, start)
		ends = append(ends, end)
		prevStart = start
	}

	if len(texts) > cfg.MaxSegments {
		texts = fold(texts, cfg.MaxSegments)
		starts = starts[:len(texts)]
		// the folded tail keeps the last original end time
		ends = append(ends[:len(texts)-1], ends[len(ends)-1])
	}

	segs := make([]models.RawSegment, 0, len(texts))
	for i := range texts {
		segs = append(segs, models.RawSegment{
			ID:      fmt.Sprintf("%s-%d", cfg.IDPrefix, i),
			Text:    texts[i],
			StartMs: starts[i],
			EndMs:   ends[i],
		})
	}
	return segs
}

// HasOverflowMarker reports whether a segment's text carries the
// consolidation marker appended when splitting exceeded the ceiling.
func HasOverflowMarker(text string) bool {
	return strings.HasSuffix(text, overflowMarkerSuffix)
}

// honorifics whose trailing period never ends a sentence; splitting inside
// "Mr. Okafor" would tear an alias across segments.
var honorifics = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "mx": true, "dr": true,
	"jr": true, "sr": true, "st": true, "no": true,
}

// split cuts the transcript at sentence/clause boundaries. A terminator only
// ends a chunk when followed by whitespace or end-of-input, so decimal values
// ("98.6") and fractions survive intact.
func split(transcript string) []string {
	var chunks []string
	var b strings.Builder

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			chunks = append(chunks, s)
		}
		b.Reset()
	}

	runes := []rune(transcript)
	for i, r := range runes {
		if r == '\n' || r == '\r' {
			flush()
			continue
		}
		b.WriteRune(r)
		if isTerminator(r) && (i+1 == len(runes) || isBoundary(runes[i+1])) {
			if r == '.' && honorifics[trailingWord(b.String())] {
				continue
			}
			flush()
		}
	}
	flush()
	return chunks
}

// trailingWord returns the lowercased word immediately before the final rune
// of s (the terminator just written).
func trailingWord(s string) string {
	if len(s) < 2 {
		return ""
	}
	end := len(s) - 1 // position of the terminator
	start := end
	for start > 0 && isWordRune(rune(s[start-1])) {
		start--
	}
	return strings.ToLower(s[start:end])
}

func isWordRune(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == ';'
}

func isBoundary(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

// fold merges every chunk past the ceiling into the final one and appends the
// overflow marker, so nothing is silently dropped.
func fold(chunks []string, max int) []string {
	if len(chunks) <= max {
		return chunks
	}
	extra := len(chunks) - max
	tail := strings.Join(chunks[max-1:], " ")
	out := append([]string(nil), chunks[:max-1]...)
	out = append(out, fmt.Sprintf("%s [+%d %s", tail, extra, overflowMarkerSuffix))
	return out
}
