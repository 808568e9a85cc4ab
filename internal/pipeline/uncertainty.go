package pipeline

import (
	"regexp"
	"strings"

	"github.com/relevohq/relevo/internal/models"
)

// inlineResolution matches "ABC (", an abbreviation the speaker expanded
// themselves. Such tokens are considered resolved for the whole session.
var inlineResolution = regexp.MustCompile(`\b([A-Z][A-Z0-9&]{1,5})\s*\(`)

func findInlineResolutions(segs []models.RawSegment) map[string]bool {
	out := make(map[string]bool)
	for _, seg := range segs {
		for _, m := range inlineResolution.FindAllStringSubmatch(seg.Text, -1) {
			out[m[1]] = true
		}
	}
	return out
}

// scanAbbreviations flags all-caps tokens that neither the built-in lexicon
// nor an inline expansion elsewhere in the session can resolve. Tokens from
// the lexicon never produce an uncertainty.
func (r *run) scanAbbreviations(text, segID string) {
	for _, tok := range abbrevPattern.FindAllString(text, -1) {
		if abbrevStopwords[tok] {
			continue
		}
		if _, known := ExpandAbbreviation(tok); known {
			continue
		}
		if r.inlineResolved[tok] {
			continue
		}
		r.addUncertainty(models.UncertaintyUnresolvedAbbreviation, tok, segID)
	}
}

// scanHedges flags hedged numeric values ("glucose was maybe 180") as
// low-confidence.
func (r *run) scanHedges(span, segID string) {
	for _, sentence := range splitClauses(span) {
		if hedgePattern.MatchString(sentence) && strings.ContainsAny(sentence, "0123456789") {
			r.addUncertainty(models.UncertaintyLowConfidenceValue, firstWords(sentence, 8), segID)
		}
	}
}

// addUncertainty records one item, deduplicated by (kind, normalized text) so
// a repeated unknown token costs a single review slot.
func (r *run) addUncertainty(kind models.UncertaintyKind, text, segID string) {
	key := string(kind) + "|" + strings.ToLower(strings.TrimSpace(text))
	if r.uncertainSeen[key] {
		return
	}
	r.uncertainSeen[key] = true
	r.uncertainties = append(r.uncertainties, models.UncertaintyItem{
		Kind:            kind,
		Text:            strings.TrimSpace(text),
		SourceSegmentID: segID,
	})
}

// capUncertainties bounds the reported set proportionally to input size so
// the output stays reviewable by a human in seconds: at least 4 slots for the
// shortest transcripts, never more than 24.
func capUncertainties(items []models.UncertaintyItem, segCount int) []models.UncertaintyItem {
	limit := segCount / 2
	if limit < 4 {
		limit = 4
	}
	if limit > 24 {
		limit = 24
	}
	if len(items) > limit {
		items = items[:limit]
	}
	if items == nil {
		items = []models.UncertaintyItem{}
	}
	return items
}
