package audit

import "strings"

// SanitizeDetail strips control characters and non-allow-listed symbols from
// a detail string and truncates it to max bytes. The allow-list is letters,
// digits, space, and the punctuation an operator-facing log line needs;
// everything else is dropped so exported logs carry no escape sequences or
// markup.
func SanitizeDetail(detail string, max int) string {
	var b strings.Builder
	b.Grow(len(detail))
	for _, r := range detail {
		if allowedDetailRune(r) {
			b.WriteRune(r)
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	if len(out) > max {
		out = strings.TrimSpace(out[:max])
	}
	return out
}

func allowedDetailRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == ' ' || r == '\t' || r == '\n':
		return true // collapsed to single spaces afterwards
	}
	switch r {
	case '.', ',', ':', ';', '-', '_', '(', ')', '/', '=', '#', '%', '+':
		return true
	}
	return false
}
