package crawler

import "unicode/utf8"

// Snippet returns the part of text spanning ctx bytes on each side of pos,
// clipped to the text bounds. Clip points are widened outward to the nearest
// rune boundary so a multi-byte character is never cut in half. A clipped
// side is marked with an ellipsis. Pure function.
func Snippet(text string, pos, ctx int) string {
	start := pos - ctx
	if start < 0 {
		start = 0
	}
	end := pos + ctx
	if end > len(text) {
		end = len(text)
	}
	if start > end {
		start = end
	}
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	snippet := text[start:end]
	if start > 0 {
		snippet = "…" + snippet
	}
	if end < len(text) {
		snippet = snippet + "…"
	}
	return snippet
}
