// Package segment locates the boundary between a paper's body and its
// reference list so entity recognition never runs over bibliography lines.
package segment

import "strings"

const (
	introMarker     = "Introduction"
	referenceMarker = "Reference"
)

// BodyText returns the slice of text judged to be the paper body: from the
// first case-sensitive occurrence of "Introduction" to the first
// case-sensitive occurrence of "Reference".
//
// When "Introduction" is absent the body starts at offset 0. When
// "Reference" is absent the body runs to the end of the text (strings.Index
// returns -1 there; treating that as "drop the final character" would be an
// off-by-one, so the miss maps to len(text) instead). A start at or past the
// end yields an empty string.
func BodyText(text string) string {
	start := strings.Index(text, introMarker)
	if start < 0 {
		start = 0
	}

	end := strings.Index(text, referenceMarker)
	if end < 0 {
		end = len(text)
	}

	if start >= end {
		return ""
	}
	return text[start:end]
}
