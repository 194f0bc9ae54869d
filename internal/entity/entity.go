// Package entity runs named-entity recognition over body text and filters
// the candidates down to plausible person names.
package entity

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// LabelPerson is the category label retained by the person filter.
const LabelPerson = "PERSON"

// minPersonRunes is the exclusive lower bound on a retained span's length.
const minPersonRunes = 7

// Entity is one contiguous span tagged with a semantic category by a
// recognizer.
type Entity struct {
	Text  string
	Label string
}

// Recognizer is the external recognition capability: given text, produce
// spans tagged with a category label.
type Recognizer interface {
	Recognize(text string) ([]Entity, error)
}

// People extracts filtered person names from text using r.
//
// A candidate survives when its label is PERSON, its text is longer than
// seven runes, and it contains no digit. Survivors keep first-occurrence
// order; exact-string duplicates are dropped. Blank input short-circuits to
// an empty result without invoking the recognizer.
func People(r Recognizer, text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	ents, err := r.Recognize(text)
	if err != nil {
		return nil, err
	}
	return FilterPeople(ents), nil
}

// FilterPeople applies the person-name policy to already-recognized spans.
func FilterPeople(ents []Entity) []string {
	var out []string
	seen := make(map[string]struct{}, len(ents))

	for _, e := range ents {
		if e.Label != LabelPerson {
			continue
		}
		if utf8.RuneCountInString(e.Text) <= minPersonRunes {
			continue
		}
		if hasDigit(e.Text) {
			continue
		}
		if _, dup := seen[e.Text]; dup {
			continue
		}
		seen[e.Text] = struct{}{}
		out = append(out, e.Text)
	}
	return out
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
