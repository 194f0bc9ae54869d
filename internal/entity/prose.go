package entity

import (
	"fmt"

	"github.com/jdkato/prose/v2"
)

// ProseRecognizer backs the Recognizer capability with the prose NLP
// library's in-process entity extraction. The zero value is ready to use.
type ProseRecognizer struct{}

func (ProseRecognizer) Recognize(text string) ([]Entity, error) {
	doc, err := prose.NewDocument(text,
		prose.WithSegmentation(false),
	)
	if err != nil {
		return nil, fmt.Errorf("prose: %w", err)
	}

	raw := doc.Entities()
	ents := make([]Entity, 0, len(raw))
	for _, e := range raw {
		ents = append(ents, Entity{Text: e.Text, Label: e.Label})
	}
	return ents, nil
}
