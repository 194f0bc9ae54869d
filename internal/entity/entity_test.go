package entity

import (
	"errors"
	"reflect"
	"testing"
)

type stubRecognizer struct {
	ents []Entity
	err  error

	calls int
}

func (s *stubRecognizer) Recognize(text string) ([]Entity, error) {
	s.calls++
	return s.ents, s.err
}

func TestFilterPeoplePolicy(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   []Entity
		want []string
	}{
		{
			name: "keeps long digit-free person names",
			in: []Entity{
				{Text: "Billy Johnson", Label: "PERSON"},
				{Text: "Margaret Chen", Label: "PERSON"},
			},
			want: []string{"Billy Johnson", "Margaret Chen"},
		},
		{
			name: "drops non-person labels",
			in: []Entity{
				{Text: "Acme Corporation", Label: "ORGANIZATION"},
				{Text: "New Zealand", Label: "GPE"},
				{Text: "Billy Johnson", Label: "PERSON"},
			},
			want: []string{"Billy Johnson"},
		},
		{
			name: "drops names of seven runes or fewer",
			in: []Entity{
				{Text: "Al Gore", Label: "PERSON"},  // exactly 7
				{Text: "Bob Chen", Label: "PERSON"}, // 8, kept
			},
			want: []string{"Bob Chen"},
		},
		{
			name: "drops names containing a digit",
			in: []Entity{
				{Text: "Margaret Chen9", Label: "PERSON"},
				{Text: "Billy Johnson", Label: "PERSON"},
			},
			want: []string{"Billy Johnson"},
		},
		{
			name: "deduplicates preserving first-occurrence order",
			in: []Entity{
				{Text: "Johnathan Doe", Label: "PERSON"},
				{Text: "Johnathan Doe", Label: "PERSON"},
				{Text: "Margaret Chen", Label: "PERSON"},
			},
			want: []string{"Johnathan Doe", "Margaret Chen"},
		},
		{
			name: "nothing survives",
			in: []Entity{
				{Text: "Chen 42", Label: "PERSON"},
				{Text: "London", Label: "GPE"},
			},
			want: nil,
		},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			got := FilterPeople(c.in)
			if !reflect.DeepEqual(got, c.want) {
				t.Fatalf("FilterPeople = %v, want %v", got, c.want)
			}
		})
	}
}

func TestPeopleBlankInputSkipsRecognizer(t *testing.T) {
	t.Parallel()

	rec := &stubRecognizer{ents: []Entity{{Text: "Billy Johnson", Label: "PERSON"}}}
	got, err := People(rec, "   \n\t ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result for blank input, got %v", got)
	}
	if rec.calls != 0 {
		t.Fatalf("recognizer invoked %d times for blank input", rec.calls)
	}
}

func TestPeoplePropagatesRecognizerError(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("model unavailable")
	rec := &stubRecognizer{err: wantErr}
	if _, err := People(rec, "some body text"); !errors.Is(err, wantErr) {
		t.Fatalf("expected recognizer error to propagate, got %v", err)
	}
}

func TestPeopleFiltersRecognizerOutput(t *testing.T) {
	t.Parallel()

	rec := &stubRecognizer{ents: []Entity{
		{Text: "Billy Johnson", Label: "PERSON"},
		{Text: "Margaret Chen9", Label: "PERSON"},
	}}
	got, err := People(rec, "Introduction. Billy Johnson met with Margaret Chen9 in 2020.")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Billy Johnson"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("People = %v, want %v", got, want)
	}
}
