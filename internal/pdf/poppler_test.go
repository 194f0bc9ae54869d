package pdf

import "testing"

const sampleInfo = `Title:          A Sample Paper
Producer:       pdfTeX-1.40.21
Creator:        LaTeX with hyperref
CreationDate:   Tue Mar  3 10:15:02 2020 UTC
ModDate:        Wed Mar  4 08:00:00 2020 UTC
Pages:          12
Encrypted:      no
File size:      204800 bytes
`

func TestParseInfoFields(t *testing.T) {
	t.Parallel()

	fields := parseInfoFields(sampleInfo)
	if got := fields["Producer"]; got != "pdfTeX-1.40.21" {
		t.Fatalf("Producer = %q", got)
	}
	if got := fields["CreationDate"]; got != "Tue Mar  3 10:15:02 2020 UTC" {
		t.Fatalf("CreationDate = %q", got)
	}
	if got := fields["Pages"]; got != "12" {
		t.Fatalf("Pages = %q", got)
	}
}

func TestMetadataFromInfoAllKeysPresent(t *testing.T) {
	t.Parallel()

	meta, ok := metadataFromInfo(parseInfoFields(sampleInfo))
	if !ok {
		t.Fatal("expected metadata batch to succeed")
	}
	if meta.Author != "pdfTeX-1.40.21" {
		t.Fatalf("Author = %q, want the Producer value", meta.Author)
	}
	if meta.Creator != "LaTeX with hyperref" {
		t.Fatalf("Creator = %q", meta.Creator)
	}
	if meta.CreationDate != "Tue Mar  3 10:15:02 2020 UTC" {
		t.Fatalf("CreationDate = %q", meta.CreationDate)
	}
	if meta.ModificationDate != "Wed Mar  4 08:00:00 2020 UTC" {
		t.Fatalf("ModificationDate = %q", meta.ModificationDate)
	}
}

func TestMetadataFromInfoIsAllOrNothing(t *testing.T) {
	t.Parallel()

	// Any single missing key fails the whole batch, even though the other
	// three are present.
	partials := []string{
		"Creator: x\nCreationDate: y\nModDate: z\n",        // missing Producer
		"Producer: x\nCreationDate: y\nModDate: z\n",       // missing Creator
		"Producer: x\nCreator: y\nModDate: z\n",            // missing CreationDate
		"Producer: x\nCreator: y\nCreationDate: z\n",       // missing ModDate
		"",                                                 // nothing at all
	}
	for _, out := range partials {
		if _, ok := metadataFromInfo(parseInfoFields(out)); ok {
			t.Fatalf("expected batch failure for partial info %q", out)
		}
	}
}

func TestSentinelMetadata(t *testing.T) {
	t.Parallel()

	meta := SentinelMetadata()
	for name, v := range map[string]string{
		"Author":           meta.Author,
		"CreationDate":     meta.CreationDate,
		"ModificationDate": meta.ModificationDate,
		"Creator":          meta.Creator,
	} {
		if v != Sentinel {
			t.Fatalf("%s = %q, want %q", name, v, Sentinel)
		}
	}
}
