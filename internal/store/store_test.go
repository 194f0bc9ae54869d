package store

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "pdf.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testRecord(fileID string) Record {
	return Record{
		FileID:           fileID,
		Author:           "pdfTeX-1.40.21",
		CreationDate:     "D:20200303101502Z",
		ModificationDate: "D:20200304080000Z",
		Creator:          "LaTeX with hyperref",
		NamedEntities:    []string{"Billy Johnson", "Margaret Chen"},
		Text:             "Introduction. Billy Johnson met with Margaret Chen. References.",
	}
}

func TestPersistAndGetByIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	rec := testRecord("baaatgwcatfnckpi")
	id, err := s.Persist(ctx, rec)
	if err != nil {
		t.Fatalf("persist: %v", err)
	}
	if id != 1 {
		t.Fatalf("first assigned id = %d, want 1", id)
	}

	got, found, err := s.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if !found {
		t.Fatal("record not found after persist")
	}
	if got.Text != rec.Text {
		t.Fatalf("text = %q, want the extractor output verbatim %q", got.Text, rec.Text)
	}
	if got.Author != rec.Author || got.Creator != rec.Creator {
		t.Fatalf("metadata mismatch: %+v", got)
	}
	if !reflect.DeepEqual(got.NamedEntities, rec.NamedEntities) {
		t.Fatalf("entities = %v, want %v", got.NamedEntities, rec.NamedEntities)
	}
}

func TestPersistAssignsMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for i, fileID := range []string{"aaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbb", "cccccccccccccccc"} {
		id, err := s.Persist(ctx, testRecord(fileID))
		if err != nil {
			t.Fatalf("persist %d: %v", i, err)
		}
		if id != int64(i+1) {
			t.Fatalf("assigned id = %d, want %d", id, i+1)
		}
	}
}

func TestGetByFileID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.Persist(ctx, testRecord("baaatgwcatfnckpi")); err != nil {
		t.Fatalf("persist: %v", err)
	}

	got, found, err := s.GetByFileID(ctx, "baaatgwcatfnckpi")
	if err != nil {
		t.Fatalf("get by file id: %v", err)
	}
	if !found || got.FileID != "baaatgwcatfnckpi" {
		t.Fatalf("lookup by file id failed: found=%v rec=%+v", found, got)
	}

	_, found, err = s.GetByFileID(ctx, "zzzzzzzzzzzzzzzz")
	if err != nil {
		t.Fatalf("get by unknown file id: %v", err)
	}
	if found {
		t.Fatal("unknown file id reported as found")
	}
}

func TestPersistRejectsDuplicateFileID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, err := s.Persist(ctx, testRecord("baaatgwcatfnckpi")); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if _, err := s.Persist(ctx, testRecord("baaatgwcatfnckpi")); err == nil {
		t.Fatal("expected unique constraint violation for duplicate file_id")
	}
}

func TestHasDocumentID(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	for _, fileID := range []string{"aaaaaaaaaaaaaaaa", "bbbbbbbbbbbbbbbb", "cccccccccccccccc"} {
		if _, err := s.Persist(ctx, testRecord(fileID)); err != nil {
			t.Fatalf("persist: %v", err)
		}
	}

	cases := []struct {
		candidate string
		want      bool
	}{
		{"1", true},
		{"3", true},
		{"4", false},
		{"0", false},
		{"abc", false},
		{"", false},
		{"-1", false},
		{"2x", false},
	}
	for _, c := range cases {
		t.Run(c.candidate, func(t *testing.T) {
			got, err := s.HasDocumentID(ctx, c.candidate)
			if err != nil {
				t.Fatalf("HasDocumentID(%q): %v", c.candidate, err)
			}
			if got != c.want {
				t.Fatalf("HasDocumentID(%q) = %v, want %v", c.candidate, got, c.want)
			}
		})
	}
}

func TestCount(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	n, err := s.Count(ctx)
	if err != nil || n != 0 {
		t.Fatalf("empty store count = %d, %v", n, err)
	}

	if _, err := s.Persist(ctx, testRecord("aaaaaaaaaaaaaaaa")); err != nil {
		t.Fatalf("persist: %v", err)
	}
	n, err = s.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("count after one persist = %d, %v", n, err)
	}
}

func TestFileEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pdf.db")

	// A zero-byte file at the store path reads as "never initialized".
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatalf("touch: %v", err)
	}
	s := &Store{path: path}
	if !s.FileEmpty() {
		t.Fatal("zero-byte store file not reported empty")
	}

	// A real opened store has schema bytes on disk even with zero records.
	opened, err := Open(context.Background(), filepath.Join(dir, "real.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer opened.Close()
	if opened.FileEmpty() {
		t.Fatal("initialized store reported empty")
	}
}
