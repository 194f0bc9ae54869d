// Package ingest composes the document-ingestion pipeline: accept upload
// bytes, assign a file identifier, store the file, extract text and
// metadata, segment out the reference list, filter person entities, and
// persist the record.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"

	"github.com/toricodesthings/paper-ingestion-service/internal/entity"
	"github.com/toricodesthings/paper-ingestion-service/internal/fileid"
	"github.com/toricodesthings/paper-ingestion-service/internal/pdf"
	"github.com/toricodesthings/paper-ingestion-service/internal/segment"
	"github.com/toricodesthings/paper-ingestion-service/internal/store"
)

// Pipeline stages, used to tag failures so callers can tell a decode
// failure from a store failure.
const (
	StageSave     = "save"
	StageDecode   = "decode"
	StageEntities = "entities"
	StageStore    = "store"
)

// ErrNotPDF rejects uploads whose bytes do not sniff as a PDF document.
var ErrNotPDF = errors.New("uploaded file is not a PDF")

// collisionRetries bounds how many fresh identifiers are tried when a
// generated one already names a record or a file on disk.
const collisionRetries = 3

// StageError wraps a pipeline failure with the stage that produced it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string { return e.Stage + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// Decoder is the PDF decode capability: plain text plus the metadata batch
// for a stored file. *pdf.Extractor is the production implementation.
type Decoder interface {
	Text(ctx context.Context, path string) (string, error)
	Metadata(ctx context.Context, path string) pdf.Metadata
}

// Pipeline wires the ingestion collaborators together. All stages of one
// request run strictly sequentially.
type Pipeline struct {
	Decoder    Decoder
	Recognizer entity.Recognizer
	Store      *store.Store
	UploadDir  string

	// NewID overrides identifier generation; nil means fileid.New.
	NewID func() string
}

// Ingest runs one upload through the full pipeline and returns the
// persisted record, id assigned.
//
// Text-extraction and persistence failures are fatal and stage-tagged;
// metadata extraction degrades to sentinel values and segmentation misses
// fall back to documented defaults, so neither ever aborts a request. The
// persisted text is always the complete extracted text, not the segmented
// body used for entity recognition.
func (p *Pipeline) Ingest(ctx context.Context, upload io.Reader) (store.Record, error) {
	data, err := io.ReadAll(upload)
	if err != nil {
		return store.Record{}, &StageError{Stage: StageSave, Err: err}
	}
	if !mimetype.Detect(data).Is("application/pdf") {
		return store.Record{}, &StageError{Stage: StageSave, Err: ErrNotPDF}
	}

	path, fileID, err := p.saveUpload(ctx, data)
	if err != nil {
		return store.Record{}, &StageError{Stage: StageSave, Err: err}
	}

	text, err := p.Decoder.Text(ctx, path)
	if err != nil {
		return store.Record{}, &StageError{Stage: StageDecode, Err: err}
	}

	meta := p.Decoder.Metadata(ctx, path)

	body := segment.BodyText(text)

	people, err := entity.People(p.Recognizer, body)
	if err != nil {
		return store.Record{}, &StageError{Stage: StageEntities, Err: err}
	}

	rec := store.Record{
		FileID:           fileID,
		Author:           meta.Author,
		CreationDate:     meta.CreationDate,
		ModificationDate: meta.ModificationDate,
		Creator:          meta.Creator,
		NamedEntities:    people,
		Text:             text,
	}

	id, err := p.Store.Persist(ctx, rec)
	if err != nil {
		return store.Record{}, &StageError{Stage: StageStore, Err: err}
	}
	rec.ID = id
	return rec, nil
}

// saveUpload writes data under a freshly generated identifier, creating the
// upload directory on first use. Identifiers already claimed by a record or
// a file on disk are rejected and redrawn a bounded number of times.
func (p *Pipeline) saveUpload(ctx context.Context, data []byte) (path, fileID string, err error) {
	if err := os.MkdirAll(p.UploadDir, 0o755); err != nil {
		return "", "", fmt.Errorf("upload dir: %w", err)
	}

	newID := p.NewID
	if newID == nil {
		newID = fileid.New
	}

	for attempt := 0; attempt <= collisionRetries; attempt++ {
		fileID = newID()

		if _, found, err := p.Store.GetByFileID(ctx, fileID); err != nil {
			return "", "", err
		} else if found {
			continue
		}

		path = filepath.Join(p.UploadDir, fileID+".pdf")
		if _, err := os.Stat(path); err == nil {
			continue
		}

		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", "", fmt.Errorf("write upload: %w", err)
		}
		return path, fileID, nil
	}
	return "", "", fmt.Errorf("could not allocate a free file identifier after %d attempts", collisionRetries+1)
}
