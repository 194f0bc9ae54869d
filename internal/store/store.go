// Package store persists ingested document records in SQLite.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	_ "modernc.org/sqlite"
)

// Record is the persisted unit for one ingested document. Fields are set
// exactly once at ingestion and never mutated afterwards; there is no
// deletion path.
type Record struct {
	ID               int64    `json:"id"`
	FileID           string   `json:"fileId"`
	Author           string   `json:"author"`
	CreationDate     string   `json:"creationDate"`
	ModificationDate string   `json:"modificationDate"`
	Creator          string   `json:"creator"`
	NamedEntities    []string `json:"namedEntities"`
	Text             string   `json:"-"`
}

// Store wraps a single SQLite handle. It is an explicit value passed to
// consumers; there is deliberately no package-level session.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path with WAL mode and
// the pdfs table in place.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS pdfs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	author TEXT,
	creation_date TEXT,
	modification_date TEXT,
	creator TEXT,
	named_entities TEXT,
	text TEXT,
	file_id TEXT UNIQUE NOT NULL
);
`
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Persist inserts rec as a new row and returns the store-assigned id,
// resolved by re-querying on file_id after commit. The UNIQUE constraint on
// file_id guarantees the lookup resolves to exactly the inserted row.
func (s *Store) Persist(ctx context.Context, rec Record) (int64, error) {
	entitiesJSON, err := json.Marshal(rec.NamedEntities)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
INSERT INTO pdfs (author, creation_date, modification_date, creator, named_entities, text, file_id)
VALUES (?, ?, ?, ?, ?, ?, ?);
`, rec.Author, rec.CreationDate, rec.ModificationDate, rec.Creator, string(entitiesJSON), rec.Text, rec.FileID)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT id FROM pdfs WHERE file_id = ?`, rec.FileID).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve inserted record: %w", err)
	}
	return id, nil
}

// GetByID retrieves a record by its store-assigned id.
func (s *Store) GetByID(ctx context.Context, id int64) (Record, bool, error) {
	return s.loadRecord(ctx, `SELECT id, author, creation_date, modification_date, creator, named_entities, text, file_id FROM pdfs WHERE id = ?`, id)
}

// GetByFileID retrieves a record by its generated file identifier.
func (s *Store) GetByFileID(ctx context.Context, fileID string) (Record, bool, error) {
	return s.loadRecord(ctx, `SELECT id, author, creation_date, modification_date, creator, named_entities, text, file_id FROM pdfs WHERE file_id = ?`, fileID)
}

func (s *Store) loadRecord(ctx context.Context, query string, arg any) (Record, bool, error) {
	var (
		rec          Record
		entitiesJSON string
	)
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&rec.ID,
		&rec.Author,
		&rec.CreationDate,
		&rec.ModificationDate,
		&rec.Creator,
		&entitiesJSON,
		&rec.Text,
		&rec.FileID,
	)
	if err == sql.ErrNoRows {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}

	if entitiesJSON != "" {
		if err := json.Unmarshal([]byte(entitiesJSON), &rec.NamedEntities); err != nil {
			return Record{}, false, fmt.Errorf("decode named_entities: %w", err)
		}
	}
	return rec, true, nil
}

// Count reports how many records the store holds.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pdfs`).Scan(&total)
	return total, err
}

// HasDocumentID reports whether candidate names an existing record: it must
// be composed entirely of decimal digits and, parsed as an integer, match a
// stored primary key. Non-digit or unknown candidates are "not found", never
// an error.
func (s *Store) HasDocumentID(ctx context.Context, candidate string) (bool, error) {
	if !allDigits(candidate) {
		return false, nil
	}
	id, err := strconv.ParseInt(candidate, 10, 64)
	if err != nil || id < 1 {
		return false, nil
	}

	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM pdfs WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FileEmpty reports whether the backing database file has zero bytes on
// disk, as opposed to an initialized database holding zero records.
func (s *Store) FileEmpty() bool {
	info, err := os.Stat(s.path)
	if err != nil {
		return false
	}
	return info.Size() == 0
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
