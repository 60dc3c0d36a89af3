package db

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/vitalctx/vitalctx/internal/category"
	"github.com/vitalctx/vitalctx/internal/errors"
	"github.com/vitalctx/vitalctx/internal/health"
)

// Documents is the SQLite-backed document store.
type Documents struct {
	db *sql.DB
}

// NewDocuments creates a document store over the given database.
func NewDocuments(database *sql.DB) *Documents {
	return &Documents{db: database}
}

// Insert stores a new document and returns it with its assigned ID.
func (s *Documents) Insert(ctx context.Context, title string, kind category.Kind, extractedText string) (*health.Document, error) {
	if title == "" {
		return nil, errors.NewInvalidRequest("title is required")
	}
	if !category.ValidKind(kind) || kind == category.KindProfile || kind == category.KindPanel {
		return nil, errors.NewInvalidRequest("kind must be one of: imaging_doc, checkup_doc")
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	now := time.Now().Unix()
	d := &health.Document{
		ID:             id,
		Title:          title,
		Kind:           kind,
		ExtractedText:  extractedText,
		ExtractedChars: health.CountChars(extractedText),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	query := `
		INSERT INTO documents (
			id, title, kind, extracted_text, extracted_chars,
			included, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, 0, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		d.ID, d.Title, string(d.Kind), nullIfEmpty(d.ExtractedText),
		d.ExtractedChars, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return d, nil
}

// FetchAll returns a snapshot of every document, newest first.
func (s *Documents) FetchAll(ctx context.Context) ([]health.Document, error) {
	query := `
		SELECT id, title, kind, extracted_text, extracted_chars,
			included, created_at, updated_at
		FROM documents
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var docs []health.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		docs = append(docs, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return docs, nil
}

// GetByID retrieves a single document.
func (s *Documents) GetByID(ctx context.Context, id string) (*health.Document, error) {
	query := `
		SELECT id, title, kind, extracted_text, extracted_chars,
			included, created_at, updated_at
		FROM documents
		WHERE id = ?
	`
	row := s.db.QueryRowContext(ctx, query, id)
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return d, nil
}

// SetIncluded writes the persisted inclusion flag for one document.
func (s *Documents) SetIncluded(ctx context.Context, id string, included bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET included = ?, updated_at = ? WHERE id = ?`,
		boolToInt(included), time.Now().Unix(), id,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if affected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// Delete removes a document permanently.
func (s *Documents) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if affected == 0 {
		return errors.NewNotFound(id)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanDocument reads one document row.
func scanDocument(row rowScanner) (*health.Document, error) {
	var d health.Document
	var kind string
	var text sql.NullString
	var included int
	if err := row.Scan(&d.ID, &d.Title, &kind, &text, &d.ExtractedChars,
		&included, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Kind = category.Kind(kind)
	d.ExtractedText = text.String
	d.IncludedInContext = included != 0
	return &d, nil
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// nullIfEmpty converts an empty string to a SQL NULL.
func nullIfEmpty(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// boolToInt converts a bool to its SQLite integer form.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
