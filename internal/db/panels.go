package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/vitalctx/vitalctx/internal/errors"
	"github.com/vitalctx/vitalctx/internal/health"
)

// Panels is the SQLite-backed lab-panel store.
type Panels struct {
	db *sql.DB
}

// NewPanels creates a panel store over the given database.
func NewPanels(database *sql.DB) *Panels {
	return &Panels{db: database}
}

// Insert stores a new panel and returns it with its assigned ID.
func (s *Panels) Insert(ctx context.Context, name string, resultCount int) (*health.Panel, error) {
	if name == "" {
		return nil, errors.NewInvalidRequest("name is required")
	}
	if resultCount < 0 {
		return nil, errors.NewInvalidRequest("result_count must not be negative")
	}

	id, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	now := time.Now().Unix()
	p := &health.Panel{
		ID:          id,
		Name:        name,
		ResultCount: resultCount,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	query := `
		INSERT INTO panels (id, name, result_count, included, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query, p.ID, p.Name, p.ResultCount, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return p, nil
}

// FetchAll returns a snapshot of every panel, newest first.
func (s *Panels) FetchAll(ctx context.Context) ([]health.Panel, error) {
	query := `
		SELECT id, name, result_count, included, created_at, updated_at
		FROM panels
		ORDER BY created_at DESC, id DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var panels []health.Panel
	for rows.Next() {
		var p health.Panel
		var included int
		if err := rows.Scan(&p.ID, &p.Name, &p.ResultCount, &included,
			&p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, errors.NewInternal(err)
		}
		p.IncludedInContext = included != 0
		panels = append(panels, p)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return panels, nil
}

// GetByID retrieves a single panel.
func (s *Panels) GetByID(ctx context.Context, id string) (*health.Panel, error) {
	query := `
		SELECT id, name, result_count, included, created_at, updated_at
		FROM panels
		WHERE id = ?
	`
	var p health.Panel
	var included int
	err := s.db.QueryRowContext(ctx, query, id).Scan(&p.ID, &p.Name,
		&p.ResultCount, &included, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	p.IncludedInContext = included != 0
	return &p, nil
}

// SetIncluded writes the persisted inclusion flag for one panel.
func (s *Panels) SetIncluded(ctx context.Context, id string, included bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE panels SET included = ?, updated_at = ? WHERE id = ?`,
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

// Delete removes a panel permanently.
func (s *Panels) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM panels WHERE id = ?`, id)
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
