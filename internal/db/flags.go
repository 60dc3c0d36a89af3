package db

import (
	"context"
	"database/sql"

	"github.com/vitalctx/vitalctx/internal/category"
	"github.com/vitalctx/vitalctx/internal/errors"
)

// Flags is the SQLite-backed category-flags store. A row in context_flags
// means the category is enabled for AI context.
type Flags struct {
	db *sql.DB
}

// NewFlags creates a category-flags store over the given database.
func NewFlags(database *sql.DB) *Flags {
	return &Flags{db: database}
}

// FetchEnabled returns the set of enabled categories. Rows for categories
// no longer in the registry are ignored.
func (s *Flags) FetchEnabled(ctx context.Context) ([]category.Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category FROM context_flags`)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	var enabled []category.Category
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.NewInternal(err)
		}
		c := category.Category(name)
		if category.Valid(c) {
			enabled = append(enabled, c)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return enabled, nil
}

// PersistEnabled replaces the enabled-category record wholesale in one
// transaction.
func (s *Flags) PersistEnabled(ctx context.Context, enabled []category.Category) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM context_flags`); err != nil {
		return errors.NewInternal(err)
	}
	for _, c := range enabled {
		if !category.Valid(c) {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO context_flags (category) VALUES (?)`, string(c)); err != nil {
			return errors.NewInternal(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}
