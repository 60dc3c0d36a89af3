package engine

import (
	"context"

	"github.com/vitalctx/vitalctx/internal/category"
	"github.com/vitalctx/vitalctx/internal/health"
)

// DocumentStore is the external document collaborator. Fetches return
// current snapshots; the engine never owns document storage.
type DocumentStore interface {
	FetchAll(ctx context.Context) ([]health.Document, error)
	SetIncluded(ctx context.Context, id string, included bool) error
}

// PanelStore is the external lab-panel collaborator.
type PanelStore interface {
	FetchAll(ctx context.Context) ([]health.Panel, error)
	SetIncluded(ctx context.Context, id string, included bool) error
}

// FlagStore is the external category-flags collaborator. The enabled set
// is one small record, persisted wholesale.
type FlagStore interface {
	FetchEnabled(ctx context.Context) ([]category.Category, error)
	PersistEnabled(ctx context.Context, enabled []category.Category) error
}

// Descriptor is the read-only view handed to the chat client for payload
// assembly: which categories are on and which items are selected.
type Descriptor struct {
	EnabledCategories []category.Category `json:"enabled_categories"`
	SelectedItemIDs   []string            `json:"selected_item_ids"`
}

// DocumentView pairs a document snapshot with its current in-session
// selection state (which may differ from the persisted inclusion flag
// until the next save).
type DocumentView struct {
	health.Document
	Selected bool `json:"selected"`
}

// PanelView pairs a panel snapshot with its current selection state.
type PanelView struct {
	health.Panel
	Selected bool `json:"selected"`
}
