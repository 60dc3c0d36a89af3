// Package health holds the health-data item types the context engine
// selects from, plus the fixed token-cost heuristics for estimating the
// size of the assembled context payload.
package health

import "github.com/vitalctx/vitalctx/internal/category"

// Document represents an imported health document (imaging report,
// checkup summary). ExtractedText is the OCR/AI-extracted text, empty
// when extraction produced nothing usable.
type Document struct {
	// ID is a ULID that uniquely identifies this document
	ID string `json:"id"`

	// Title is a human-readable title
	Title string `json:"title"`

	// Kind is the item kind (imaging_doc or checkup_doc)
	Kind category.Kind `json:"kind"`

	// ExtractedText is the extracted text content, if any
	ExtractedText string `json:"extracted_text,omitempty"`

	// ExtractedChars is the character count of ExtractedText (runes)
	ExtractedChars int `json:"extracted_chars"`

	// IncludedInContext is the persisted inclusion flag owned by the
	// document store; the engine reads snapshots and writes back changes
	IncludedInContext bool `json:"included_in_context"`

	// CreatedAt is the Unix timestamp when the document was imported
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the Unix timestamp of the last change
	UpdatedAt int64 `json:"updated_at"`
}

// Panel represents one lab panel (a dated group of lab results).
type Panel struct {
	// ID is a ULID that uniquely identifies this panel
	ID string `json:"id"`

	// Name is a human-readable panel name (e.g. "CBC 2026-08-01")
	Name string `json:"name"`

	// ResultCount is the number of canonical results in the panel
	ResultCount int `json:"result_count"`

	// IncludedInContext is the persisted inclusion flag owned by the
	// panel store
	IncludedInContext bool `json:"included_in_context"`

	// CreatedAt is the Unix timestamp when the panel was created
	CreatedAt int64 `json:"created_at"`

	// UpdatedAt is the Unix timestamp of the last change
	UpdatedAt int64 `json:"updated_at"`
}

// Category returns the owning category for the document's kind.
func (d *Document) Category() category.Category {
	c, _ := category.Owner(d.Kind)
	return c
}
