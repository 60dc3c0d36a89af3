package engine

import (
	"sort"

	"github.com/vitalctx/vitalctx/internal/category"
)

// Selection is the engine's mutable in-session state: a per-category
// enabled flag and a flat set of selected item ids. Category enablement
// and item selection are orthogonal: disabling a category never removes
// selected ids by itself. Selection is not goroutine-safe; the engine
// serializes access.
type Selection struct {
	enabled  map[category.Category]bool
	selected map[string]struct{}
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{
		enabled:  make(map[category.Category]bool),
		selected: make(map[string]struct{}),
	}
}

// SetCategoryEnabled sets the enabled flag for a category. Unknown
// categories are ignored. This never touches item selection; bulk
// auto-select is a separate, explicit operation.
func (s *Selection) SetCategoryEnabled(c category.Category, enabled bool) {
	if !category.Valid(c) {
		return
	}
	if enabled {
		s.enabled[c] = true
	} else {
		delete(s.enabled, c)
	}
}

// CategoryEnabled reports whether a category is enabled.
func (s *Selection) CategoryEnabled(c category.Category) bool {
	return s.enabled[c]
}

// SetItemSelected sets or clears membership in the selected-id set.
// Idempotent; unknown ids are accepted and stay inert until the next
// load prunes them.
func (s *Selection) SetItemSelected(id string, selected bool) {
	if id == "" {
		return
	}
	if selected {
		s.selected[id] = struct{}{}
	} else {
		delete(s.selected, id)
	}
}

// ItemSelected reports whether an id is in the selected set.
func (s *Selection) ItemSelected(id string) bool {
	_, ok := s.selected[id]
	return ok
}

// SelectedIDs returns the selected ids in sorted order.
func (s *Selection) SelectedIDs() []string {
	ids := make([]string, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// EnabledCategories returns the enabled categories in registry order.
func (s *Selection) EnabledCategories() []category.Category {
	var out []category.Category
	for _, c := range category.All() {
		if s.enabled[c] {
			out = append(out, c)
		}
	}
	return out
}

// SelectedCount returns the size of the selected-id set, including ids
// that are unknown or whose category is disabled.
func (s *Selection) SelectedCount() int {
	return len(s.selected)
}
