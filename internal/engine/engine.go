// Package engine implements the AI-context selection and token-budget
// engine: it tracks which health-data items are included in the chat
// context, memoizes a token estimate over that selection, and persists
// only the minimal set of inclusion changes back to the item stores.
package engine

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vitalctx/vitalctx/internal/category"
	"github.com/vitalctx/vitalctx/internal/errors"
	"github.com/vitalctx/vitalctx/internal/health"
)

// State is the façade's lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateSaving  State = "saving"
	StateErrored State = "errored" // recoverable: retry the failed load/save
)

// Engine is the context-selection façade. One instance per editing
// session; stores are injected so tests can substitute fakes. All state
// access is serialized on an internal mutex, and load/save are the only
// operations that suspend.
type Engine struct {
	docStore   DocumentStore
	panelStore PanelStore
	flagStore  FlagStore

	mu     sync.Mutex
	state  State
	closed bool

	// last-fetched persisted snapshots, keyed by item id
	docs   map[string]health.Document
	panels map[string]health.Panel
	// persisted enabled-flags snapshot, for flag-record diffing
	lastEnabled map[category.Category]bool

	sel  *Selection
	cost *costSnapshot
}

// New creates an engine in the Idle state. Call Load before anything else.
func New(docs DocumentStore, panels PanelStore, flags FlagStore) *Engine {
	return &Engine{
		docStore:    docs,
		panelStore:  panels,
		flagStore:   flags,
		state:       StateIdle,
		docs:        make(map[string]health.Document),
		panels:      make(map[string]health.Panel),
		lastEnabled: make(map[category.Category]bool),
		sel:         NewSelection(),
	}
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Close marks the engine torn down. In-flight load/save requests run to
// completion but their results are discarded.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
}

// Load pulls current persisted state from all stores concurrently and
// replaces the selection wholesale: enabled flags come from the flag
// store, the selected set is rebuilt from each item's persisted
// inclusion, and ids for items that no longer exist vanish. Valid from
// Idle, Ready and Errored; a load or save already in flight is rejected.
func (e *Engine) Load(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.NewInvalidRequest("engine is closed")
	}
	switch e.state {
	case StateIdle, StateReady, StateErrored:
	default:
		e.mu.Unlock()
		return errors.NewBusy("load")
	}
	e.state = StateLoading
	e.mu.Unlock()

	var (
		docs    []health.Document
		panels  []health.Panel
		enabled []category.Category
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		docs, err = e.docStore.FetchAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		panels, err = e.panelStore.FetchAll(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		enabled, err = e.flagStore.FetchEnabled(gctx)
		return err
	})
	err := g.Wait()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		// Session ended mid-await: discard results, leave state alone.
		return errors.NewInvalidRequest("engine is closed")
	}
	if err != nil {
		// Retain the last good selection, if any.
		e.state = StateErrored
		return errors.NewLoadFailed(err)
	}

	e.docs = make(map[string]health.Document, len(docs))
	e.panels = make(map[string]health.Panel, len(panels))
	e.lastEnabled = make(map[category.Category]bool)
	sel := NewSelection()

	for _, c := range enabled {
		sel.SetCategoryEnabled(c, true)
		e.lastEnabled[c] = true
	}
	for _, d := range docs {
		e.docs[d.ID] = d
		if d.IncludedInContext {
			sel.SetItemSelected(d.ID, true)
		}
	}
	for _, p := range panels {
		e.panels[p.ID] = p
		if p.IncludedInContext {
			sel.SetItemSelected(p.ID, true)
		}
	}

	e.sel = sel
	e.cost = nil
	e.state = StateReady
	return nil
}

// Save validates the selection, diffs it against the last-fetched
// persisted state, and issues only the changed writes. The diff is
// snapshotted before any write starts, so toggles during the save only
// affect the next one. If any selected item's category is disabled the
// save fails fast with a validation error and issues zero writes.
func (e *Engine) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.NewInvalidRequest("engine is closed")
	}
	switch e.state {
	case StateReady, StateErrored:
	case StateIdle:
		e.mu.Unlock()
		return errors.NewInvalidRequest("nothing to save: load first")
	default:
		e.mu.Unlock()
		return errors.NewBusy("save")
	}

	if orphaned := e.orphanedSelections(); len(orphaned) > 0 {
		e.mu.Unlock()
		return errors.NewValidationFailed(orphaned)
	}

	plan := planSave(e.sel, e.docs, e.panels, e.lastEnabled)
	e.state = StateSaving
	e.mu.Unlock()

	err := applySave(ctx, plan, e.docStore, e.panelStore, e.flagStore)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.NewInvalidRequest("engine is closed")
	}
	if err != nil {
		// Writes that succeeded stay applied on disk; the snapshots are
		// left untouched so the next load re-derives ground truth.
		e.state = StateErrored
		return errors.NewPersistFailed(err)
	}

	// Fold the applied writes into the snapshots so the next diff is empty.
	for _, w := range plan.writes {
		if w.kind == category.KindPanel {
			if p, ok := e.panels[w.id]; ok {
				p.IncludedInContext = w.included
				e.panels[w.id] = p
			}
			continue
		}
		if d, ok := e.docs[w.id]; ok {
			d.IncludedInContext = w.included
			e.docs[w.id] = d
		}
	}
	e.lastEnabled = make(map[category.Category]bool)
	for _, c := range plan.enabled {
		e.lastEnabled[c] = true
	}
	e.state = StateReady
	return nil
}

// SetCategoryEnabled toggles a category and applies its auto-select
// policy: document-bearing categories bulk select/deselect their items,
// the lab-panel category leaves panel selection alone.
func (e *Engine) SetCategoryEnabled(c category.Category, enabled bool) error {
	if !category.Valid(c) {
		return errors.NewInvalidRequest("unknown category: " + string(c))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return err
	}

	e.sel.SetCategoryEnabled(c, enabled)
	if category.Get(c).AutoSelect {
		e.selectAllLocked(c, enabled)
	}
	return nil
}

// SetItemSelected toggles one item in the selected set. Idempotent;
// unknown ids are accepted and pruned on the next load.
func (e *Engine) SetItemSelected(id string, selected bool) error {
	if id == "" {
		return errors.NewInvalidRequest("id is required")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return err
	}
	e.sel.SetItemSelected(id, selected)
	return nil
}

// SelectAllInCategory bulk selects or deselects every known item of a
// category, independent of the category's enabled flag.
func (e *Engine) SelectAllInCategory(c category.Category, selected bool) error {
	if !category.Selectable(c) {
		return errors.NewInvalidRequest("category has no selectable items: " + string(c))
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.mutable(); err != nil {
		return err
	}
	e.selectAllLocked(c, selected)
	return nil
}

// selectAllLocked applies a bulk select to every known item whose kind
// the category governs. Caller holds e.mu.
func (e *Engine) selectAllLocked(c category.Category, selected bool) {
	kind := category.Get(c).Kind
	if kind == category.KindPanel {
		for id := range e.panels {
			e.sel.SetItemSelected(id, selected)
		}
		return
	}
	for id, d := range e.docs {
		if d.Kind == kind {
			e.sel.SetItemSelected(id, selected)
		}
	}
}

// mutable rejects toggles in states where the selection must not move:
// before the first load, and while a load is replacing it. Toggles during
// a save are fine; the in-flight diff was snapshotted at save start.
func (e *Engine) mutable() error {
	if e.closed {
		return errors.NewInvalidRequest("engine is closed")
	}
	switch e.state {
	case StateIdle:
		return errors.NewInvalidRequest("selection not loaded: load first")
	case StateLoading:
		return errors.NewBusy("toggle")
	}
	return nil
}

// Estimate returns the current token estimate, recomputing only when the
// cost fingerprint no longer matches the memoized snapshot. The snapshot
// is replaced atomically: compute fully, then publish.
func (e *Engine) Estimate() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.estimateLocked()
}

// EstimateDisplay returns the display form of the estimate ("850",
// "4.2K", "15K").
func (e *Engine) EstimateDisplay() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return health.FormatTokens(e.estimateLocked())
}

// estimateLocked checks the memoized snapshot and recomputes on
// fingerprint mismatch. Caller holds e.mu.
func (e *Engine) estimateLocked() int {
	fp := costFingerprint(e.sel, e.docs)
	if e.cost != nil && e.cost.fingerprint == fp {
		return e.cost.tokens
	}
	tokens := computeTokens(e.sel, e.docs, e.panels)
	e.cost = &costSnapshot{tokens: tokens, fingerprint: fp}
	return tokens
}

// CategoryEnabled reports whether a category is currently enabled.
func (e *Engine) CategoryEnabled(c category.Category) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.CategoryEnabled(c)
}

// ItemSelected reports whether an item is currently selected.
func (e *Engine) ItemSelected(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sel.ItemSelected(id)
}

// SelectedCounts returns, per item-bearing category, the number of
// selected known items — gated on the category being enabled, matching
// the cost rule: a selected item in a disabled category counts for
// nothing.
func (e *Engine) SelectedCounts() map[category.Category]int {
	e.mu.Lock()
	defer e.mu.Unlock()

	counts := make(map[category.Category]int)
	for _, c := range category.All() {
		if category.Selectable(c) {
			counts[c] = 0
		}
	}
	for id := range e.sel.selected {
		c, ok := e.itemCategoryLocked(id)
		if !ok || !e.sel.CategoryEnabled(c) {
			continue
		}
		counts[c]++
	}
	return counts
}

// Descriptor returns the enabled categories and selected item ids for
// payload assembly. Unknown selected ids are excluded: the chat client
// only ever sees ids that resolve to known items.
func (e *Engine) Descriptor() Descriptor {
	e.mu.Lock()
	defer e.mu.Unlock()

	var ids []string
	for id := range e.sel.selected {
		if _, ok := e.itemCategoryLocked(id); ok {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	return Descriptor{
		EnabledCategories: e.sel.EnabledCategories(),
		SelectedItemIDs:   ids,
	}
}

// Documents returns the document snapshots with their current selection
// state, sorted newest first.
func (e *Engine) Documents() []DocumentView {
	e.mu.Lock()
	defer e.mu.Unlock()

	views := make([]DocumentView, 0, len(e.docs))
	for _, d := range e.docs {
		views = append(views, DocumentView{Document: d, Selected: e.sel.ItemSelected(d.ID)})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt != views[j].CreatedAt {
			return views[i].CreatedAt > views[j].CreatedAt
		}
		return views[i].ID > views[j].ID
	})
	return views
}

// Panels returns the panel snapshots with their current selection state,
// sorted newest first.
func (e *Engine) Panels() []PanelView {
	e.mu.Lock()
	defer e.mu.Unlock()

	views := make([]PanelView, 0, len(e.panels))
	for _, p := range e.panels {
		views = append(views, PanelView{Panel: p, Selected: e.sel.ItemSelected(p.ID)})
	}
	sort.Slice(views, func(i, j int) bool {
		if views[i].CreatedAt != views[j].CreatedAt {
			return views[i].CreatedAt > views[j].CreatedAt
		}
		return views[i].ID > views[j].ID
	})
	return views
}

// orphanedSelections counts selected known items whose owning category is
// disabled, grouped by category name. Unknown ids are inert and never
// orphaned. Caller holds e.mu.
func (e *Engine) orphanedSelections() map[string]int {
	orphaned := make(map[string]int)
	for id := range e.sel.selected {
		c, ok := e.itemCategoryLocked(id)
		if !ok {
			continue
		}
		if !e.sel.CategoryEnabled(c) {
			orphaned[string(c)]++
		}
	}
	if len(orphaned) == 0 {
		return nil
	}
	return orphaned
}

// itemCategoryLocked resolves an item id to its owning category via the
// current snapshots. Caller holds e.mu.
func (e *Engine) itemCategoryLocked(id string) (category.Category, bool) {
	if _, ok := e.panels[id]; ok {
		return category.LabPanels, true
	}
	if d, ok := e.docs[id]; ok {
		return category.Owner(d.Kind)
	}
	return "", false
}
