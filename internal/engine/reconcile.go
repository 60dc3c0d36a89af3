package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/vitalctx/vitalctx/internal/category"
	"github.com/vitalctx/vitalctx/internal/health"
)

// itemWrite is one pending inclusion-flag update for a single item.
type itemWrite struct {
	kind     category.Kind
	id       string
	included bool
}

// savePlan is the diff computed synchronously at save start. Toggles
// applied while the writes are in flight cannot change it; they are
// visible only to the next save.
type savePlan struct {
	writes      []itemWrite
	enabled     []category.Category
	writeFlags  bool
	itemUpdates int
}

// planSave diffs the desired selection against the last-fetched persisted
// state. An item gets exactly one write iff its desired inclusion differs
// from its snapshot's includedInContext; the flags record is written iff
// the enabled set changed. Selected ids with no known item are inert.
func planSave(sel *Selection, docs map[string]health.Document, panels map[string]health.Panel, lastEnabled map[category.Category]bool) savePlan {
	var plan savePlan

	for _, d := range docs {
		desired := sel.ItemSelected(d.ID)
		if desired != d.IncludedInContext {
			plan.writes = append(plan.writes, itemWrite{kind: d.Kind, id: d.ID, included: desired})
		}
	}
	for _, p := range panels {
		desired := sel.ItemSelected(p.ID)
		if desired != p.IncludedInContext {
			plan.writes = append(plan.writes, itemWrite{kind: category.KindPanel, id: p.ID, included: desired})
		}
	}
	plan.itemUpdates = len(plan.writes)

	plan.enabled = sel.EnabledCategories()
	for _, c := range category.All() {
		if sel.CategoryEnabled(c) != lastEnabled[c] {
			plan.writeFlags = true
			break
		}
	}

	return plan
}

// applySave issues every planned write concurrently: the writes target
// independent records. It waits for all outstanding writes and returns
// the first failure; successful writes are never rolled back.
func applySave(ctx context.Context, plan savePlan, docs DocumentStore, panels PanelStore, flags FlagStore) error {
	var g errgroup.Group

	for _, w := range plan.writes {
		g.Go(func() error {
			if w.kind == category.KindPanel {
				return panels.SetIncluded(ctx, w.id, w.included)
			}
			return docs.SetIncluded(ctx, w.id, w.included)
		})
	}

	if plan.writeFlags {
		g.Go(func() error {
			return flags.PersistEnabled(ctx, plan.enabled)
		})
	}

	return g.Wait()
}
