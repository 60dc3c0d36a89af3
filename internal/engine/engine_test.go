package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	vcerrors "github.com/vitalctx/vitalctx/internal/errors"

	"github.com/vitalctx/vitalctx/internal/category"
)

func newTestEngine(t *testing.T, docStore *fakeDocStore, panelStore *fakePanelStore, flagStore *fakeFlagStore) *Engine {
	t.Helper()
	e := New(docStore, panelStore, flagStore)
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	return e
}

func TestLoadBuildsSelectionFromPersistedState(t *testing.T) {
	docStore := newFakeDocStore(
		doc("d1", category.KindImagingDoc, "some text", true),
		doc("d2", category.KindCheckupDoc, "", false),
	)
	panelStore := newFakePanelStore(panel("p1", 4, true))
	flagStore := newFakeFlagStore(category.Imaging, category.LabPanels)

	e := newTestEngine(t, docStore, panelStore, flagStore)

	if e.State() != StateReady {
		t.Errorf("State = %q, want ready", e.State())
	}
	if !e.CategoryEnabled(category.Imaging) || !e.CategoryEnabled(category.LabPanels) {
		t.Error("enabled flags not loaded")
	}
	if e.CategoryEnabled(category.Checkups) {
		t.Error("checkups enabled, want disabled")
	}
	if !e.ItemSelected("d1") || !e.ItemSelected("p1") {
		t.Error("included items not selected after load")
	}
	if e.ItemSelected("d2") {
		t.Error("excluded item selected after load")
	}
}

func TestLoadSupersedesSelectionAndPrunesGhosts(t *testing.T) {
	docStore := newFakeDocStore(doc("d1", category.KindImagingDoc, "", false))
	e := newTestEngine(t, docStore, newFakePanelStore(), newFakeFlagStore())

	// Select an id that no longer resolves to anything, then reload.
	if err := e.SetItemSelected("ghost", true); err != nil {
		t.Fatalf("SetItemSelected failed: %v", err)
	}
	if err := e.SetItemSelected("d1", true); err != nil {
		t.Fatalf("SetItemSelected failed: %v", err)
	}

	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("second Load failed: %v", err)
	}

	// Selection is superseded, not merged: d1 was never persisted as
	// included, so the reload drops it along with the ghost.
	if e.ItemSelected("ghost") || e.ItemSelected("d1") {
		t.Error("load merged old selection instead of superseding it")
	}
}

func TestLoadFailureRetainsLastGoodSelection(t *testing.T) {
	docStore := newFakeDocStore(doc("d1", category.KindImagingDoc, "", true))
	flagStore := newFakeFlagStore(category.Imaging)
	e := newTestEngine(t, docStore, newFakePanelStore(), flagStore)

	docStore.mu.Lock()
	docStore.fetchErr = errors.New("store offline")
	docStore.mu.Unlock()

	err := e.Load(context.Background())
	if !vcerrors.Is(err, vcerrors.ErrLoadFailed) {
		t.Fatalf("Load error = %v, want LOAD_FAILED", err)
	}
	if e.State() != StateErrored {
		t.Errorf("State = %q, want errored", e.State())
	}
	if !e.ItemSelected("d1") {
		t.Error("last good selection lost after failed load")
	}

	// Errored is recoverable: retrying the load works once the store does.
	docStore.mu.Lock()
	docStore.fetchErr = nil
	docStore.mu.Unlock()
	if err := e.Load(context.Background()); err != nil {
		t.Fatalf("retry Load failed: %v", err)
	}
	if e.State() != StateReady {
		t.Errorf("State after retry = %q, want ready", e.State())
	}
}

func TestTogglesBeforeLoadRejected(t *testing.T) {
	e := New(newFakeDocStore(), newFakePanelStore(), newFakeFlagStore())
	if err := e.SetItemSelected("x", true); !vcerrors.Is(err, vcerrors.ErrInvalidRequest) {
		t.Errorf("toggle before load: err = %v, want INVALID_REQUEST", err)
	}
	if err := e.Save(context.Background()); !vcerrors.Is(err, vcerrors.ErrInvalidRequest) {
		t.Errorf("save before load: err = %v, want INVALID_REQUEST", err)
	}
}

func TestAutoSelectPolicyOnCategoryToggle(t *testing.T) {
	docStore := newFakeDocStore(
		doc("img1", category.KindImagingDoc, "", false),
		doc("img2", category.KindImagingDoc, "", false),
		doc("chk1", category.KindCheckupDoc, "", false),
	)
	panelStore := newFakePanelStore(panel("p1", 3, false))
	e := newTestEngine(t, docStore, panelStore, newFakeFlagStore())

	// Imaging auto-selects its documents, and only its documents.
	if err := e.SetCategoryEnabled(category.Imaging, true); err != nil {
		t.Fatalf("SetCategoryEnabled failed: %v", err)
	}
	if !e.ItemSelected("img1") || !e.ItemSelected("img2") {
		t.Error("imaging documents not auto-selected")
	}
	if e.ItemSelected("chk1") || e.ItemSelected("p1") {
		t.Error("auto-select leaked outside the toggled category")
	}

	// Disabling auto-deselects.
	if err := e.SetCategoryEnabled(category.Imaging, false); err != nil {
		t.Fatalf("SetCategoryEnabled failed: %v", err)
	}
	if e.ItemSelected("img1") || e.ItemSelected("img2") {
		t.Error("imaging documents not auto-deselected")
	}

	// Lab panels carry no auto-select: enabling leaves selection alone.
	if err := e.SetCategoryEnabled(category.LabPanels, true); err != nil {
		t.Fatalf("SetCategoryEnabled failed: %v", err)
	}
	if e.ItemSelected("p1") {
		t.Error("panel auto-selected on category enable")
	}
}

func TestDocumentsCanBeDeselectedWhileCategoryEnabled(t *testing.T) {
	docStore := newFakeDocStore(
		doc("img1", category.KindImagingDoc, "", false),
		doc("img2", category.KindImagingDoc, "", false),
	)
	e := newTestEngine(t, docStore, newFakePanelStore(), newFakeFlagStore())

	if err := e.SetCategoryEnabled(category.Imaging, true); err != nil {
		t.Fatalf("SetCategoryEnabled failed: %v", err)
	}
	if err := e.SetItemSelected("img2", false); err != nil {
		t.Fatalf("SetItemSelected failed: %v", err)
	}
	if !e.CategoryEnabled(category.Imaging) {
		t.Error("individual deselect disabled the category")
	}
	if !e.ItemSelected("img1") || e.ItemSelected("img2") {
		t.Error("individual deselect did not stick")
	}
}

func TestEstimateMatchesFullRecomputation(t *testing.T) {
	docStore := newFakeDocStore(
		doc("d1", category.KindImagingDoc, string(make([]rune, 400)), false),
		doc("d2", category.KindImagingDoc, "", false),
	)
	panelStore := newFakePanelStore(panel("p1", 3, false))
	e := newTestEngine(t, docStore, panelStore, newFakeFlagStore())

	mutations := []func() error{
		func() error { return e.SetCategoryEnabled(category.LabPanels, true) },
		func() error { return e.SetItemSelected("p1", true) },
		func() error { return e.SetCategoryEnabled(category.PersonalInfo, true) },
		func() error { return e.SetCategoryEnabled(category.Imaging, true) },
		func() error { return e.SetItemSelected("d2", false) },
		func() error { return e.SetCategoryEnabled(category.PersonalInfo, false) },
		func() error { return e.SetItemSelected("p1", false) },
	}

	for i, mutate := range mutations {
		if err := mutate(); err != nil {
			t.Fatalf("mutation %d failed: %v", i, err)
		}
		got := e.Estimate()
		e.mu.Lock()
		want := computeTokens(e.sel, e.docs, e.panels)
		e.mu.Unlock()
		if got != want {
			t.Errorf("after mutation %d: Estimate = %d, full recompute = %d", i, got, want)
		}
		// A second query must serve the memoized value unchanged.
		if again := e.Estimate(); again != got {
			t.Errorf("after mutation %d: repeated Estimate = %d, want %d", i, again, got)
		}
	}
}

func TestEstimateScenarios(t *testing.T) {
	docStore := newFakeDocStore(
		doc("d1", category.KindImagingDoc, string(make([]rune, 400)), false),
		doc("d2", category.KindImagingDoc, "", false),
	)
	panelStore := newFakePanelStore(panel("p1", 3, false))
	e := newTestEngine(t, docStore, panelStore, newFakeFlagStore())

	// Panel scenario: 3*50 + 50, then +200 for personal info.
	if err := e.SetCategoryEnabled(category.LabPanels, true); err != nil {
		t.Fatal(err)
	}
	if err := e.SetItemSelected("p1", true); err != nil {
		t.Fatal(err)
	}
	if got := e.Estimate(); got != 200 {
		t.Errorf("panel estimate = %d, want 200", got)
	}
	if err := e.SetCategoryEnabled(category.PersonalInfo, true); err != nil {
		t.Fatal(err)
	}
	if got := e.Estimate(); got != 400 {
		t.Errorf("panel + personal estimate = %d, want 400", got)
	}

	// Document scenario: 400/4 + default 500 (imaging auto-selects both).
	if err := e.SetCategoryEnabled(category.PersonalInfo, false); err != nil {
		t.Fatal(err)
	}
	if err := e.SetItemSelected("p1", false); err != nil {
		t.Fatal(err)
	}
	if err := e.SetCategoryEnabled(category.Imaging, true); err != nil {
		t.Fatal(err)
	}
	if got := e.Estimate(); got != 600 {
		t.Errorf("document estimate = %d, want 600", got)
	}

	if display := e.EstimateDisplay(); display != "600" {
		t.Errorf("EstimateDisplay = %q, want 600", display)
	}
}

func TestSaveValidationGate(t *testing.T) {
	// Scenario C: select a document while its category is disabled;
	// save must fail with a validation error and issue zero writes.
	docStore := newFakeDocStore(doc("d1", category.KindImagingDoc, "", false))
	panelStore := newFakePanelStore()
	flagStore := newFakeFlagStore()
	e := newTestEngine(t, docStore, panelStore, flagStore)

	if err := e.SetItemSelected("d1", true); err != nil {
		t.Fatalf("SetItemSelected failed: %v", err)
	}

	err := e.Save(context.Background())
	if !vcerrors.Is(err, vcerrors.ErrValidationFailed) {
		t.Fatalf("Save error = %v, want VALIDATION_FAILED", err)
	}
	if docStore.writeCount() != 0 || flagStore.persistCount() != 0 {
		t.Error("validation failure still issued writes")
	}
	if e.State() != StateReady {
		t.Errorf("State = %q, want ready (selection unchanged)", e.State())
	}
	if !e.ItemSelected("d1") {
		t.Error("failed save mutated the selection")
	}
}

func TestSaveNoChangesIssuesNoWrites(t *testing.T) {
	// Scenario D: load with one document already included, save
	// immediately: the diff is empty.
	docStore := newFakeDocStore(doc("d1", category.KindImagingDoc, "", true))
	flagStore := newFakeFlagStore(category.Imaging)
	e := newTestEngine(t, docStore, newFakePanelStore(), flagStore)

	if err := e.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if docStore.writeCount() != 0 {
		t.Errorf("item writes = %d, want 0", docStore.writeCount())
	}
	if flagStore.persistCount() != 0 {
		t.Errorf("flag writes = %d, want 0", flagStore.persistCount())
	}
}

func TestSavePersistsDiffAndFlags(t *testing.T) {
	docStore := newFakeDocStore(
		doc("d1", category.KindImagingDoc, "", false),
		doc("d2", category.KindImagingDoc, "", true),
	)
	panelStore := newFakePanelStore(panel("p1", 2, false))
	flagStore := newFakeFlagStore()
	e := newTestEngine(t, docStore, panelStore, flagStore)

	if err := e.SetCategoryEnabled(category.LabPanels, true); err != nil {
		t.Fatal(err)
	}
	if err := e.SetCategoryEnabled(category.Imaging, true); err != nil {
		t.Fatal(err) // auto-selects d1 and d2
	}
	if err := e.SetItemSelected("p1", true); err != nil {
		t.Fatal(err)
	}

	if err := e.Save(context.Background()); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// d2 was already included: only d1 and p1 change.
	if docStore.writeCount() != 1 {
		t.Errorf("doc writes = %d, want 1", docStore.writeCount())
	}
	if panelStore.writeCount() != 1 {
		t.Errorf("panel writes = %d, want 1", panelStore.writeCount())
	}
	if flagStore.persistCount() != 1 {
		t.Errorf("flag writes = %d, want 1", flagStore.persistCount())
	}

	// A second save right away is a no-op: snapshots were folded forward.
	if err := e.Save(context.Background()); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}
	if docStore.writeCount() != 1 || panelStore.writeCount() != 1 || flagStore.persistCount() != 1 {
		t.Error("second save re-issued writes for an empty diff")
	}
}

func TestSavePartialFailure(t *testing.T) {
	docStore := newFakeDocStore(
		doc("ok", category.KindImagingDoc, "", false),
		doc("bad", category.KindImagingDoc, "", false),
	)
	docStore.writeErr = map[string]error{"bad": errors.New("write refused")}
	flagStore := newFakeFlagStore(category.Imaging)
	e := newTestEngine(t, docStore, newFakePanelStore(), flagStore)

	if err := e.SetItemSelected("ok", true); err != nil {
		t.Fatal(err)
	}
	if err := e.SetItemSelected("bad", true); err != nil {
		t.Fatal(err)
	}

	err := e.Save(context.Background())
	if !vcerrors.Is(err, vcerrors.ErrPersistFailed) {
		t.Fatalf("Save error = %v, want PERSIST_FAILED", err)
	}
	if e.State() != StateErrored {
		t.Errorf("State = %q, want errored", e.State())
	}

	// Retry is permitted from Errored. The snapshots were not patched
	// after the partial failure, so the retry re-issues both writes;
	// SetIncluded is idempotent so the duplicate is harmless.
	docStore.mu.Lock()
	docStore.writeErr = nil
	docStore.mu.Unlock()
	if err := e.Save(context.Background()); err != nil {
		t.Fatalf("retry Save failed: %v", err)
	}
	if e.State() != StateReady {
		t.Errorf("State after retry = %q, want ready", e.State())
	}
}

func TestConcurrentSaveRejected(t *testing.T) {
	docStore := newFakeDocStore(doc("d1", category.KindImagingDoc, "", false))
	docStore.gate = make(chan struct{})
	flagStore := newFakeFlagStore(category.Imaging)
	e := newTestEngine(t, docStore, newFakePanelStore(), flagStore)

	if err := e.SetItemSelected("d1", true); err != nil {
		t.Fatal(err)
	}

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- e.Save(context.Background())
	}()

	// Wait for the first save to enter the Saving state.
	deadline := time.After(2 * time.Second)
	for e.State() != StateSaving {
		select {
		case <-deadline:
			t.Fatal("first save never reached the saving state")
		case <-time.After(time.Millisecond):
		}
	}

	if err := e.Save(context.Background()); !vcerrors.Is(err, vcerrors.ErrBusy) {
		t.Errorf("concurrent Save error = %v, want BUSY", err)
	}
	if err := e.Load(context.Background()); !vcerrors.Is(err, vcerrors.ErrBusy) {
		t.Errorf("Load during save error = %v, want BUSY", err)
	}

	// Toggles during a save are queued for the next save: they must not
	// change the in-flight diff.
	if err := e.SetItemSelected("d1", false); err != nil {
		t.Errorf("toggle during save failed: %v", err)
	}

	close(docStore.gate)
	if err := <-firstDone; err != nil {
		t.Fatalf("first Save failed: %v", err)
	}

	// The in-flight save applied the snapshot diff (d1 -> included).
	docStore.mu.Lock()
	included := docStore.docs["d1"].IncludedInContext
	docStore.mu.Unlock()
	if !included {
		t.Error("in-flight diff was altered by a toggle during save")
	}

	// The queued deselect shows up in the next save.
	if err := e.Save(context.Background()); err != nil {
		t.Fatalf("follow-up Save failed: %v", err)
	}
	docStore.mu.Lock()
	included = docStore.docs["d1"].IncludedInContext
	docStore.mu.Unlock()
	if included {
		t.Error("toggle during save was lost")
	}
}

func TestCloseDiscardsInFlightResults(t *testing.T) {
	docStore := newFakeDocStore(doc("d1", category.KindImagingDoc, "", false))
	docStore.gate = make(chan struct{})
	flagStore := newFakeFlagStore(category.Imaging)
	e := newTestEngine(t, docStore, newFakePanelStore(), flagStore)

	if err := e.SetItemSelected("d1", true); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() {
		done <- e.Save(context.Background())
	}()

	deadline := time.After(2 * time.Second)
	for e.State() != StateSaving {
		select {
		case <-deadline:
			t.Fatal("save never reached the saving state")
		case <-time.After(time.Millisecond):
		}
	}

	e.Close()
	close(docStore.gate)

	if err := <-done; !vcerrors.Is(err, vcerrors.ErrInvalidRequest) {
		t.Errorf("Save after Close error = %v, want INVALID_REQUEST", err)
	}
	if err := e.Load(context.Background()); !vcerrors.Is(err, vcerrors.ErrInvalidRequest) {
		t.Errorf("Load after Close error = %v, want INVALID_REQUEST", err)
	}
}

func TestSelectedCountsGateOnEnabled(t *testing.T) {
	docStore := newFakeDocStore(
		doc("img1", category.KindImagingDoc, "", false),
		doc("chk1", category.KindCheckupDoc, "", false),
	)
	panelStore := newFakePanelStore(panel("p1", 1, false))
	e := newTestEngine(t, docStore, panelStore, newFakeFlagStore())

	if err := e.SetItemSelected("img1", true); err != nil {
		t.Fatal(err)
	}
	if err := e.SetItemSelected("chk1", true); err != nil {
		t.Fatal(err)
	}
	if err := e.SetItemSelected("p1", true); err != nil {
		t.Fatal(err)
	}
	if err := e.SetCategoryEnabled(category.LabPanels, true); err != nil {
		t.Fatal(err)
	}

	counts := e.SelectedCounts()
	if counts[category.LabPanels] != 1 {
		t.Errorf("lab_panels count = %d, want 1", counts[category.LabPanels])
	}
	// Selected but disabled: counts for nothing.
	if counts[category.Imaging] != 0 || counts[category.Checkups] != 0 {
		t.Errorf("disabled-category counts = %v, want 0", counts)
	}
}

func TestDescriptorExcludesGhosts(t *testing.T) {
	docStore := newFakeDocStore(doc("d1", category.KindImagingDoc, "", false))
	e := newTestEngine(t, docStore, newFakePanelStore(), newFakeFlagStore())

	if err := e.SetCategoryEnabled(category.Imaging, true); err != nil {
		t.Fatal(err)
	}
	if err := e.SetItemSelected("ghost", true); err != nil {
		t.Fatal(err)
	}

	desc := e.Descriptor()
	if len(desc.SelectedItemIDs) != 1 || desc.SelectedItemIDs[0] != "d1" {
		t.Errorf("SelectedItemIDs = %v, want [d1]", desc.SelectedItemIDs)
	}
	if len(desc.EnabledCategories) != 1 || desc.EnabledCategories[0] != category.Imaging {
		t.Errorf("EnabledCategories = %v, want [imaging]", desc.EnabledCategories)
	}
}

func TestViewsReflectSelection(t *testing.T) {
	docStore := newFakeDocStore(doc("d1", category.KindImagingDoc, "", false))
	panelStore := newFakePanelStore(panel("p1", 2, true))
	flagStore := newFakeFlagStore(category.LabPanels)
	e := newTestEngine(t, docStore, panelStore, flagStore)

	docs := e.Documents()
	if len(docs) != 1 || docs[0].Selected {
		t.Errorf("Documents = %+v, want one unselected document", docs)
	}
	panels := e.Panels()
	if len(panels) != 1 || !panels[0].Selected {
		t.Errorf("Panels = %+v, want one selected panel", panels)
	}
}
