package engine

import (
	"testing"

	"github.com/vitalctx/vitalctx/internal/category"
)

func TestSetItemSelectedIdempotent(t *testing.T) {
	sel := NewSelection()

	sel.SetItemSelected("a", true)
	sel.SetItemSelected("a", true)
	if !sel.ItemSelected("a") {
		t.Error("item not selected after double select")
	}
	if sel.SelectedCount() != 1 {
		t.Errorf("SelectedCount = %d, want 1", sel.SelectedCount())
	}

	sel.SetItemSelected("a", false)
	sel.SetItemSelected("a", false)
	if sel.ItemSelected("a") {
		t.Error("item still selected after double deselect")
	}
	if sel.SelectedCount() != 0 {
		t.Errorf("SelectedCount = %d, want 0", sel.SelectedCount())
	}
}

func TestDisableCategoryKeepsSelection(t *testing.T) {
	sel := NewSelection()
	sel.SetCategoryEnabled(category.Imaging, true)
	sel.SetItemSelected("img1", true)
	sel.SetItemSelected("img2", true)

	sel.SetCategoryEnabled(category.Imaging, false)

	if sel.CategoryEnabled(category.Imaging) {
		t.Error("category still enabled after disable")
	}
	if !sel.ItemSelected("img1") || !sel.ItemSelected("img2") {
		t.Error("disabling a category mutated selectedItemIds")
	}
}

func TestUnknownCategoryIgnored(t *testing.T) {
	sel := NewSelection()
	sel.SetCategoryEnabled(category.Category("bogus"), true)
	if sel.CategoryEnabled(category.Category("bogus")) {
		t.Error("unknown category was enabled")
	}
	if len(sel.EnabledCategories()) != 0 {
		t.Errorf("EnabledCategories = %v, want empty", sel.EnabledCategories())
	}
}

func TestSelectedIDsSorted(t *testing.T) {
	sel := NewSelection()
	sel.SetItemSelected("c", true)
	sel.SetItemSelected("a", true)
	sel.SetItemSelected("b", true)

	ids := sel.SelectedIDs()
	want := []string{"a", "b", "c"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("SelectedIDs = %v, want %v", ids, want)
		}
	}
}

func TestEnabledCategoriesRegistryOrder(t *testing.T) {
	sel := NewSelection()
	sel.SetCategoryEnabled(category.Checkups, true)
	sel.SetCategoryEnabled(category.PersonalInfo, true)

	got := sel.EnabledCategories()
	if len(got) != 2 || got[0] != category.PersonalInfo || got[1] != category.Checkups {
		t.Errorf("EnabledCategories = %v, want [personal_info checkups]", got)
	}
}

func TestEmptyIDIgnored(t *testing.T) {
	sel := NewSelection()
	sel.SetItemSelected("", true)
	if sel.SelectedCount() != 0 {
		t.Error("empty id entered the selected set")
	}
}
