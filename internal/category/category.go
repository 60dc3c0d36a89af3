// Package category defines the fixed set of AI-context categories and the
// item kinds they govern. The registry is immutable and defined at process
// start; unknown kinds are unrepresentable rather than a runtime error.
package category

// Kind identifies the kind of an underlying health-data item.
type Kind string

const (
	KindProfile    Kind = "profile"     // personal info; no enumerable items
	KindPanel      Kind = "panel"       // one lab panel
	KindImagingDoc Kind = "imaging_doc" // imported imaging document
	KindCheckupDoc Kind = "checkup_doc" // imported checkup document
)

// Category is a fixed grouping of health-data kinds offered as one
// on/off unit to the user.
type Category string

const (
	PersonalInfo Category = "personal_info"
	LabPanels    Category = "lab_panels"
	Imaging      Category = "imaging"
	Checkups     Category = "checkups"
)

// Policy describes how a category behaves in the context engine.
type Policy struct {
	// Kind is the item kind this category governs.
	Kind Kind

	// BaseTokens is the fixed cost charged when the category is enabled
	// and has no per-item granularity. Zero for item-bearing categories.
	BaseTokens int

	// AutoSelect controls whether toggling the category also bulk
	// selects/deselects all its items. Document-bearing categories do
	// this; the lab-panel category leaves panel selection alone.
	AutoSelect bool
}

// registry maps each category to its policy. Order-independent; use All
// for deterministic iteration.
var registry = map[Category]Policy{
	PersonalInfo: {Kind: KindProfile, BaseTokens: 200},
	LabPanels:    {Kind: KindPanel},
	Imaging:      {Kind: KindImagingDoc, AutoSelect: true},
	Checkups:     {Kind: KindCheckupDoc, AutoSelect: true},
}

// kindOwner maps each item kind back to its owning category.
var kindOwner = map[Kind]Category{
	KindProfile:    PersonalInfo,
	KindPanel:      LabPanels,
	KindImagingDoc: Imaging,
	KindCheckupDoc: Checkups,
}

// All returns every category in fixed display order.
func All() []Category {
	return []Category{PersonalInfo, LabPanels, Imaging, Checkups}
}

// Lookup returns the policy for a category and whether it exists.
func Lookup(c Category) (Policy, bool) {
	p, ok := registry[c]
	return p, ok
}

// Get returns the policy for a known category. Callers pass only
// categories from All; the zero Policy comes back for anything else.
func Get(c Category) Policy {
	return registry[c]
}

// Owner returns the category governing an item kind and whether the kind
// is known.
func Owner(k Kind) (Category, bool) {
	c, ok := kindOwner[k]
	return c, ok
}

// Valid reports whether c is a registered category.
func Valid(c Category) bool {
	_, ok := registry[c]
	return ok
}

// ValidKind reports whether k is a registered item kind.
func ValidKind(k Kind) bool {
	_, ok := kindOwner[k]
	return ok
}

// Selectable reports whether a category has enumerable items that can be
// individually selected.
func Selectable(c Category) bool {
	p, ok := registry[c]
	return ok && p.Kind != KindProfile
}
