package web

import (
	"database/sql"
	"net/http"

	"github.com/vitalctx/vitalctx/internal/category"
	"github.com/vitalctx/vitalctx/internal/config"
	"github.com/vitalctx/vitalctx/internal/db"
	"github.com/vitalctx/vitalctx/internal/engine"
	"github.com/vitalctx/vitalctx/internal/errors"
	"github.com/vitalctx/vitalctx/internal/health"
)

// Handlers contains HTTP route handlers for the dashboard.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
}

// categoryLabels maps category names to their display form.
var categoryLabels = map[category.Category]string{
	category.PersonalInfo: "Personal info",
	category.LabPanels:    "Lab panels",
	category.Imaging:      "Imaging",
	category.Checkups:     "Checkups",
}

// loadEngine builds a fresh engine over the persisted state. Each request
// gets its own snapshot; the dashboard never holds selection state between
// requests.
func (h *Handlers) loadEngine(r *http.Request) (*engine.Engine, error) {
	eng := engine.New(db.NewDocuments(h.db), db.NewPanels(h.db), db.NewFlags(h.db))
	if err := eng.Load(r.Context()); err != nil {
		return nil, err
	}
	return eng, nil
}

// HandleDashboard handles GET /context — the context selection overview.
func (h *Handlers) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	eng, err := h.loadEngine(r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	counts := eng.SelectedCounts()
	selected := 0
	rows := make([]CategoryRow, 0, len(category.All()))
	for _, c := range category.All() {
		n := counts[c]
		selected += n
		rows = append(rows, CategoryRow{
			Name:          string(c),
			Label:         categoryLabels[c],
			Enabled:       eng.CategoryEnabled(c),
			SelectedCount: n,
			HasItems:      category.Selectable(c),
		})
	}

	h.renderer.renderPage(w, "dashboard", DashboardPageData{
		PageData: PageData{
			Title:   "Chat context",
			Version: h.renderer.version,
			Nav:     "context",
		},
		Categories:      rows,
		Documents:       eng.Documents(),
		Panels:          eng.Panels(),
		EstimateDisplay: eng.EstimateDisplay(),
		EstimatedTokens: eng.Estimate(),
		SelectedItems:   selected,
	})
}

// HandleDocumentDetail handles GET /documents/{id} — view a single document.
func (h *Handlers) HandleDocumentDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("document ID is required"))
		return
	}

	doc, err := db.NewDocuments(h.db).GetByID(r.Context(), id)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, "document", DocumentPageData{
		PageData: PageData{
			Title:   doc.Title,
			Version: h.renderer.version,
			Nav:     "context",
		},
		Document:     doc,
		RenderedHTML: renderMarkdown(doc.ExtractedText),
		Tokens:       health.DocumentTokens(doc),
	})
}
