package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vitalctx/vitalctx/internal/category"
	"github.com/vitalctx/vitalctx/internal/config"
	"github.com/vitalctx/vitalctx/internal/db"
	"github.com/vitalctx/vitalctx/internal/engine"
	"github.com/vitalctx/vitalctx/internal/errors"
)

// Handlers holds dependencies for MCP tool handlers. A single engine
// instance backs all context tools; it is loaded lazily on first use and
// refreshed after any tool that adds or removes items.
type Handlers struct {
	cfg    *config.Config
	docs   *db.Documents
	panels *db.Panels
	flags  *db.Flags
	eng    *engine.Engine

	mu     sync.Mutex
	loaded bool
}

// NewHandlers creates a new Handlers instance over the given database.
func NewHandlers(database *sql.DB, cfg *config.Config) *Handlers {
	docs := db.NewDocuments(database)
	panels := db.NewPanels(database)
	flags := db.NewFlags(database)
	return &Handlers{
		cfg:    cfg,
		docs:   docs,
		panels: panels,
		flags:  flags,
		eng:    engine.New(docs, panels, flags),
	}
}

// ensureLoaded loads the engine on first use.
func (h *Handlers) ensureLoaded(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.loaded {
		return nil
	}
	if err := h.eng.Load(ctx); err != nil {
		return err
	}
	h.loaded = true
	return nil
}

// refresh re-reads persisted state into the engine after item churn.
func (h *Handlers) refresh(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.eng.Load(ctx); err != nil {
		return err
	}
	h.loaded = true
	return nil
}

// Request types for each tool

// SetCategoryRequest represents the arguments for context_set_category.
type SetCategoryRequest struct {
	Category string `json:"category"`
	Enabled  bool   `json:"enabled"`
}

// SetItemRequest represents the arguments for context_set_item.
type SetItemRequest struct {
	ID       string `json:"id"`
	Selected bool   `json:"selected"`
}

// DocumentAddRequest represents the arguments for document_add.
type DocumentAddRequest struct {
	Title         string `json:"title"`
	Kind          string `json:"kind"`
	ExtractedText string `json:"extracted_text,omitempty"`
}

// PanelAddRequest represents the arguments for panel_add.
type PanelAddRequest struct {
	Name        string `json:"name"`
	ResultCount int    `json:"result_count"`
}

// contextPayload is the shared response for context state tools.
type contextPayload struct {
	EnabledCategories []category.Category `json:"enabled_categories"`
	SelectedItemIDs   []string            `json:"selected_item_ids"`
	EstimatedTokens   int                 `json:"estimated_tokens"`
	EstimateDisplay   string              `json:"estimate_display"`
}

func (h *Handlers) contextState() contextPayload {
	desc := h.eng.Descriptor()
	return contextPayload{
		EnabledCategories: desc.EnabledCategories,
		SelectedItemIDs:   desc.SelectedItemIDs,
		EstimatedTokens:   h.eng.Estimate(),
		EstimateDisplay:   h.eng.EstimateDisplay(),
	}
}

// Handler implementations

// HandleDescriptor handles the context_descriptor tool call.
func (h *Handlers) HandleDescriptor(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.ensureLoaded(ctx); err != nil {
		return errorResult(err), nil
	}
	desc := h.eng.Descriptor()
	return successResult(map[string]any{
		"enabled_categories": desc.EnabledCategories,
		"selected_item_ids":  desc.SelectedItemIDs,
	})
}

// HandleEstimate handles the context_estimate tool call.
func (h *Handlers) HandleEstimate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.ensureLoaded(ctx); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"tokens":  h.eng.Estimate(),
		"display": h.eng.EstimateDisplay(),
	})
}

// HandleSetCategory handles the context_set_category tool call.
func (h *Handlers) HandleSetCategory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetCategoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := h.ensureLoaded(ctx); err != nil {
		return errorResult(err), nil
	}

	if err := h.eng.SetCategoryEnabled(category.Category(input.Category), input.Enabled); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.contextState())
}

// HandleSetItem handles the context_set_item tool call.
func (h *Handlers) HandleSetItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SetItemRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}
	if err := h.ensureLoaded(ctx); err != nil {
		return errorResult(err), nil
	}

	if err := h.eng.SetItemSelected(input.ID, input.Selected); err != nil {
		return errorResult(err), nil
	}
	return successResult(h.contextState())
}

// HandleSave handles the context_save tool call.
func (h *Handlers) HandleSave(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.ensureLoaded(ctx); err != nil {
		return errorResult(err), nil
	}
	if err := h.eng.Save(ctx); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{
		"saved":            true,
		"estimated_tokens": h.eng.Estimate(),
	})
}

// HandleDocumentAdd handles the document_add tool call.
func (h *Handlers) HandleDocumentAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[DocumentAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	d, err := h.docs.Insert(ctx, input.Title, category.Kind(input.Kind), input.ExtractedText)
	if err != nil {
		return errorResult(err), nil
	}
	if err := h.refresh(ctx); err != nil {
		return errorResult(err), nil
	}
	return successResult(d)
}

// HandleDocumentList handles the document_list tool call.
func (h *Handlers) HandleDocumentList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.ensureLoaded(ctx); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"items": h.eng.Documents()})
}

// HandlePanelAdd handles the panel_add tool call.
func (h *Handlers) HandlePanelAdd(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PanelAddRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	p, err := h.panels.Insert(ctx, input.Name, input.ResultCount)
	if err != nil {
		return errorResult(err), nil
	}
	if err := h.refresh(ctx); err != nil {
		return errorResult(err), nil
	}
	return successResult(p)
}

// HandlePanelList handles the panel_list tool call.
func (h *Handlers) HandlePanelList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.ensureLoaded(ctx); err != nil {
		return errorResult(err), nil
	}
	return successResult(map[string]any{"items": h.eng.Panels()})
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Note: Internal error details are not exposed to prevent leaking sensitive info.
func errorResult(err error) *mcp.CallToolResult {
	var payload map[string]any

	if engErr, ok := err.(*errors.EngineError); ok {
		errorObj := map[string]any{
			"code":    engErr.Code,
			"message": engErr.Message,
			"status":  engErr.Status,
		}
		if engErr.Code != errors.ErrInternal && engErr.Details != nil {
			errorObj["details"] = engErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
