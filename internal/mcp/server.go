package mcp

import (
	"database/sql"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/vitalctx/vitalctx/internal/config"
)

// toolEntry pairs a tool definition with a handler factory.
type toolEntry struct {
	def     mcp.Tool
	handler func(*Handlers) server.ToolHandlerFunc
}

// toolRegistry maps tool names to their definitions and handler factories.
var toolRegistry = map[string]toolEntry{
	"context_descriptor": {
		def:     contextDescriptorToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDescriptor },
	},
	"context_estimate": {
		def:     contextEstimateToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleEstimate },
	},
	"context_set_category": {
		def:     contextSetCategoryToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetCategory },
	},
	"context_set_item": {
		def:     contextSetItemToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSetItem },
	},
	"context_save": {
		def:     contextSaveToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleSave },
	},
	"document_add": {
		def:     documentAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDocumentAdd },
	},
	"document_list": {
		def:     documentListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandleDocumentList },
	},
	"panel_add": {
		def:     panelAddToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePanelAdd },
	},
	"panel_list": {
		def:     panelListToolDef,
		handler: func(h *Handlers) server.ToolHandlerFunc { return h.HandlePanelList },
	},
}

// AllToolNames returns a list of all valid tool names.
func AllToolNames() []string {
	names := make([]string, 0, len(toolRegistry))
	for name := range toolRegistry {
		names = append(names, name)
	}
	return names
}

// ValidateDisabledTools returns a list of unknown tool names from the given list.
func ValidateDisabledTools(names []string) []string {
	unknown := make([]string, 0)
	for _, name := range names {
		if _, ok := toolRegistry[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	return unknown
}

// NewServer creates a new MCP server with vitalctx tools registered.
// Tools listed in cfg.DisabledTools are excluded from registration.
func NewServer(db *sql.DB, cfg *config.Config, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"vitalctx",
		version,
		server.WithToolCapabilities(true),
	)

	h := NewHandlers(db, cfg)

	disabled := make(map[string]bool)
	for _, name := range cfg.DisabledTools {
		disabled[name] = true
	}

	for name, entry := range toolRegistry {
		if disabled[name] {
			continue
		}
		s.AddTool(entry.def, entry.handler(h))
	}

	return s
}

// Run starts the MCP server using stdio transport.
func Run(db *sql.DB, cfg *config.Config, version string) error {
	s := NewServer(db, cfg, version)
	return server.ServeStdio(s)
}
