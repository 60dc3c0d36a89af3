package mcp

import "github.com/mark3labs/mcp-go/mcp"

var contextDescriptorToolDef = mcp.NewTool("context_descriptor",
	mcp.WithDescription("Get the enabled health-data categories and selected item ids for chat context assembly."),
)

var contextEstimateToolDef = mcp.NewTool("context_estimate",
	mcp.WithDescription("Get the current token estimate for the selected chat context, as a number and a display string."),
)

var contextSetCategoryToolDef = mcp.NewTool("context_set_category",
	mcp.WithDescription("Enable or disable a health-data category for chat context. Document categories bulk select or deselect their documents."),
	mcp.WithString("category",
		mcp.Required(),
		mcp.Description("Category name: personal_info, lab_panels, imaging, or checkups."),
	),
	mcp.WithBoolean("enabled",
		mcp.Required(),
		mcp.Description("Whether the category is included in chat context."),
	),
)

var contextSetItemToolDef = mcp.NewTool("context_set_item",
	mcp.WithDescription("Select or deselect one document or lab panel for chat context."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Item id of a document or lab panel."),
	),
	mcp.WithBoolean("selected",
		mcp.Required(),
		mcp.Description("Whether the item is selected."),
	),
)

var contextSaveToolDef = mcp.NewTool("context_save",
	mcp.WithDescription("Persist the current context selection. Only changed items are written. Fails if a selected item's category is disabled."),
)

var documentAddToolDef = mcp.NewTool("document_add",
	mcp.WithDescription("Add a health document (imaging or checkup) with optional extracted text."),
	mcp.WithString("title",
		mcp.Required(),
		mcp.Description("Document title."),
	),
	mcp.WithString("kind",
		mcp.Required(),
		mcp.Description("Document kind: imaging_doc or checkup_doc."),
	),
	mcp.WithString("extracted_text",
		mcp.Description("Extracted text content, if any. Documents without text are estimated at a flat token cost."),
	),
)

var documentListToolDef = mcp.NewTool("document_list",
	mcp.WithDescription("List all health documents with their context selection state, newest first."),
)

var panelAddToolDef = mcp.NewTool("panel_add",
	mcp.WithDescription("Add a lab panel with its result count."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Panel name."),
	),
	mcp.WithNumber("result_count",
		mcp.Required(),
		mcp.Description("Number of results in the panel."),
	),
)

var panelListToolDef = mcp.NewTool("panel_list",
	mcp.WithDescription("List all lab panels with their context selection state, newest first."),
)
