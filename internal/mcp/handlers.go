package mcp

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/lector/internal/config"
	"github.com/hpungsan/lector/internal/errors"
	"github.com/hpungsan/lector/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db   *sql.DB
	cfg  *config.Config
	deps ops.Deps
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, cfg *config.Config, deps ops.Deps) *Handlers {
	return &Handlers{db: db, cfg: cfg, deps: deps}
}

// Request types for each tool

// SyncRequest represents the arguments for reading_list_sync.
type SyncRequest struct {
	BookmarksPath string `json:"bookmarks_path,omitempty"`
}

// ProcessRequest represents the arguments for reading_list_process.
type ProcessRequest struct {
	ItemID             int64  `json:"item_id,omitempty"`
	Reprocess          bool   `json:"reprocess,omitempty"`
	CustomInstructions string `json:"custom_instructions,omitempty"`
	Provider           string `json:"provider,omitempty"`
	Model              string `json:"model,omitempty"`
}

// ItemsRequest represents the arguments for reading_list_items.
type ItemsRequest struct {
	UnprocessedOnly bool `json:"unprocessed_only,omitempty"`
}

// ItemRequest identifies a single item for reading_list_get and reading_list_delete.
type ItemRequest struct {
	ItemID int64 `json:"item_id"`
}

// SettingsUpdateRequest represents the arguments for settings_update.
type SettingsUpdateRequest struct {
	CustomInstructions *string `json:"custom_instructions"`
}

// Handler implementations

// HandleSync handles the reading_list_sync tool call.
func (h *Handlers) HandleSync(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SyncRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Sync(ctx, h.db, h.cfg, ops.SyncInput{
		BookmarksPath: input.BookmarksPath,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleProcess handles the reading_list_process tool call.
func (h *Handlers) HandleProcess(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ProcessRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.Process(ctx, h.db, h.deps, ops.ProcessInput{
		ItemID:             input.ItemID,
		Reprocess:          input.Reprocess,
		CustomInstructions: input.CustomInstructions,
		Provider:           input.Provider,
		Model:              input.Model,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleListItems handles the reading_list_items tool call.
func (h *Handlers) HandleListItems(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ItemsRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	items, err := ops.ListItems(ctx, h.db, ops.ListItemsInput{
		UnprocessedOnly: input.UnprocessedOnly,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(map[string]any{"items": items})
}

// HandleGetItem handles the reading_list_get tool call.
func (h *Handlers) HandleGetItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ItemRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.GetItem(ctx, h.db, input.ItemID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleDeleteItem handles the reading_list_delete tool call.
func (h *Handlers) HandleDeleteItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ItemRequest](req)
	if err != nil {
		return errorResult(err), nil
	}

	result, err := ops.DeleteItem(ctx, h.db, input.ItemID)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleGetSettings handles the settings_get tool call.
func (h *Handlers) HandleGetSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	result, err := ops.GetSettings(ctx, h.db)
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleUpdateSettings handles the settings_update tool call.
func (h *Handlers) HandleUpdateSettings(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[SettingsUpdateRequest](req)
	if err != nil {
		return errorResult(err), nil
	}
	if input.CustomInstructions == nil {
		return errorResult(errors.NewInvalidRequest("custom_instructions is required")), nil
	}

	result, err := ops.UpdateSettings(ctx, h.db, ops.UpdateSettingsInput{
		CustomInstructions: input.CustomInstructions,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error messages are replaced so SQL errors and file paths are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	lErr := errors.As(err)

	errorObj := map[string]any{
		"code":    lErr.Code,
		"message": lErr.Message,
		"status":  lErr.Status,
	}
	if lErr.Code == errors.ErrInternal {
		errorObj["message"] = "an internal error occurred"
	} else if lErr.Details != nil {
		errorObj["details"] = lErr.Details
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
