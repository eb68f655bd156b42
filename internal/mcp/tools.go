package mcp

import "github.com/mark3labs/mcp-go/mcp"

var syncToolDef = mcp.NewTool("reading_list_sync",
	mcp.WithDescription("Import new entries from the Safari Reading List into the local store. "+
		"Existing items are left untouched."),
	mcp.WithString("bookmarks_path",
		mcp.Description("Path to Bookmarks.plist. Defaults to the configured or platform location."),
	),
)

var processToolDef = mcp.NewTool("reading_list_process",
	mcp.WithDescription("Fetch page text and generate summaries. Without item_id, processes every "+
		"unprocessed item (or every item when reprocess is true). Per-item failures are "+
		"reported in errors and do not stop the batch."),
	mcp.WithNumber("item_id",
		mcp.Description("Process only this item, refetching its page"),
	),
	mcp.WithBoolean("reprocess",
		mcp.Description("Refetch and resummarize items that are already processed"),
	),
	mcp.WithString("custom_instructions",
		mcp.Description("Summarization guidance for this run. Defaults to the stored setting."),
	),
	mcp.WithString("provider",
		mcp.Description("LLM provider to use"),
		mcp.Enum("anthropic", "openai", "gemini"),
	),
	mcp.WithString("model",
		mcp.Description("Model name. Defaults to the configured or provider default model."),
	),
)

var itemsToolDef = mcp.NewTool("reading_list_items",
	mcp.WithDescription("List stored reading list items in the order they were added."),
	mcp.WithBoolean("unprocessed_only",
		mcp.Description("Only return items without a summary"),
	),
)

var getToolDef = mcp.NewTool("reading_list_get",
	mcp.WithDescription("Get one reading list item including its extracted content and summary."),
	mcp.WithNumber("item_id",
		mcp.Required(),
		mcp.Description("Item id"),
	),
)

var deleteToolDef = mcp.NewTool("reading_list_delete",
	mcp.WithDescription("Permanently delete a reading list item. A later sync re-imports it "+
		"if it is still in the Safari Reading List."),
	mcp.WithNumber("item_id",
		mcp.Required(),
		mcp.Description("Item id"),
	),
)

var settingsGetToolDef = mcp.NewTool("settings_get",
	mcp.WithDescription("Get the stored custom summarization instructions."),
)

var settingsUpdateToolDef = mcp.NewTool("settings_update",
	mcp.WithDescription("Replace the stored custom summarization instructions. "+
		"An empty string restores the default prompt."),
	mcp.WithString("custom_instructions",
		mcp.Required(),
		mcp.Description("Instructions prepended to the article text when summarizing"),
	),
)
