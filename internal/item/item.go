package item

import "time"

// SettingCustomInstructions is the settings key holding user-supplied summarization guidance.
const SettingCustomInstructions = "custom_instructions"

// Entry is a reading list bookmark as found in the bookmarks file.
// It is transient: sync turns new entries into persisted Items.
type Entry struct {
	URL         string
	Title       string
	PreviewText string

	// AddedDate is nil when the bookmark carries no save timestamp
	AddedDate *time.Time
}

// Item is a persisted reading list entry plus its fetched content and summary.
// Processed implies Summary and ProcessedDate are set.
type Item struct {
	// ID is the autoincrement row id
	ID int64 `json:"id"`

	// URL is unique across all items
	URL string `json:"url"`

	Title       *string `json:"title"`
	PreviewText *string `json:"preview_text"`

	// Content is the cleaned page text, nil until the page is fetched
	Content *string `json:"content"`

	// Summary is the LLM output, nil until processed
	Summary *string `json:"summary"`

	Processed     bool       `json:"processed"`
	AddedDate     time.Time  `json:"added_date"`
	ProcessedDate *time.Time `json:"processed_date"`
}

// DisplayTitle returns the title, falling back to the URL.
func (i *Item) DisplayTitle() string {
	if i.Title != nil && *i.Title != "" {
		return *i.Title
	}
	return i.URL
}

// Setting is a single key/value configuration row.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
