package bookmarks

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"howett.net/plist"

	"github.com/hpungsan/lector/internal/errors"
)

const plistHeader = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
`

func leafXML(url, title, preview, date string) string {
	s := `<dict>
  <key>WebBookmarkType</key><string>WebBookmarkTypeLeaf</string>
  <key>URLString</key><string>` + url + `</string>
  <key>URIDictionary</key><dict><key>title</key><string>` + title + `</string></dict>
  <key>ReadingList</key><dict>`
	if preview != "" {
		s += `<key>PreviewText</key><string>` + preview + `</string>`
	}
	if date != "" {
		s += `<key>DateAdded</key><date>` + date + `</date>`
	}
	return s + `</dict>
</dict>`
}

func folderXML(title string, children ...string) string {
	s := `<dict>
  <key>WebBookmarkType</key><string>WebBookmarkTypeList</string>
  <key>Title</key><string>` + title + `</string>
  <key>Children</key><array>`
	for _, c := range children {
		s += c
	}
	return s + `</array>
</dict>`
}

func writePlist(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Bookmarks.plist")
	if err := os.WriteFile(path, []byte(plistHeader+body+"\n</plist>\n"), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestExtract_ReadingListInOrder(t *testing.T) {
	path := writePlist(t, folderXML("",
		folderXML("BookmarksBar", leafXML("https://bar.example.com", "Bar", "", "")),
		folderXML(ReadingListTitle,
			leafXML("https://example.com/1", "First", "first preview", "2024-03-09T14:05:00Z"),
			leafXML("https://example.com/2", "Second", "", ""),
			leafXML("https://example.com/3", "Third", "third preview", "2024-04-01T08:00:00Z"),
		),
	))

	entries, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}

	for i, want := range []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"} {
		if entries[i].URL != want {
			t.Errorf("entries[%d].URL = %q, want %q", i, entries[i].URL, want)
		}
	}

	first := entries[0]
	if first.Title != "First" || first.PreviewText != "first preview" {
		t.Errorf("first entry = %+v", first)
	}
	wantDate := time.Date(2024, 3, 9, 14, 5, 0, 0, time.UTC)
	if first.AddedDate == nil || !first.AddedDate.Equal(wantDate) {
		t.Errorf("AddedDate = %v, want %v", first.AddedDate, wantDate)
	}

	second := entries[1]
	if second.PreviewText != "" {
		t.Errorf("PreviewText = %q, want empty", second.PreviewText)
	}
	if second.AddedDate != nil {
		t.Errorf("AddedDate = %v, want nil", second.AddedDate)
	}
}

func TestExtract_NoReadingList(t *testing.T) {
	path := writePlist(t, folderXML("",
		folderXML("BookmarksBar", leafXML("https://bar.example.com", "Bar", "", "")),
	))

	entries, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len(entries) = %d, want 0", len(entries))
	}
}

func TestExtract_NestedAndMultipleFoldersMerged(t *testing.T) {
	path := writePlist(t, folderXML("",
		folderXML(ReadingListTitle, leafXML("https://example.com/a", "A", "", "")),
		folderXML("Archive",
			folderXML(ReadingListTitle,
				leafXML("https://example.com/b", "B", "", ""),
				// A folder inside the reading list is walked, not emitted
				folderXML("Sub", leafXML("https://example.com/ignored", "Ignored", "", "")),
			),
		),
	))

	entries, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2: %+v", len(entries), entries)
	}
	if entries[0].URL != "https://example.com/a" || entries[1].URL != "https://example.com/b" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestExtract_MissingURLIsEmpty(t *testing.T) {
	leaf := `<dict><key>URIDictionary</key><dict><key>title</key><string>No URL</string></dict></dict>`
	path := writePlist(t, folderXML("", folderXML(ReadingListTitle, leaf)))

	entries, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(entries) != 1 || entries[0].URL != "" || entries[0].Title != "No URL" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestExtract_BinaryFormat(t *testing.T) {
	root := map[string]any{
		"Children": []any{
			map[string]any{
				"Title": ReadingListTitle,
				"Children": []any{
					map[string]any{"URLString": "https://example.com/bin"},
				},
			},
		},
	}
	data, err := plist.Marshal(root, plist.BinaryFormat)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	path := filepath.Join(t.TempDir(), "Bookmarks.plist")
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	entries, err := Extract(path)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(entries) != 1 || entries[0].URL != "https://example.com/bin" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestExtract_MissingFile(t *testing.T) {
	_, err := Extract(filepath.Join(t.TempDir(), "nope.plist"))
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestExtract_Undecodable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Bookmarks.plist")
	if err := os.WriteFile(path, []byte(`{"json": true`), 0600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	_, err := Extract(path)
	if !errors.Is(err, errors.ErrBookmarksUnreadable) {
		t.Errorf("expected BOOKMARKS_UNREADABLE, got %v", err)
	}
}

func TestDefaultPath(t *testing.T) {
	t.Setenv("HOME", "/Users/reader")

	if got := DefaultPath(); got != "/Users/reader/Library/Safari/Bookmarks.plist" {
		t.Errorf("DefaultPath() = %q", got)
	}
}
