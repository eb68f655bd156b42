// Package bookmarks reads the Reading List out of Safari's Bookmarks.plist.
package bookmarks

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"howett.net/plist"

	"github.com/hpungsan/lector/internal/errors"
	"github.com/hpungsan/lector/internal/item"
)

// ReadingListTitle is the title Safari gives the Reading List folder.
const ReadingListTitle = "com.apple.ReadingList"

// node mirrors the subset of a Bookmarks.plist entry we care about.
// The same shape covers folders (Children) and leaves (URLString).
type node struct {
	Title         string        `plist:"Title"`
	URLString     string        `plist:"URLString"`
	URIDictionary uriDictionary `plist:"URIDictionary"`
	ReadingList   readingList   `plist:"ReadingList"`
	Children      []node        `plist:"Children"`
}

type uriDictionary struct {
	Title string `plist:"title"`
}

type readingList struct {
	PreviewText string    `plist:"PreviewText"`
	DateAdded   time.Time `plist:"DateAdded"`
}

// DefaultPath returns the standard macOS location of Safari's bookmarks file.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("~", "Library", "Safari", "Bookmarks.plist")
	}
	return filepath.Join(home, "Library", "Safari", "Bookmarks.plist")
}

// Extract returns every Reading List entry in the bookmarks file at path,
// in the order they appear in the file. Binary and XML property lists are
// both accepted.
func Extract(path string) ([]item.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.NewBookmarksNotFound(path)
		}
		return nil, errors.NewBookmarksUnreadable(err)
	}

	var root node
	if _, err := plist.Unmarshal(data, &root); err != nil {
		return nil, errors.NewBookmarksUnreadable(fmt.Errorf("decode %s: %w", path, err))
	}

	return collect(root.Children), nil
}

// frame is a pending node on the traversal stack.
type frame struct {
	n             node
	inReadingList bool
}

// collect walks the tree depth-first with an explicit stack so deeply nested
// folders cannot exhaust the goroutine stack.
func collect(children []node) []item.Entry {
	entries := make([]item.Entry, 0)

	stack := make([]frame, 0, len(children))
	stack = pushChildren(stack, children, false)

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if len(top.n.Children) > 0 {
			stack = pushChildren(stack, top.n.Children, top.n.Title == ReadingListTitle)
			continue
		}
		if top.inReadingList {
			entries = append(entries, toEntry(top.n))
		}
	}

	return entries
}

// pushChildren pushes children in reverse so they pop in source order.
func pushChildren(stack []frame, children []node, inReadingList bool) []frame {
	for i := len(children) - 1; i >= 0; i-- {
		stack = append(stack, frame{n: children[i], inReadingList: inReadingList})
	}
	return stack
}

func toEntry(n node) item.Entry {
	entry := item.Entry{
		URL:         n.URLString,
		Title:       n.URIDictionary.Title,
		PreviewText: n.ReadingList.PreviewText,
	}
	if !n.ReadingList.DateAdded.IsZero() {
		added := n.ReadingList.DateAdded.UTC()
		entry.AddedDate = &added
	}
	return entry
}
