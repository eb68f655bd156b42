package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/lector/internal/bookmarks"
	"github.com/hpungsan/lector/internal/config"
	"github.com/hpungsan/lector/internal/db"
	"github.com/hpungsan/lector/internal/errors"
	"github.com/hpungsan/lector/internal/item"
)

// SyncInput contains parameters for the Sync operation.
type SyncInput struct {
	// BookmarksPath overrides the configured bookmarks file
	BookmarksPath string
}

// SyncOutput contains the result of the Sync operation.
type SyncOutput struct {
	Message  string `json:"message"`
	NewItems int    `json:"new_items"`
	RunID    string `json:"run_id"`
}

// Sync imports reading list entries that are not stored yet.
// Existing items are never modified.
func Sync(ctx context.Context, database *sql.DB, cfg *config.Config, input SyncInput) (*SyncOutput, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	runID := newRunID()
	path := firstNonBlank(input.BookmarksPath, cfg.BookmarksPath, bookmarks.DefaultPath())

	log := logrus.WithFields(logrus.Fields{
		"run_id": runID,
		"path":   path,
	})

	entries, err := bookmarks.Extract(path)
	if err != nil {
		log.WithError(err).Error("Failed to read bookmarks")
		if errors.Is(err, errors.ErrBookmarksUnreadable) {
			return nil, err
		}
		return nil, errors.NewBookmarksUnreadable(err)
	}

	newCount := 0
	commitCtx := context.WithoutCancel(ctx)
	err = db.WithTx(commitCtx, database, func(tx *sql.Tx) error {
		seen := make(map[string]bool, len(entries))
		now := time.Now().UTC()

		for _, entry := range entries {
			if strings.TrimSpace(entry.URL) == "" || seen[entry.URL] {
				continue
			}
			seen[entry.URL] = true

			exists, err := db.ItemExistsByURL(commitCtx, tx, entry.URL)
			if err != nil {
				return err
			}
			if exists {
				continue
			}

			if err := db.InsertItem(commitCtx, tx, newItemFromEntry(entry, now)); err != nil {
				return err
			}
			newCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"entries":   len(entries),
		"new_items": newCount,
	}).Info("Sync complete")

	return &SyncOutput{
		Message:  fmt.Sprintf("Synced %d new items", newCount),
		NewItems: newCount,
		RunID:    runID,
	}, nil
}

// newItemFromEntry builds an unprocessed item. Title falls back to the URL
// and the added date to now.
func newItemFromEntry(entry item.Entry, now time.Time) *item.Item {
	title := entry.Title
	if strings.TrimSpace(title) == "" {
		title = entry.URL
	}

	it := &item.Item{
		URL:       entry.URL,
		Title:     &title,
		AddedDate: now,
	}
	if entry.PreviewText != "" {
		preview := entry.PreviewText
		it.PreviewText = &preview
	}
	if entry.AddedDate != nil {
		it.AddedDate = *entry.AddedDate
	}
	return it
}
