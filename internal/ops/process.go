package ops

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/lector/internal/db"
	"github.com/hpungsan/lector/internal/errors"
	"github.com/hpungsan/lector/internal/item"
	"github.com/hpungsan/lector/internal/summarize"
)

// ProcessInput contains parameters for the Process operation.
type ProcessInput struct {
	// ItemID selects a single item; 0 means every pending item
	ItemID int64 `json:"item_id,omitempty"`

	// Reprocess targets every item and refetches its content
	Reprocess bool `json:"reprocess,omitempty"`

	// CustomInstructions overrides the stored custom_instructions setting
	CustomInstructions string `json:"custom_instructions,omitempty"`

	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// ProcessOutput contains the result of the Process operation.
type ProcessOutput struct {
	Message        string   `json:"message"`
	ProcessedCount int      `json:"processed_count"`
	Errors         []string `json:"errors"`
	RunID          string   `json:"run_id"`
}

// Process fetches and summarizes the targeted items in order.
// Per-item fetch and summarization failures are reported in Errors and do not
// stop the run. Configuration errors abort the run before anything is written.
// All updates are committed together once every item has been attempted.
func Process(ctx context.Context, database *sql.DB, deps Deps, input ProcessInput) (*ProcessOutput, error) {
	if input.ItemID < 0 {
		return nil, errors.NewInvalidRequest("item_id must be positive")
	}
	if deps.Fetcher == nil || deps.Summarizer == nil {
		return nil, errors.NewConfiguration("process requires a fetcher and a summarizer")
	}

	runID := newRunID()
	log := logrus.WithField("run_id", runID)

	instructions, err := resolveInstructions(ctx, database, input.CustomInstructions)
	if err != nil {
		return nil, err
	}

	targets, err := processTargets(ctx, database, input)
	if err != nil {
		return nil, err
	}
	log.WithField("items", len(targets)).Info("Processing reading list")

	results := make([]db.ProcessResult, 0, len(targets))
	failures := make([]string, 0)
	processed := 0

	for _, it := range targets {
		itemLog := log.WithFields(logrus.Fields{"item_id": it.ID, "url": it.URL})
		result := db.ProcessResult{ID: it.ID}

		content := ""
		if it.Content != nil {
			content = *it.Content
		}

		if content == "" || input.Reprocess || input.ItemID != 0 {
			text, ok := deps.Fetcher.Fetch(ctx, it.URL)
			if !ok {
				itemLog.Warn("Fetch failed, skipping item")
				failures = append(failures, fmt.Sprintf("Failed to fetch content for %s", it.URL))
				continue
			}
			content = text
			result.Content = &text
		}

		summary, err := deps.Summarizer.Summarize(ctx, summarize.Request{
			Content:      content,
			Instructions: instructions,
			Provider:     input.Provider,
			Model:        input.Model,
		})
		if err != nil {
			if errors.Is(err, errors.ErrConfiguration) {
				log.WithError(err).Error("Aborting run on configuration error")
				return nil, err
			}
			itemLog.WithError(err).Warn("Summarization failed")
			failures = append(failures, fmt.Sprintf("Error processing %s: %s", it.URL, errors.As(err).Message))
			results = append(results, result)
			continue
		}

		now := time.Now().UTC()
		result.Summary = &summary
		result.ProcessedDate = &now
		results = append(results, result)
		processed++
	}

	// Completed summaries are committed even if the caller went away mid-batch.
	commitCtx := context.WithoutCancel(ctx)
	err = db.WithTx(commitCtx, database, func(tx *sql.Tx) error {
		for _, r := range results {
			ok, err := db.ApplyProcessResult(commitCtx, tx, r)
			if err != nil {
				return err
			}
			if !ok {
				log.WithField("item_id", r.ID).Warn("Item deleted during processing")
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"processed": processed,
		"errors":    len(failures),
	}).Info("Process complete")

	return &ProcessOutput{
		Message:        fmt.Sprintf("Processed %d items", processed),
		ProcessedCount: processed,
		Errors:         failures,
		RunID:          runID,
	}, nil
}

// resolveInstructions prefers the request value, then the stored setting.
// Empty means the summarizer's default prompt.
func resolveInstructions(ctx context.Context, database *sql.DB, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	stored, _, err := db.GetSetting(ctx, database, item.SettingCustomInstructions)
	if err != nil {
		return "", err
	}
	return stored, nil
}

func processTargets(ctx context.Context, database *sql.DB, input ProcessInput) ([]item.Item, error) {
	if input.ItemID != 0 {
		it, err := db.GetItemByID(ctx, database, input.ItemID)
		if err != nil {
			return nil, err
		}
		return []item.Item{*it}, nil
	}

	filter := db.UnprocessedItems
	if input.Reprocess {
		filter = db.AllItems
	}
	return db.ListItems(ctx, database, filter)
}
