package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/hpungsan/lector/internal/db"
	"github.com/hpungsan/lector/internal/errors"
	"github.com/hpungsan/lector/internal/item"
	"github.com/hpungsan/lector/internal/summarize"
)

// seedItems stores unprocessed items for the given URLs and returns their ids in order.
func seedItems(t *testing.T, database *sql.DB, urls ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(urls))
	for _, u := range urls {
		it := &item.Item{URL: u, Title: stringPtr(u), AddedDate: time.Now().UTC()}
		if err := db.InsertItem(context.Background(), database, it); err != nil {
			t.Fatalf("InsertItem(%s): %v", u, err)
		}
		ids = append(ids, it.ID)
	}
	return ids
}

func TestProcess_BatchIsolation(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()
	ids := seedItems(t, database, "https://example.com/1", "https://example.com/2", "https://example.com/3")

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/1": "page one",
		"https://example.com/3": "page three",
	}}
	summarizer := &fakeSummarizer{}

	out, err := Process(ctx, database, Deps{Fetcher: fetcher, Summarizer: summarizer}, ProcessInput{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if out.ProcessedCount != 2 {
		t.Errorf("ProcessedCount = %d, want 2", out.ProcessedCount)
	}
	if out.Message != "Processed 2 items" {
		t.Errorf("Message = %q", out.Message)
	}
	if len(out.Errors) != 1 || out.Errors[0] != "Failed to fetch content for https://example.com/2" {
		t.Errorf("Errors = %v", out.Errors)
	}

	// Order is preserved
	if strings.Join(fetcher.calls, ",") != "https://example.com/1,https://example.com/2,https://example.com/3" {
		t.Errorf("fetch order = %v", fetcher.calls)
	}

	failed, _ := GetItem(ctx, database, ids[1])
	if failed.Processed || failed.Content != nil || failed.Summary != nil {
		t.Errorf("failed item should be untouched: %+v", failed)
	}

	done, _ := GetItem(ctx, database, ids[2])
	if !done.Processed || done.ProcessedDate == nil {
		t.Errorf("item 3 should be processed: %+v", done)
	}
	if done.Summary == nil || *done.Summary != "summary of page three" {
		t.Errorf("Summary = %v", done.Summary)
	}
	if done.Content == nil || *done.Content != "page three" {
		t.Errorf("Content = %v", done.Content)
	}
}

func TestProcess_SummarizeFailureKeepsContent(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()
	ids := seedItems(t, database, "https://example.com/1")

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/1": "page one"}}
	summarizer := &fakeSummarizer{fail: map[string]error{
		"page one": errors.NewSummarizationFailed("anthropic", stderrors.New("overloaded")),
	}}

	out, err := Process(ctx, database, Deps{Fetcher: fetcher, Summarizer: summarizer}, ProcessInput{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.ProcessedCount != 0 {
		t.Errorf("ProcessedCount = %d, want 0", out.ProcessedCount)
	}
	if len(out.Errors) != 1 || out.Errors[0] != "Error processing https://example.com/1: anthropic: overloaded" {
		t.Errorf("Errors = %v", out.Errors)
	}

	it, _ := GetItem(ctx, database, ids[0])
	if it.Processed {
		t.Error("item should stay unprocessed")
	}
	if it.Content == nil || *it.Content != "page one" {
		t.Errorf("Content = %v, want fetched content kept", it.Content)
	}
}

func TestProcess_ConfigurationErrorAborts(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()
	ids := seedItems(t, database, "https://example.com/1", "https://example.com/2")

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/1": "page one",
		"https://example.com/2": "page two",
	}}
	summarizer := &fakeSummarizer{fail: map[string]error{
		"page one": errors.NewMissingCredential("anthropic", "ANTHROPIC_API_KEY"),
	}}

	_, err := Process(ctx, database, Deps{Fetcher: fetcher, Summarizer: summarizer}, ProcessInput{})
	if !errors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("expected CONFIGURATION, got %v", err)
	}

	for _, id := range ids {
		it, _ := GetItem(ctx, database, id)
		if it.Content != nil || it.Processed {
			t.Errorf("item %d should be untouched: %+v", id, it)
		}
	}
}

func TestProcess_SingleItemNotFound(t *testing.T) {
	database := setupDB(t)

	_, err := Process(context.Background(), database, Deps{Fetcher: &fakeFetcher{}, Summarizer: &fakeSummarizer{}}, ProcessInput{ItemID: 404})
	if !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
	if errors.As(err).Message != "Item not found" {
		t.Errorf("Message = %q", errors.As(err).Message)
	}
}

func TestProcess_SingleItemAlwaysRefetches(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()
	ids := seedItems(t, database, "https://example.com/1", "https://example.com/2")

	// Give item 1 stale content and mark it processed
	_, err := db.ApplyProcessResult(ctx, database, db.ProcessResult{ID: ids[0], Content: stringPtr("stale"), Summary: stringPtr("old")})
	if err != nil {
		t.Fatalf("ApplyProcessResult: %v", err)
	}

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/1": "fresh"}}
	summarizer := &fakeSummarizer{}

	out, err := Process(ctx, database, Deps{Fetcher: fetcher, Summarizer: summarizer}, ProcessInput{ItemID: ids[0]})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.ProcessedCount != 1 {
		t.Errorf("ProcessedCount = %d, want 1", out.ProcessedCount)
	}
	if len(fetcher.calls) != 1 || fetcher.calls[0] != "https://example.com/1" {
		t.Errorf("fetch calls = %v", fetcher.calls)
	}

	it, _ := GetItem(ctx, database, ids[0])
	if *it.Content != "fresh" || *it.Summary != "summary of fresh" {
		t.Errorf("item = content %q summary %q", *it.Content, *it.Summary)
	}
}

func TestProcess_ReusesStoredContent(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()
	ids := seedItems(t, database, "https://example.com/1")

	if _, err := db.ApplyProcessResult(ctx, database, db.ProcessResult{ID: ids[0], Content: stringPtr("cached")}); err != nil {
		t.Fatalf("ApplyProcessResult: %v", err)
	}

	fetcher := &fakeFetcher{}
	summarizer := &fakeSummarizer{}
	out, err := Process(ctx, database, Deps{Fetcher: fetcher, Summarizer: summarizer}, ProcessInput{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.ProcessedCount != 1 {
		t.Errorf("ProcessedCount = %d, want 1", out.ProcessedCount)
	}
	if len(fetcher.calls) != 0 {
		t.Errorf("fetcher called for cached content: %v", fetcher.calls)
	}
	if summarizer.requests[0].Content != "cached" {
		t.Errorf("summarized %q, want cached", summarizer.requests[0].Content)
	}
}

func TestProcess_ReprocessTargetsAll(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()
	ids := seedItems(t, database, "https://example.com/1", "https://example.com/2")

	if _, err := db.ApplyProcessResult(ctx, database, db.ProcessResult{ID: ids[0], Content: stringPtr("old"), Summary: stringPtr("old summary")}); err != nil {
		t.Fatalf("ApplyProcessResult: %v", err)
	}

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/1": "new one",
		"https://example.com/2": "new two",
	}}
	deps := Deps{Fetcher: fetcher, Summarizer: &fakeSummarizer{}}

	// Without reprocess only the pending item is touched
	out, err := Process(ctx, database, deps, ProcessInput{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.ProcessedCount != 1 {
		t.Errorf("ProcessedCount = %d, want 1", out.ProcessedCount)
	}

	fetcher.calls = nil
	out, err = Process(ctx, database, deps, ProcessInput{Reprocess: true})
	if err != nil {
		t.Fatalf("Process(reprocess) failed: %v", err)
	}
	if out.ProcessedCount != 2 || len(fetcher.calls) != 2 {
		t.Errorf("ProcessedCount = %d, fetches = %d; want 2, 2", out.ProcessedCount, len(fetcher.calls))
	}

	it, _ := GetItem(ctx, database, ids[0])
	if *it.Summary != "summary of new one" {
		t.Errorf("Summary = %q", *it.Summary)
	}
}

func TestProcess_InstructionResolution(t *testing.T) {
	database := setupDB(t)
	ctx := context.Background()
	seedItems(t, database, "https://example.com/1")

	fetcher := &fakeFetcher{pages: map[string]string{"https://example.com/1": "page"}}

	// No request value and no setting: empty, the summarizer applies its default
	summarizer := &fakeSummarizer{}
	if _, err := Process(ctx, database, Deps{Fetcher: fetcher, Summarizer: summarizer}, ProcessInput{Reprocess: true}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if summarizer.requests[0].Instructions != "" {
		t.Errorf("Instructions = %q, want empty", summarizer.requests[0].Instructions)
	}

	// Stored setting is used when the request has none
	if _, err := UpdateSettings(ctx, database, UpdateSettingsInput{CustomInstructions: stringPtr("Stored guidance")}); err != nil {
		t.Fatalf("UpdateSettings failed: %v", err)
	}
	summarizer = &fakeSummarizer{}
	if _, err := Process(ctx, database, Deps{Fetcher: fetcher, Summarizer: summarizer}, ProcessInput{Reprocess: true}); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if summarizer.requests[0].Instructions != "Stored guidance" {
		t.Errorf("Instructions = %q, want stored", summarizer.requests[0].Instructions)
	}

	// Request value wins, along with provider and model
	summarizer = &fakeSummarizer{}
	input := ProcessInput{Reprocess: true, CustomInstructions: "Request guidance", Provider: "gemini", Model: "gemini-2.5-pro"}
	if _, err := Process(ctx, database, Deps{Fetcher: fetcher, Summarizer: summarizer}, input); err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	req := summarizer.requests[0]
	if req.Instructions != "Request guidance" || req.Provider != "gemini" || req.Model != "gemini-2.5-pro" {
		t.Errorf("request = %+v", req)
	}
}

func TestProcess_EmptyTargets(t *testing.T) {
	database := setupDB(t)

	out, err := Process(context.Background(), database, Deps{Fetcher: &fakeFetcher{}, Summarizer: &fakeSummarizer{}}, ProcessInput{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.ProcessedCount != 0 || out.Errors == nil || len(out.Errors) != 0 {
		t.Errorf("out = %+v, want zero count and empty errors", out)
	}
}

func TestProcess_InvalidInput(t *testing.T) {
	database := setupDB(t)

	_, err := Process(context.Background(), database, Deps{Fetcher: &fakeFetcher{}, Summarizer: &fakeSummarizer{}}, ProcessInput{ItemID: -1})
	if !errors.Is(err, errors.ErrInvalidRequest) {
		t.Errorf("expected INVALID_REQUEST, got %v", err)
	}

	_, err = Process(context.Background(), database, Deps{}, ProcessInput{})
	if !errors.Is(err, errors.ErrConfiguration) {
		t.Errorf("expected CONFIGURATION for missing deps, got %v", err)
	}
}

// cancellingSummarizer succeeds once, cancels the run's context, then fails
// the way an HTTP client does once its context is done.
type cancellingSummarizer struct {
	cancel context.CancelFunc
	calls  int
}

func (s *cancellingSummarizer) Summarize(ctx context.Context, req summarize.Request) (string, error) {
	s.calls++
	if err := ctx.Err(); err != nil {
		return "", errors.NewSummarizationFailed("anthropic", err)
	}
	s.cancel()
	return "summary of " + req.Content, nil
}

func TestProcess_CommitsCompletedWorkAfterCancel(t *testing.T) {
	database := setupDB(t)
	ids := seedItems(t, database, "https://example.com/1", "https://example.com/2")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := &fakeFetcher{pages: map[string]string{
		"https://example.com/1": "page one",
		"https://example.com/2": "page two",
	}}
	summarizer := &cancellingSummarizer{cancel: cancel}

	out, err := Process(ctx, database, Deps{Fetcher: fetcher, Summarizer: summarizer}, ProcessInput{})
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if out.ProcessedCount != 1 {
		t.Errorf("ProcessedCount = %d, want 1", out.ProcessedCount)
	}
	if len(out.Errors) != 1 || !strings.HasPrefix(out.Errors[0], "Error processing https://example.com/2") {
		t.Errorf("Errors = %v", out.Errors)
	}

	bg := context.Background()
	done, err := GetItem(bg, database, ids[0])
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if !done.Processed || done.Summary == nil || *done.Summary != "summary of page one" {
		t.Errorf("completed summary was not committed: %+v", done)
	}

	pending, err := GetItem(bg, database, ids[1])
	if err != nil {
		t.Fatalf("GetItem failed: %v", err)
	}
	if pending.Processed {
		t.Error("item 2 should stay unprocessed")
	}
	if pending.Content == nil || *pending.Content != "page two" {
		t.Errorf("fetched content should be kept: %v", pending.Content)
	}
}
