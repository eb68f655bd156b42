package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hpungsan/lector/internal/errors"
	"github.com/hpungsan/lector/internal/item"
)

// newTestItem creates an unprocessed item for testing.
func newTestItem(url string) *item.Item {
	return &item.Item{
		URL:       url,
		AddedDate: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// stringPtr returns a pointer to the given string.
func stringPtr(s string) *string {
	return &s
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := Init(t.TempDir())
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestInsertAndGetByID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	it := newTestItem("https://example.com/a")
	it.Title = stringPtr("Example A")
	it.PreviewText = stringPtr("preview")

	if err := InsertItem(ctx, db, it); err != nil {
		t.Fatalf("InsertItem failed: %v", err)
	}
	if it.ID == 0 {
		t.Fatal("InsertItem did not set ID")
	}

	retrieved, err := GetItemByID(ctx, db, it.ID)
	if err != nil {
		t.Fatalf("GetItemByID failed: %v", err)
	}

	if retrieved.URL != it.URL {
		t.Errorf("URL = %q, want %q", retrieved.URL, it.URL)
	}
	if retrieved.Title == nil || *retrieved.Title != "Example A" {
		t.Errorf("Title = %v, want Example A", retrieved.Title)
	}
	if retrieved.PreviewText == nil || *retrieved.PreviewText != "preview" {
		t.Errorf("PreviewText = %v, want preview", retrieved.PreviewText)
	}
	if retrieved.Content != nil || retrieved.Summary != nil {
		t.Error("Content and Summary should be nil")
	}
	if retrieved.Processed {
		t.Error("Processed = true, want false")
	}
	if !retrieved.AddedDate.Equal(it.AddedDate) {
		t.Errorf("AddedDate = %v, want %v", retrieved.AddedDate, it.AddedDate)
	}
	if retrieved.ProcessedDate != nil {
		t.Errorf("ProcessedDate = %v, want nil", retrieved.ProcessedDate)
	}
}

func TestGetItemByID_NotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := GetItemByID(context.Background(), db, 42)
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestInsertItem_DuplicateURL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InsertItem(ctx, db, newTestItem("https://example.com/dup")); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err := InsertItem(ctx, db, newTestItem("https://example.com/dup"))
	if err != ErrUniqueConstraint {
		t.Errorf("second insert error = %v, want ErrUniqueConstraint", err)
	}
}

func TestItemExistsByURL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := InsertItem(ctx, db, newTestItem("https://example.com/a")); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	exists, err := ItemExistsByURL(ctx, db, "https://example.com/a")
	if err != nil || !exists {
		t.Errorf("ItemExistsByURL(a) = %v, %v; want true, nil", exists, err)
	}
	exists, err = ItemExistsByURL(ctx, db, "https://example.com/b")
	if err != nil || exists {
		t.Errorf("ItemExistsByURL(b) = %v, %v; want false, nil", exists, err)
	}
}

func TestListItems_Filter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	urls := []string{"https://example.com/1", "https://example.com/2", "https://example.com/3"}
	ids := make([]int64, 0, len(urls))
	for _, u := range urls {
		it := newTestItem(u)
		if err := InsertItem(ctx, db, it); err != nil {
			t.Fatalf("InsertItem(%s): %v", u, err)
		}
		ids = append(ids, it.ID)
	}

	ok, err := ApplyProcessResult(ctx, db, ProcessResult{ID: ids[1], Summary: stringPtr("done")})
	if err != nil || !ok {
		t.Fatalf("ApplyProcessResult = %v, %v", ok, err)
	}

	all, err := ListItems(ctx, db, AllItems)
	if err != nil {
		t.Fatalf("ListItems(all): %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("len(all) = %d, want 3", len(all))
	}
	for i, it := range all {
		if it.URL != urls[i] {
			t.Errorf("all[%d].URL = %q, want %q", i, it.URL, urls[i])
		}
	}

	unprocessed, err := ListItems(ctx, db, UnprocessedItems)
	if err != nil {
		t.Fatalf("ListItems(unprocessed): %v", err)
	}
	if len(unprocessed) != 2 || unprocessed[0].ID != ids[0] || unprocessed[1].ID != ids[2] {
		t.Errorf("unprocessed = %+v, want ids %d and %d", unprocessed, ids[0], ids[2])
	}
}

func TestListItems_EmptyIsNonNil(t *testing.T) {
	db := openTestDB(t)

	items, err := ListItems(context.Background(), db, AllItems)
	if err != nil {
		t.Fatalf("ListItems: %v", err)
	}
	if items == nil {
		t.Error("ListItems returned nil slice, want empty")
	}
}

func TestApplyProcessResult(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	it := newTestItem("https://example.com/p")
	if err := InsertItem(ctx, db, it); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}

	// Content only leaves the item unprocessed
	ok, err := ApplyProcessResult(ctx, db, ProcessResult{ID: it.ID, Content: stringPtr("body text")})
	if err != nil || !ok {
		t.Fatalf("ApplyProcessResult(content) = %v, %v", ok, err)
	}
	got, _ := GetItemByID(ctx, db, it.ID)
	if got.Content == nil || *got.Content != "body text" {
		t.Errorf("Content = %v, want body text", got.Content)
	}
	if got.Processed || got.Summary != nil || got.ProcessedDate != nil {
		t.Errorf("item should stay unprocessed: %+v", got)
	}

	processedAt := time.Date(2024, 6, 2, 8, 30, 0, 0, time.UTC)
	ok, err = ApplyProcessResult(ctx, db, ProcessResult{ID: it.ID, Summary: stringPtr("short"), ProcessedDate: &processedAt})
	if err != nil || !ok {
		t.Fatalf("ApplyProcessResult(summary) = %v, %v", ok, err)
	}
	got, _ = GetItemByID(ctx, db, it.ID)
	if !got.Processed {
		t.Error("Processed = false, want true")
	}
	if got.Summary == nil || *got.Summary != "short" {
		t.Errorf("Summary = %v, want short", got.Summary)
	}
	if got.ProcessedDate == nil || !got.ProcessedDate.Equal(processedAt) {
		t.Errorf("ProcessedDate = %v, want %v", got.ProcessedDate, processedAt)
	}
	if got.Content == nil || *got.Content != "body text" {
		t.Errorf("Content changed to %v", got.Content)
	}
}

func TestApplyProcessResult_MissingItem(t *testing.T) {
	db := openTestDB(t)

	ok, err := ApplyProcessResult(context.Background(), db, ProcessResult{ID: 99, Content: stringPtr("x")})
	if err != nil {
		t.Fatalf("ApplyProcessResult: %v", err)
	}
	if ok {
		t.Error("ApplyProcessResult on missing item = true, want false")
	}
}

func TestDeleteItem(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	it := newTestItem("https://example.com/d")
	if err := InsertItem(ctx, db, it); err != nil {
		t.Fatalf("InsertItem: %v", err)
	}
	if err := DeleteItem(ctx, db, it.ID); err != nil {
		t.Fatalf("DeleteItem: %v", err)
	}
	if _, err := GetItemByID(ctx, db, it.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("after delete expected NOT_FOUND, got %v", err)
	}
	if err := DeleteItem(ctx, db, it.ID); !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("second delete expected NOT_FOUND, got %v", err)
	}
}

func TestSettings(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	_, ok, err := GetSetting(ctx, db, item.SettingCustomInstructions)
	if err != nil || ok {
		t.Fatalf("GetSetting(missing) = %v, %v; want false, nil", ok, err)
	}

	if err := UpsertSetting(ctx, db, item.SettingCustomInstructions, "first"); err != nil {
		t.Fatalf("UpsertSetting: %v", err)
	}
	if err := UpsertSetting(ctx, db, item.SettingCustomInstructions, "second"); err != nil {
		t.Fatalf("UpsertSetting: %v", err)
	}

	value, ok, err := GetSetting(ctx, db, item.SettingCustomInstructions)
	if err != nil || !ok || value != "second" {
		t.Errorf("GetSetting = %q, %v, %v; want second, true, nil", value, ok, err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM settings`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("settings rows = %d, want 1", count)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	wantErr := errors.NewInvalidRequest("boom")
	err := WithTx(ctx, db, func(tx *sql.Tx) error {
		if err := InsertItem(ctx, tx, newTestItem("https://example.com/tx")); err != nil {
			return err
		}
		return wantErr
	})
	if err != wantErr {
		t.Fatalf("WithTx error = %v, want %v", err, wantErr)
	}

	exists, err := ItemExistsByURL(ctx, db, "https://example.com/tx")
	if err != nil {
		t.Fatalf("ItemExistsByURL: %v", err)
	}
	if exists {
		t.Error("insert inside failed transaction was committed")
	}
}
