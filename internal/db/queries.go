package db

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/lector/internal/errors"
	"github.com/hpungsan/lector/internal/item"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.LectorError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

const itemColumns = `id, url, title, preview_text, content, summary,
	processed, added_date, processed_date`

// ItemFilter selects which items ListItems returns.
type ItemFilter int

const (
	AllItems ItemFilter = iota
	UnprocessedItems
)

// ProcessResult describes the mutations a process run applies to one item.
// Nil fields are left unchanged.
type ProcessResult struct {
	ID            int64
	Content       *string
	Summary       *string
	ProcessedDate *time.Time
}

// InsertItem stores a new item and sets its ID.
func InsertItem(ctx context.Context, q Querier, it *item.Item) error {
	query := `
		INSERT INTO reading_list_items (
			url, title, preview_text, content, summary,
			processed, added_date, processed_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := q.ExecContext(ctx, query,
		it.URL, toNullString(it.Title), toNullString(it.PreviewText),
		toNullString(it.Content), toNullString(it.Summary),
		it.Processed, it.AddedDate.Unix(), toNullUnix(it.ProcessedDate),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return errors.NewInternal(err)
	}
	it.ID = id

	return nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// GetItemByID retrieves an item by id.
func GetItemByID(ctx context.Context, q Querier, id int64) (*item.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM reading_list_items WHERE id = ?`

	it, err := scanItem(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewItemNotFound(id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	return it, nil
}

// ItemExistsByURL checks whether an item with the given URL is stored.
func ItemExistsByURL(ctx context.Context, q Querier, url string) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM reading_list_items WHERE url = ? LIMIT 1`, url).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.NewInternal(err)
	}

	return true, nil
}

// ListItems returns items in insertion order.
func ListItems(ctx context.Context, q Querier, filter ItemFilter) ([]item.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM reading_list_items`
	if filter == UnprocessedItems {
		query += ` WHERE processed = 0`
	}
	query += ` ORDER BY id ASC`

	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer rows.Close()

	items := make([]item.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, errors.NewInternal(err)
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return items, nil
}

// ApplyProcessResult writes fetched content and, when present, marks the item processed.
// Returns false if the item no longer exists.
func ApplyProcessResult(ctx context.Context, q Querier, r ProcessResult) (bool, error) {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)

	if r.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *r.Content)
	}
	if r.Summary != nil {
		processedAt := time.Now()
		if r.ProcessedDate != nil {
			processedAt = *r.ProcessedDate
		}
		sets = append(sets, "summary = ?", "processed = 1", "processed_date = ?")
		args = append(args, *r.Summary, processedAt.Unix())
	}
	if len(sets) == 0 {
		return true, nil
	}

	args = append(args, r.ID)
	query := `UPDATE reading_list_items SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`

	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, errors.NewInternal(err)
	}

	return rowsAffected > 0, nil
}

// DeleteItem permanently removes an item.
func DeleteItem(ctx context.Context, q Querier, id int64) error {
	result, err := q.ExecContext(ctx, `DELETE FROM reading_list_items WHERE id = ?`, id)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewItemNotFound(id)
	}

	return nil
}

// GetSetting returns the value for key and whether it exists.
func GetSetting(ctx context.Context, q Querier, key string) (string, bool, error) {
	var value sql.NullString
	err := q.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.NewInternal(err)
	}

	return value.String, true, nil
}

// UpsertSetting creates or replaces the value for key.
func UpsertSetting(ctx context.Context, q Querier, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	if _, err := q.ExecContext(ctx, query, key, value); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem scans a single row into an Item.
func scanItem(row rowScanner) (*item.Item, error) {
	var (
		it            item.Item
		title         sql.NullString
		previewText   sql.NullString
		content       sql.NullString
		summary       sql.NullString
		addedDate     int64
		processedDate sql.NullInt64
	)

	err := row.Scan(
		&it.ID, &it.URL, &title, &previewText, &content, &summary,
		&it.Processed, &addedDate, &processedDate,
	)
	if err != nil {
		return nil, err
	}

	it.Title = fromNullString(title)
	it.PreviewText = fromNullString(previewText)
	it.Content = fromNullString(content)
	it.Summary = fromNullString(summary)
	it.AddedDate = time.Unix(addedDate, 0).UTC()
	if processedDate.Valid {
		t := time.Unix(processedDate.Int64, 0).UTC()
		it.ProcessedDate = &t
	}

	return &it, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts a sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

// toNullUnix converts an optional time to nullable Unix seconds.
func toNullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}
