package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/lector/internal/db"
	"github.com/hpungsan/lector/internal/errors"
	"github.com/hpungsan/lector/internal/item"
)

// ListItemsInput contains parameters for the ListItems operation.
type ListItemsInput struct {
	UnprocessedOnly bool `json:"unprocessed_only,omitempty"`
}

// ListItems returns stored items in insertion order.
func ListItems(ctx context.Context, database *sql.DB, input ListItemsInput) ([]item.Item, error) {
	filter := db.AllItems
	if input.UnprocessedOnly {
		filter = db.UnprocessedItems
	}
	return db.ListItems(ctx, database, filter)
}

// GetItem returns a single item by id.
func GetItem(ctx context.Context, database *sql.DB, id int64) (*item.Item, error) {
	if id <= 0 {
		return nil, errors.NewInvalidRequest("id must be positive")
	}
	return db.GetItemByID(ctx, database, id)
}

// DeleteItem permanently removes an item.
func DeleteItem(ctx context.Context, database *sql.DB, id int64) (*MessageOutput, error) {
	if id <= 0 {
		return nil, errors.NewInvalidRequest("id must be positive")
	}
	if err := db.DeleteItem(ctx, database, id); err != nil {
		return nil, err
	}
	return &MessageOutput{Message: "Item deleted"}, nil
}
