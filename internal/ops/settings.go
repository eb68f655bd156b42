package ops

import (
	"context"
	"database/sql"

	"github.com/hpungsan/lector/internal/db"
	"github.com/hpungsan/lector/internal/item"
)

// SettingsOutput contains the user-editable settings.
type SettingsOutput struct {
	CustomInstructions string `json:"custom_instructions"`
}

// UpdateSettingsInput contains parameters for the UpdateSettings operation.
// Nil fields are left unchanged.
type UpdateSettingsInput struct {
	CustomInstructions *string `json:"custom_instructions"`
}

// GetSettings returns the current settings. Unset values are empty.
func GetSettings(ctx context.Context, database *sql.DB) (*SettingsOutput, error) {
	value, _, err := db.GetSetting(ctx, database, item.SettingCustomInstructions)
	if err != nil {
		return nil, err
	}
	return &SettingsOutput{CustomInstructions: value}, nil
}

// UpdateSettings stores the provided settings.
func UpdateSettings(ctx context.Context, database *sql.DB, input UpdateSettingsInput) (*MessageOutput, error) {
	if input.CustomInstructions != nil {
		if err := db.UpsertSetting(ctx, database, item.SettingCustomInstructions, *input.CustomInstructions); err != nil {
			return nil, err
		}
	}
	return &MessageOutput{Message: "Settings updated"}, nil
}
