package database

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"go.uber.org/zap"

	"storyforge/internal/interfaces"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.SettingsRepository = (*pgSettingsRepository)(nil)

type pgSettingsRepository struct {
	logger *zap.Logger
}

// NewPgSettingsRepository creates a PostgreSQL-backed SettingsRepository.
func NewPgSettingsRepository(logger *zap.Logger) interfaces.SettingsRepository {
	return &pgSettingsRepository{
		logger: logger.Named("PgSettingsRepo"),
	}
}

const getAllSettingsQuery = `SELECT key, value FROM engine_settings ORDER BY key`

type settingRow struct {
	Key   string `db:"key"`
	Value string `db:"value"`
}

// GetAll loads every engine setting as a key/value map.
func (r *pgSettingsRepository) GetAll(ctx context.Context, q interfaces.DBTX) (map[string]string, error) {
	var rows []settingRow
	if err := pgxscan.Select(ctx, q, &rows, getAllSettingsQuery); err != nil {
		r.logger.Error("Failed to load engine settings", zap.Error(err))
		return nil, fmt.Errorf("failed to load engine settings: %w", err)
	}
	settings := make(map[string]string, len(rows))
	for _, row := range rows {
		settings[row.Key] = row.Value
	}
	return settings, nil
}
