package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"storyforge/internal/interfaces"
	"storyforge/internal/models"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.TemplateRepository = (*pgTemplateRepository)(nil)

type pgTemplateRepository struct {
	logger *zap.Logger
}

// NewPgTemplateRepository creates a PostgreSQL-backed TemplateRepository.
func NewPgTemplateRepository(logger *zap.Logger) interfaces.TemplateRepository {
	return &pgTemplateRepository{
		logger: logger.Named("PgTemplateRepo"),
	}
}

const getTemplateByIDQuery = `
SELECT id, title, synopsis, total_scenes, choice_points, created_at, updated_at
FROM novel_templates
WHERE id = $1`

const listTemplatesQuery = `
SELECT id, title, synopsis, total_scenes, choice_points, created_at, updated_at
FROM novel_templates
ORDER BY created_at DESC
LIMIT $1 OFFSET $2`

// GetByID retrieves a template and decodes its embedded choice points.
func (r *pgTemplateRepository) GetByID(ctx context.Context, q interfaces.DBTX, id uuid.UUID) (*models.NovelTemplate, error) {
	tmpl, err := scanTemplate(q.QueryRow(ctx, getTemplateByIDQuery, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.Debug("Template not found", zap.String("templateID", id.String()))
			return nil, models.ErrTemplateNotFound
		}
		r.logger.Error("Failed to get template", zap.String("templateID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get template %s: %w", id, err)
	}
	return tmpl, nil
}

// List returns templates ordered by creation time, newest first.
func (r *pgTemplateRepository) List(ctx context.Context, q interfaces.DBTX, limit, offset int) ([]*models.NovelTemplate, error) {
	rows, err := q.Query(ctx, listTemplatesQuery, limit, offset)
	if err != nil {
		r.logger.Error("Failed to list templates", zap.Error(err))
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	defer rows.Close()

	var templates []*models.NovelTemplate
	for rows.Next() {
		tmpl, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan template row: %w", err)
		}
		templates = append(templates, tmpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate template rows: %w", err)
	}
	return templates, nil
}

func scanTemplate(row pgx.Row) (*models.NovelTemplate, error) {
	tmpl := &models.NovelTemplate{}
	var rawChoicePoints json.RawMessage
	err := row.Scan(
		&tmpl.ID,
		&tmpl.Title,
		&tmpl.Synopsis,
		&tmpl.TotalScenes,
		&rawChoicePoints,
		&tmpl.CreatedAt,
		&tmpl.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	points, err := models.ParseChoicePoints(rawChoicePoints, tmpl.TotalScenes)
	if err != nil {
		return nil, fmt.Errorf("template %s has invalid choice points: %w", tmpl.ID, err)
	}
	tmpl.ChoicePoints = points
	return tmpl, nil
}
