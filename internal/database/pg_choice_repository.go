package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"storyforge/internal/interfaces"
	"storyforge/internal/models"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.ChoiceRepository = (*pgChoiceRepository)(nil)

type pgChoiceRepository struct {
	logger *zap.Logger
}

// NewPgChoiceRepository creates a PostgreSQL-backed ChoiceRepository.
func NewPgChoiceRepository(logger *zap.Logger) interfaces.ChoiceRepository {
	return &pgChoiceRepository{
		logger: logger.Named("PgChoiceRepo"),
	}
}

const createChoiceQuery = `
INSERT INTO story_choices (id, story_id, choice_point_id, selected_option, created_at)
VALUES ($1, $2, $3, $4, $5)`

const getChoiceByStoryAndPointQuery = `
SELECT id, story_id, choice_point_id, selected_option, created_at
FROM story_choices
WHERE story_id = $1 AND choice_point_id = $2`

const listChoicesByStoryQuery = `
SELECT id, story_id, choice_point_id, selected_option, created_at
FROM story_choices
WHERE story_id = $1
ORDER BY created_at`

const copyChoicesQuery = `
INSERT INTO story_choices (id, story_id, choice_point_id, selected_option, created_at)
SELECT gen_random_uuid(), $2, choice_point_id, selected_option, now()
FROM story_choices
WHERE story_id = $1 AND choice_point_id = ANY($3)`

// Create inserts a recorded choice. Choices are write-once per (story, choice
// point); the unique constraint turns a duplicate into ErrChoiceAlreadyMade.
func (r *pgChoiceRepository) Create(ctx context.Context, q interfaces.DBTX, choice *models.StoryChoice) error {
	if choice.ID == uuid.Nil {
		choice.ID = uuid.New()
	}
	if choice.CreatedAt.IsZero() {
		choice.CreatedAt = time.Now().UTC()
	}

	_, err := q.Exec(ctx, createChoiceQuery,
		choice.ID,
		choice.StoryID,
		choice.ChoicePointID,
		choice.SelectedOption,
		choice.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "uq_story_choices_story_point") {
			r.logger.Debug("Choice already recorded",
				zap.String("storyID", choice.StoryID.String()),
				zap.String("choicePointID", choice.ChoicePointID.String()))
			return models.ErrChoiceAlreadyMade
		}
		r.logger.Error("Failed to create choice",
			zap.String("storyID", choice.StoryID.String()),
			zap.String("choicePointID", choice.ChoicePointID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create choice: %w", err)
	}
	r.logger.Info("Choice recorded",
		zap.String("storyID", choice.StoryID.String()),
		zap.String("choicePointID", choice.ChoicePointID.String()),
		zap.Int("selectedOption", choice.SelectedOption))
	return nil
}

// GetByStoryAndChoicePoint retrieves the recorded choice for a choice point.
func (r *pgChoiceRepository) GetByStoryAndChoicePoint(ctx context.Context, q interfaces.DBTX, storyID, choicePointID uuid.UUID) (*models.StoryChoice, error) {
	choice := &models.StoryChoice{}
	err := q.QueryRow(ctx, getChoiceByStoryAndPointQuery, storyID, choicePointID).Scan(
		&choice.ID,
		&choice.StoryID,
		&choice.ChoicePointID,
		&choice.SelectedOption,
		&choice.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		r.logger.Error("Failed to get choice",
			zap.String("storyID", storyID.String()),
			zap.String("choicePointID", choicePointID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get choice: %w", err)
	}
	return choice, nil
}

// ListByStory returns all recorded choices for a story in recording order.
func (r *pgChoiceRepository) ListByStory(ctx context.Context, q interfaces.DBTX, storyID uuid.UUID) ([]*models.StoryChoice, error) {
	var choices []*models.StoryChoice
	if err := pgxscan.Select(ctx, q, &choices, listChoicesByStoryQuery, storyID); err != nil {
		r.logger.Error("Failed to list choices", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list choices: %w", err)
	}
	return choices, nil
}

// CopyForChoicePoints duplicates the parent's choices at the given choice
// points into another story. Runs inside the branch transaction.
func (r *pgChoiceRepository) CopyForChoicePoints(ctx context.Context, q interfaces.DBTX, fromStoryID, toStoryID uuid.UUID, choicePointIDs []uuid.UUID) (int64, error) {
	if len(choicePointIDs) == 0 {
		return 0, nil
	}
	tag, err := q.Exec(ctx, copyChoicesQuery, fromStoryID, toStoryID, choicePointIDs)
	if err != nil {
		r.logger.Error("Failed to copy choices",
			zap.String("fromStoryID", fromStoryID.String()),
			zap.String("toStoryID", toStoryID.String()),
			zap.Error(err))
		return 0, fmt.Errorf("failed to copy choices: %w", err)
	}
	return tag.RowsAffected(), nil
}
