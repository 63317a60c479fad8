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
var _ interfaces.StoryRepository = (*pgStoryRepository)(nil)

type pgStoryRepository struct {
	logger *zap.Logger
}

// NewPgStoryRepository creates a PostgreSQL-backed StoryRepository.
func NewPgStoryRepository(logger *zap.Logger) interfaces.StoryRepository {
	return &pgStoryRepository{
		logger: logger.Named("PgStoryRepo"),
	}
}

const createStoryQuery = `
INSERT INTO story_instances
    (id, user_id, template_id, title, current_scene, status,
     branched_from_story_id, branched_at_scene, branched_option, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`

const getStoryByIDQuery = `
SELECT id, user_id, template_id, title, current_scene, status,
       branched_from_story_id, branched_at_scene, branched_option, created_at, updated_at
FROM story_instances
WHERE id = $1`

const listStoriesByUserQuery = `
SELECT id, user_id, template_id, title, current_scene, status,
       branched_from_story_id, branched_at_scene, branched_option, created_at, updated_at
FROM story_instances
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

const findBranchQuery = `
SELECT id, user_id, template_id, title, current_scene, status,
       branched_from_story_id, branched_at_scene, branched_option, created_at, updated_at
FROM story_instances
WHERE user_id = $1 AND branched_from_story_id = $2 AND branched_at_scene = $3 AND branched_option = $4`

const advanceProgressQuery = `
UPDATE story_instances
SET current_scene = $2, status = $3, updated_at = $4
WHERE id = $1 AND current_scene <= $2`

const deleteStoryQuery = `
DELETE FROM story_instances
WHERE id = $1 AND user_id = $2`

// Create inserts a new story instance. A duplicate branch lineage tuple fails
// with models.ErrBranchExists.
func (r *pgStoryRepository) Create(ctx context.Context, q interfaces.DBTX, story *models.StoryInstance) error {
	if story.ID == uuid.Nil {
		story.ID = uuid.New()
	}
	now := time.Now().UTC()
	if story.CreatedAt.IsZero() {
		story.CreatedAt = now
	}

	_, err := q.Exec(ctx, createStoryQuery,
		story.ID,
		story.UserID,
		story.TemplateID,
		story.Title,
		story.CurrentScene,
		story.Status,
		story.BranchedFromStoryID,
		story.BranchedAtScene,
		story.BranchedOption,
		story.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "uq_story_instances_branch") {
			r.logger.Debug("Branch already exists for lineage tuple",
				zap.String("userID", story.UserID.String()),
				zap.Stringp("parentID", uuidStringp(story.BranchedFromStoryID)))
			return models.ErrBranchExists
		}
		r.logger.Error("Failed to create story instance", zap.Error(err), zap.String("storyID", story.ID.String()))
		return fmt.Errorf("failed to create story instance: %w", err)
	}
	r.logger.Info("Story instance created",
		zap.String("storyID", story.ID.String()),
		zap.Bool("isBranch", story.IsBranch()))
	return nil
}

// GetByID retrieves a story instance by its unique ID.
func (r *pgStoryRepository) GetByID(ctx context.Context, q interfaces.DBTX, id uuid.UUID) (*models.StoryInstance, error) {
	story := &models.StoryInstance{}
	err := q.QueryRow(ctx, getStoryByIDQuery, id).Scan(
		&story.ID,
		&story.UserID,
		&story.TemplateID,
		&story.Title,
		&story.CurrentScene,
		&story.Status,
		&story.BranchedFromStoryID,
		&story.BranchedAtScene,
		&story.BranchedOption,
		&story.CreatedAt,
		&story.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrStoryNotFound
		}
		r.logger.Error("Failed to get story instance", zap.String("storyID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to get story instance %s: %w", id, err)
	}
	return story, nil
}

// ListByUser returns the user's story instances, newest first.
func (r *pgStoryRepository) ListByUser(ctx context.Context, q interfaces.DBTX, userID uuid.UUID, limit, offset int) ([]*models.StoryInstance, error) {
	var stories []*models.StoryInstance
	if err := pgxscan.Select(ctx, q, &stories, listStoriesByUserQuery, userID, limit, offset); err != nil {
		r.logger.Error("Failed to list story instances", zap.String("userID", userID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list story instances: %w", err)
	}
	return stories, nil
}

// FindBranch locates an existing branch by its lineage tuple.
func (r *pgStoryRepository) FindBranch(ctx context.Context, q interfaces.DBTX, userID, parentID uuid.UUID, branchedAtScene, option int) (*models.StoryInstance, error) {
	var stories []*models.StoryInstance
	if err := pgxscan.Select(ctx, q, &stories, findBranchQuery, userID, parentID, branchedAtScene, option); err != nil {
		r.logger.Error("Failed to find branch",
			zap.String("parentID", parentID.String()),
			zap.Int("branchedAtScene", branchedAtScene),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find branch: %w", err)
	}
	if len(stories) == 0 {
		return nil, models.ErrNotFound
	}
	// The partial unique index guarantees at most one match.
	return stories[0], nil
}

// AdvanceProgress moves the current-scene pointer forward. The WHERE guard
// makes the update a no-op when a concurrent writer already advanced past
// newCurrentScene, so progress never rewinds.
func (r *pgStoryRepository) AdvanceProgress(ctx context.Context, q interfaces.DBTX, storyID uuid.UUID, newCurrentScene int, status models.StoryStatus) (bool, error) {
	tag, err := q.Exec(ctx, advanceProgressQuery, storyID, newCurrentScene, status, time.Now().UTC())
	if err != nil {
		r.logger.Error("Failed to advance story progress", zap.String("storyID", storyID.String()), zap.Error(err))
		return false, fmt.Errorf("failed to advance story progress: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a story owned by the user; scenes and choices cascade.
func (r *pgStoryRepository) Delete(ctx context.Context, q interfaces.DBTX, storyID, userID uuid.UUID) error {
	tag, err := q.Exec(ctx, deleteStoryQuery, storyID, userID)
	if err != nil {
		r.logger.Error("Failed to delete story instance", zap.String("storyID", storyID.String()), zap.Error(err))
		return fmt.Errorf("failed to delete story instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrStoryNotFound
	}
	r.logger.Info("Story instance deleted", zap.String("storyID", storyID.String()))
	return nil
}

func uuidStringp(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}
