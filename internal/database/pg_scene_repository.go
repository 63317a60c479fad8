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
var _ interfaces.SceneRepository = (*pgSceneRepository)(nil)

type pgSceneRepository struct {
	logger *zap.Logger
}

// NewPgSceneRepository creates a PostgreSQL-backed SceneRepository.
func NewPgSceneRepository(logger *zap.Logger) interfaces.SceneRepository {
	return &pgSceneRepository{
		logger: logger.Named("PgSceneRepo"),
	}
}

const createSceneIfAbsentQuery = `
INSERT INTO story_scenes (id, story_id, scene_number, content, word_count, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (story_id, scene_number) DO NOTHING`

const getSceneByStoryAndNumberQuery = `
SELECT id, story_id, scene_number, content, word_count, created_at
FROM story_scenes
WHERE story_id = $1 AND scene_number = $2`

const listSceneRangeQuery = `
SELECT id, story_id, scene_number, content, word_count, created_at
FROM story_scenes
WHERE story_id = $1 AND scene_number BETWEEN $2 AND $3
ORDER BY scene_number`

const copyScenePrefixQuery = `
INSERT INTO story_scenes (id, story_id, scene_number, content, word_count, created_at)
SELECT gen_random_uuid(), $2, scene_number, content, word_count, now()
FROM story_scenes
WHERE story_id = $1 AND scene_number <= $3`

// CreateIfAbsent inserts a scene row unless the (story, scene number) slot is
// already taken. The unique constraint is the arbiter of the generation race;
// the losing writer gets inserted=false and must re-read the surviving row.
func (r *pgSceneRepository) CreateIfAbsent(ctx context.Context, q interfaces.DBTX, scene *models.StoryScene) (bool, error) {
	if scene.ID == uuid.Nil {
		scene.ID = uuid.New()
	}
	if scene.CreatedAt.IsZero() {
		scene.CreatedAt = time.Now().UTC()
	}

	tag, err := q.Exec(ctx, createSceneIfAbsentQuery,
		scene.ID,
		scene.StoryID,
		scene.SceneNumber,
		scene.Content,
		scene.WordCount,
		scene.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create scene",
			zap.String("storyID", scene.StoryID.String()),
			zap.Int("sceneNumber", scene.SceneNumber),
			zap.Error(err))
		return false, fmt.Errorf("failed to create scene: %w", err)
	}
	inserted := tag.RowsAffected() > 0
	if inserted {
		r.logger.Info("Scene persisted",
			zap.String("storyID", scene.StoryID.String()),
			zap.Int("sceneNumber", scene.SceneNumber),
			zap.Int("wordCount", scene.WordCount))
	} else {
		r.logger.Debug("Scene insert lost to concurrent writer",
			zap.String("storyID", scene.StoryID.String()),
			zap.Int("sceneNumber", scene.SceneNumber))
	}
	return inserted, nil
}

// GetByStoryAndNumber retrieves the scene for one (story, scene number) pair.
func (r *pgSceneRepository) GetByStoryAndNumber(ctx context.Context, q interfaces.DBTX, storyID uuid.UUID, sceneNumber int) (*models.StoryScene, error) {
	scene := &models.StoryScene{}
	err := q.QueryRow(ctx, getSceneByStoryAndNumberQuery, storyID, sceneNumber).Scan(
		&scene.ID,
		&scene.StoryID,
		&scene.SceneNumber,
		&scene.Content,
		&scene.WordCount,
		&scene.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrSceneNotFound
		}
		r.logger.Error("Failed to get scene",
			zap.String("storyID", storyID.String()),
			zap.Int("sceneNumber", sceneNumber),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get scene: %w", err)
	}
	return scene, nil
}

// ListRange returns the story's scenes with number in [from, to], ordered.
func (r *pgSceneRepository) ListRange(ctx context.Context, q interfaces.DBTX, storyID uuid.UUID, from, to int) ([]*models.StoryScene, error) {
	var scenes []*models.StoryScene
	if err := pgxscan.Select(ctx, q, &scenes, listSceneRangeQuery, storyID, from, to); err != nil {
		r.logger.Error("Failed to list scene range", zap.String("storyID", storyID.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to list scene range: %w", err)
	}
	return scenes, nil
}

// CopyPrefix duplicates every scene up to uptoScene into another story. Runs
// inside the branch transaction so partial clones are never observable.
func (r *pgSceneRepository) CopyPrefix(ctx context.Context, q interfaces.DBTX, fromStoryID, toStoryID uuid.UUID, uptoScene int) (int64, error) {
	tag, err := q.Exec(ctx, copyScenePrefixQuery, fromStoryID, toStoryID, uptoScene)
	if err != nil {
		r.logger.Error("Failed to copy scene prefix",
			zap.String("fromStoryID", fromStoryID.String()),
			zap.String("toStoryID", toStoryID.String()),
			zap.Int("uptoScene", uptoScene),
			zap.Error(err))
		return 0, fmt.Errorf("failed to copy scene prefix: %w", err)
	}
	return tag.RowsAffected(), nil
}
