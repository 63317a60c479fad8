package interfaces

import (
	"context"

	"github.com/google/uuid"

	"storyforge/internal/models"
)

// TemplateRepository reads immutable novel templates.
type TemplateRepository interface {
	GetByID(ctx context.Context, q DBTX, id uuid.UUID) (*models.NovelTemplate, error)
	List(ctx context.Context, q DBTX, limit, offset int) ([]*models.NovelTemplate, error)
}

// TemplateCache is a read-through cache in front of TemplateRepository.
// Misses and unmarshal failures are soft; callers fall back to the repository.
type TemplateCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.NovelTemplate, error)
	Set(ctx context.Context, tmpl *models.NovelTemplate) error
}

// StoryRepository manages story instances and their branch lineage.
type StoryRepository interface {
	Create(ctx context.Context, q DBTX, story *models.StoryInstance) error
	GetByID(ctx context.Context, q DBTX, id uuid.UUID) (*models.StoryInstance, error)
	ListByUser(ctx context.Context, q DBTX, userID uuid.UUID, limit, offset int) ([]*models.StoryInstance, error)
	// FindBranch locates the user's branch of parentID forked at the given
	// scene with the given substituted option. Returns models.ErrNotFound
	// when no such branch exists.
	FindBranch(ctx context.Context, q DBTX, userID, parentID uuid.UUID, branchedAtScene, option int) (*models.StoryInstance, error)
	// AdvanceProgress moves current_scene forward, never backward; the guard
	// is part of the UPDATE so concurrent advances cannot rewind. Returns
	// false when a concurrent writer already advanced past newCurrentScene.
	AdvanceProgress(ctx context.Context, q DBTX, storyID uuid.UUID, newCurrentScene int, status models.StoryStatus) (bool, error)
	Delete(ctx context.Context, q DBTX, storyID, userID uuid.UUID) error
}

// SceneRepository manages generated scene rows.
type SceneRepository interface {
	// CreateIfAbsent inserts the scene unless one already exists for the
	// (story, scene number) pair. Returns false without error when a
	// concurrent writer won the insert.
	CreateIfAbsent(ctx context.Context, q DBTX, scene *models.StoryScene) (bool, error)
	GetByStoryAndNumber(ctx context.Context, q DBTX, storyID uuid.UUID, sceneNumber int) (*models.StoryScene, error)
	// ListRange returns scenes for the story with number in [from, to],
	// ordered by scene number.
	ListRange(ctx context.Context, q DBTX, storyID uuid.UUID, from, to int) ([]*models.StoryScene, error)
	// CopyPrefix duplicates every scene with scene_number <= uptoScene from
	// one story into another and returns how many rows were copied.
	CopyPrefix(ctx context.Context, q DBTX, fromStoryID, toStoryID uuid.UUID, uptoScene int) (int64, error)
}

// ChoiceRepository manages recorded decisions.
type ChoiceRepository interface {
	// Create inserts a choice; a duplicate (story, choice point) pair fails
	// with models.ErrChoiceAlreadyMade.
	Create(ctx context.Context, q DBTX, choice *models.StoryChoice) error
	GetByStoryAndChoicePoint(ctx context.Context, q DBTX, storyID, choicePointID uuid.UUID) (*models.StoryChoice, error)
	ListByStory(ctx context.Context, q DBTX, storyID uuid.UUID) ([]*models.StoryChoice, error)
	// CopyForChoicePoints duplicates the parent's choices at the given choice
	// points into another story.
	CopyForChoicePoints(ctx context.Context, q DBTX, fromStoryID, toStoryID uuid.UUID, choicePointIDs []uuid.UUID) (int64, error)
}

// SettingsRepository reads dynamic engine settings.
type SettingsRepository interface {
	GetAll(ctx context.Context, q DBTX) (map[string]string, error)
}
