package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyforge/internal/interfaces"
	"storyforge/internal/models"
)

// ProgressService advances a story's reading position. Progress is strictly
// monotonic; moving past the final scene completes the story.
type ProgressService interface {
	Advance(ctx context.Context, userID, storyID uuid.UUID, newCurrentScene int) (completed bool, err error)
}

type progressServiceImpl struct {
	storyRepo interfaces.StoryRepository
	templates TemplateService
	db        interfaces.DBTX
	logger    *zap.Logger
}

var _ ProgressService = (*progressServiceImpl)(nil)

// NewProgressService creates the progress tracker.
func NewProgressService(storyRepo interfaces.StoryRepository, templates TemplateService, db interfaces.DBTX, logger *zap.Logger) ProgressService {
	return &progressServiceImpl{
		storyRepo: storyRepo,
		templates: templates,
		db:        db,
		logger:    logger.Named("ProgressService"),
	}
}

func (s *progressServiceImpl) Advance(ctx context.Context, userID, storyID uuid.UUID, newCurrentScene int) (bool, error) {
	story, err := s.storyRepo.GetByID(ctx, s.db, storyID)
	if err != nil {
		return false, err
	}
	if story.UserID != userID {
		return false, models.ErrForbidden
	}
	if newCurrentScene < story.CurrentScene {
		return false, fmt.Errorf("%w: %d is behind current position %d", ErrProgressRewind, newCurrentScene, story.CurrentScene)
	}

	tmpl, err := s.templates.GetTemplate(ctx, story.TemplateID)
	if err != nil {
		return false, err
	}
	// total_scenes+1 is the "finished reading" position; anything past that
	// is a caller bug.
	if newCurrentScene > tmpl.TotalScenes+1 {
		return false, fmt.Errorf("%w: %d is past the end of a %d-scene story", ErrSceneOutOfRange, newCurrentScene, tmpl.TotalScenes)
	}

	completed := newCurrentScene > tmpl.TotalScenes
	status := models.StatusInProgress
	if completed {
		status = models.StatusCompleted
	}

	advanced, err := s.storyRepo.AdvanceProgress(ctx, s.db, storyID, newCurrentScene, status)
	if err != nil {
		return false, fmt.Errorf("failed to advance story progress: %w", err)
	}
	if !advanced {
		// The UPDATE guard refused: a concurrent advance already moved the
		// pointer further forward.
		return false, fmt.Errorf("%w: a concurrent advance moved past %d", ErrProgressRewind, newCurrentScene)
	}

	if completed {
		s.logger.Info("Story completed",
			zap.String("story_id", storyID.String()),
			zap.Int("final_position", newCurrentScene))
	}
	return completed, nil
}
