package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyforge/internal/interfaces"
	"storyforge/internal/models"
)

// StoryService manages story instance lifecycle: starting a playthrough from
// a template, listing, fetching and deleting instances. Branch creation lives
// in BranchService.
type StoryService interface {
	StartStory(ctx context.Context, userID, templateID uuid.UUID) (*models.StoryInstance, error)
	GetStory(ctx context.Context, userID, storyID uuid.UUID) (*models.StoryInstance, error)
	ListStories(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.StoryInstance, error)
	DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error
}

type storyServiceImpl struct {
	storyRepo interfaces.StoryRepository
	templates TemplateService
	db        interfaces.DBTX
	logger    *zap.Logger
}

var _ StoryService = (*storyServiceImpl)(nil)

// NewStoryService creates a story lifecycle service.
func NewStoryService(storyRepo interfaces.StoryRepository, templates TemplateService, db interfaces.DBTX, logger *zap.Logger) StoryService {
	return &storyServiceImpl{
		storyRepo: storyRepo,
		templates: templates,
		db:        db,
		logger:    logger.Named("StoryService"),
	}
}

func (s *storyServiceImpl) StartStory(ctx context.Context, userID, templateID uuid.UUID) (*models.StoryInstance, error) {
	tmpl, err := s.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return nil, err
	}

	story := &models.StoryInstance{
		ID:           uuid.New(),
		UserID:       userID,
		TemplateID:   tmpl.ID,
		Title:        tmpl.Title,
		CurrentScene: 1,
		Status:       models.StatusInProgress,
	}
	if err := s.storyRepo.Create(ctx, s.db, story); err != nil {
		return nil, fmt.Errorf("failed to create story instance: %w", err)
	}

	s.logger.Info("Started new story",
		zap.String("story_id", story.ID.String()),
		zap.String("template_id", tmpl.ID.String()),
		zap.String("user_id", userID.String()))
	return story, nil
}

func (s *storyServiceImpl) GetStory(ctx context.Context, userID, storyID uuid.UUID) (*models.StoryInstance, error) {
	story, err := s.storyRepo.GetByID(ctx, s.db, storyID)
	if err != nil {
		return nil, err
	}
	if story.UserID != userID {
		return nil, models.ErrForbidden
	}
	return story, nil
}

func (s *storyServiceImpl) ListStories(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.StoryInstance, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.storyRepo.ListByUser(ctx, s.db, userID, limit, offset)
}

func (s *storyServiceImpl) DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error {
	if err := s.storyRepo.Delete(ctx, s.db, storyID, userID); err != nil {
		return err
	}
	s.logger.Info("Deleted story",
		zap.String("story_id", storyID.String()),
		zap.String("user_id", userID.String()))
	return nil
}
