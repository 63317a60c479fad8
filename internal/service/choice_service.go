package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyforge/internal/interfaces"
	"storyforge/internal/models"
)

// ChoiceResult is a freshly recorded choice plus the scene number the reader
// moves to afterwards.
type ChoiceResult struct {
	Choice    *models.StoryChoice
	NextScene int
}

// ChoiceService records a reader's decisions. Choices are write-once per
// (story, choice point); changing a decision means branching.
type ChoiceService interface {
	RecordChoice(ctx context.Context, userID, storyID, choicePointID uuid.UUID, selectedOption int) (*ChoiceResult, error)
	ListChoices(ctx context.Context, userID, storyID uuid.UUID) ([]*models.StoryChoice, error)
}

type choiceServiceImpl struct {
	storyRepo  interfaces.StoryRepository
	choiceRepo interfaces.ChoiceRepository
	templates  TemplateService
	db         interfaces.DBTX
	logger     *zap.Logger
}

var _ ChoiceService = (*choiceServiceImpl)(nil)

// NewChoiceService creates the choice recorder.
func NewChoiceService(storyRepo interfaces.StoryRepository, choiceRepo interfaces.ChoiceRepository, templates TemplateService, db interfaces.DBTX, logger *zap.Logger) ChoiceService {
	return &choiceServiceImpl{
		storyRepo:  storyRepo,
		choiceRepo: choiceRepo,
		templates:  templates,
		db:         db,
		logger:     logger.Named("ChoiceService"),
	}
}

func (s *choiceServiceImpl) RecordChoice(ctx context.Context, userID, storyID, choicePointID uuid.UUID, selectedOption int) (*ChoiceResult, error) {
	story, err := s.storyRepo.GetByID(ctx, s.db, storyID)
	if err != nil {
		return nil, err
	}
	if story.UserID != userID {
		return nil, models.ErrForbidden
	}

	tmpl, err := s.templates.GetTemplate(ctx, story.TemplateID)
	if err != nil {
		return nil, err
	}
	cp, ok := tmpl.ChoicePointByID(choicePointID)
	if !ok {
		return nil, fmt.Errorf("%w: choice point %s not in template %s", ErrChoicePointNotInTemplate, choicePointID, tmpl.ID)
	}
	if selectedOption < 0 || selectedOption >= len(cp.Options) {
		return nil, fmt.Errorf("%w: option %d not in 0..%d", ErrInvalidOptionIndex, selectedOption, len(cp.Options)-1)
	}

	choice := &models.StoryChoice{
		ID:             uuid.New(),
		StoryID:        storyID,
		ChoicePointID:  choicePointID,
		SelectedOption: selectedOption,
	}
	if err := s.choiceRepo.Create(ctx, s.db, choice); err != nil {
		// models.ErrChoiceAlreadyMade surfaces unchanged: write-once.
		return nil, err
	}

	s.logger.Info("Recorded choice",
		zap.String("story_id", storyID.String()),
		zap.String("choice_point_id", choicePointID.String()),
		zap.Int("selected_option", selectedOption))
	return &ChoiceResult{Choice: choice, NextScene: cp.SceneNumber + 1}, nil
}

func (s *choiceServiceImpl) ListChoices(ctx context.Context, userID, storyID uuid.UUID) ([]*models.StoryChoice, error) {
	story, err := s.storyRepo.GetByID(ctx, s.db, storyID)
	if err != nil {
		return nil, err
	}
	if story.UserID != userID {
		return nil, models.ErrForbidden
	}
	return s.choiceRepo.ListByStory(ctx, s.db, storyID)
}
