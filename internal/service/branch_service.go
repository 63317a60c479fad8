package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyforge/internal/interfaces"
	"storyforge/internal/models"
)

// BranchService creates alternate-choice forks of a story. A fork copies the
// parent's scenes up to the fork point and all earlier choices into a fresh
// instance, then records the substituted choice. The whole copy is one
// transaction; a failed fork leaves nothing behind.
type BranchService interface {
	// FindExistingBranch returns the caller's branch of parentStoryID at the
	// given fork tuple, or nil when none exists. The UI calls this before
	// offering to branch and redirects instead when a branch is found.
	FindExistingBranch(ctx context.Context, userID, parentStoryID uuid.UUID, branchAtScene int, choicePointID uuid.UUID, option int) (*models.StoryInstance, error)
	BranchStory(ctx context.Context, userID, parentStoryID uuid.UUID, branchAtScene int, choicePointID uuid.UUID, newOption int) (*models.StoryInstance, error)
}

type branchServiceImpl struct {
	storyRepo  interfaces.StoryRepository
	sceneRepo  interfaces.SceneRepository
	choiceRepo interfaces.ChoiceRepository
	templates  TemplateService
	txRunner   interfaces.TxRunner
	db         interfaces.DBTX
	logger     *zap.Logger
}

var _ BranchService = (*branchServiceImpl)(nil)

// NewBranchService creates the branch manager.
func NewBranchService(
	storyRepo interfaces.StoryRepository,
	sceneRepo interfaces.SceneRepository,
	choiceRepo interfaces.ChoiceRepository,
	templates TemplateService,
	txRunner interfaces.TxRunner,
	db interfaces.DBTX,
	logger *zap.Logger,
) BranchService {
	return &branchServiceImpl{
		storyRepo:  storyRepo,
		sceneRepo:  sceneRepo,
		choiceRepo: choiceRepo,
		templates:  templates,
		txRunner:   txRunner,
		db:         db,
		logger:     logger.Named("BranchService"),
	}
}

func (s *branchServiceImpl) FindExistingBranch(ctx context.Context, userID, parentStoryID uuid.UUID, branchAtScene int, choicePointID uuid.UUID, option int) (*models.StoryInstance, error) {
	if _, _, err := s.validateFork(ctx, userID, parentStoryID, choicePointID, branchAtScene, option); err != nil {
		return nil, err
	}

	branch, err := s.storyRepo.FindBranch(ctx, s.db, userID, parentStoryID, branchAtScene, option)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return branch, nil
}

func (s *branchServiceImpl) BranchStory(ctx context.Context, userID, parentStoryID uuid.UUID, branchAtScene int, choicePointID uuid.UUID, newOption int) (*models.StoryInstance, error) {
	parent, _, err := s.validateFork(ctx, userID, parentStoryID, choicePointID, branchAtScene, newOption)
	if err != nil {
		return nil, err
	}

	// Repeating the parent's recorded decision is a no-op fork.
	parentChoice, err := s.choiceRepo.GetByStoryAndChoicePoint(ctx, s.db, parentStoryID, choicePointID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if parentChoice != nil && parentChoice.SelectedOption == newOption {
		return nil, fmt.Errorf("%w: option %d already chosen in the parent story", ErrSameChoiceBranch, newOption)
	}

	branch := &models.StoryInstance{
		ID:                  uuid.New(),
		UserID:              userID,
		TemplateID:          parent.TemplateID,
		Title:               fmt.Sprintf("%s — branch @ scene %d", parent.Title, branchAtScene),
		CurrentScene:        branchAtScene + 1,
		Status:              models.StatusInProgress,
		BranchedFromStoryID: &parent.ID,
		BranchedAtScene:     &branchAtScene,
		BranchedOption:      &newOption,
	}

	tmpl, err := s.templates.GetTemplate(ctx, parent.TemplateID)
	if err != nil {
		return nil, err
	}
	priorChoicePoints := make([]uuid.UUID, 0, len(tmpl.ChoicePoints))
	for _, point := range tmpl.ChoicePoints {
		if point.SceneNumber < branchAtScene {
			priorChoicePoints = append(priorChoicePoints, point.ID)
		}
	}

	err = s.txRunner.WithinTx(ctx, func(ctx context.Context, tx interfaces.DBTX) error {
		if err := s.storyRepo.Create(ctx, tx, branch); err != nil {
			return err
		}

		copied, err := s.sceneRepo.CopyPrefix(ctx, tx, parent.ID, branch.ID, branchAtScene)
		if err != nil {
			return fmt.Errorf("failed to copy scenes into branch: %w", err)
		}
		if copied != int64(branchAtScene) {
			return fmt.Errorf("%w: parent story has %d of %d scenes up to the fork point",
				models.ErrInvalidInput, copied, branchAtScene)
		}

		if len(priorChoicePoints) > 0 {
			if _, err := s.choiceRepo.CopyForChoicePoints(ctx, tx, parent.ID, branch.ID, priorChoicePoints); err != nil {
				return fmt.Errorf("failed to copy choices into branch: %w", err)
			}
		}

		forkChoice := &models.StoryChoice{
			ID:             uuid.New(),
			StoryID:        branch.ID,
			ChoicePointID:  choicePointID,
			SelectedOption: newOption,
		}
		return s.choiceRepo.Create(ctx, tx, forkChoice)
	})
	if err != nil {
		if errors.Is(err, models.ErrBranchExists) {
			// A concurrent request created this exact fork first. The
			// transaction rolled back; hand back the winner's branch.
			s.logger.Info("Fork already exists, returning existing branch",
				zap.String("parent_story_id", parentStoryID.String()),
				zap.Int("branch_at_scene", branchAtScene),
				zap.Int("option", newOption))
			return s.storyRepo.FindBranch(ctx, s.db, userID, parentStoryID, branchAtScene, newOption)
		}
		return nil, err
	}

	s.logger.Info("Created branch",
		zap.String("branch_story_id", branch.ID.String()),
		zap.String("parent_story_id", parentStoryID.String()),
		zap.Int("branch_at_scene", branchAtScene),
		zap.Int("option", newOption))
	return branch, nil
}

// validateFork loads the parent, checks ownership and verifies the fork tuple
// against the template: the choice point exists at the fork scene and the
// option index is in range.
func (s *branchServiceImpl) validateFork(ctx context.Context, userID, parentStoryID, choicePointID uuid.UUID, branchAtScene, option int) (*models.StoryInstance, *models.ChoicePoint, error) {
	parent, err := s.storyRepo.GetByID(ctx, s.db, parentStoryID)
	if err != nil {
		return nil, nil, err
	}
	if parent.UserID != userID {
		return nil, nil, models.ErrForbidden
	}

	tmpl, err := s.templates.GetTemplate(ctx, parent.TemplateID)
	if err != nil {
		return nil, nil, err
	}
	cp, ok := tmpl.ChoicePointByID(choicePointID)
	if !ok {
		return nil, nil, fmt.Errorf("%w: choice point %s not in template %s", ErrChoicePointNotInTemplate, choicePointID, tmpl.ID)
	}
	if cp.SceneNumber != branchAtScene {
		return nil, nil, fmt.Errorf("%w: choice point is at scene %d, not %d", ErrChoicePointNotAtScene, cp.SceneNumber, branchAtScene)
	}
	if option < 0 || option >= len(cp.Options) {
		return nil, nil, fmt.Errorf("%w: option %d not in 0..%d", ErrInvalidOptionIndex, option, len(cp.Options)-1)
	}
	return parent, cp, nil
}
