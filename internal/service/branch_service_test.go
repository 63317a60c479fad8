package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyforge/internal/mocks"
	"storyforge/internal/models"
	"storyforge/internal/service"
)

type branchFixture struct {
	storyRepo  *mocks.StoryRepository
	sceneRepo  *mocks.SceneRepository
	choiceRepo *mocks.ChoiceRepository
	tmplRepo   *mocks.TemplateRepository
	txRunner   *mocks.TxRunner
	svc        service.BranchService

	userID   uuid.UUID
	tmpl     *models.NovelTemplate
	parent   *models.StoryInstance
	parentID uuid.UUID
	earlyCP  models.ChoicePoint
	forkCP   models.ChoicePoint
}

func newBranchFixture(t *testing.T) *branchFixture {
	t.Helper()
	f := &branchFixture{
		storyRepo:  new(mocks.StoryRepository),
		sceneRepo:  new(mocks.SceneRepository),
		choiceRepo: new(mocks.ChoiceRepository),
		tmplRepo:   new(mocks.TemplateRepository),
		txRunner:   new(mocks.TxRunner),
		userID:     uuid.New(),
	}
	twoOptions := []models.ChoiceOption{
		{ID: "a", Text: "Trust him"},
		{ID: "b", Text: "Walk away"},
	}
	f.earlyCP = models.ChoicePoint{ID: uuid.New(), SceneNumber: 2, PromptText: "Take the job?", Options: twoOptions}
	f.forkCP = models.ChoicePoint{ID: uuid.New(), SceneNumber: 5, PromptText: "Trust the harbormaster?", Options: twoOptions}
	f.tmpl = &models.NovelTemplate{
		ID:           uuid.New(),
		Title:        "The Glass Harbor",
		TotalScenes:  10,
		ChoicePoints: []models.ChoicePoint{f.earlyCP, f.forkCP},
	}
	f.parentID = uuid.New()
	f.parent = &models.StoryInstance{
		ID:           f.parentID,
		UserID:       f.userID,
		TemplateID:   f.tmpl.ID,
		Title:        "The Glass Harbor",
		CurrentScene: 6,
		Status:       models.StatusInProgress,
	}

	templates := service.NewTemplateService(f.tmplRepo, nil, nil, zap.NewNop())
	f.svc = service.NewBranchService(f.storyRepo, f.sceneRepo, f.choiceRepo, templates,
		f.txRunner, nil, zap.NewNop())

	f.storyRepo.On("GetByID", mock.Anything, mock.Anything, f.parentID).Return(f.parent, nil).Maybe()
	f.tmplRepo.On("GetByID", mock.Anything, mock.Anything, f.tmpl.ID).Return(f.tmpl, nil).Maybe()
	f.txRunner.On("WithinTx", mock.Anything, mock.Anything).Return(nil).Maybe()
	return f
}

func TestBranchStory_CopiesPrefixAndRecordsForkChoice(t *testing.T) {
	f := newBranchFixture(t)

	// Parent chose option 0 at the fork point; the branch substitutes 1.
	f.choiceRepo.On("GetByStoryAndChoicePoint", mock.Anything, mock.Anything, f.parentID, f.forkCP.ID).
		Return(&models.StoryChoice{StoryID: f.parentID, ChoicePointID: f.forkCP.ID, SelectedOption: 0}, nil).Once()

	var branchID uuid.UUID
	f.storyRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(s *models.StoryInstance) bool {
		branchID = s.ID
		return s.UserID == f.userID &&
			s.TemplateID == f.tmpl.ID &&
			s.CurrentScene == 6 &&
			s.BranchedFromStoryID != nil && *s.BranchedFromStoryID == f.parentID &&
			s.BranchedAtScene != nil && *s.BranchedAtScene == 5 &&
			s.BranchedOption != nil && *s.BranchedOption == 1
	})).Return(nil).Once()

	f.sceneRepo.On("CopyPrefix", mock.Anything, mock.Anything, f.parentID, mock.Anything, 5).
		Return(int64(5), nil).Once()
	// Only the choice point before the fork scene is copied.
	f.choiceRepo.On("CopyForChoicePoints", mock.Anything, mock.Anything, f.parentID, mock.Anything,
		[]uuid.UUID{f.earlyCP.ID}).Return(int64(1), nil).Once()
	f.choiceRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(c *models.StoryChoice) bool {
		return c.StoryID == branchID && c.ChoicePointID == f.forkCP.ID && c.SelectedOption == 1
	})).Return(nil).Once()

	branch, err := f.svc.BranchStory(context.Background(), f.userID, f.parentID, 5, f.forkCP.ID, 1)
	require.NoError(t, err)
	assert.True(t, branch.IsBranch())
	assert.Equal(t, 6, branch.CurrentScene)
	assert.Contains(t, branch.Title, "The Glass Harbor")

	f.storyRepo.AssertExpectations(t)
	f.sceneRepo.AssertExpectations(t)
	f.choiceRepo.AssertExpectations(t)
}

func TestBranchStory_RejectsSameChoice(t *testing.T) {
	f := newBranchFixture(t)

	f.choiceRepo.On("GetByStoryAndChoicePoint", mock.Anything, mock.Anything, f.parentID, f.forkCP.ID).
		Return(&models.StoryChoice{SelectedOption: 1}, nil).Once()

	_, err := f.svc.BranchStory(context.Background(), f.userID, f.parentID, 5, f.forkCP.ID, 1)
	assert.ErrorIs(t, err, service.ErrSameChoiceBranch)
	f.storyRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestBranchStory_ValidatesForkTuple(t *testing.T) {
	f := newBranchFixture(t)

	_, err := f.svc.BranchStory(context.Background(), f.userID, f.parentID, 5, uuid.New(), 1)
	assert.ErrorIs(t, err, service.ErrChoicePointNotInTemplate)

	// Choice point exists but not at the named scene.
	_, err = f.svc.BranchStory(context.Background(), f.userID, f.parentID, 4, f.forkCP.ID, 1)
	assert.ErrorIs(t, err, service.ErrChoicePointNotAtScene)

	_, err = f.svc.BranchStory(context.Background(), f.userID, f.parentID, 5, f.forkCP.ID, 3)
	assert.ErrorIs(t, err, service.ErrInvalidOptionIndex)

	_, err = f.svc.BranchStory(context.Background(), uuid.New(), f.parentID, 5, f.forkCP.ID, 1)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestBranchStory_IncompletePrefixAborts(t *testing.T) {
	f := newBranchFixture(t)

	f.choiceRepo.On("GetByStoryAndChoicePoint", mock.Anything, mock.Anything, f.parentID, f.forkCP.ID).
		Return(nil, models.ErrNotFound).Once()
	f.storyRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	// Parent only has 3 of the 5 scenes the fork needs.
	f.sceneRepo.On("CopyPrefix", mock.Anything, mock.Anything, f.parentID, mock.Anything, 5).
		Return(int64(3), nil).Once()

	_, err := f.svc.BranchStory(context.Background(), f.userID, f.parentID, 5, f.forkCP.ID, 1)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
	f.choiceRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestBranchStory_DuplicateForkReturnsExistingBranch(t *testing.T) {
	f := newBranchFixture(t)
	existing := &models.StoryInstance{
		ID:                  uuid.New(),
		UserID:              f.userID,
		TemplateID:          f.tmpl.ID,
		BranchedFromStoryID: &f.parentID,
	}

	f.choiceRepo.On("GetByStoryAndChoicePoint", mock.Anything, mock.Anything, f.parentID, f.forkCP.ID).
		Return(nil, models.ErrNotFound).Once()
	// A concurrent request won the partial unique index race.
	f.storyRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Return(models.ErrBranchExists).Once()
	f.storyRepo.On("FindBranch", mock.Anything, mock.Anything, f.userID, f.parentID, 5, 1).
		Return(existing, nil).Once()

	branch, err := f.svc.BranchStory(context.Background(), f.userID, f.parentID, 5, f.forkCP.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, branch.ID)
}

func TestFindExistingBranch(t *testing.T) {
	f := newBranchFixture(t)
	existing := &models.StoryInstance{ID: uuid.New(), UserID: f.userID, BranchedFromStoryID: &f.parentID}

	f.storyRepo.On("FindBranch", mock.Anything, mock.Anything, f.userID, f.parentID, 5, 1).
		Return(existing, nil).Once()
	branch, err := f.svc.FindExistingBranch(context.Background(), f.userID, f.parentID, 5, f.forkCP.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, existing.ID, branch.ID)

	f.storyRepo.On("FindBranch", mock.Anything, mock.Anything, f.userID, f.parentID, 5, 0).
		Return(nil, models.ErrNotFound).Once()
	branch, err = f.svc.FindExistingBranch(context.Background(), f.userID, f.parentID, 5, f.forkCP.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, branch)
}
