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

type choiceFixture struct {
	storyRepo  *mocks.StoryRepository
	choiceRepo *mocks.ChoiceRepository
	tmplRepo   *mocks.TemplateRepository
	svc        service.ChoiceService

	userID  uuid.UUID
	tmpl    *models.NovelTemplate
	story   *models.StoryInstance
	storyID uuid.UUID
}

func newChoiceFixture(t *testing.T) *choiceFixture {
	t.Helper()
	f := &choiceFixture{
		storyRepo:  new(mocks.StoryRepository),
		choiceRepo: new(mocks.ChoiceRepository),
		tmplRepo:   new(mocks.TemplateRepository),
		userID:     uuid.New(),
	}
	f.tmpl = &models.NovelTemplate{
		ID:          uuid.New(),
		Title:       "The Glass Harbor",
		TotalScenes: 8,
		ChoicePoints: []models.ChoicePoint{
			{
				ID:          uuid.New(),
				SceneNumber: 3,
				PromptText:  "Trust the harbormaster?",
				Options: []models.ChoiceOption{
					{ID: "a", Text: "Trust him"},
					{ID: "b", Text: "Walk away"},
				},
			},
		},
	}
	f.storyID = uuid.New()
	f.story = &models.StoryInstance{
		ID:           f.storyID,
		UserID:       f.userID,
		TemplateID:   f.tmpl.ID,
		CurrentScene: 3,
		Status:       models.StatusInProgress,
	}

	templates := service.NewTemplateService(f.tmplRepo, nil, nil, zap.NewNop())
	f.svc = service.NewChoiceService(f.storyRepo, f.choiceRepo, templates, nil, zap.NewNop())

	f.storyRepo.On("GetByID", mock.Anything, mock.Anything, f.storyID).Return(f.story, nil).Maybe()
	f.tmplRepo.On("GetByID", mock.Anything, mock.Anything, f.tmpl.ID).Return(f.tmpl, nil).Maybe()
	return f
}

func TestRecordChoice_Success(t *testing.T) {
	f := newChoiceFixture(t)
	cp := f.tmpl.ChoicePoints[0]

	f.choiceRepo.On("Create", mock.Anything, mock.Anything, mock.MatchedBy(func(c *models.StoryChoice) bool {
		return c.StoryID == f.storyID && c.ChoicePointID == cp.ID && c.SelectedOption == 1
	})).Return(nil).Once()

	result, err := f.svc.RecordChoice(context.Background(), f.userID, f.storyID, cp.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, cp.SceneNumber+1, result.NextScene)
	assert.Equal(t, 1, result.Choice.SelectedOption)
	f.choiceRepo.AssertExpectations(t)
}

func TestRecordChoice_OptionOutOfBounds(t *testing.T) {
	f := newChoiceFixture(t)
	cp := f.tmpl.ChoicePoints[0]

	_, err := f.svc.RecordChoice(context.Background(), f.userID, f.storyID, cp.ID, 2)
	assert.ErrorIs(t, err, service.ErrInvalidOptionIndex)

	_, err = f.svc.RecordChoice(context.Background(), f.userID, f.storyID, cp.ID, -1)
	assert.ErrorIs(t, err, service.ErrInvalidOptionIndex)

	f.choiceRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordChoice_UnknownChoicePoint(t *testing.T) {
	f := newChoiceFixture(t)

	_, err := f.svc.RecordChoice(context.Background(), f.userID, f.storyID, uuid.New(), 0)
	assert.ErrorIs(t, err, service.ErrChoicePointNotInTemplate)
}

func TestRecordChoice_WriteOnce(t *testing.T) {
	f := newChoiceFixture(t)
	cp := f.tmpl.ChoicePoints[0]

	f.choiceRepo.On("Create", mock.Anything, mock.Anything, mock.Anything).
		Return(models.ErrChoiceAlreadyMade).Once()

	_, err := f.svc.RecordChoice(context.Background(), f.userID, f.storyID, cp.ID, 0)
	assert.ErrorIs(t, err, models.ErrChoiceAlreadyMade)
}

func TestRecordChoice_ForeignStory(t *testing.T) {
	f := newChoiceFixture(t)

	_, err := f.svc.RecordChoice(context.Background(), uuid.New(), f.storyID, f.tmpl.ChoicePoints[0].ID, 0)
	assert.ErrorIs(t, err, models.ErrForbidden)
}
