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

type progressFixture struct {
	storyRepo *mocks.StoryRepository
	tmplRepo  *mocks.TemplateRepository
	svc       service.ProgressService

	userID  uuid.UUID
	tmpl    *models.NovelTemplate
	story   *models.StoryInstance
	storyID uuid.UUID
}

func newProgressFixture(t *testing.T) *progressFixture {
	t.Helper()
	f := &progressFixture{
		storyRepo: new(mocks.StoryRepository),
		tmplRepo:  new(mocks.TemplateRepository),
		userID:    uuid.New(),
	}
	f.tmpl = &models.NovelTemplate{ID: uuid.New(), TotalScenes: 10}
	f.storyID = uuid.New()
	f.story = &models.StoryInstance{
		ID:           f.storyID,
		UserID:       f.userID,
		TemplateID:   f.tmpl.ID,
		CurrentScene: 5,
		Status:       models.StatusInProgress,
	}

	templates := service.NewTemplateService(f.tmplRepo, nil, nil, zap.NewNop())
	f.svc = service.NewProgressService(f.storyRepo, templates, nil, zap.NewNop())

	f.storyRepo.On("GetByID", mock.Anything, mock.Anything, f.storyID).Return(f.story, nil).Maybe()
	f.tmplRepo.On("GetByID", mock.Anything, mock.Anything, f.tmpl.ID).Return(f.tmpl, nil).Maybe()
	return f
}

func TestAdvance_Forward(t *testing.T) {
	f := newProgressFixture(t)
	f.storyRepo.On("AdvanceProgress", mock.Anything, mock.Anything, f.storyID, 6, models.StatusInProgress).
		Return(true, nil).Once()

	completed, err := f.svc.Advance(context.Background(), f.userID, f.storyID, 6)
	require.NoError(t, err)
	assert.False(t, completed)
	f.storyRepo.AssertExpectations(t)
}

func TestAdvance_RewindRejected(t *testing.T) {
	f := newProgressFixture(t)

	_, err := f.svc.Advance(context.Background(), f.userID, f.storyID, 4)
	assert.ErrorIs(t, err, service.ErrProgressRewind)
	f.storyRepo.AssertNotCalled(t, "AdvanceProgress",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAdvance_PastFinalSceneCompletes(t *testing.T) {
	f := newProgressFixture(t)
	f.storyRepo.On("AdvanceProgress", mock.Anything, mock.Anything, f.storyID, 11, models.StatusCompleted).
		Return(true, nil).Once()

	completed, err := f.svc.Advance(context.Background(), f.userID, f.storyID, 11)
	require.NoError(t, err)
	assert.True(t, completed)
}

func TestAdvance_BeyondFinishedPositionRejected(t *testing.T) {
	f := newProgressFixture(t)

	_, err := f.svc.Advance(context.Background(), f.userID, f.storyID, 12)
	assert.ErrorIs(t, err, service.ErrSceneOutOfRange)
}

func TestAdvance_ConcurrentWriterWins(t *testing.T) {
	f := newProgressFixture(t)
	f.storyRepo.On("AdvanceProgress", mock.Anything, mock.Anything, f.storyID, 6, models.StatusInProgress).
		Return(false, nil).Once()

	_, err := f.svc.Advance(context.Background(), f.userID, f.storyID, 6)
	assert.ErrorIs(t, err, service.ErrProgressRewind)
}

func TestAdvance_ForeignStory(t *testing.T) {
	f := newProgressFixture(t)

	_, err := f.svc.Advance(context.Background(), uuid.New(), f.storyID, 6)
	assert.ErrorIs(t, err, models.ErrForbidden)
}
