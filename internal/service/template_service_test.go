package service_test

import (
	"context"
	"errors"
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

func TestGetTemplate_CacheHitSkipsRepository(t *testing.T) {
	repo := new(mocks.TemplateRepository)
	cache := new(mocks.TemplateCache)
	svc := service.NewTemplateService(repo, cache, nil, zap.NewNop())

	tmpl := &models.NovelTemplate{ID: uuid.New(), Title: "Cached"}
	cache.On("Get", mock.Anything, tmpl.ID).Return(tmpl, nil).Once()

	got, err := svc.GetTemplate(context.Background(), tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tmpl.Title, got.Title)
	repo.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything, mock.Anything)
}

func TestGetTemplate_CacheMissFallsThroughAndPopulates(t *testing.T) {
	repo := new(mocks.TemplateRepository)
	cache := new(mocks.TemplateCache)
	svc := service.NewTemplateService(repo, cache, nil, zap.NewNop())

	tmpl := &models.NovelTemplate{ID: uuid.New(), Title: "From DB"}
	cache.On("Get", mock.Anything, tmpl.ID).Return(nil, models.ErrNotFound).Once()
	repo.On("GetByID", mock.Anything, mock.Anything, tmpl.ID).Return(tmpl, nil).Once()
	cache.On("Set", mock.Anything, tmpl).Return(nil).Once()

	got, err := svc.GetTemplate(context.Background(), tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tmpl.Title, got.Title)
	cache.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestGetTemplate_CacheErrorIsSoft(t *testing.T) {
	repo := new(mocks.TemplateRepository)
	cache := new(mocks.TemplateCache)
	svc := service.NewTemplateService(repo, cache, nil, zap.NewNop())

	tmpl := &models.NovelTemplate{ID: uuid.New()}
	cache.On("Get", mock.Anything, tmpl.ID).Return(nil, errors.New("redis down")).Once()
	repo.On("GetByID", mock.Anything, mock.Anything, tmpl.ID).Return(tmpl, nil).Once()
	cache.On("Set", mock.Anything, tmpl).Return(errors.New("redis down")).Once()

	got, err := svc.GetTemplate(context.Background(), tmpl.ID)
	require.NoError(t, err)
	assert.Equal(t, tmpl.ID, got.ID)
}

func TestGetTemplate_NotFound(t *testing.T) {
	repo := new(mocks.TemplateRepository)
	svc := service.NewTemplateService(repo, nil, nil, zap.NewNop())

	id := uuid.New()
	repo.On("GetByID", mock.Anything, mock.Anything, id).Return(nil, models.ErrTemplateNotFound).Once()

	_, err := svc.GetTemplate(context.Background(), id)
	assert.ErrorIs(t, err, models.ErrTemplateNotFound)
}

func TestListTemplates_ClampsPaging(t *testing.T) {
	repo := new(mocks.TemplateRepository)
	svc := service.NewTemplateService(repo, nil, nil, zap.NewNop())

	repo.On("List", mock.Anything, mock.Anything, 20, 0).Return([]*models.NovelTemplate{}, nil).Once()
	_, err := svc.ListTemplates(context.Background(), -5, -1)
	require.NoError(t, err)
	repo.AssertExpectations(t)
}
