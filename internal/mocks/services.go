package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"storyforge/internal/models"
	"storyforge/internal/service"
)

// TemplateServiceMock is a mock for service.TemplateService.
type TemplateServiceMock struct {
	mock.Mock
}

var _ service.TemplateService = (*TemplateServiceMock)(nil)

func (_m *TemplateServiceMock) GetTemplate(ctx context.Context, id uuid.UUID) (*models.NovelTemplate, error) {
	ret := _m.Called(ctx, id)
	var tmpl *models.NovelTemplate
	if ret.Get(0) != nil {
		tmpl = ret.Get(0).(*models.NovelTemplate)
	}
	return tmpl, ret.Error(1)
}

func (_m *TemplateServiceMock) ListTemplates(ctx context.Context, limit, offset int) ([]*models.NovelTemplate, error) {
	ret := _m.Called(ctx, limit, offset)
	var templates []*models.NovelTemplate
	if ret.Get(0) != nil {
		templates = ret.Get(0).([]*models.NovelTemplate)
	}
	return templates, ret.Error(1)
}

// StoryServiceMock is a mock for service.StoryService.
type StoryServiceMock struct {
	mock.Mock
}

var _ service.StoryService = (*StoryServiceMock)(nil)

func (_m *StoryServiceMock) StartStory(ctx context.Context, userID, templateID uuid.UUID) (*models.StoryInstance, error) {
	ret := _m.Called(ctx, userID, templateID)
	var story *models.StoryInstance
	if ret.Get(0) != nil {
		story = ret.Get(0).(*models.StoryInstance)
	}
	return story, ret.Error(1)
}

func (_m *StoryServiceMock) GetStory(ctx context.Context, userID, storyID uuid.UUID) (*models.StoryInstance, error) {
	ret := _m.Called(ctx, userID, storyID)
	var story *models.StoryInstance
	if ret.Get(0) != nil {
		story = ret.Get(0).(*models.StoryInstance)
	}
	return story, ret.Error(1)
}

func (_m *StoryServiceMock) ListStories(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*models.StoryInstance, error) {
	ret := _m.Called(ctx, userID, limit, offset)
	var stories []*models.StoryInstance
	if ret.Get(0) != nil {
		stories = ret.Get(0).([]*models.StoryInstance)
	}
	return stories, ret.Error(1)
}

func (_m *StoryServiceMock) DeleteStory(ctx context.Context, userID, storyID uuid.UUID) error {
	ret := _m.Called(ctx, userID, storyID)
	return ret.Error(0)
}

// SceneServiceMock is a mock for service.SceneService. The streaming variant
// delivers the configured scene content as one chunk on success.
type SceneServiceMock struct {
	mock.Mock
}

var _ service.SceneService = (*SceneServiceMock)(nil)

func (_m *SceneServiceMock) ResolveScene(ctx context.Context, userID, storyID uuid.UUID, sceneNumber int) (*service.SceneResult, error) {
	ret := _m.Called(ctx, userID, storyID, sceneNumber)
	var result *service.SceneResult
	if ret.Get(0) != nil {
		result = ret.Get(0).(*service.SceneResult)
	}
	return result, ret.Error(1)
}

func (_m *SceneServiceMock) ResolveSceneStream(ctx context.Context, userID, storyID uuid.UUID, sceneNumber int, handler service.ChunkHandler) (*service.SceneResult, error) {
	ret := _m.Called(ctx, userID, storyID, sceneNumber)
	var result *service.SceneResult
	if ret.Get(0) != nil {
		result = ret.Get(0).(*service.SceneResult)
	}
	if result != nil && ret.Error(1) == nil && handler != nil {
		if err := handler(result.Scene.Content); err != nil {
			return nil, err
		}
	}
	return result, ret.Error(1)
}

// ChoiceServiceMock is a mock for service.ChoiceService.
type ChoiceServiceMock struct {
	mock.Mock
}

var _ service.ChoiceService = (*ChoiceServiceMock)(nil)

func (_m *ChoiceServiceMock) RecordChoice(ctx context.Context, userID, storyID, choicePointID uuid.UUID, selectedOption int) (*service.ChoiceResult, error) {
	ret := _m.Called(ctx, userID, storyID, choicePointID, selectedOption)
	var result *service.ChoiceResult
	if ret.Get(0) != nil {
		result = ret.Get(0).(*service.ChoiceResult)
	}
	return result, ret.Error(1)
}

func (_m *ChoiceServiceMock) ListChoices(ctx context.Context, userID, storyID uuid.UUID) ([]*models.StoryChoice, error) {
	ret := _m.Called(ctx, userID, storyID)
	var choices []*models.StoryChoice
	if ret.Get(0) != nil {
		choices = ret.Get(0).([]*models.StoryChoice)
	}
	return choices, ret.Error(1)
}

// BranchServiceMock is a mock for service.BranchService.
type BranchServiceMock struct {
	mock.Mock
}

var _ service.BranchService = (*BranchServiceMock)(nil)

func (_m *BranchServiceMock) FindExistingBranch(ctx context.Context, userID, parentStoryID uuid.UUID, branchAtScene int, choicePointID uuid.UUID, option int) (*models.StoryInstance, error) {
	ret := _m.Called(ctx, userID, parentStoryID, branchAtScene, choicePointID, option)
	var branch *models.StoryInstance
	if ret.Get(0) != nil {
		branch = ret.Get(0).(*models.StoryInstance)
	}
	return branch, ret.Error(1)
}

func (_m *BranchServiceMock) BranchStory(ctx context.Context, userID, parentStoryID uuid.UUID, branchAtScene int, choicePointID uuid.UUID, newOption int) (*models.StoryInstance, error) {
	ret := _m.Called(ctx, userID, parentStoryID, branchAtScene, choicePointID, newOption)
	var branch *models.StoryInstance
	if ret.Get(0) != nil {
		branch = ret.Get(0).(*models.StoryInstance)
	}
	return branch, ret.Error(1)
}

// ProgressServiceMock is a mock for service.ProgressService.
type ProgressServiceMock struct {
	mock.Mock
}

var _ service.ProgressService = (*ProgressServiceMock)(nil)

func (_m *ProgressServiceMock) Advance(ctx context.Context, userID, storyID uuid.UUID, newCurrentScene int) (bool, error) {
	ret := _m.Called(ctx, userID, storyID, newCurrentScene)
	return ret.Bool(0), ret.Error(1)
}
