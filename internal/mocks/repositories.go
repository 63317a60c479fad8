package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"storyforge/internal/interfaces"
	"storyforge/internal/models"
)

// TemplateRepository is a mock for interfaces.TemplateRepository.
type TemplateRepository struct {
	mock.Mock
}

var _ interfaces.TemplateRepository = (*TemplateRepository)(nil)

func (_m *TemplateRepository) GetByID(ctx context.Context, q interfaces.DBTX, id uuid.UUID) (*models.NovelTemplate, error) {
	ret := _m.Called(ctx, q, id)
	var r0 *models.NovelTemplate
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.NovelTemplate)
	}
	return r0, ret.Error(1)
}

func (_m *TemplateRepository) List(ctx context.Context, q interfaces.DBTX, limit, offset int) ([]*models.NovelTemplate, error) {
	ret := _m.Called(ctx, q, limit, offset)
	var r0 []*models.NovelTemplate
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.NovelTemplate)
	}
	return r0, ret.Error(1)
}

// TemplateCache is a mock for interfaces.TemplateCache.
type TemplateCache struct {
	mock.Mock
}

var _ interfaces.TemplateCache = (*TemplateCache)(nil)

func (_m *TemplateCache) Get(ctx context.Context, id uuid.UUID) (*models.NovelTemplate, error) {
	ret := _m.Called(ctx, id)
	var r0 *models.NovelTemplate
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.NovelTemplate)
	}
	return r0, ret.Error(1)
}

func (_m *TemplateCache) Set(ctx context.Context, tmpl *models.NovelTemplate) error {
	ret := _m.Called(ctx, tmpl)
	return ret.Error(0)
}

// StoryRepository is a mock for interfaces.StoryRepository.
type StoryRepository struct {
	mock.Mock
}

var _ interfaces.StoryRepository = (*StoryRepository)(nil)

func (_m *StoryRepository) Create(ctx context.Context, q interfaces.DBTX, story *models.StoryInstance) error {
	ret := _m.Called(ctx, q, story)
	return ret.Error(0)
}

func (_m *StoryRepository) GetByID(ctx context.Context, q interfaces.DBTX, id uuid.UUID) (*models.StoryInstance, error) {
	ret := _m.Called(ctx, q, id)
	var r0 *models.StoryInstance
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryInstance)
	}
	return r0, ret.Error(1)
}

func (_m *StoryRepository) ListByUser(ctx context.Context, q interfaces.DBTX, userID uuid.UUID, limit, offset int) ([]*models.StoryInstance, error) {
	ret := _m.Called(ctx, q, userID, limit, offset)
	var r0 []*models.StoryInstance
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.StoryInstance)
	}
	return r0, ret.Error(1)
}

func (_m *StoryRepository) FindBranch(ctx context.Context, q interfaces.DBTX, userID, parentID uuid.UUID, branchedAtScene, option int) (*models.StoryInstance, error) {
	ret := _m.Called(ctx, q, userID, parentID, branchedAtScene, option)
	var r0 *models.StoryInstance
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryInstance)
	}
	return r0, ret.Error(1)
}

func (_m *StoryRepository) AdvanceProgress(ctx context.Context, q interfaces.DBTX, storyID uuid.UUID, newCurrentScene int, status models.StoryStatus) (bool, error) {
	ret := _m.Called(ctx, q, storyID, newCurrentScene, status)
	return ret.Bool(0), ret.Error(1)
}

func (_m *StoryRepository) Delete(ctx context.Context, q interfaces.DBTX, storyID, userID uuid.UUID) error {
	ret := _m.Called(ctx, q, storyID, userID)
	return ret.Error(0)
}

// SceneRepository is a mock for interfaces.SceneRepository.
type SceneRepository struct {
	mock.Mock
}

var _ interfaces.SceneRepository = (*SceneRepository)(nil)

func (_m *SceneRepository) CreateIfAbsent(ctx context.Context, q interfaces.DBTX, scene *models.StoryScene) (bool, error) {
	ret := _m.Called(ctx, q, scene)
	return ret.Bool(0), ret.Error(1)
}

func (_m *SceneRepository) GetByStoryAndNumber(ctx context.Context, q interfaces.DBTX, storyID uuid.UUID, sceneNumber int) (*models.StoryScene, error) {
	ret := _m.Called(ctx, q, storyID, sceneNumber)
	var r0 *models.StoryScene
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryScene)
	}
	return r0, ret.Error(1)
}

func (_m *SceneRepository) ListRange(ctx context.Context, q interfaces.DBTX, storyID uuid.UUID, from, to int) ([]*models.StoryScene, error) {
	ret := _m.Called(ctx, q, storyID, from, to)
	var r0 []*models.StoryScene
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.StoryScene)
	}
	return r0, ret.Error(1)
}

func (_m *SceneRepository) CopyPrefix(ctx context.Context, q interfaces.DBTX, fromStoryID, toStoryID uuid.UUID, uptoScene int) (int64, error) {
	ret := _m.Called(ctx, q, fromStoryID, toStoryID, uptoScene)
	return ret.Get(0).(int64), ret.Error(1)
}

// ChoiceRepository is a mock for interfaces.ChoiceRepository.
type ChoiceRepository struct {
	mock.Mock
}

var _ interfaces.ChoiceRepository = (*ChoiceRepository)(nil)

func (_m *ChoiceRepository) Create(ctx context.Context, q interfaces.DBTX, choice *models.StoryChoice) error {
	ret := _m.Called(ctx, q, choice)
	return ret.Error(0)
}

func (_m *ChoiceRepository) GetByStoryAndChoicePoint(ctx context.Context, q interfaces.DBTX, storyID, choicePointID uuid.UUID) (*models.StoryChoice, error) {
	ret := _m.Called(ctx, q, storyID, choicePointID)
	var r0 *models.StoryChoice
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*models.StoryChoice)
	}
	return r0, ret.Error(1)
}

func (_m *ChoiceRepository) ListByStory(ctx context.Context, q interfaces.DBTX, storyID uuid.UUID) ([]*models.StoryChoice, error) {
	ret := _m.Called(ctx, q, storyID)
	var r0 []*models.StoryChoice
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]*models.StoryChoice)
	}
	return r0, ret.Error(1)
}

func (_m *ChoiceRepository) CopyForChoicePoints(ctx context.Context, q interfaces.DBTX, fromStoryID, toStoryID uuid.UUID, choicePointIDs []uuid.UUID) (int64, error) {
	ret := _m.Called(ctx, q, fromStoryID, toStoryID, choicePointIDs)
	return ret.Get(0).(int64), ret.Error(1)
}

// SettingsRepository is a mock for interfaces.SettingsRepository.
type SettingsRepository struct {
	mock.Mock
}

var _ interfaces.SettingsRepository = (*SettingsRepository)(nil)

func (_m *SettingsRepository) GetAll(ctx context.Context, q interfaces.DBTX) (map[string]string, error) {
	ret := _m.Called(ctx, q)
	var r0 map[string]string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(map[string]string)
	}
	return r0, ret.Error(1)
}

// TxRunner is a mock for interfaces.TxRunner that executes the callback
// against a nil DBTX, letting repository mocks observe the calls.
type TxRunner struct {
	mock.Mock
}

var _ interfaces.TxRunner = (*TxRunner)(nil)

func (_m *TxRunner) WithinTx(ctx context.Context, fn func(ctx context.Context, tx interfaces.DBTX) error) error {
	ret := _m.Called(ctx, fn)
	if ret.Error(0) != nil {
		return ret.Error(0)
	}
	return fn(ctx, nil)
}
