package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"storyforge/internal/interfaces"
)

type settingsRepoMock struct {
	mock.Mock
}

func (_m *settingsRepoMock) GetAll(ctx context.Context, q interfaces.DBTX) (map[string]string, error) {
	ret := _m.Called(ctx, q)
	var r0 map[string]string
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(map[string]string)
	}
	return r0, ret.Error(1)
}

func TestSettingsCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repo := new(settingsRepoMock)
	repo.On("GetAll", ctx, nil).Return(map[string]string{SettingKeyMaxTokens: "500"}, nil).Once()

	cache := NewSettingsCache(repo, nil, time.Minute, clock, zap.NewNop())

	// First read loads, second is served from cache.
	assert.Equal(t, 500, cache.GetInt(ctx, SettingKeyMaxTokens, 100))
	assert.Equal(t, 500, cache.GetInt(ctx, SettingKeyMaxTokens, 100))
	repo.AssertExpectations(t)

	// Advancing past the TTL triggers a reload.
	now = now.Add(2 * time.Minute)
	repo.On("GetAll", ctx, nil).Return(map[string]string{SettingKeyMaxTokens: "900"}, nil).Once()
	assert.Equal(t, 900, cache.GetInt(ctx, SettingKeyMaxTokens, 100))
	repo.AssertExpectations(t)
}

func TestSettingsCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	repo := new(settingsRepoMock)
	repo.On("GetAll", ctx, nil).Return(map[string]string{SettingKeyTemperature: "0.5"}, nil).Twice()

	cache := NewSettingsCache(repo, nil, time.Hour, nil, zap.NewNop())
	assert.InDelta(t, 0.5, cache.GetFloat(ctx, SettingKeyTemperature, 0.9), 1e-9)

	cache.Invalidate()
	assert.InDelta(t, 0.5, cache.GetFloat(ctx, SettingKeyTemperature, 0.9), 1e-9)
	repo.AssertExpectations(t)
}

func TestSettingsCache_DefaultsAndParsing(t *testing.T) {
	ctx := context.Background()
	repo := new(settingsRepoMock)
	repo.On("GetAll", ctx, nil).Return(map[string]string{
		SettingKeyTemperature: "not-a-float",
		SettingKeyTimeout:     "45s",
	}, nil)

	cache := NewSettingsCache(repo, nil, time.Hour, nil, zap.NewNop())

	// Unparseable value falls back to the default.
	assert.InDelta(t, 0.7, cache.GetFloat(ctx, SettingKeyTemperature, 0.7), 1e-9)
	// Missing key falls back to the default.
	assert.Equal(t, 1200, cache.GetInt(ctx, SettingKeyMaxTokens, 1200))
	assert.Equal(t, 45*time.Second, cache.GetDuration(ctx, SettingKeyTimeout, time.Minute))
}

func TestSettingsCache_KeepsStaleOnRefreshFailure(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repo := new(settingsRepoMock)
	repo.On("GetAll", ctx, nil).Return(map[string]string{SettingKeyMinWords: "50"}, nil).Once()

	cache := NewSettingsCache(repo, nil, time.Minute, clock, zap.NewNop())
	assert.Equal(t, 50, cache.GetInt(ctx, SettingKeyMinWords, 40))

	now = now.Add(5 * time.Minute)
	repo.On("GetAll", ctx, nil).Return(nil, errors.New("db down"))
	assert.Equal(t, 50, cache.GetInt(ctx, SettingKeyMinWords, 40))
}
