package ai

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"storyforge/internal/interfaces"
)

// Dynamic setting keys and defaults. Values live in the engine_settings table
// and override these when present.
const (
	SettingKeyTemperature = "ai.temperature"
	SettingKeyMaxTokens   = "ai.max_tokens"
	SettingKeyTimeout     = "ai.timeout"
	SettingKeyMinWords    = "scene.min_words"
	SettingKeyMaxWords    = "scene.max_words"

	DefaultTemperature = 0.7
	DefaultMaxTokens   = 1200
	DefaultTimeout     = 120 * time.Second
	DefaultMinWords    = 40
	DefaultMaxWords    = 2000
)

// SettingsCache is a TTL cache over the engine_settings table. The clock is
// injected so expiry is testable; Invalidate forces a reload on next access.
type SettingsCache struct {
	repo   interfaces.SettingsRepository
	db     interfaces.DBTX
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu       sync.RWMutex
	values   map[string]string
	loadedAt time.Time
}

// NewSettingsCache creates a settings cache. A nil now falls back to
// time.Now.
func NewSettingsCache(repo interfaces.SettingsRepository, db interfaces.DBTX, ttl time.Duration, now func() time.Time, logger *zap.Logger) *SettingsCache {
	if now == nil {
		now = time.Now
	}
	return &SettingsCache{
		repo:   repo,
		db:     db,
		ttl:    ttl,
		now:    now,
		logger: logger.Named("SettingsCache"),
	}
}

// Invalidate drops the cached values; the next read reloads from storage.
func (c *SettingsCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = nil
	c.loadedAt = time.Time{}
}

func (c *SettingsCache) get(ctx context.Context, key string) (string, bool) {
	c.mu.RLock()
	fresh := c.values != nil && c.now().Sub(c.loadedAt) < c.ttl
	val, ok := c.values[key]
	c.mu.RUnlock()
	if fresh {
		return val, ok
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	// Another goroutine may have refreshed while we waited for the lock.
	if c.values == nil || c.now().Sub(c.loadedAt) >= c.ttl {
		values, err := c.repo.GetAll(ctx, c.db)
		if err != nil {
			c.logger.Warn("Failed to refresh engine settings, keeping stale values", zap.Error(err))
			if c.values == nil {
				return "", false
			}
		} else {
			c.values = values
			c.loadedAt = c.now()
		}
	}
	val, ok = c.values[key]
	return val, ok
}

// GetFloat returns a float setting or the default.
func (c *SettingsCache) GetFloat(ctx context.Context, key string, defaultValue float64) float64 {
	strVal, ok := c.get(ctx, key)
	if !ok {
		return defaultValue
	}
	floatVal, err := strconv.ParseFloat(strVal, 64)
	if err != nil {
		c.logger.Warn("Failed to parse float setting, using default",
			zap.String("key", key), zap.String("value", strVal), zap.Error(err))
		return defaultValue
	}
	return floatVal
}

// GetInt returns an int setting or the default.
func (c *SettingsCache) GetInt(ctx context.Context, key string, defaultValue int) int {
	strVal, ok := c.get(ctx, key)
	if !ok {
		return defaultValue
	}
	intVal, err := strconv.Atoi(strVal)
	if err != nil {
		c.logger.Warn("Failed to parse int setting, using default",
			zap.String("key", key), zap.String("value", strVal), zap.Error(err))
		return defaultValue
	}
	return intVal
}

// GetDuration returns a duration setting or the default.
func (c *SettingsCache) GetDuration(ctx context.Context, key string, defaultValue time.Duration) time.Duration {
	strVal, ok := c.get(ctx, key)
	if !ok {
		return defaultValue
	}
	durationVal, err := time.ParseDuration(strVal)
	if err != nil {
		c.logger.Warn("Failed to parse duration setting, using default",
			zap.String("key", key), zap.String("value", strVal), zap.Error(err))
		return defaultValue
	}
	return durationVal
}
