package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"storyforge/internal/interfaces"
	"storyforge/internal/models"
)

// Compile-time check to ensure implementation satisfies the interface.
var _ interfaces.TemplateCache = (*redisTemplateCache)(nil)

type redisTemplateCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisTemplateCache creates a Redis-backed read-through cache for
// immutable novel templates.
func NewRedisTemplateCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) interfaces.TemplateCache {
	return &redisTemplateCache{
		client: client,
		ttl:    ttl,
		logger: logger.Named("RedisTemplateCache"),
	}
}

func templateCacheKey(id uuid.UUID) string {
	return fmt.Sprintf("novel_template:%s", id)
}

// Get returns the cached template or models.ErrNotFound on a miss. A corrupt
// cache entry is treated as a miss.
func (c *redisTemplateCache) Get(ctx context.Context, id uuid.UUID) (*models.NovelTemplate, error) {
	raw, err := c.client.Get(ctx, templateCacheKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, models.ErrNotFound
		}
		c.logger.Warn("Template cache read failed", zap.String("templateID", id.String()), zap.Error(err))
		return nil, fmt.Errorf("failed to read template cache: %w", err)
	}

	var tmpl models.NovelTemplate
	if err := json.Unmarshal(raw, &tmpl); err != nil {
		c.logger.Warn("Corrupt template cache entry, treating as miss",
			zap.String("templateID", id.String()), zap.Error(err))
		return nil, models.ErrNotFound
	}
	return &tmpl, nil
}

// Set stores the template with the configured TTL.
func (c *redisTemplateCache) Set(ctx context.Context, tmpl *models.NovelTemplate) error {
	raw, err := json.Marshal(tmpl)
	if err != nil {
		return fmt.Errorf("failed to marshal template for cache: %w", err)
	}
	if err := c.client.Set(ctx, templateCacheKey(tmpl.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Template cache write failed", zap.String("templateID", tmpl.ID.String()), zap.Error(err))
		return fmt.Errorf("failed to write template cache: %w", err)
	}
	return nil
}
