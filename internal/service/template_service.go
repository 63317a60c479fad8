package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyforge/internal/interfaces"
	"storyforge/internal/models"
)

// TemplateService exposes read access to novel templates with a read-through
// cache in front of the database.
type TemplateService interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.NovelTemplate, error)
	ListTemplates(ctx context.Context, limit, offset int) ([]*models.NovelTemplate, error)
}

type templateServiceImpl struct {
	repo   interfaces.TemplateRepository
	cache  interfaces.TemplateCache
	db     interfaces.DBTX
	logger *zap.Logger
}

var _ TemplateService = (*templateServiceImpl)(nil)

// NewTemplateService creates a template service. cache may be nil, which
// disables caching entirely.
func NewTemplateService(repo interfaces.TemplateRepository, cache interfaces.TemplateCache, db interfaces.DBTX, logger *zap.Logger) TemplateService {
	return &templateServiceImpl{
		repo:   repo,
		cache:  cache,
		db:     db,
		logger: logger.Named("TemplateService"),
	}
}

func (s *templateServiceImpl) GetTemplate(ctx context.Context, id uuid.UUID) (*models.NovelTemplate, error) {
	if s.cache != nil {
		tmpl, err := s.cache.Get(ctx, id)
		if err == nil && tmpl != nil {
			return tmpl, nil
		}
		if err != nil {
			s.logger.Warn("Template cache lookup failed, falling back to database",
				zap.String("template_id", id.String()), zap.Error(err))
		}
	}

	tmpl, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tmpl); err != nil {
			s.logger.Warn("Failed to populate template cache",
				zap.String("template_id", id.String()), zap.Error(err))
		}
	}
	return tmpl, nil
}

func (s *templateServiceImpl) ListTemplates(ctx context.Context, limit, offset int) ([]*models.NovelTemplate, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	templates, err := s.repo.List(ctx, s.db, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	return templates, nil
}
