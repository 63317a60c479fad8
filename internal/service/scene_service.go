package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyforge/internal/ai"
	"storyforge/internal/interfaces"
	"storyforge/internal/models"
	"storyforge/internal/prompt"
)

// placeholderMarkers are substrings whose presence means the provider left
// template scaffolding in the prose.
var placeholderMarkers = []string{"{{", "[TODO", "[PLACEHOLDER", "<insert"}

// SceneResult is the outcome of resolving one scene. WasCached is true when
// the returned row already existed, including when a concurrent writer won
// the insert race.
type SceneResult struct {
	Scene     *models.StoryScene
	WasCached bool
}

// ChunkHandler receives incremental prose fragments during streaming
// resolution. Returning an error aborts the stream.
type ChunkHandler func(chunk string) error

// SceneService resolves scenes: cached rows are returned as-is, missing ones
// are generated via the completion provider and persisted exactly once.
type SceneService interface {
	ResolveScene(ctx context.Context, userID, storyID uuid.UUID, sceneNumber int) (*SceneResult, error)
	// ResolveSceneStream behaves like ResolveScene but forwards provider
	// output to handler as it arrives. A cached scene is delivered as a
	// single chunk. Cancelling ctx aborts generation without persisting.
	ResolveSceneStream(ctx context.Context, userID, storyID uuid.UUID, sceneNumber int, handler ChunkHandler) (*SceneResult, error)
}

type sceneServiceImpl struct {
	storyRepo  interfaces.StoryRepository
	sceneRepo  interfaces.SceneRepository
	choiceRepo interfaces.ChoiceRepository
	templates  TemplateService
	completion ai.CompletionClient
	settings   *ai.SettingsCache
	builder    *prompt.Builder
	db         interfaces.DBTX
	logger     *zap.Logger
}

var _ SceneService = (*sceneServiceImpl)(nil)

// NewSceneService creates the scene resolver.
func NewSceneService(
	storyRepo interfaces.StoryRepository,
	sceneRepo interfaces.SceneRepository,
	choiceRepo interfaces.ChoiceRepository,
	templates TemplateService,
	completion ai.CompletionClient,
	settings *ai.SettingsCache,
	builder *prompt.Builder,
	db interfaces.DBTX,
	logger *zap.Logger,
) SceneService {
	return &sceneServiceImpl{
		storyRepo:  storyRepo,
		sceneRepo:  sceneRepo,
		choiceRepo: choiceRepo,
		templates:  templates,
		completion: completion,
		settings:   settings,
		builder:    builder,
		db:         db,
		logger:     logger.Named("SceneService"),
	}
}

func (s *sceneServiceImpl) ResolveScene(ctx context.Context, userID, storyID uuid.UUID, sceneNumber int) (*SceneResult, error) {
	return s.resolve(ctx, userID, storyID, sceneNumber, nil)
}

func (s *sceneServiceImpl) ResolveSceneStream(ctx context.Context, userID, storyID uuid.UUID, sceneNumber int, handler ChunkHandler) (*SceneResult, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: chunk handler is required for streaming resolution", models.ErrInvalidInput)
	}
	return s.resolve(ctx, userID, storyID, sceneNumber, handler)
}

func (s *sceneServiceImpl) resolve(ctx context.Context, userID, storyID uuid.UUID, sceneNumber int, handler ChunkHandler) (*SceneResult, error) {
	story, err := s.storyRepo.GetByID(ctx, s.db, storyID)
	if err != nil {
		return nil, err
	}
	if story.UserID != userID {
		return nil, models.ErrForbidden
	}

	tmpl, err := s.templates.GetTemplate(ctx, story.TemplateID)
	if err != nil {
		return nil, err
	}

	if sceneNumber < 1 || sceneNumber > tmpl.TotalScenes {
		return nil, fmt.Errorf("%w: scene %d not in 1..%d", ErrSceneOutOfRange, sceneNumber, tmpl.TotalScenes)
	}
	// The reader may request one scene past the progress pointer: the UI
	// fetches the next scene before reporting the advance.
	if sceneNumber > story.CurrentScene+1 {
		return nil, fmt.Errorf("%w: scene %d is beyond unlocked position %d", ErrSceneOutOfRange, sceneNumber, story.CurrentScene)
	}

	cached, err := s.sceneRepo.GetByStoryAndNumber(ctx, s.db, storyID, sceneNumber)
	if err == nil {
		if handler != nil {
			if err := handler(cached.Content); err != nil {
				return nil, err
			}
		}
		return &SceneResult{Scene: cached, WasCached: true}, nil
	}
	if !errors.Is(err, models.ErrSceneNotFound) {
		return nil, err
	}

	if story.Status == models.StatusCompleted {
		return nil, ErrStoryCompleted
	}

	content, err := s.generate(ctx, tmpl, story, sceneNumber, handler)
	if err != nil {
		return nil, err
	}

	scene := &models.StoryScene{
		ID:          uuid.New(),
		StoryID:     storyID,
		SceneNumber: sceneNumber,
		Content:     content,
		WordCount:   models.CountWords(content),
	}
	inserted, err := s.sceneRepo.CreateIfAbsent(ctx, s.db, scene)
	if err != nil {
		return nil, fmt.Errorf("failed to persist generated scene: %w", err)
	}
	if !inserted {
		// A concurrent resolver won the insert. Its row is the canonical
		// scene; our generated text is discarded.
		s.logger.Info("Lost scene insert race, returning persisted row",
			zap.String("story_id", storyID.String()), zap.Int("scene_number", sceneNumber))
		winner, err := s.sceneRepo.GetByStoryAndNumber(ctx, s.db, storyID, sceneNumber)
		if err != nil {
			return nil, fmt.Errorf("failed to re-read scene after insert conflict: %w", err)
		}
		return &SceneResult{Scene: winner, WasCached: true}, nil
	}

	s.logger.Info("Generated and persisted new scene",
		zap.String("story_id", storyID.String()),
		zap.Int("scene_number", sceneNumber),
		zap.Int("word_count", scene.WordCount))
	return &SceneResult{Scene: scene, WasCached: false}, nil
}

// generate assembles the prompt, calls the provider with a bounded timeout
// and runs the quality gate. Nothing is persisted here.
func (s *sceneServiceImpl) generate(ctx context.Context, tmpl *models.NovelTemplate, story *models.StoryInstance, sceneNumber int, handler ChunkHandler) (string, error) {
	sceneCtx, err := s.collectContext(ctx, tmpl, story, sceneNumber)
	if err != nil {
		return "", err
	}

	systemPrompt, userPrompt, err := s.builder.BuildScenePrompt(sceneCtx)
	if err != nil {
		return "", err
	}

	temperature := s.settings.GetFloat(ctx, ai.SettingKeyTemperature, ai.DefaultTemperature)
	maxTokens := s.settings.GetInt(ctx, ai.SettingKeyMaxTokens, ai.DefaultMaxTokens)
	timeout := s.settings.GetDuration(ctx, ai.SettingKeyTimeout, ai.DefaultTimeout)
	params := ai.GenerationParams{Temperature: &temperature, MaxTokens: &maxTokens}

	genCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var content string
	if handler != nil {
		content, _, err = s.completion.CompleteStream(genCtx, systemPrompt, userPrompt, params, handler)
	} else {
		content, _, err = s.completion.Complete(genCtx, systemPrompt, userPrompt, params)
	}
	if err != nil {
		s.logger.Warn("Scene generation failed",
			zap.String("story_id", story.ID.String()),
			zap.Int("scene_number", sceneNumber),
			zap.Error(err))
		return "", err
	}

	if err := s.validateContent(ctx, content); err != nil {
		s.logger.Warn("Generated scene rejected by quality gate",
			zap.String("story_id", story.ID.String()),
			zap.Int("scene_number", sceneNumber),
			zap.Error(err))
		return "", err
	}
	return content, nil
}

// collectContext loads the two preceding scenes and the most recent recorded
// choice for prompt assembly.
func (s *sceneServiceImpl) collectContext(ctx context.Context, tmpl *models.NovelTemplate, story *models.StoryInstance, sceneNumber int) (prompt.SceneContext, error) {
	sceneCtx := prompt.SceneContext{
		Template:    tmpl,
		SceneNumber: sceneNumber,
	}
	if cp, ok := tmpl.ChoicePointAtScene(sceneNumber); ok {
		sceneCtx.PendingChoice = cp
	}

	if sceneNumber > 1 {
		from := sceneNumber - 2
		if from < 1 {
			from = 1
		}
		previous, err := s.sceneRepo.ListRange(ctx, s.db, story.ID, from, sceneNumber-1)
		if err != nil {
			return sceneCtx, fmt.Errorf("failed to load preceding scenes: %w", err)
		}
		scenes := make([]models.StoryScene, 0, len(previous))
		for _, sc := range previous {
			scenes = append(scenes, *sc)
		}
		sceneCtx.PreviousScenes = scenes
	}

	choices, err := s.choiceRepo.ListByStory(ctx, s.db, story.ID)
	if err != nil {
		return sceneCtx, fmt.Errorf("failed to load recorded choices: %w", err)
	}
	sceneCtx.LastChoice = latestChoiceBefore(tmpl, choices, sceneNumber)
	return sceneCtx, nil
}

// latestChoiceBefore picks the recorded choice at the highest choice point
// scene below sceneNumber. Ranking by scene position rather than insertion
// time matters on branches, where copied choices and the fork choice carry
// timestamps from different clocks.
func latestChoiceBefore(tmpl *models.NovelTemplate, choices []*models.StoryChoice, sceneNumber int) *models.StoryChoice {
	var best *models.StoryChoice
	bestScene := 0
	for _, choice := range choices {
		cp, ok := tmpl.ChoicePointByID(choice.ChoicePointID)
		if !ok {
			continue
		}
		if cp.SceneNumber < sceneNumber && cp.SceneNumber > bestScene {
			best = choice
			bestScene = cp.SceneNumber
		}
	}
	return best
}

// validateContent is the quality gate: non-empty prose, word count within the
// configured bounds, no unresolved placeholder markers.
func (s *sceneServiceImpl) validateContent(ctx context.Context, content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return fmt.Errorf("%w: empty content", ErrContentRejected)
	}

	minWords := s.settings.GetInt(ctx, ai.SettingKeyMinWords, ai.DefaultMinWords)
	maxWords := s.settings.GetInt(ctx, ai.SettingKeyMaxWords, ai.DefaultMaxWords)
	wordCount := models.CountWords(trimmed)
	if wordCount < minWords || wordCount > maxWords {
		return fmt.Errorf("%w: word count %d outside [%d, %d]", ErrContentRejected, wordCount, minWords, maxWords)
	}

	for _, marker := range placeholderMarkers {
		if strings.Contains(trimmed, marker) {
			return fmt.Errorf("%w: unresolved placeholder marker %q", ErrContentRejected, marker)
		}
	}
	return nil
}
