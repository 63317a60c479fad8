package prompt

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"storyforge/internal/models"
)

const (
	// encodingName is the tokenizer used for context budgeting. It matches
	// the GPT-3.5/4 family and is a close enough estimate for other models.
	encodingName = "cl100k_base"

	// DefaultHistoryTokenBudget bounds how many tokens of preceding scene
	// prose are carried into the user prompt.
	DefaultHistoryTokenBudget = 3000

	// historyScenes is how many preceding scenes are offered as context.
	historyScenes = 2
)

const systemPromptTemplate = `You are the narrator of an interactive novel titled "%s".

Synopsis: %s

Rules:
- Write a single scene of flowing prose in the second person.
- Stay consistent with the synopsis and the earlier scenes provided.
- Do not number the scene, add headings, or address the reader out of character.
- Do not offer choices or ask questions; the scene ends where the narration ends.
- The full novel spans %d scenes.`

// SceneContext carries everything the builder needs to assemble the prompt
// pair for one scene. PreviousScenes must be ordered by ascending scene
// number; LastChoice and PendingChoice may be nil.
type SceneContext struct {
	Template       *models.NovelTemplate
	SceneNumber    int
	PreviousScenes []models.StoryScene
	LastChoice     *models.StoryChoice
	PendingChoice  *models.ChoicePoint
}

// Builder assembles system/user prompt pairs for scene generation, keeping
// the scene history within a token budget.
type Builder struct {
	encoder     *tiktoken.Tiktoken
	tokenBudget int
	logger      *zap.Logger
}

// NewBuilder creates a prompt builder. tokenBudget <= 0 selects the default
// history budget.
func NewBuilder(tokenBudget int, logger *zap.Logger) (*Builder, error) {
	encoder, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s encoding: %w", encodingName, err)
	}
	if tokenBudget <= 0 {
		tokenBudget = DefaultHistoryTokenBudget
	}
	return &Builder{
		encoder:     encoder,
		tokenBudget: tokenBudget,
		logger:      logger.Named("PromptBuilder"),
	}, nil
}

// BuildScenePrompt returns the system and user prompts for generating the
// scene described by sceneCtx.
func (b *Builder) BuildScenePrompt(sceneCtx SceneContext) (string, string, error) {
	tmpl := sceneCtx.Template
	if tmpl == nil {
		return "", "", fmt.Errorf("%w: template is required for prompt assembly", models.ErrInvalidInput)
	}
	if sceneCtx.SceneNumber < 1 || sceneCtx.SceneNumber > tmpl.TotalScenes {
		return "", "", fmt.Errorf("%w: scene number %d outside template range 1..%d",
			models.ErrInvalidInput, sceneCtx.SceneNumber, tmpl.TotalScenes)
	}

	systemPrompt := fmt.Sprintf(systemPromptTemplate, tmpl.Title, tmpl.Synopsis, tmpl.TotalScenes)

	var sb strings.Builder
	if history := b.renderHistory(sceneCtx.PreviousScenes); history != "" {
		sb.WriteString("Earlier scenes:\n\n")
		sb.WriteString(history)
		sb.WriteString("\n\n")
	}

	if sceneCtx.LastChoice != nil {
		if line, ok := b.renderChoice(tmpl, sceneCtx.LastChoice); ok {
			sb.WriteString(line)
			sb.WriteString("\n\n")
		}
	}

	fmt.Fprintf(&sb, "Write scene %d of %d.", sceneCtx.SceneNumber, tmpl.TotalScenes)
	if sceneCtx.SceneNumber == tmpl.TotalScenes {
		sb.WriteString(" This is the final scene; bring the story to a close.")
	}
	if sceneCtx.PendingChoice != nil {
		fmt.Fprintf(&sb, " End the scene at a moment that leads naturally into this decision, without stating it: %s",
			sceneCtx.PendingChoice.PromptText)
	}

	return systemPrompt, sb.String(), nil
}

// renderHistory joins up to historyScenes preceding scenes, newest last,
// trimming the oldest content first when the token budget is exceeded.
func (b *Builder) renderHistory(scenes []models.StoryScene) string {
	if len(scenes) > historyScenes {
		scenes = scenes[len(scenes)-historyScenes:]
	}
	if len(scenes) == 0 {
		return ""
	}

	remaining := b.tokenBudget
	rendered := make([]string, len(scenes))
	// Walk newest to oldest so the most recent scene keeps its full text.
	for i := len(scenes) - 1; i >= 0; i-- {
		content := scenes[i].Content
		tokens := b.encoder.Encode(content, nil, nil)
		if len(tokens) > remaining {
			if remaining <= 0 {
				b.logger.Debug("Dropping scene from prompt history, token budget exhausted",
					zap.Int("scene_number", scenes[i].SceneNumber))
				continue
			}
			content = b.encoder.Decode(tokens[len(tokens)-remaining:])
			b.logger.Debug("Truncated scene in prompt history",
				zap.Int("scene_number", scenes[i].SceneNumber),
				zap.Int("kept_tokens", remaining))
			remaining = 0
		} else {
			remaining -= len(tokens)
		}
		rendered[i] = fmt.Sprintf("[Scene %d]\n%s", scenes[i].SceneNumber, content)
	}

	parts := make([]string, 0, len(rendered))
	for _, part := range rendered {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "\n\n")
}

// renderChoice resolves a recorded choice against the template and renders it
// as a single context line. Returns false when the choice point or option no
// longer resolves, which only happens with inconsistent data.
func (b *Builder) renderChoice(tmpl *models.NovelTemplate, choice *models.StoryChoice) (string, bool) {
	cp, ok := tmpl.ChoicePointByID(choice.ChoicePointID)
	if !ok {
		b.logger.Warn("Recorded choice references unknown choice point, omitting from prompt",
			zap.String("choice_point_id", choice.ChoicePointID.String()))
		return "", false
	}
	if choice.SelectedOption < 0 || choice.SelectedOption >= len(cp.Options) {
		b.logger.Warn("Recorded choice has out-of-range option, omitting from prompt",
			zap.String("choice_point_id", choice.ChoicePointID.String()),
			zap.Int("selected_option", choice.SelectedOption))
		return "", false
	}
	opt := cp.Options[choice.SelectedOption]
	line := fmt.Sprintf("At the decision %q the protagonist chose: %s", cp.PromptText, opt.Text)
	if opt.Tone != "" {
		line += fmt.Sprintf(" (tone: %s)", opt.Tone)
	}
	return line, true
}
