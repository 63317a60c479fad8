package prompt

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"storyforge/internal/models"
)

func testTemplate() *models.NovelTemplate {
	return &models.NovelTemplate{
		ID:          uuid.New(),
		Title:       "The Glass Harbor",
		Synopsis:    "A smuggler returns to a city that wants her dead.",
		TotalScenes: 8,
		ChoicePoints: []models.ChoicePoint{
			{
				ID:          uuid.New(),
				SceneNumber: 3,
				PromptText:  "Trust the harbormaster?",
				Options: []models.ChoiceOption{
					{ID: "a", Text: "Trust him", Tone: "hopeful"},
					{ID: "b", Text: "Walk away", Tone: "wary"},
				},
			},
		},
	}
}

func newTestBuilder(t *testing.T, budget int) *Builder {
	t.Helper()
	b, err := NewBuilder(budget, zap.NewNop())
	require.NoError(t, err)
	return b
}

func TestBuildScenePrompt_FirstScene(t *testing.T) {
	b := newTestBuilder(t, 0)
	tmpl := testTemplate()

	system, user, err := b.BuildScenePrompt(SceneContext{Template: tmpl, SceneNumber: 1})
	require.NoError(t, err)

	assert.Contains(t, system, tmpl.Title)
	assert.Contains(t, system, tmpl.Synopsis)
	assert.Contains(t, user, "Write scene 1 of 8.")
	assert.NotContains(t, user, "Earlier scenes")
}

func TestBuildScenePrompt_WithHistoryAndChoice(t *testing.T) {
	b := newTestBuilder(t, 0)
	tmpl := testTemplate()
	cp := tmpl.ChoicePoints[0]

	system, user, err := b.BuildScenePrompt(SceneContext{
		Template:    tmpl,
		SceneNumber: 4,
		PreviousScenes: []models.StoryScene{
			{SceneNumber: 2, Content: "She slipped past the customs house."},
			{SceneNumber: 3, Content: "The harbormaster was waiting."},
		},
		LastChoice: &models.StoryChoice{ChoicePointID: cp.ID, SelectedOption: 1},
	})
	require.NoError(t, err)
	require.NotEmpty(t, system)

	assert.Contains(t, user, "[Scene 2]")
	assert.Contains(t, user, "[Scene 3]")
	assert.Contains(t, user, "The harbormaster was waiting.")
	assert.Contains(t, user, "Walk away")
	assert.Contains(t, user, cp.PromptText)
	assert.Contains(t, user, "Write scene 4 of 8.")
}

func TestBuildScenePrompt_PendingChoicePoint(t *testing.T) {
	b := newTestBuilder(t, 0)
	tmpl := testTemplate()
	cp := tmpl.ChoicePoints[0]

	_, user, err := b.BuildScenePrompt(SceneContext{
		Template:      tmpl,
		SceneNumber:   3,
		PendingChoice: &cp,
	})
	require.NoError(t, err)
	assert.Contains(t, user, "leads naturally into this decision")
	assert.Contains(t, user, cp.PromptText)
}

func TestBuildScenePrompt_FinalScene(t *testing.T) {
	b := newTestBuilder(t, 0)
	tmpl := testTemplate()

	_, user, err := b.BuildScenePrompt(SceneContext{Template: tmpl, SceneNumber: 8})
	require.NoError(t, err)
	assert.Contains(t, user, "final scene")
}

func TestBuildScenePrompt_TokenBudgetTruncatesOldest(t *testing.T) {
	// A tiny budget keeps the newest scene's tail and drops or trims the
	// older one.
	b := newTestBuilder(t, 10)
	tmpl := testTemplate()

	long := strings.Repeat("the tide rolled in and out again ", 50)
	_, user, err := b.BuildScenePrompt(SceneContext{
		Template:    tmpl,
		SceneNumber: 4,
		PreviousScenes: []models.StoryScene{
			{SceneNumber: 2, Content: "An old warehouse full of contraband lanterns."},
			{SceneNumber: 3, Content: long},
		},
	})
	require.NoError(t, err)

	assert.Contains(t, user, "[Scene 3]")
	assert.NotContains(t, user, "contraband lanterns")
}

func TestBuildScenePrompt_RejectsBadInput(t *testing.T) {
	b := newTestBuilder(t, 0)

	_, _, err := b.BuildScenePrompt(SceneContext{Template: nil, SceneNumber: 1})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, _, err = b.BuildScenePrompt(SceneContext{Template: testTemplate(), SceneNumber: 9})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, _, err = b.BuildScenePrompt(SceneContext{Template: testTemplate(), SceneNumber: 0})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestRenderChoice_IgnoresInconsistentData(t *testing.T) {
	b := newTestBuilder(t, 0)
	tmpl := testTemplate()

	_, ok := b.renderChoice(tmpl, &models.StoryChoice{ChoicePointID: uuid.New(), SelectedOption: 0})
	assert.False(t, ok)

	_, ok = b.renderChoice(tmpl, &models.StoryChoice{ChoicePointID: tmpl.ChoicePoints[0].ID, SelectedOption: 7})
	assert.False(t, ok)
}
