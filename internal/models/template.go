package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MinOptionsPerChoicePoint and MaxOptionsPerChoicePoint bound how many
	// options a decision can offer.
	MinOptionsPerChoicePoint = 2
	MaxOptionsPerChoicePoint = 4
)

// NovelTemplate is the immutable blueprint for a story: total scene count and
// the ordered decision points a playthrough encounters.
type NovelTemplate struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	Title        string        `db:"title" json:"title"`
	Synopsis     string        `db:"synopsis" json:"synopsis"`
	TotalScenes  int           `db:"total_scenes" json:"totalScenes"`
	ChoicePoints []ChoicePoint `db:"-" json:"choicePoints"`
	CreatedAt    time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time     `db:"updated_at" json:"updatedAt"`
}

// ChoicePoint is a decision offered after a specific scene.
type ChoicePoint struct {
	ID          uuid.UUID      `json:"id"`
	SceneNumber int            `json:"sceneNumber"`
	PromptText  string         `json:"promptText"`
	Options     []ChoiceOption `json:"options"`
}

// ChoiceOption is one selectable outcome of a choice point.
type ChoiceOption struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Tone   string `json:"tone"`
	Impact string `json:"impact"`
}

// NewChoicePoint validates the shape of a decision point at construction time.
func NewChoicePoint(id uuid.UUID, sceneNumber int, promptText string, options []ChoiceOption) (ChoicePoint, error) {
	cp := ChoicePoint{ID: id, SceneNumber: sceneNumber, PromptText: promptText, Options: options}
	if id == uuid.Nil {
		return cp, fmt.Errorf("%w: choice point id is required", ErrInvalidInput)
	}
	if sceneNumber < 1 {
		return cp, fmt.Errorf("%w: choice point scene number must be >= 1, got %d", ErrInvalidInput, sceneNumber)
	}
	if strings.TrimSpace(promptText) == "" {
		return cp, fmt.Errorf("%w: choice point prompt text is empty", ErrInvalidInput)
	}
	if len(options) < MinOptionsPerChoicePoint || len(options) > MaxOptionsPerChoicePoint {
		return cp, fmt.Errorf("%w: choice point must have %d-%d options, got %d",
			ErrInvalidInput, MinOptionsPerChoicePoint, MaxOptionsPerChoicePoint, len(options))
	}
	for i, opt := range options {
		if strings.TrimSpace(opt.Text) == "" {
			return cp, fmt.Errorf("%w: option %d has empty text", ErrInvalidInput, i)
		}
	}
	return cp, nil
}

// ParseChoicePoints decodes the embedded JSONB column into validated choice
// points and enforces template-level invariants: scene numbers are unique and
// strictly below the total scene count.
func ParseChoicePoints(raw json.RawMessage, totalScenes int) ([]ChoicePoint, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var decoded []ChoicePoint
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("%w: malformed choice points: %v", ErrInvalidInput, err)
	}

	seen := make(map[int]struct{}, len(decoded))
	points := make([]ChoicePoint, 0, len(decoded))
	for _, cp := range decoded {
		validated, err := NewChoicePoint(cp.ID, cp.SceneNumber, cp.PromptText, cp.Options)
		if err != nil {
			return nil, err
		}
		if validated.SceneNumber >= totalScenes {
			return nil, fmt.Errorf("%w: choice point at scene %d is not before the final scene (%d total)",
				ErrInvalidInput, validated.SceneNumber, totalScenes)
		}
		if _, dup := seen[validated.SceneNumber]; dup {
			return nil, fmt.Errorf("%w: duplicate choice point at scene %d", ErrInvalidInput, validated.SceneNumber)
		}
		seen[validated.SceneNumber] = struct{}{}
		points = append(points, validated)
	}
	return points, nil
}

// ChoicePointByID looks up a decision point belonging to this template.
func (t *NovelTemplate) ChoicePointByID(id uuid.UUID) (*ChoicePoint, bool) {
	for i := range t.ChoicePoints {
		if t.ChoicePoints[i].ID == id {
			return &t.ChoicePoints[i], true
		}
	}
	return nil, false
}

// ChoicePointAtScene returns the decision point appearing after the given
// scene, if any.
func (t *NovelTemplate) ChoicePointAtScene(sceneNumber int) (*ChoicePoint, bool) {
	for i := range t.ChoicePoints {
		if t.ChoicePoints[i].SceneNumber == sceneNumber {
			return &t.ChoicePoints[i], true
		}
	}
	return nil, false
}
