package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// StoryStatus is the lifecycle state of a story instance.
type StoryStatus string

const (
	StatusInProgress StoryStatus = "in_progress"
	StatusCompleted  StoryStatus = "completed"
)

// StoryInstance is one user's playthrough of a template. A branch carries the
// lineage triple (parent, fork scene, substituted option); all three are nil
// for root stories. Deleting the parent clears only the parent reference, so
// an orphaned branch still reports where it forked.
type StoryInstance struct {
	ID                  uuid.UUID   `db:"id" json:"id"`
	UserID              uuid.UUID   `db:"user_id" json:"userId"`
	TemplateID          uuid.UUID   `db:"template_id" json:"templateId"`
	Title               string      `db:"title" json:"title"`
	CurrentScene        int         `db:"current_scene" json:"currentScene"`
	Status              StoryStatus `db:"status" json:"status"`
	BranchedFromStoryID *uuid.UUID  `db:"branched_from_story_id" json:"branchedFromStoryId,omitempty"`
	BranchedAtScene     *int        `db:"branched_at_scene" json:"branchedAtScene,omitempty"`
	BranchedOption      *int        `db:"branched_option" json:"branchedOption,omitempty"`
	CreatedAt           time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt           time.Time   `db:"updated_at" json:"updatedAt"`
}

// IsBranch reports whether this instance was forked from another story,
// including branches whose parent has since been deleted.
func (s *StoryInstance) IsBranch() bool {
	return s.BranchedAtScene != nil
}

// StoryScene is the generated prose for one (story, scene number) pair.
// Immutable once persisted; only the first successful generation survives.
type StoryScene struct {
	ID          uuid.UUID `db:"id" json:"id"`
	StoryID     uuid.UUID `db:"story_id" json:"storyId"`
	SceneNumber int       `db:"scene_number" json:"sceneNumber"`
	Content     string    `db:"content" json:"content"`
	WordCount   int       `db:"word_count" json:"wordCount"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
}

// StoryChoice is the recorded option a user selected at a choice point within
// a specific story. At most one per (story, choice point).
type StoryChoice struct {
	ID             uuid.UUID `db:"id" json:"id"`
	StoryID        uuid.UUID `db:"story_id" json:"storyId"`
	ChoicePointID  uuid.UUID `db:"choice_point_id" json:"choicePointId"`
	SelectedOption int       `db:"selected_option" json:"selectedOption"`
	CreatedAt      time.Time `db:"created_at" json:"createdAt"`
}

// CountWords returns the whitespace-separated word count of prose content.
func CountWords(content string) int {
	return len(strings.Fields(content))
}
