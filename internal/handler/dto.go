package handler

import (
	"time"

	"github.com/google/uuid"

	"storyforge/internal/models"
)

// APIError is the standardized error response body.
type APIError struct {
	Message string `json:"message"`
}

type templateSummary struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Synopsis    string    `json:"synopsis"`
	TotalScenes int       `json:"totalScenes"`
	CreatedAt   time.Time `json:"createdAt"`
}

type templateDetail struct {
	templateSummary
	ChoicePoints []models.ChoicePoint `json:"choicePoints"`
}

type storyResponse struct {
	ID                  uuid.UUID          `json:"id"`
	TemplateID          uuid.UUID          `json:"templateId"`
	Title               string             `json:"title"`
	CurrentScene        int                `json:"currentScene"`
	Status              models.StoryStatus `json:"status"`
	BranchedFromStoryID *uuid.UUID         `json:"branchedFromStoryId,omitempty"`
	BranchedAtScene     *int               `json:"branchedAtScene,omitempty"`
	BranchedOption      *int               `json:"branchedOption,omitempty"`
	CreatedAt           time.Time          `json:"createdAt"`
}

type sceneResponse struct {
	StoryID     uuid.UUID           `json:"storyId"`
	SceneNumber int                 `json:"sceneNumber"`
	Content     string              `json:"content"`
	WordCount   int                 `json:"wordCount"`
	WasCached   bool                `json:"wasCached"`
	Story       *storyResponse      `json:"story,omitempty"`
	ChoicePoint *models.ChoicePoint `json:"choicePoint,omitempty"`
}

type recordChoiceRequest struct {
	ChoicePointID  uuid.UUID `json:"choicePointId"`
	SelectedOption int       `json:"selectedOption"`
}

type recordChoiceResponse struct {
	ChoiceID  uuid.UUID `json:"choiceId"`
	NextScene int       `json:"nextScene"`
	Completed bool      `json:"completed"`
}

type advanceProgressRequest struct {
	CurrentScene int `json:"currentScene"`
}

type advanceProgressResponse struct {
	CurrentScene int  `json:"currentScene"`
	Completed    bool `json:"completed"`
}

type branchRequest struct {
	BranchAtScene int       `json:"branchAtScene"`
	ChoicePointID uuid.UUID `json:"choicePointId"`
	Option        int       `json:"option"`
}

func toTemplateSummary(t *models.NovelTemplate) templateSummary {
	return templateSummary{
		ID:          t.ID,
		Title:       t.Title,
		Synopsis:    t.Synopsis,
		TotalScenes: t.TotalScenes,
		CreatedAt:   t.CreatedAt,
	}
}

func toStoryResponse(s *models.StoryInstance) storyResponse {
	return storyResponse{
		ID:                  s.ID,
		TemplateID:          s.TemplateID,
		Title:               s.Title,
		CurrentScene:        s.CurrentScene,
		Status:              s.Status,
		BranchedFromStoryID: s.BranchedFromStoryID,
		BranchedAtScene:     s.BranchedAtScene,
		BranchedOption:      s.BranchedOption,
		CreatedAt:           s.CreatedAt,
	}
}
