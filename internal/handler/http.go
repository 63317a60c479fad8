package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"storyforge/internal/ai"
	"storyforge/internal/auth"
	"storyforge/internal/models"
	"storyforge/internal/service"
)

// Handler wires the narrative engine services to the echo router.
type Handler struct {
	templates service.TemplateService
	stories   service.StoryService
	scenes    service.SceneService
	choices   service.ChoiceService
	branches  service.BranchService
	progress  service.ProgressService
	verifier  *auth.JWTVerifier
	logger    *zap.Logger
}

// NewHandler creates the HTTP handler.
func NewHandler(
	templates service.TemplateService,
	stories service.StoryService,
	scenes service.SceneService,
	choices service.ChoiceService,
	branches service.BranchService,
	progress service.ProgressService,
	verifier *auth.JWTVerifier,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		templates: templates,
		stories:   stories,
		scenes:    scenes,
		choices:   choices,
		branches:  branches,
		progress:  progress,
		verifier:  verifier,
		logger:    logger.Named("Handler"),
	}
}

// RegisterRoutes attaches all API routes to the echo instance.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	authMW := auth.Middleware(h.verifier.VerifyToken, h.logger)

	api := e.Group("/api", authMW)

	templatesGroup := api.Group("/templates")
	{
		templatesGroup.GET("", h.listTemplates)
		templatesGroup.GET("/:id", h.getTemplate)
		templatesGroup.POST("/:id/start", h.startStory)
	}

	storiesGroup := api.Group("/stories")
	{
		storiesGroup.GET("", h.listStories)
		storiesGroup.GET("/:id", h.getStory)
		storiesGroup.DELETE("/:id", h.deleteStory)
		storiesGroup.GET("/:id/scene", h.getScene)
		storiesGroup.POST("/:id/choice", h.recordChoice)
		storiesGroup.POST("/:id/progress", h.advanceProgress)
		storiesGroup.GET("/:id/branch", h.findBranch)
		storiesGroup.POST("/:id/branch", h.branchStory)
	}

	// The websocket stream authenticates via query-string token, so it sits
	// outside the bearer-token group.
	e.GET("/api/stories/:id/scene/stream", h.streamScene)
}

// handleServiceError maps sentinel errors to HTTP responses.
func handleServiceError(c echo.Context, err error) error {
	var statusCode int
	var apiErr APIError

	switch {
	case errors.Is(err, models.ErrUnauthorized):
		statusCode = http.StatusUnauthorized
		apiErr = APIError{Message: "Unauthorized"}
	case errors.Is(err, models.ErrForbidden):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: "Resource not found or access denied"}
	case errors.Is(err, models.ErrTemplateNotFound),
		errors.Is(err, models.ErrStoryNotFound),
		errors.Is(err, models.ErrSceneNotFound),
		errors.Is(err, models.ErrNotFound):
		statusCode = http.StatusNotFound
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, models.ErrChoiceAlreadyMade),
		errors.Is(err, models.ErrBranchExists),
		errors.Is(err, service.ErrSameChoiceBranch):
		statusCode = http.StatusConflict
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, service.ErrSceneOutOfRange),
		errors.Is(err, service.ErrStoryCompleted),
		errors.Is(err, service.ErrInvalidOptionIndex),
		errors.Is(err, service.ErrChoicePointNotInTemplate),
		errors.Is(err, service.ErrChoicePointNotAtScene),
		errors.Is(err, service.ErrProgressRewind),
		errors.Is(err, models.ErrInvalidInput):
		statusCode = http.StatusBadRequest
		apiErr = APIError{Message: err.Error()}
	case errors.Is(err, ai.ErrGenerationFailed),
		errors.Is(err, service.ErrContentRejected):
		statusCode = http.StatusBadGateway
		apiErr = APIError{Message: "Scene generation failed, please retry"}
	default:
		statusCode = http.StatusInternalServerError
		apiErr = APIError{Message: "Internal server error"}
	}
	return c.JSON(statusCode, apiErr)
}

func getUserIDFromContext(c echo.Context) (uuid.UUID, error) {
	userID, ok := models.UserIDFromContext(c.Request().Context())
	if !ok {
		return uuid.Nil, models.ErrUnauthorized
	}
	return userID, nil
}

func parseIDParam(c echo.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, echo.NewHTTPError(http.StatusBadRequest, "invalid "+name+" format")
	}
	return id, nil
}

// --- Templates ---

func (h *Handler) listTemplates(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	templates, err := h.templates.ListTemplates(c.Request().Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list templates", zap.Error(err))
		return handleServiceError(c, err)
	}

	out := make([]templateSummary, 0, len(templates))
	for _, t := range templates {
		out = append(out, toTemplateSummary(t))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) getTemplate(c echo.Context) error {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	tmpl, err := h.templates.GetTemplate(c.Request().Context(), id)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, templateDetail{
		templateSummary: toTemplateSummary(tmpl),
		ChoicePoints:    tmpl.ChoicePoints,
	})
}

// --- Stories ---

func (h *Handler) startStory(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	templateID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	story, err := h.stories.StartStory(c.Request().Context(), userID, templateID)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toStoryResponse(story))
}

func (h *Handler) listStories(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	stories, err := h.stories.ListStories(c.Request().Context(), userID, limit, offset)
	if err != nil {
		return handleServiceError(c, err)
	}
	out := make([]storyResponse, 0, len(stories))
	for _, s := range stories {
		out = append(out, toStoryResponse(s))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handler) getStory(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	storyID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	story, err := h.stories.GetStory(c.Request().Context(), userID, storyID)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, toStoryResponse(story))
}

func (h *Handler) deleteStory(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	storyID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	if err := h.stories.DeleteStory(c.Request().Context(), userID, storyID); err != nil {
		return handleServiceError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// --- Scenes ---

// resolveSceneNumber reads the scene query parameter, defaulting to the
// story's current position.
func (h *Handler) resolveSceneNumber(c echo.Context, userID, storyID uuid.UUID) (int, error) {
	if raw := c.QueryParam("scene"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid scene parameter")
		}
		return n, nil
	}
	story, err := h.stories.GetStory(c.Request().Context(), userID, storyID)
	if err != nil {
		return 0, err
	}
	return story.CurrentScene, nil
}

func (h *Handler) getScene(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	storyID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}
	sceneNumber, err := h.resolveSceneNumber(c, userID, storyID)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return err
		}
		return handleServiceError(c, err)
	}

	result, err := h.scenes.ResolveScene(c.Request().Context(), userID, storyID, sceneNumber)
	if err != nil {
		if !errors.Is(err, service.ErrSceneOutOfRange) && !errors.Is(err, models.ErrSceneNotFound) {
			h.logger.Error("Failed to resolve scene",
				zap.String("story_id", storyID.String()),
				zap.Int("scene_number", sceneNumber),
				zap.Error(err))
		}
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, h.toSceneResponse(c, userID, result))
}

// toSceneResponse attaches the enclosing story summary and the choice point
// closing this scene, if any.
func (h *Handler) toSceneResponse(c echo.Context, userID uuid.UUID, result *service.SceneResult) sceneResponse {
	resp := sceneResponse{
		StoryID:     result.Scene.StoryID,
		SceneNumber: result.Scene.SceneNumber,
		Content:     result.Scene.Content,
		WordCount:   result.Scene.WordCount,
		WasCached:   result.WasCached,
	}
	story, err := h.stories.GetStory(c.Request().Context(), userID, result.Scene.StoryID)
	if err != nil {
		return resp
	}
	summary := toStoryResponse(story)
	resp.Story = &summary
	tmpl, err := h.templates.GetTemplate(c.Request().Context(), story.TemplateID)
	if err != nil {
		return resp
	}
	if cp, ok := tmpl.ChoicePointAtScene(result.Scene.SceneNumber); ok {
		resp.ChoicePoint = cp
	}
	return resp
}

// --- Choices & progress ---

func (h *Handler) recordChoice(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	storyID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req recordChoiceRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}
	if req.ChoicePointID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "choicePointId is required"})
	}

	result, err := h.choices.RecordChoice(c.Request().Context(), userID, storyID, req.ChoicePointID, req.SelectedOption)
	if err != nil {
		return handleServiceError(c, err)
	}

	// The choice is durable at this point. A failed advance is logged but
	// does not undo it; the client can retry via the progress endpoint.
	completed, err := h.progress.Advance(c.Request().Context(), userID, storyID, result.NextScene)
	if err != nil {
		h.logger.Warn("Failed to advance progress after recording choice",
			zap.String("story_id", storyID.String()),
			zap.Int("next_scene", result.NextScene),
			zap.Error(err))
	}

	return c.JSON(http.StatusCreated, recordChoiceResponse{
		ChoiceID:  result.Choice.ID,
		NextScene: result.NextScene,
		Completed: completed,
	})
}

func (h *Handler) advanceProgress(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	storyID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req advanceProgressRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}
	if req.CurrentScene < 1 {
		return c.JSON(http.StatusBadRequest, APIError{Message: "currentScene must be >= 1"})
	}

	completed, err := h.progress.Advance(c.Request().Context(), userID, storyID, req.CurrentScene)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusOK, advanceProgressResponse{
		CurrentScene: req.CurrentScene,
		Completed:    completed,
	})
}

// --- Branches ---

func (h *Handler) findBranch(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	parentID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	scene, err := strconv.Atoi(c.QueryParam("scene"))
	if err != nil || scene < 1 {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid scene parameter"})
	}
	choicePointID, err := uuid.Parse(c.QueryParam("choice_point_id"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid choice_point_id parameter"})
	}
	option, err := strconv.Atoi(c.QueryParam("option"))
	if err != nil || option < 0 {
		return c.JSON(http.StatusBadRequest, APIError{Message: "invalid option parameter"})
	}

	branch, err := h.branches.FindExistingBranch(c.Request().Context(), userID, parentID, scene, choicePointID, option)
	if err != nil {
		return handleServiceError(c, err)
	}
	if branch == nil {
		return c.JSON(http.StatusOK, map[string]any{"exists": false})
	}
	return c.JSON(http.StatusOK, map[string]any{"exists": true, "branch": toStoryResponse(branch)})
}

func (h *Handler) branchStory(c echo.Context) error {
	userID, err := getUserIDFromContext(c)
	if err != nil {
		return handleServiceError(c, err)
	}
	parentID, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	var req branchRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "Invalid request body: " + err.Error()})
	}
	if req.BranchAtScene < 1 || req.ChoicePointID == uuid.Nil {
		return c.JSON(http.StatusBadRequest, APIError{Message: "branchAtScene and choicePointId are required"})
	}

	branch, err := h.branches.BranchStory(c.Request().Context(), userID, parentID, req.BranchAtScene, req.ChoicePointID, req.Option)
	if err != nil {
		return handleServiceError(c, err)
	}
	return c.JSON(http.StatusCreated, toStoryResponse(branch))
}
