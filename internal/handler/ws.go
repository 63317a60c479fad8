package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the client.
	writeWait = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// streamEvent is one websocket frame of the scene stream: "chunk" frames
// carry incremental prose, the final "complete" frame carries the persisted
// scene, "error" frames terminate a failed stream.
type streamEvent struct {
	Type    string         `json:"type"`
	Content string         `json:"content,omitempty"`
	Scene   *sceneResponse `json:"scene,omitempty"`
	Message string         `json:"message,omitempty"`
}

// streamScene resolves a scene over a websocket, relaying provider output as
// it arrives. Browsers cannot set headers on websocket dials, so the token
// travels in the query string.
func (h *Handler) streamScene(c echo.Context) error {
	tokenString := c.QueryParam("token")
	if tokenString == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
	}
	claims, err := h.verifier.VerifyToken(c.Request().Context(), tokenString)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
	}
	userID := claims.UserID

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

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Warn("Failed to upgrade scene stream connection", zap.Error(err))
		return nil
	}
	defer conn.Close()

	log := h.logger.With(
		zap.String("story_id", storyID.String()),
		zap.Int("scene_number", sceneNumber))
	log.Info("Scene stream started")

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	// Drain the read side solely to notice a client disconnect; a dropped
	// connection cancels generation so nothing partial is persisted.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	writeEvent := func(ev streamEvent) error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev)
	}

	result, err := h.scenes.ResolveSceneStream(ctx, userID, storyID, sceneNumber, func(chunk string) error {
		return writeEvent(streamEvent{Type: "chunk", Content: chunk})
	})
	if err != nil {
		log.Warn("Scene stream failed", zap.Error(err))
		_ = writeEvent(streamEvent{Type: "error", Message: err.Error()})
		return nil
	}

	scene := h.toSceneResponse(c, userID, result)
	if err := writeEvent(streamEvent{Type: "complete", Scene: &scene}); err != nil {
		log.Warn("Failed to deliver final scene frame", zap.Error(err))
		return nil
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	log.Info("Scene stream completed", zap.Bool("was_cached", result.WasCached))
	return nil
}
