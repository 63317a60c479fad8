package models

import "errors"

// Application-wide standard errors
var (
	// Common resource/DB errors
	ErrNotFound         = errors.New("resource not found")
	ErrTemplateNotFound = errors.New("novel template not found")
	ErrStoryNotFound    = errors.New("story not found")
	ErrSceneNotFound    = errors.New("scene not found")

	// Authentication/authorization errors
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")

	// Token errors
	ErrTokenInvalid   = errors.New("token is invalid")
	ErrTokenMalformed = errors.New("token is malformed")
	ErrTokenExpired   = errors.New("token has expired")

	// Narrative state errors
	ErrSceneExists       = errors.New("scene already generated for this position")
	ErrChoiceAlreadyMade = errors.New("choice already recorded for this choice point")
	ErrBranchExists      = errors.New("branch already exists for this fork")

	// General request/server errors
	ErrInternalServer = errors.New("internal server error")
	ErrInvalidInput   = errors.New("invalid input data")
)
