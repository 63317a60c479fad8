package models

import (
	"context"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type contextKey string

// UserContextKey is the request-context key holding the authenticated user's
// ID as uuid.UUID.
const UserContextKey contextKey = "userID"

// Claims are the JWT claims this service consumes. Tokens are issued
// elsewhere; we only verify and read them.
type Claims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// UserIDFromContext extracts the authenticated user ID set by the auth
// middleware.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}
