package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"storyforge/internal/models"
)

// TokenVerifier verifies a raw token string and returns its claims.
type TokenVerifier func(ctx context.Context, tokenString string) (*models.Claims, error)

// Middleware returns an echo middleware that requires a valid bearer token
// and places the user ID into the request context.
func Middleware(verifier TokenVerifier, logger *zap.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			log := logger.With(zap.String("path", c.Request().URL.Path))

			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				log.Warn("Authorization header missing")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				log.Warn("Malformed Authorization header")
				return echo.NewHTTPError(http.StatusUnauthorized, "malformed token header")
			}

			claims, err := verifier(c.Request().Context(), parts[1])
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, models.ErrTokenExpired) {
					msg = "token expired"
				}
				log.Warn("Token verification failed", zap.Error(err))
				return echo.NewHTTPError(http.StatusUnauthorized, msg)
			}

			ctx := context.WithValue(c.Request().Context(), models.UserContextKey, claims.UserID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
