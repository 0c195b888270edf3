package middleware

import (
	"net/http"
	"strings"

	"github.com/anonto42/instaverse/backend/internal/auth"
	"github.com/anonto42/instaverse/backend/internal/models"
	"github.com/labstack/echo/v4"
)

const (
	// ActorKey is the echo context key holding the authenticated models.Actor
	ActorKey = "actor"

	AccessCookie = "accessToken"
)

// JWTAuthMiddleware verifies the access token from the Authorization header
// or the accessToken cookie and stores the actor in the context.
func JWTAuthMiddleware(tokens *auth.TokenIssuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenString, err := extractToken(c)
			if err != nil {
				return err
			}

			claims, err := tokens.ParseAccess(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid access token")
			}
			actor, err := claims.Actor()
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid access token")
			}

			c.Set(ActorKey, actor)
			return next(c)
		}
	}
}

func extractToken(c echo.Context) (string, error) {
	if authHeader := c.Request().Header.Get("Authorization"); authHeader != "" {
		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			return "", echo.NewHTTPError(http.StatusUnauthorized, "Invalid Authorization header format")
		}
		return parts[1], nil
	}
	if cookie, err := c.Cookie(AccessCookie); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	return "", echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized request")
}

// ActorFrom returns the actor stored by JWTAuthMiddleware
func ActorFrom(c echo.Context) (models.Actor, bool) {
	actor, ok := c.Get(ActorKey).(models.Actor)
	return actor, ok && !actor.ID.IsZero()
}
