// Package middleware provides HTTP middleware for the webhook API
package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/davidh/jarvis/internal/auth"
)

// ContextKey type for context values
type ContextKey string

const (
	// SourceKey is the context key for the authenticated webhook source
	SourceKey ContextKey = "source"
)

// JWTAuth creates middleware that validates JWT bearer tokens
func JWTAuth(tokenConfig *auth.TokenConfig) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization header format")
			}

			claims, err := auth.ValidateToken(parts[1], tokenConfig)
			if err != nil {
				if err == auth.ErrExpiredToken {
					return echo.NewHTTPError(http.StatusUnauthorized, "token expired")
				}
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}

			c.Set(string(SourceKey), claims.Source)

			return next(c)
		}
	}
}

// GetSource retrieves the authenticated webhook source from context
func GetSource(c echo.Context) string {
	if source, ok := c.Get(string(SourceKey)).(string); ok {
		return source
	}
	return ""
}
