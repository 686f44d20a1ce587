package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// SessionContextKey is where RequireAuth stores the caller's session.
const SessionContextKey = "session"

// RequireAuth returns echo middleware that validates the Bearer token
// and stores the session on the request context.
func RequireAuth(tokenService *TokenService) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get("Authorization")
			if authHeader == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header required")
			}

			tokenParts := strings.Split(authHeader, " ")
			if len(tokenParts) != 2 || tokenParts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid authorization header format")
			}

			session, err := tokenService.ValidateSessionToken(tokenParts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(SessionContextKey, session)
			return next(c)
		}
	}
}

// SessionFrom extracts the authenticated session from the context.
func SessionFrom(c echo.Context) (*Session, bool) {
	session, ok := c.Get(SessionContextKey).(*Session)
	return session, ok && session != nil
}
