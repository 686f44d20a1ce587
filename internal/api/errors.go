package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/hostmarket/internal/hosterrors"
)

// writeDomainError maps domain errors onto HTTP responses. Anything
// unrecognized becomes a generic 500 so internals never leak to the
// client.
func writeDomainError(c echo.Context, err error) error {
	var validationErr hosterrors.ValidationError
	if errors.As(err, &validationErr) {
		return c.JSON(http.StatusBadRequest, map[string]interface{}{
			"error": validationErr.Error(),
			"field": validationErr.Field,
		})
	}

	var limitErr hosterrors.LimitExceededError
	if errors.As(err, &limitErr) {
		return c.JSON(http.StatusForbidden, map[string]interface{}{
			"error":   limitErr.Error(),
			"current": limitErr.Current,
			"max":     limitErr.Max,
		})
	}

	var conflictErr hosterrors.ConflictError
	if errors.As(err, &conflictErr) {
		return c.JSON(http.StatusConflict, map[string]interface{}{
			"error": conflictErr.Error(),
		})
	}

	if errors.Is(err, hosterrors.ErrNotFound) {
		return c.JSON(http.StatusNotFound, map[string]interface{}{
			"error": "not found",
		})
	}

	var upstreamErr hosterrors.UpstreamUnavailableError
	if errors.As(err, &upstreamErr) {
		return c.JSON(http.StatusBadGateway, map[string]interface{}{
			"error":     "hosting panel unavailable, please retry",
			"retryable": upstreamErr.Retryable,
		})
	}

	log.Error().Err(err).Str("path", c.Path()).Msg("unhandled error in request")
	return c.JSON(http.StatusInternalServerError, map[string]interface{}{
		"error": "internal server error",
	})
}
