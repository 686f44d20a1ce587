package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/hostmarket/internal/fingerprint"
	"github.com/hostmarket/internal/hosterrors"
	"github.com/hostmarket/pkg/models"
)

// recordDeviceFingerprint accepts a signal set from the client, derives
// the hash server-side, and upserts the fingerprint row. The client may
// send its own hash but the server-derived one is authoritative. When
// the client omits the IP signal the configured lookup fills it in
// best-effort before hashing.
func (s *Server) recordDeviceFingerprint(c echo.Context) error {
	var fp models.DeviceFingerprint
	if err := c.Bind(&fp); err != nil {
		return writeDomainError(c, hosterrors.ValidationError{Field: "body", Reason: "invalid JSON"})
	}

	if fp.Signals.UserAgent == "" {
		return writeDomainError(c, hosterrors.ValidationError{Field: "signals.userAgent", Reason: "must not be empty"})
	}

	derived := fingerprint.NewGenerator(fp.Signals, s.ipLookup).Generate(c.Request().Context())
	if fp.Hash != "" && fp.Hash != derived.Hash {
		log.Debug().Msg("client fingerprint hash did not match server derivation")
	}
	fp = derived

	if err := s.fingerprints.Record(c.Request().Context(), fp); err != nil {
		return writeDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"fingerprintHash": fp.Hash,
	})
}

// checkDeviceLimits reports whether another anonymous account can be
// registered from the given fingerprint.
func (s *Server) checkDeviceLimits(c echo.Context) error {
	var req struct {
		FingerprintHash string `json:"fingerprintHash"`
	}
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, hosterrors.ValidationError{Field: "body", Reason: "invalid JSON"})
	}
	if req.FingerprintHash == "" {
		return writeDomainError(c, hosterrors.ValidationError{Field: "fingerprintHash", Reason: "must not be empty"})
	}

	check := s.evaluator.CanRegisterAccount(c.Request().Context(), req.FingerprintHash)
	return c.JSON(http.StatusOK, check)
}
