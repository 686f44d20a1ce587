package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/hostmarket/internal/accounts"
	"github.com/hostmarket/internal/hosterrors"
)

// registerAnonymous creates a new anonymous account for the given
// fingerprint. The generated password and recovery phrase appear in
// this response exactly once; only hashes are stored.
func (s *Server) registerAnonymous(c echo.Context) error {
	var req struct {
		FingerprintHash string `json:"fingerprintHash"`
	}
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, hosterrors.ValidationError{Field: "body", Reason: "invalid JSON"})
	}

	creds, err := s.issuer.IssueAnonymousAccount(c.Request().Context(), req.FingerprintHash)
	if err != nil {
		return writeDomainError(c, err)
	}

	resp := struct {
		*accounts.IssuedCredentials
		Token     string     `json:"token,omitempty"`
		ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	}{IssuedCredentials: creds}

	token, expiresAt, err := s.tokens.CreateSessionToken(
		creds.AccountID, creds.Role, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		// The account exists and the credentials are already generated,
		// so hand them back even when the session could not be opened.
		// The client can log in with the password instead.
		log.Error().Err(err).Int64("account_id", creds.AccountID).Msg("failed to create session after registration")
		return c.JSON(http.StatusOK, resp)
	}

	resp.Token = token
	resp.ExpiresAt = &expiresAt
	return c.JSON(http.StatusOK, resp)
}

// recoverAccount resets the password for the account matching the
// supplied recovery phrase and revokes its open sessions.
func (s *Server) recoverAccount(c echo.Context) error {
	var req struct {
		RecoveryPhrase string `json:"recoveryPhrase"`
	}
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, hosterrors.ValidationError{Field: "body", Reason: "invalid JSON"})
	}

	recovered, err := s.recovery.Recover(c.Request().Context(), req.RecoveryPhrase)
	if err != nil {
		return writeDomainError(c, err)
	}

	if err := s.tokens.RevokeSessionsFor(recovered.AccountID); err != nil {
		log.Warn().Err(err).Int64("account_id", recovered.AccountID).Msg("failed to revoke sessions after recovery")
	}

	return c.JSON(http.StatusOK, recovered)
}

// login exchanges a username/password pair for a session token.
// Failures are uniform 401s regardless of which part was wrong.
func (s *Server) login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, hosterrors.ValidationError{Field: "body", Reason: "invalid JSON"})
	}

	accountID, role, err := s.recovery.Authenticate(c.Request().Context(), req.Username, req.Password)
	if err != nil {
		if hosterrors.IsValidation(err) {
			return writeDomainError(c, err)
		}
		return c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error": "invalid username or password",
		})
	}

	token, expiresAt, err := s.tokens.CreateSessionToken(
		accountID, role, c.Request().UserAgent(), c.RealIP())
	if err != nil {
		return writeDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"token":     token,
		"expiresAt": expiresAt,
		"role":      role,
	})
}
