package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hostmarket/internal/api/auth"
	"github.com/hostmarket/internal/hosterrors"
)

// canCreateHostingAccount reports whether the caller may provision
// another hosting account under their current limits.
func (s *Server) canCreateHostingAccount(c echo.Context) error {
	session, ok := auth.SessionFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "session required")
	}

	check := s.evaluator.CanCreateHostingAccount(c.Request().Context(), session.AccountID)
	return c.JSON(http.StatusOK, check)
}

// getGroupLimits returns the caller's effective limits and current
// usage counts in one payload.
func (s *Server) getGroupLimits(c echo.Context) error {
	session, ok := auth.SessionFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "session required")
	}

	limits := s.evaluator.GroupLimits(c.Request().Context(), session.AccountID)
	return c.JSON(http.StatusOK, limits)
}

// createHostingAccount claims a subdomain and provisions it against the
// panel. A panel outage still reserves nothing: the domain is released
// and the client gets a retryable 502.
func (s *Server) createHostingAccount(c echo.Context) error {
	session, ok := auth.SessionFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "session required")
	}

	var req struct {
		Subdomain string `json:"subdomain"`
	}
	if err := c.Bind(&req); err != nil {
		return writeDomainError(c, hosterrors.ValidationError{Field: "body", Reason: "invalid JSON"})
	}

	account, err := s.provisioner.CreateHostingAccount(c.Request().Context(), session.AccountID, req.Subdomain)
	if err != nil {
		return writeDomainError(c, err)
	}

	return c.JSON(http.StatusCreated, account)
}

// listHostingAccounts returns every hosting account owned by the caller.
func (s *Server) listHostingAccounts(c echo.Context) error {
	session, ok := auth.SessionFrom(c)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "session required")
	}

	accounts, err := s.provisioner.ListForUser(c.Request().Context(), session.AccountID)
	if err != nil {
		return writeDomainError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"accounts": accounts,
	})
}
