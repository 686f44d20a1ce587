// Package api exposes the HTTP surface: anonymous registration,
// account recovery, login, device-limit checks, and hosting account
// management for authenticated users.
package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/hostmarket/internal/accounts"
	"github.com/hostmarket/internal/api/auth"
	"github.com/hostmarket/internal/config"
	"github.com/hostmarket/internal/fingerprint"
	"github.com/hostmarket/internal/hosting"
	"github.com/hostmarket/internal/limits"
)

// Server represents the API server
type Server struct {
	echo *echo.Echo
	db   *sql.DB
	port int

	fingerprints *fingerprint.Store
	ipLookup     *fingerprint.IPLookupClient
	evaluator    *limits.Evaluator
	issuer       *accounts.Issuer
	recovery     *accounts.RecoveryService
	provisioner  *hosting.Provisioner
	tokens       *auth.TokenService
}

// NewServer creates a new API server wired to the given database and
// panel client. The JWT signing secret comes from the JWT_SECRET
// environment variable.
func NewServer(cfg *config.Config, db *sql.DB, panel hosting.PanelClient) *Server {
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	evaluator := limits.NewEvaluator(db)
	evaluator.DefaultMaxDevices = cfg.Limits.MaxDevices
	evaluator.DefaultMaxHostingAccounts = cfg.Limits.MaxHostingAccounts

	issuer := accounts.NewIssuer(db)
	issuer.DefaultMaxDevices = cfg.Limits.MaxDevices

	provisioner := hosting.NewProvisioner(db, panel, evaluator, cfg.Hosting.BaseDomain)
	provisioner.DefaultDiskLimitMB = cfg.Quotas.DiskLimitMB
	provisioner.DefaultBandwidthLimitMB = cfg.Quotas.BandwidthLimitMB

	// Best-effort public IP enrichment for fingerprints that arrive
	// without an IP signal. An empty URL disables the lookup.
	var ipLookup *fingerprint.IPLookupClient
	if cfg.Fingerprint.IPLookupURL != "" {
		ipLookup = fingerprint.NewIPLookupClient(cfg.Fingerprint.IPLookupURL, cfg.Fingerprint.IPLookupTimeout)
	}

	server := &Server{
		echo:         e,
		db:           db,
		port:         cfg.Server.Port,
		fingerprints: fingerprint.NewStore(db),
		ipLookup:     ipLookup,
		evaluator:    evaluator,
		issuer:       issuer,
		recovery:     accounts.NewRecoveryService(db),
		provisioner:  provisioner,
		tokens:       auth.NewTokenService(db, os.Getenv("JWT_SECRET")),
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all API endpoints
func (s *Server) setupRoutes() {
	// Health check endpoint
	s.echo.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})

	api := s.echo.Group("/api")

	// Public endpoints. Registration is rate limited per client IP to
	// slow down scripted farming of anonymous accounts.
	api.POST("/device-fingerprint", s.recordDeviceFingerprint)
	api.POST("/check-device-limits", s.checkDeviceLimits)
	api.POST("/register-anonymous", s.registerAnonymous, PerIPRateLimit(rate.Every(10*time.Second), 3))
	api.POST("/recover-account", s.recoverAccount, PerIPRateLimit(rate.Every(5*time.Second), 5))
	api.POST("/login", s.login)

	// Authenticated endpoints
	user := api.Group("/user", auth.RequireAuth(s.tokens))
	user.GET("/can-create-hosting-account", s.canCreateHostingAccount)
	user.GET("/group-limits", s.getGroupLimits)
	user.GET("/hosting-accounts", s.listHostingAccounts)
	user.POST("/hosting-accounts", s.createHostingAccount)
}

// Start begins the API server and blocks until an interrupt arrives,
// then shuts down gracefully.
func (s *Server) Start() error {
	go func() {
		if err := s.echo.Start(fmt.Sprintf(":%d", s.port)); err != nil && err != http.ErrServerClosed {
			s.echo.Logger.Fatal("shutting down the server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return s.echo.Shutdown(ctx)
}
