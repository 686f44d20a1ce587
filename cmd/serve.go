package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/hostmarket/internal/api"
	"github.com/hostmarket/internal/config"
	"github.com/hostmarket/internal/database"
	"github.com/hostmarket/internal/hosting"
	"github.com/hostmarket/internal/jobqueue"
	"github.com/hostmarket/internal/logging"
)

// ServeCommand returns the CLI command for starting the API server
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Hostmarket API server",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port for the API server (overrides config)",
			},
			&cli.BoolFlag{
				Name:  "no-workers",
				Usage: "Skip starting the background job workers",
			},
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	logging.Setup(c.String("log-level"), c.Bool("pretty-logs"))

	cfg, err := config.LoadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if port := c.Int("port"); port != 0 {
		cfg.Server.Port = port
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := database.NewDB()
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	panel := hosting.NewWHMClient(cfg.Panel.URL, cfg.Panel.APIToken, cfg.Panel.Timeout)

	if !c.Bool("no-workers") {
		databaseURL, err := database.URL()
		if err != nil {
			return fmt.Errorf("failed to resolve database URL for job queue: %w", err)
		}

		queue, err := jobqueue.NewJobQueue(databaseURL, panel)
		if err != nil {
			return fmt.Errorf("failed to initialize job queue: %w", err)
		}
		if err := queue.Start(c.Context); err != nil {
			return fmt.Errorf("failed to start job queue: %w", err)
		}

		// Reservations orphaned in pending by a previous crash get
		// re-driven through the worker path.
		if recovered, err := queue.RecoverStalePending(c.Context, 10*time.Minute); err != nil {
			log.Warn().Err(err).Msg("stale reservation recovery failed")
		} else if recovered > 0 {
			log.Info().Int("reservations", recovered).Msg("re-queued stale pending reservations")
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := queue.Stop(ctx); err != nil {
				log.Warn().Err(err).Msg("job queue did not stop cleanly")
			}
		}()
	}

	log.Info().Int("port", cfg.Server.Port).Msg("starting hostmarket API server")
	server := api.NewServer(cfg, db, panel)
	return server.Start()
}
