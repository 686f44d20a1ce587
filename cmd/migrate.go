package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/hostmarket/internal/database"
)

// MigrateCommand returns the database migration command
func MigrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Run database migrations",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "source",
				Usage: "Path to the migrations directory",
				Value: "migrations",
			},
		},
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "Apply all pending migrations",
				Action: func(c *cli.Context) error {
					if err := database.MigrateUp(c.String("source")); err != nil {
						return fmt.Errorf("migration failed: %w", err)
					}
					fmt.Println("Migrations applied")
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "Roll back the most recent migration",
				Action: func(c *cli.Context) error {
					if err := database.MigrateDown(c.String("source")); err != nil {
						return fmt.Errorf("rollback failed: %w", err)
					}
					fmt.Println("Migration rolled back")
					return nil
				},
			},
		},
	}
}
