// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"

	"codeberg.org/oliverandrich/accountdesk/internal/config"
	"codeberg.org/oliverandrich/accountdesk/internal/database"
	"codeberg.org/oliverandrich/accountdesk/internal/server"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// Version information (set via ldflags during build)
var Version = "dev"

func main() {
	cmd := &cli.Command{
		Name:    "accountdesk",
		Usage:   "User accounts with email verification and an admin panel",
		Version: Version,
		Flags:   config.Flags(),
		Action:  server.Run,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the web application",
				Action: server.Run,
			},
			{
				Name:   "mail-worker",
				Usage:  "Send verification emails queued on the AMQP broker",
				Action: server.RunMailWorker,
			},
			{
				Name:  "migrate",
				Usage: "Manage the database schema",
				Commands: []*cli.Command{
					{Name: "up", Usage: "Apply all pending migrations", Action: migrate(database.RunMigrations)},
					{Name: "down", Usage: "Roll back the last migration", Action: migrate(database.MigrateDown)},
					{Name: "reset", Usage: "Roll back all migrations", Action: migrate(database.MigrateReset)},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func migrate(step func(*sqlx.DB) error) cli.ActionFunc {
	return func(_ context.Context, cmd *cli.Command) error {
		cfg := config.NewFromCLI(cmd)

		db, err := database.Connect(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer func() { _ = db.Close() }()

		if err := step(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("migration finished", "command", cmd.Name, "dialect", database.DetectDialect(cfg.Database.DSN))
		return nil
	}
}
