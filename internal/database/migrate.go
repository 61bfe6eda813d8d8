// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package database

import (
	"embed"

	"github.com/pressly/goose/v3"
	"github.com/vinovest/sqlx"
)

//go:embed migrations
var embedMigrations embed.FS

// gooseSetup points goose at the embedded migrations for the connection's
// dialect and returns the directory to run.
func gooseSetup(db *sqlx.DB) (string, error) {
	goose.SetBaseFS(embedMigrations)

	if db.DriverName() == "pgx" {
		if err := goose.SetDialect("postgres"); err != nil {
			return "", err
		}
		return "migrations/postgres", nil
	}

	if err := goose.SetDialect("sqlite3"); err != nil {
		return "", err
	}
	return "migrations/sqlite", nil
}

// RunMigrations runs all pending goose migrations.
func RunMigrations(db *sqlx.DB) error {
	dir, err := gooseSetup(db)
	if err != nil {
		return err
	}
	return goose.Up(db.DB, dir)
}

// MigrateDown rolls back the last migration.
func MigrateDown(db *sqlx.DB) error {
	dir, err := gooseSetup(db)
	if err != nil {
		return err
	}
	return goose.Down(db.DB, dir)
}

// MigrateReset rolls back all migrations.
func MigrateReset(db *sqlx.DB) error {
	dir, err := gooseSetup(db)
	if err != nil {
		return err
	}
	return goose.Reset(db.DB, dir)
}
