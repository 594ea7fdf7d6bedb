package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrations exposes the embedded SQL files rooted at the migrations folder.
func Migrations() (fs.FS, error) {
	return fs.Sub(migrationFiles, "migrations")
}

// RunMigrations applies every pending embedded migration. goose records
// applied versions in its own goose_db_version table.
func RunMigrations(ctx context.Context, database *sql.DB) error {
	migrations, err := Migrations()
	if err != nil {
		return fmt.Errorf("open embedded migrations: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := gooseUpContext(ctx, database, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
