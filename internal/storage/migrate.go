package storage

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/sqlite/*.sql migrations/postgres/*.sql
var migrationFiles embed.FS

// migrate applies all pending schema migrations for the dialect.
func migrate(ctx context.Context, db *sql.DB, d dialect) error {
	var gooseDialect goose.Dialect
	switch d {
	case dialectPostgres:
		gooseDialect = goose.DialectPostgres
	default:
		gooseDialect = goose.DialectSQLite3
	}

	fsys, err := fs.Sub(migrationFiles, "migrations/"+d.String())
	if err != nil {
		return fmt.Errorf("failed to open %s migrations: %w", d, err)
	}

	provider, err := goose.NewProvider(gooseDialect, db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Info("Applied schema migration",
			"dialect", d.String(),
			"version", r.Source.Version,
			"duration_ms", r.Duration.Milliseconds(),
		)
	}
	return nil
}
