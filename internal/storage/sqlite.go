package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// defaultSQLitePragmas are appended to DSNs that set no pragmas of their own.
const defaultSQLitePragmas = "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"

// NewSQLiteStorage opens (creating if needed) a SQLite database and applies
// the schema migrations.
func NewSQLiteStorage(config Config) (Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", sqliteDSN(config.ConnectionString))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY
	// between the request log writer and API handlers.
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrate(ctx, db, dialectSQLite); err != nil {
		db.Close()
		return nil, err
	}

	return &sqlStorage{db: db, dialect: dialectSQLite}, nil
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&" + defaultSQLitePragmas
	}
	return dsn + "?" + defaultSQLitePragmas
}
