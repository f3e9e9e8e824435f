package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// PostgresStorage runs the shared SQL implementation over a pgx connection
// pool. The pool is exposed to database/sql through pgx's stdlib adapter so
// goose and the query code see a plain *sql.DB.
type PostgresStorage struct {
	*sqlStorage
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgreSQL storage instance and applies
// the schema migrations.
func NewPostgresStorage(config Config) (Storage, error) {
	if config.ConnectionString == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolConfig, err := pgxpool.ParseConfig(config.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if config.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(config.MaxOpenConns)
	}
	if config.MaxIdleConns > 0 {
		poolConfig.MinConns = int32(min(config.MaxIdleConns, int(poolConfig.MaxConns)))
	}
	if config.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = config.ConnMaxLifetime
	}
	if config.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = config.ConnMaxIdleTime
	}

	ctx := context.Background()
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := migrate(ctx, db, dialectPostgres); err != nil {
		db.Close()
		pool.Close()
		return nil, err
	}

	return &PostgresStorage{
		sqlStorage: &sqlStorage{db: db, dialect: dialectPostgres},
		pool:       pool,
	}, nil
}

// Ping checks the pool directly rather than through database/sql.
func (ps *PostgresStorage) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

// Close closes the database/sql handle and then the underlying pool.
func (ps *PostgresStorage) Close() error {
	err := ps.sqlStorage.Close()
	ps.pool.Close()
	return err
}
