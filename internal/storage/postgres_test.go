package storage

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func getPostgresDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

// newPostgresTestStorage returns storage over emptied tables; the suite
// assumes every backend starts empty.
func newPostgresTestStorage(t *testing.T) Storage {
	t.Helper()
	dsn := getPostgresDSN(t)
	s, err := NewPostgresStorage(Config{ConnectionString: dsn, MaxOpenConns: 4})
	if err != nil {
		t.Fatalf("failed to create postgres storage: %v", err)
	}
	ps := s.(*PostgresStorage)
	_, err = ps.db.ExecContext(context.Background(), `TRUNCATE proxies, request_logs, error_logs RESTART IDENTITY`)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPostgresStorage(t *testing.T) {
	getPostgresDSN(t)
	runStorageSuite(t, newPostgresTestStorage)
}

func TestPostgresStorageConnectionError(t *testing.T) {
	_, err := NewPostgresStorage(Config{ConnectionString: ""})
	if err == nil {
		t.Error("expected error for empty connection string")
	}
}

func TestPostgresStorageInvalidDSN(t *testing.T) {
	_, err := NewPostgresStorage(Config{ConnectionString: "postgres://invalid:5432/nonexistent?connect_timeout=1"})
	if err == nil {
		t.Error("expected error for invalid DSN")
	}
}
