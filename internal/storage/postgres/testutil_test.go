package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"crypto-series-engine/internal/storage/migrations"
)

// setupTestDSN starts a TimescaleDB container and returns its DSN. The
// returned cleanup function must be called after tests complete.
func setupTestDSN(t *testing.T) (string, func()) {
	t.Helper()

	ctx := context.Background()

	container, err := postgres.Run(ctx, "timescale/timescaledb:latest-pg15",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start timescaledb container")

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "failed to get connection string")

	return dsn, func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
}

// setupTestDB starts a TimescaleDB container, applies migrations, and
// returns a pool. The returned cleanup function must be called after tests
// complete.
func setupTestDB(t *testing.T) (*Pool, func()) {
	t.Helper()

	ctx := context.Background()
	dsn, stop := setupTestDSN(t)

	pool, err := NewPool(ctx, Config{DSN: dsn, AcquireTimeout: 5 * time.Second})
	require.NoError(t, err, "failed to create pool")

	require.NoError(t, migrations.RunPostgresMigrations(ctx, pool), "failed to apply migrations")

	return pool, func() {
		pool.Close()
		stop()
	}
}

// ptr is a helper to create pointers to values.
func ptr[T any](v T) *T {
	return &v
}
