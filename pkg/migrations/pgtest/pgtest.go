// Package pgtest starts a disposable Postgres container with the schema applied.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/tendant/simple-secure/pkg/migrations"
)

// Setup returns a migrated pool. The test is skipped in short mode or when
// no container runtime is reachable.
func Setup(t *testing.T) *pgxpool.Pool {
	t.Helper()
	connString := Start(t)

	ctx := context.Background()
	poolConfig, err := pgxpool.ParseConfig(connString)
	require.NoError(t, err)
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, migrations.UpPool(ctx, pool))
	return pool
}

// Start runs an empty Postgres container and returns its connection string.
// Nothing is migrated. Skips like Setup.
func Start(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping PostgreSQL test in short mode")
	}
	if !DockerAvailable() {
		t.Skip("Skipping PostgreSQL test: no Docker host available")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("secure_db"),
		postgres.WithUsername("secure"),
		postgres.WithPassword("pwd"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	connString, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	return connString
}

// DockerAvailable reports whether a Docker daemon answers a ping.
// testcontainers panics while resolving the host when none is configured,
// so the panic is treated as unavailable.
func DockerAvailable() (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cli, err := testcontainers.NewDockerClientWithOpts(ctx)
	if err != nil {
		return false
	}
	defer cli.Close()
	_, err = cli.Ping(ctx)
	return err == nil
}
