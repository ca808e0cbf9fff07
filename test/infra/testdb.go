package infra

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	sharedOnce sync.Once
	sharedDSN  string
	sharedErr  error
)

// sharedDatabase resolves one database per test binary: TEST_DATABASE_URL,
// then a container, then a local server. The container is reaped by
// testcontainers when the process exits.
func sharedDatabase(ctx context.Context) (string, error) {
	sharedOnce.Do(func() {
		_, dsn, err := StartPostgres16(ctx, "")
		if err == nil {
			sharedDSN = dsn
			return
		}
		if local, localErr := InitLocalDatabase(ctx); localErr == nil {
			sharedDSN = local
			return
		}
		sharedErr = err
	})
	return sharedDSN, sharedErr
}

// OpenTestPool returns a pool on a freshly migrated, isolated schema. The
// test is skipped when no database can be reached.
func OpenTestPool(t testing.TB) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dsn, err := sharedDatabase(ctx)
	if err != nil {
		t.Skipf("no test database available: %v", err)
	}

	pool, teardown, err := ApplyMigrations(ctx, dsn, true)
	if err != nil {
		t.Fatalf("prepare test schema: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		_ = teardown(context.Background())
	})
	return pool
}
