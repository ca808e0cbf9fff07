package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Harness owns the lifecycle of the Postgres test container and pgx pool.
type Harness struct {
	container *PGContainer
	pool      *pgxpool.Pool
	dsn       string
	teardown  func(context.Context) error
}

// NewHarness boots Postgres (or reuses overrideDSN / TEST_DATABASE_URL, or
// a local server when Docker is missing) and applies the embedded migrations
// inside an isolated schema. Connections carry appName as application_name.
func NewHarness(ctx context.Context, overrideDSN, appName string) (*Harness, error) {
	container, dsn, err := StartPostgres16(ctx, overrideDSN)
	if err != nil {
		local, localErr := InitLocalDatabase(ctx)
		if localErr != nil {
			return nil, fmt.Errorf("start postgres: %w (local fallback: %v)", err, localErr)
		}
		container, dsn = &PGContainer{}, local
	}
	if appName != "" {
		dsn = WithApplicationName(dsn, appName)
	}

	pool, teardown, err := ApplyMigrations(ctx, dsn, true)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &Harness{
		container: container,
		pool:      pool,
		dsn:       dsn,
		teardown:  teardown,
	}, nil
}

// Pool exposes the configured pgx pool.
func (h *Harness) Pool() *pgxpool.Pool {
	return h.pool
}

// DSN returns the connection string for direct connections (e.g., chaos).
// It does not carry the isolated search_path.
func (h *Harness) DSN() string {
	return h.dsn
}

// Close tears down resources.
func (h *Harness) Close(ctx context.Context) {
	if h.pool != nil {
		h.pool.Close()
	}
	if h.teardown != nil {
		_ = h.teardown(ctx)
	}
	_ = h.container.Terminate(ctx)
}

// Tables lists the CRM tables children first.
var Tables = []string{"activities", "deals", "contacts", "companies", "users"}

// Reset truncates every CRM table and restarts their id sequences.
func (h *Harness) Reset(ctx context.Context) error {
	sql := "TRUNCATE TABLE " + strings.Join(Tables, ", ") + " RESTART IDENTITY CASCADE"
	if _, err := h.pool.Exec(ctx, sql); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	return nil
}
