// Package postgres persists API keys and audit events in PostgreSQL
// via pgx connection pools.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is the subset of pgxpool.Pool the stores need. Kept narrow
// so tests can substitute a fake without a running database.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Compile-time check that the pool satisfies Querier.
var _ Querier = (*pgxpool.Pool)(nil)

// Connect opens a connection pool and verifies it with a ping.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return pool, nil
}

// schemaStatements create the persistence schema. Each statement is
// idempotent so EnsureSchema can run on every boot.
var schemaStatements = []string{
	`
	CREATE TABLE IF NOT EXISTS api_keys (
		id uuid PRIMARY KEY,
		key_hash text NOT NULL UNIQUE,
		role text NOT NULL,
		created_at timestamptz NOT NULL DEFAULT NOW(),
		revoked_at timestamptz
	);
	`,
	`
	CREATE TABLE IF NOT EXISTS audit_events (
		id uuid PRIMARY KEY,
		ts timestamptz NOT NULL DEFAULT NOW(),
		api_key_id uuid REFERENCES api_keys(id) ON DELETE SET NULL,
		role text NOT NULL DEFAULT 'unknown',
		method text NOT NULL,
		tool_name text NOT NULL,
		request_json jsonb NOT NULL DEFAULT '{}'::jsonb,
		response_json jsonb NOT NULL DEFAULT '{}'::jsonb,
		decision jsonb NOT NULL DEFAULT '{}'::jsonb,
		status_code integer NOT NULL,
		latency_ms integer NOT NULL CHECK (latency_ms >= 0)
	);
	`,
	// Upgrade path for rows created before these columns existed.
	`
	ALTER TABLE audit_events
	ADD COLUMN IF NOT EXISTS role text NOT NULL DEFAULT 'unknown';
	`,
	`
	ALTER TABLE audit_events
	ADD COLUMN IF NOT EXISTS decision jsonb NOT NULL DEFAULT '{}'::jsonb;
	`,
}

// EnsureSchema applies the schema statements in order.
func EnsureSchema(ctx context.Context, db Querier) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
