package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/storeAuth/session"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ensure Backend satisfies the session.Backend interface at compile time.
var _ session.Backend = (*Backend)(nil)

const defaultTable = "storefront_session_entries"

// Backend stores session entries as rows keyed by (scope, key).
type Backend struct {
	pool  *pgxpool.Pool
	table string
}

// Open creates a pool for databaseURL, pings it, and creates the entries table if needed.
func Open(ctx context.Context, databaseURL string) (*Backend, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	b := New(pool, "")
	if err := b.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// New wraps an existing pool. An empty table name selects the default table.
func New(pool *pgxpool.Pool, table string) *Backend {
	if table == "" {
		table = defaultTable
	}
	return &Backend{pool: pool, table: table}
}

// Close releases the pool.
func (b *Backend) Close() {
	if b.pool != nil {
		b.pool.Close()
	}
}

// Migrate creates the entries table and its index.
func (b *Backend) Migrate(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			scope TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (scope, key)
		);`, b.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_updated_at_idx ON %s (updated_at);`, b.table, b.table),
	}
	for _, stmt := range stmts {
		if _, err := b.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
	}
	return nil
}

func (b *Backend) Read(ctx context.Context, scope string) (map[string]string, error) {
	query := fmt.Sprintf(`SELECT key, value FROM %s WHERE scope = $1`, b.table)

	rows, err := b.pool.Query(ctx, query, scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrBackendUnavailable, err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([2]string, error) {
		var kv [2]string
		err := row.Scan(&kv[0], &kv[1])
		return kv, err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", session.ErrBackendUnavailable, err)
	}

	out := make(map[string]string, len(entries))
	for _, kv := range entries {
		out[kv[0]] = kv[1]
	}
	return out, nil
}

// Write upserts set and deletes remove inside one transaction.
func (b *Backend) Write(ctx context.Context, scope string, set map[string]string, remove []string) error {
	upsert := fmt.Sprintf(`INSERT INTO %s (scope, key, value, updated_at) VALUES ($1, $2, $3, NOW())
		ON CONFLICT (scope, key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, b.table)
	del := fmt.Sprintf(`DELETE FROM %s WHERE scope = $1 AND key = ANY($2)`, b.table)

	err := pgx.BeginFunc(ctx, b.pool, func(tx pgx.Tx) error {
		if len(remove) > 0 {
			if _, err := tx.Exec(ctx, del, scope, remove); err != nil {
				return err
			}
		}
		batch := &pgx.Batch{}
		for key, value := range set {
			batch.Queue(upsert, scope, key, value)
		}
		if batch.Len() == 0 {
			return nil
		}
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		return fmt.Errorf("%w: %v", session.ErrBackendUnavailable, err)
	}
	return nil
}

func (b *Backend) Drop(ctx context.Context, scope string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE scope = $1`, b.table)
	if _, err := b.pool.Exec(ctx, query, scope); err != nil {
		return fmt.Errorf("%w: %v", session.ErrBackendUnavailable, err)
	}
	return nil
}

// Purge deletes every scope whose newest entry is older than maxAge and returns how many rows
// were removed. Postgres has no key expiry, so operators run this periodically.
func (b *Backend) Purge(ctx context.Context, maxAge time.Duration) (int64, error) {
	if maxAge <= 0 {
		return 0, errors.New("purge age must be positive")
	}
	query := fmt.Sprintf(`DELETE FROM %[1]s WHERE scope IN (
		SELECT scope FROM %[1]s GROUP BY scope HAVING MAX(updated_at) < $1
	)`, b.table)

	tag, err := b.pool.Exec(ctx, query, time.Now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", session.ErrBackendUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
