package internal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type storePool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Close()
}

// StoreTables names the tables backing a PostgresStore.
type StoreTables struct {
	Hashes   string
	Lists    string
	Counters string
}

func (t StoreTables) validate() error {
	if t.Hashes == "" {
		return fmt.Errorf("hashes table name cannot be empty")
	}
	if t.Lists == "" {
		return fmt.Errorf("lists table name cannot be empty")
	}
	if t.Counters == "" {
		return fmt.Errorf("counters table name cannot be empty")
	}
	return nil
}

// PostgresStore emulates the hash, list and counter structures on three
// key-addressed tables.
type PostgresStore struct {
	pool     storePool
	hashes   string
	lists    string
	counters string
	timeout  time.Duration
}

// NewPostgresStore wraps pool. timeout bounds each operation when positive.
func NewPostgresStore(pool storePool, tables StoreTables, timeout time.Duration) (*PostgresStore, error) {
	if err := tables.validate(); err != nil {
		return nil, err
	}
	return &PostgresStore{
		pool:     pool,
		hashes:   sanitizeIdentifier(tables.Hashes),
		lists:    sanitizeIdentifier(tables.Lists),
		counters: sanitizeIdentifier(tables.Counters),
		timeout:  timeout,
	}, nil
}

func (s *PostgresStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

// EnsureSchema creates the backing tables if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT NOT NULL,
			field TEXT NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (key, field))`, s.hashes),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT NOT NULL,
			pos INTEGER NOT NULL,
			value TEXT NOT NULL,
			PRIMARY KEY (key, pos))`, s.lists),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			key TEXT PRIMARY KEY,
			value BIGINT NOT NULL)`, s.counters),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	zap.S().Debugw("ensured store schema", "hashes", s.hashes, "lists", s.lists, "counters", s.counters)
	return nil
}

func (s *PostgresStore) HGet(ctx context.Context, key, field string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1 AND field = $2`, s.hashes)
	var value string
	err := s.pool.QueryRow(ctx, query, key, field).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("hget %s %s: %w", key, field, err)
	}
	return value, true, nil
}

func (s *PostgresStore) HSet(ctx context.Context, key string, values map[string]string) error {
	if len(values) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	fields := sortedKeys(values)
	vals := make([]string, len(fields))
	for i, f := range fields {
		vals[i] = values[f]
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (key, field, value)
			SELECT $1, f, v FROM unnest($2::text[], $3::text[]) AS t(f, v)
			ON CONFLICT (key, field) DO UPDATE SET value = EXCLUDED.value`,
		s.hashes,
	)
	if _, err := s.pool.Exec(ctx, query, key, fields, vals); err != nil {
		return fmt.Errorf("hset %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) HDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1 AND field = ANY($2)`, s.hashes)
	if _, err := s.pool.Exec(ctx, query, key, fields); err != nil {
		return fmt.Errorf("hdel %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, key string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(
		`SELECT EXISTS (SELECT 1 FROM %s WHERE key = $1)
			OR EXISTS (SELECT 1 FROM %s WHERE key = $1)
			OR EXISTS (SELECT 1 FROM %s WHERE key = $1)`,
		s.hashes, s.lists, s.counters,
	)
	var exists bool
	if err := s.pool.QueryRow(ctx, query, key).Scan(&exists); err != nil {
		return false, fmt.Errorf("exists %s: %w", key, err)
	}
	return exists, nil
}

func (s *PostgresStore) ListMembers(ctx context.Context, key string) ([]string, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1 ORDER BY pos`, s.lists)
	rows, err := s.pool.Query(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("list members %s: %w", key, err)
	}
	members, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan list members %s: %w", key, err)
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

func (s *PostgresStore) ListReplace(ctx context.Context, key string, members []string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.lists), key); err != nil {
		return fmt.Errorf("clear list %s: %w", key, err)
	}
	if len(members) > 0 {
		query := fmt.Sprintf(
			`INSERT INTO %s (key, pos, value)
				SELECT $1, t.ord - 1, t.v FROM unnest($2::text[]) WITH ORDINALITY AS t(v, ord)`,
			s.lists,
		)
		if _, err := tx.Exec(ctx, query, key, members); err != nil {
			return fmt.Errorf("fill list %s: %w", key, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit list %s: %w", key, err)
	}
	return nil
}

func (s *PostgresStore) Incr(ctx context.Context, key string) (int64, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	query := fmt.Sprintf(
		`INSERT INTO %[1]s (key, value) VALUES ($1, 1)
			ON CONFLICT (key) DO UPDATE SET value = %[1]s.value + 1
			RETURNING value`,
		s.counters,
	)
	var n int64
	if err := s.pool.QueryRow(ctx, query, key).Scan(&n); err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return n, nil
}

func (s *PostgresStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	for _, table := range []string{s.hashes, s.lists, s.counters} {
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ANY($1)`, table), keys); err != nil {
			return fmt.Errorf("delete from %s: %w", table, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit delete: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
