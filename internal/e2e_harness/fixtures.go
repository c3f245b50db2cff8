package e2e_harness

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// CountKeyRows counts the rows stored under key in table, read through the
// database/sql handle so assertions do not depend on the store under test.
func CountKeyRows(ctx context.Context, db *sql.DB, table, key string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE key = $1`, pgx.Identifier{table}.Sanitize())
	var n int
	if err := db.QueryRowContext(ctx, query, key).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}
	return n, nil
}

// HashField reads one stored hash field directly.
func HashField(ctx context.Context, db *sql.DB, table, key, field string) (string, error) {
	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1 AND field = $2`, pgx.Identifier{table}.Sanitize())
	var v string
	if err := db.QueryRowContext(ctx, query, key, field).Scan(&v); err != nil {
		return "", fmt.Errorf("read %s.%s: %w", key, field, err)
	}
	return v, nil
}
