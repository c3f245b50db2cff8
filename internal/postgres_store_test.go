package internal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTables = StoreTables{Hashes: "kv_hashes", Lists: "kv_lists", Counters: "kv_counters"}

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	mock.MatchExpectationsInOrder(true)

	store, err := NewPostgresStore(mock, testTables, time.Second)
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return store, mock
}

func TestNewPostgresStoreRequiresTables(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	tests := []struct {
		name   string
		tables StoreTables
	}{
		{name: "missing hashes", tables: StoreTables{Lists: "l", Counters: "c"}},
		{name: "missing lists", tables: StoreTables{Hashes: "h", Counters: "c"}},
		{name: "missing counters", tables: StoreTables{Hashes: "h", Lists: "l"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPostgresStore(mock, tt.tables, 0)
			assert.Error(t, err)
		})
	}
}

func TestPostgresStoreEnsureSchema(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "kv_hashes"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "kv_lists"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS "kv_counters"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
}

func TestPostgresStoreHGet(t *testing.T) {
	ctx := context.Background()
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM "kv_hashes" WHERE key = \$1 AND field = \$2`).
		WithArgs("Person:1", "name").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("ann"))
	mock.ExpectQuery(`SELECT value FROM "kv_hashes"`).
		WithArgs("Person:1", "nick").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	v, found, err := store.HGet(ctx, "Person:1", "name")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "ann", v)

	_, found, err = store.HGet(ctx, "Person:1", "nick")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPostgresStoreHSetSortsFields(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO "kv_hashes" \(key, field, value\)`).
		WithArgs("Person:1", []string{"age", "id", "name"}, []string{"30", "1", "ann"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 3))

	err := store.HSet(context.Background(), "Person:1", map[string]string{"name": "ann", "id": "1", "age": "30"})
	require.NoError(t, err)
}

func TestPostgresStoreHDel(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM "kv_hashes" WHERE key = \$1 AND field = ANY\(\$2\)`).
		WithArgs("Person:1", []string{"nick"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.HDel(context.Background(), "Person:1", "nick"))
	require.NoError(t, store.HDel(context.Background(), "Person:1"))
}

func TestPostgresStoreExists(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("Person:1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := store.Exists(context.Background(), "Person:1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPostgresStoreListMembers(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM "kv_lists" WHERE key = \$1 ORDER BY pos`).
		WithArgs("Person:1:tags").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow("b").AddRow("a"))
	mock.ExpectQuery(`SELECT value FROM "kv_lists"`).
		WithArgs("Person:2:tags").
		WillReturnRows(pgxmock.NewRows([]string{"value"}))

	members, err := store.ListMembers(context.Background(), "Person:1:tags")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, members)

	members, err = store.ListMembers(context.Background(), "Person:2:tags")
	require.NoError(t, err)
	assert.NotNil(t, members)
	assert.Empty(t, members)
}

func TestPostgresStoreListReplace(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "kv_lists" WHERE key = \$1`).
		WithArgs("Person:1:tags").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectExec(`INSERT INTO "kv_lists" \(key, pos, value\)`).
		WithArgs("Person:1:tags", []string{"x", "y"}).
		WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, store.ListReplace(context.Background(), "Person:1:tags", []string{"x", "y"}))
}

func TestPostgresStoreListReplaceRollsBackOnFailure(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "kv_lists"`).
		WithArgs("Person:1:tags").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectExec(`INSERT INTO "kv_lists"`).
		WithArgs("Person:1:tags", []string{"x"}).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := store.ListReplace(context.Background(), "Person:1:tags", []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestPostgresStoreIncr(t *testing.T) {
	store, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO "kv_counters" \(key, value\) VALUES \(\$1, 1\)`).
		WithArgs("Person:id").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow(int64(7)))

	n, err := store.Incr(context.Background(), "Person:id")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}

func TestPostgresStoreDel(t *testing.T) {
	store, mock := newMockPostgresStore(t)
	keys := []string{"Person:1", "Person:1:tags"}

	mock.ExpectBegin()
	for _, table := range []string{"kv_hashes", "kv_lists", "kv_counters"} {
		mock.ExpectExec(`DELETE FROM "` + table + `" WHERE key = ANY\(\$1\)`).
			WithArgs(keys).
			WillReturnResult(pgxmock.NewResult("DELETE", 1))
	}
	mock.ExpectCommit()
	mock.ExpectRollback()

	require.NoError(t, store.Del(context.Background(), keys...))
}
