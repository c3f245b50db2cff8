package e2e_harness

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	formakv "github.com/lychee-technology/formakv"
	"github.com/lychee-technology/formakv/internal"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defineE2EModels(t *testing.T, store formakv.Store) (*formakv.Model, *formakv.Model) {
	t.Helper()
	registry := formakv.NewRegistry(store, formakv.WithLocation(time.UTC))
	dept := registry.MustDefine("Department", formakv.NewStringField("name", formakv.Required()))
	person := registry.MustDefine("Person",
		formakv.NewStringField("name", formakv.Required()),
		formakv.NewIntegerField("age"),
		formakv.NewDateTimeField("joined"),
		formakv.NewListField("tags", formakv.Of(formakv.ValueTypeString)),
		formakv.NewReferenceField("department", formakv.ModelNamed("Department")),
	)
	return dept, person
}

func exerciseStore(t *testing.T, ctx context.Context, store formakv.Store) string {
	t.Helper()
	dept, person := defineE2EModels(t, store)

	eng := dept.New()
	require.NoError(t, eng.Set("name", "engineering"))
	require.NoError(t, eng.Save(ctx))

	joined := time.Date(2024, 5, 6, 7, 8, 9, 123456000, time.UTC)
	p := person.New()
	require.NoError(t, p.Set("name", "ann"))
	require.NoError(t, p.Set("age", 41))
	require.NoError(t, p.Set("joined", joined))
	require.NoError(t, p.Set("tags", []any{"a", "b"}))
	require.NoError(t, p.Set("department", eng))
	require.NoError(t, p.Save(ctx))

	loaded, err := person.GetByID(ctx, p.ID())
	require.NoError(t, err)
	require.NotNil(t, loaded)

	name, err := formakv.GetAs[string](ctx, loaded, "name")
	require.NoError(t, err)
	assert.Equal(t, "ann", name)
	age, err := formakv.GetAs[int64](ctx, loaded, "age")
	require.NoError(t, err)
	assert.Equal(t, int64(41), age)
	when, err := formakv.GetAs[time.Time](ctx, loaded, "joined")
	require.NoError(t, err)
	assert.True(t, joined.Equal(when))
	tags, err := loaded.Get(ctx, "tags")
	require.NoError(t, err)
	assert.Equal(t, []any{"a", "b"}, tags)
	d, err := formakv.GetAs[*formakv.Instance](ctx, loaded, "department")
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, eng.ID(), d.ID())

	require.NoError(t, loaded.Delete(ctx))
	gone, err := person.GetByID(ctx, p.ID())
	require.NoError(t, err)
	assert.Nil(t, gone)
	return p.ID()
}

func TestE2EPostgresStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E harness in -short mode")
	}
	ctx := context.Background()
	h := &TestHarness{}

	if _, err := h.StartPostgres(ctx); err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	defer h.StopPostgres(ctx)

	pool, err := pgxpool.New(ctx, h.PGDSN)
	require.NoError(t, err)
	require.NoError(t, internal.PostgresHealthCheck(ctx, pool, 5*time.Second))

	tables := internal.StoreTables{Hashes: "kv_hashes", Lists: "kv_lists", Counters: "kv_counters"}
	pgStore, err := internal.NewPostgresStore(pool, tables, 10*time.Second)
	require.NoError(t, err)
	require.NoError(t, pgStore.EnsureSchema(ctx))
	store := internal.NewGuardedStore(pgStore, internal.NewCircuitBreaker(5, time.Minute, 30*time.Second), "postgres")
	defer store.Close()

	id := exerciseStore(t, ctx, store)

	n, err := CountKeyRows(ctx, h.PGDB, tables.Hashes, "Person:"+id)
	require.NoError(t, err)
	assert.Zero(t, n)
	n, err = CountKeyRows(ctx, h.PGDB, tables.Counters, "Person:id")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// the department hash is left in place
	deptName, err := HashField(ctx, h.PGDB, tables.Hashes, "Department:1", "name")
	require.NoError(t, err)
	assert.Equal(t, "engineering", deptName)
}

func TestE2ERedisStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E harness in -short mode")
	}
	ctx := context.Background()
	h := &TestHarness{}

	if _, err := h.StartRedis(ctx); err != nil {
		t.Skipf("redis container unavailable: %v", err)
	}
	defer h.StopRedis(ctx)

	store := internal.NewRedisStore(redis.NewClient(&redis.Options{Addr: h.RedisAddr}))
	defer store.Close()
	require.NoError(t, store.Ping(ctx))

	exerciseStore(t, ctx, store)
}
