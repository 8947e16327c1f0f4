package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/wait"
)

// exerciseBackend checks the behaviour every backend must share.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, err := b.Get(ctx, "visitor-1", "cart")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, b.Put(ctx, "visitor-1", "cart", []byte(`[{"id":1}]`)))
	require.NoError(t, b.Put(ctx, "visitor-2", "cart", []byte(`[]`)))

	got, err := b.Get(ctx, "visitor-1", "cart")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(got))

	require.NoError(t, b.Put(ctx, "visitor-1", "cart", []byte(`[{"id":2}]`)))
	got, err = b.Get(ctx, "visitor-1", "cart")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":2}]`, string(got))

	require.NoError(t, b.Delete(ctx, "visitor-1", "cart"))
	_, err = b.Get(ctx, "visitor-1", "cart")
	assert.ErrorIs(t, err, ErrNotFound)

	// other namespaces are untouched
	got, err = b.Get(ctx, "visitor-2", "cart")
	require.NoError(t, err)
	assert.Equal(t, `[]`, string(got))

	// deleting a missing key is a no-op
	assert.NoError(t, b.Delete(ctx, "visitor-3", "authToken"))
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestMemoryBackend_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	value := []byte("abc")
	require.NoError(t, b.Put(ctx, "ns", "k", value))
	value[0] = 'x'

	got, err := b.Get(ctx, "ns", "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(got))
}

func TestScope(t *testing.T) {
	ctx := context.Background()
	b := NewMemoryBackend()
	a := Scope(b, "a")
	other := Scope(b, "b")

	require.NoError(t, a.Set(ctx, "authToken", []byte("token-a")))
	_, err := other.Get(ctx, "authToken")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := a.Get(ctx, "authToken")
	require.NoError(t, err)
	assert.Equal(t, "token-a", string(got))

	require.NoError(t, a.Remove(ctx, "authToken"))
	_, err = a.Get(ctx, "authToken")
	assert.ErrorIs(t, err, ErrNotFound)
}

func setupTestRedis(t *testing.T) (*RedisBackend, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return NewRedisBackend(client, time.Hour), mr
}

func TestRedisBackend(t *testing.T) {
	b, _ := setupTestRedis(t)
	exerciseBackend(t, b)
}

func TestRedisBackend_SetsTTL(t *testing.T) {
	b, mr := setupTestRedis(t)
	require.NoError(t, b.Put(context.Background(), "visitor-1", "cart", []byte("[]")))

	assert.True(t, mr.Exists(slotKey("visitor-1", "cart")))
	ttl := mr.TTL(slotKey("visitor-1", "cart"))
	assert.GreaterOrEqual(t, ttl, time.Hour)
	assert.Less(t, ttl, 2*time.Hour)

	mr.FastForward(3 * time.Hour)
	_, err := b.Get(context.Background(), "visitor-1", "cart")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisBackend_ServerDown(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{
		Addr:       mr.Addr(),
		MaxRetries: -1,
	})
	defer client.Close()
	b := NewRedisBackend(client, time.Hour)
	mr.Close()

	_, err = b.Get(context.Background(), "visitor-1", "cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.ErrorContains(t, err, "redis get failed")
}

func TestRedisBackend_RealServer(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping Redis container test in short mode")
	}
	ctx := context.Background()

	redisC, err := testcontainers.Run(
		ctx, "redis:7",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
	testcontainers.CleanupContainer(t, redisC)
	require.NoError(t, err)

	endpoint, err := redisC.Endpoint(ctx, "")
	require.NoError(t, err)

	b := NewRedisBackend(redis.NewClient(&redis.Options{Addr: endpoint}), time.Hour)
	defer b.Close()
	exerciseBackend(t, b)
}

func TestSQLiteBackend(t *testing.T) {
	b, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	defer b.Close()

	exerciseBackend(t, b)
}

func TestSQLiteBackend_MigrationsAreIdempotent(t *testing.T) {
	b, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	defer b.Close()

	assert.NoError(t, b.RunMigrations())
}

func TestSQLiteBackend_PurgeOlderThan(t *testing.T) {
	ctx := context.Background()
	b, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, b.Put(ctx, "old", "cart", []byte("[]")))
	_, err = b.db.ExecContext(ctx, `UPDATE storage_slots SET updated_at = ? WHERE namespace = 'old'`,
		time.Now().Add(-48*time.Hour).Unix())
	require.NoError(t, err)
	require.NoError(t, b.Put(ctx, "fresh", "cart", []byte("[]")))

	n, err := b.PurgeOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = b.Get(ctx, "old", "cart")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = b.Get(ctx, "fresh", "cart")
	assert.NoError(t, err)
}

func TestSQLiteBackend_CancelledContext(t *testing.T) {
	b, err := NewSQLiteBackend(":memory:")
	require.NoError(t, err)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = b.Get(ctx, "visitor-1", "cart")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMongoBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping MongoDB container test in short mode")
	}
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)
	defer func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}()

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	b := NewMongoBackend(db)
	require.NoError(t, b.CreateIndexes(ctx))
	defer b.Close()

	exerciseBackend(t, b)
}
