package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMiniRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStoreRoundTripAndExpiry(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniRedis(t)
	store := NewRedisStore(client)

	require.NoError(t, store.Set(ctx, "product_detail:7", []byte(`{"id":"7"}`), time.Hour))
	require.NoError(t, store.Set(ctx, "cart_id:3", []byte("11"), 0))

	val, ok, err := store.Get(ctx, "product_detail:7")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"id":"7"}`, string(val))
	assert.Equal(t, time.Hour, mr.TTL("product_detail:7"))
	assert.Zero(t, mr.TTL("cart_id:3"))

	mr.FastForward(time.Hour)

	_, ok, err = store.Get(ctx, "product_detail:7")
	require.NoError(t, err)
	assert.False(t, ok)

	val, ok, err = store.Get(ctx, "cart_id:3")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "11", string(val))

	require.NoError(t, store.Delete(ctx, "cart_id:3"))
	assert.False(t, mr.Exists("cart_id:3"))
}

func TestRedisStoreUnavailable(t *testing.T) {
	mr, client := newMiniRedis(t)
	store := Wrap(NewRedisStore(client), Options{Prefix: "shop:", Timeout: 500 * time.Millisecond})
	mr.Close()

	_, _, err := store.Get(context.Background(), "42")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestOpenRedisBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := Config{Backend: "redis", Host: mr.Host(), Port: mr.Port(), KeyPrefix: "shop"}

	h, err := Open(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = h.Close() })

	assert.Equal(t, BackendRedis, h.Backend)
	require.NotNil(t, h.Locker)
	assert.IsType(t, &RedsyncLocker{}, h.Locker)

	require.NoError(t, h.Store.Set(context.Background(), "42", []byte("START"), 0))
	got, err := mr.Get("shop:42")
	require.NoError(t, err)
	assert.Equal(t, "START", got)
}

func TestOpenFailsWhenServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port := mr.Host(), mr.Port()
	mr.Close()

	_, err := Open(context.Background(), Config{Backend: "redis", Host: host, Port: port}, nil)
	assert.Error(t, err)
}

func TestOpenMemoryWithoutLock(t *testing.T) {
	h, err := Open(context.Background(), Config{Backend: "memory", DisableUserLock: true}, nil)
	require.NoError(t, err)
	assert.Nil(t, h.Locker)
	assert.NoError(t, h.Close())
}

func TestOpenPostgresRequiresDB(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "postgres"}, nil)
	assert.Error(t, err)
}
