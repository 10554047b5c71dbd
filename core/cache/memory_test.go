package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(WithClock(clock.Now))

	require.NoError(t, store.Set(ctx, "products_list", []byte(`[{"id":"1"}]`), time.Hour))
	require.NoError(t, store.Set(ctx, "42", []byte("BROWSING_MENU"), 0))

	val, ok, err := store.Get(ctx, "products_list")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"id":"1"}]`, string(val))

	clock.Advance(time.Hour)

	_, ok, err = store.Get(ctx, "products_list")
	require.NoError(t, err)
	assert.False(t, ok, "entry must expire at its ttl")

	val, ok, err = store.Get(ctx, "42")
	require.NoError(t, err)
	require.True(t, ok, "entries without ttl persist")
	assert.Equal(t, "BROWSING_MENU", string(val))
	assert.Equal(t, 1, store.Len())
}

func TestMemoryStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	buf := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", buf, 0))
	buf[0] = 'x'

	val, _, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "abc", string(val))

	val[1] = 'y'
	again, _, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Set(ctx, "cart_id:1", []byte("9"), 0))
	require.NoError(t, store.Delete(ctx, "cart_id:1"))
	require.NoError(t, store.Delete(ctx, "missing"))

	_, ok, err := store.Get(ctx, "cart_id:1")
	require.NoError(t, err)
	assert.False(t, ok)
}

type brokenStore struct{ err error }

func (b brokenStore) Get(context.Context, string) ([]byte, bool, error) { return nil, false, b.err }
func (b brokenStore) Set(context.Context, string, []byte, time.Duration) error {
	return b.err
}
func (b brokenStore) Delete(context.Context, string) error { return b.err }
func (b brokenStore) Close() error                         { return nil }

func TestWrapClassifiesFailures(t *testing.T) {
	driverErr := errors.New("dial tcp 127.0.0.1:6379: connection refused")
	store := Wrap(brokenStore{err: driverErr}, Options{Timeout: time.Second})

	_, _, err := store.Get(context.Background(), "products_list")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, driverErr)

	var opErr *OpError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "get", opErr.Op)
	assert.Equal(t, "products_list", opErr.Key)

	assert.ErrorIs(t, store.Set(context.Background(), "k", nil, 0), ErrUnavailable)
	assert.ErrorIs(t, store.Delete(context.Background(), "k"), ErrUnavailable)
}

func TestWrapAppliesPrefix(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryStore()
	store := Wrap(inner, Options{Prefix: "shop:"})

	require.NoError(t, store.Set(ctx, "cart_id:5", []byte("12"), 0))

	_, ok, _ := inner.Get(ctx, "cart_id:5")
	assert.False(t, ok)
	val, ok, _ := inner.Get(ctx, "shop:cart_id:5")
	require.True(t, ok)
	assert.Equal(t, "12", string(val))

	val, ok, err := store.Get(ctx, "cart_id:5")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "12", string(val))
}

type slowStore struct{ MemoryStore }

func (s *slowStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	<-ctx.Done()
	return nil, false, ctx.Err()
}

func TestWrapTimeoutIsUnavailable(t *testing.T) {
	store := Wrap(&slowStore{}, Options{Timeout: 10 * time.Millisecond})
	_, _, err := store.Get(context.Background(), "42")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNormalize(t *testing.T) {
	cfg := Config{KeyPrefix: "shop"}
	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "localhost:6379", cfg.Addr())
	assert.Equal(t, "shop:", cfg.KeyPrefix)
	assert.Equal(t, 2*time.Second, cfg.Timeout())
	assert.Equal(t, 10*time.Second, cfg.LockTTL())
	assert.Equal(t, 5*time.Minute, cfg.PurgeInterval())

	bad := Config{Backend: "memcached"}
	assert.Error(t, Normalize(&bad))

	mem := Config{Backend: " Memory "}
	require.NoError(t, Normalize(&mem))
	assert.Equal(t, BackendMemory, mem.Backend)
}
