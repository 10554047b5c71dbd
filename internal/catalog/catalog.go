// Package catalog memoizes product list and detail lookups in the cache store.
//
// The cache is a pure memoization of the backend: entries expire after the
// configured TTL and nothing writes through on backend changes.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/m3rciful/shopbot/core/cache"
	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/internal/metrics"
)

const (
	// ProductsListKey caches the full product list.
	ProductsListKey = "products_list"
	// DefaultTTL bounds catalog staleness.
	DefaultTTL = time.Hour
	// DefaultFillTimeout bounds one shared backend fetch.
	DefaultFillTimeout = 30 * time.Second
)

// ErrUnavailable reports a failed backend fetch on a cache miss.
var ErrUnavailable = errors.New("catalog unavailable")

// ProductDetailKey returns the cache key for one product.
func ProductDetailKey(id string) string {
	return "product_detail:" + id
}

// Source fetches catalog data from the backend.
type Source interface {
	ListProducts(ctx context.Context) ([]Product, error)
	GetProduct(ctx context.Context, id string) (Product, error)
}

// Client serves catalog reads from the cache store, falling back to Source.
type Client struct {
	store   cache.Store
	source  Source
	ttl     time.Duration
	fill    time.Duration
	metrics *metrics.Metrics
	group   singleflight.Group
}

// Option customises NewClient.
type Option func(*Client)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithFillTimeout overrides DefaultFillTimeout.
func WithFillTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.fill = d
		}
	}
}

// WithMetrics records cache_lookups_total.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient wires the catalog cache.
func NewClient(store cache.Store, source Source, opts ...Option) *Client {
	c := &Client{store: store, source: source, ttl: DefaultTTL, fill: DefaultFillTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListProducts returns the product list, fetching it on a cache miss.
func (c *Client) ListProducts(ctx context.Context) ([]Product, error) {
	return cached(ctx, c, ProductsListKey, c.source.ListProducts)
}

// GetProductDetail returns one product, fetching it on a cache miss.
func (c *Client) GetProductDetail(ctx context.Context, id string) (Product, error) {
	return cached(ctx, c, ProductDetailKey(id), func(ctx context.Context) (Product, error) {
		return c.source.GetProduct(ctx, id)
	})
}

// Invalidate drops the cached product list.
func (c *Client) Invalidate(ctx context.Context) error {
	if err := c.store.Delete(ctx, ProductsListKey); err != nil {
		return fmt.Errorf("invalidate %s: %w", ProductsListKey, err)
	}
	logger.Info(ctx, "service.catalog", "catalog.invalidate",
		slog.String("status", "ok"),
		slog.String("key", ProductsListKey),
	)
	return nil
}

// Warm loads the product list into the cache and reports how many products it holds.
func (c *Client) Warm(ctx context.Context) (int, error) {
	products, err := c.ListProducts(ctx)
	if err != nil {
		return 0, err
	}
	return len(products), nil
}

// Reload invalidates and re-warms the product list.
func (c *Client) Reload(ctx context.Context) (int, error) {
	if err := c.Invalidate(ctx); err != nil {
		return 0, err
	}
	return c.Warm(ctx)
}

// cached decodes key or fills it from fetch. Concurrent misses on the same
// key share one fetch, which outlives the caller that started it. A caller
// whose ctx ends stops waiting without failing the others. A corrupt entry
// is treated as a miss.
func cached[T any](ctx context.Context, c *Client, key string, fetch func(context.Context) (T, error)) (T, error) {
	var zero T
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		return zero, err
	}
	if ok {
		var hit T
		jerr := json.Unmarshal(raw, &hit)
		if jerr == nil {
			c.metrics.CacheLookup(ctx, cacheName(key), true)
			logger.Debug(ctx, "service.catalog", "catalog.lookup",
				slog.String("cache", "hit"),
				slog.String("key", key),
			)
			return hit, nil
		}
		logger.Warn(ctx, "service.catalog", "catalog.decode",
			slog.String("status", "fail"),
			slog.String("key", key),
			slog.String("err", jerr.Error()),
		)
	}
	c.metrics.CacheLookup(ctx, cacheName(key), false)

	start := time.Now()
	fillCtx := context.WithoutCancel(ctx)
	results := c.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(fillCtx, c.fill)
		defer cancel()
		fetched, err := fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrUnavailable, key, err)
		}
		payload, err := json.Marshal(fetched)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", key, err)
		}
		if err := c.store.Set(ctx, key, payload, c.ttl); err != nil {
			return nil, err
		}
		return fetched, nil
	})
	var res singleflight.Result
	select {
	case res = <-results:
	case <-ctx.Done():
		res.Err = fmt.Errorf("%w: %s: %w", ErrUnavailable, key, ctx.Err())
	}
	v, err, shared := res.Val, res.Err, res.Shared
	if err != nil {
		logger.Warn(ctx, "service.catalog", "catalog.fetch",
			slog.String("status", "fail"),
			slog.String("key", key),
			slog.String("err", err.Error()),
		)
		return zero, err
	}
	logger.Debug(ctx, "service.catalog", "catalog.lookup",
		slog.String("cache", "miss"),
		slog.String("key", key),
		slog.Bool("shared", shared),
		slog.Int64("ttl_ms", c.ttl.Milliseconds()),
		slog.Int64("duration_ms", logger.RoundMS(time.Since(start)).Milliseconds()),
	)
	return v.(T), nil
}

func cacheName(key string) string {
	if key == ProductsListKey {
		return ProductsListKey
	}
	return "product_detail"
}
