package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
)

// Options control the behaviour shared by every backend.
type Options struct {
	// Prefix namespaces every key.
	Prefix string
	// Timeout bounds each operation; zero disables the bound.
	Timeout time.Duration
}

// boundedStore applies key prefixing and per-operation timeouts, and converts
// backend failures into OpError.
type boundedStore struct {
	inner Store
	opts  Options
}

// Wrap decorates a raw backend with prefixing, timeouts and error classification.
func Wrap(inner Store, opts Options) Store {
	return &boundedStore{inner: inner, opts: opts}
}

func (s *boundedStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.opts.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opts.Timeout)
}

func (s *boundedStore) fail(ctx context.Context, op, key string, err error) error {
	logger.Warn(ctx, "cache", "cache."+op,
		slog.String("status", "fail"),
		slog.String("key", key),
		slog.String("err", err.Error()),
	)
	return &OpError{Op: op, Key: key, Err: err}
}

func (s *boundedStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	val, ok, err := s.inner.Get(opCtx, s.opts.Prefix+key)
	if err != nil {
		return nil, false, s.fail(ctx, "get", key, err)
	}
	return val, ok, nil
}

func (s *boundedStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.inner.Set(opCtx, s.opts.Prefix+key, value, ttl); err != nil {
		return s.fail(ctx, "set", key, err)
	}
	return nil
}

func (s *boundedStore) Delete(ctx context.Context, key string) error {
	opCtx, cancel := s.opContext(ctx)
	defer cancel()
	if err := s.inner.Delete(opCtx, s.opts.Prefix+key); err != nil {
		return s.fail(ctx, "delete", key, err)
	}
	return nil
}

func (s *boundedStore) Close() error {
	return s.inner.Close()
}
