package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	valkeylib "github.com/valkey-io/valkey-go"

	"github.com/m3rciful/shopbot/core/logger"
)

const connectTimeout = 5 * time.Second

// Handle bundles the store and locker built for one backend.
type Handle struct {
	Backend string
	Store   Store
	// Locker is nil when per-user locking is disabled.
	Locker Locker

	purger purger
}

type purger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// RunJanitor periodically removes expired entries on backends that do not
// expire keys themselves. It returns when ctx is done.
func (h *Handle) RunJanitor(ctx context.Context, interval time.Duration) {
	if h == nil || h.purger == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := h.purger.PurgeExpired(ctx)
			if err != nil {
				logger.Warn(ctx, "cache", "cache.purge",
					slog.String("status", "fail"),
					slog.String("err", err.Error()),
				)
				continue
			}
			if removed > 0 {
				logger.Debug(ctx, "cache", "cache.purge",
					slog.String("status", "ok"),
					slog.Int64("removed", removed),
				)
			}
		}
	}
}

// Close releases the backend connection.
func (h *Handle) Close() error {
	if h == nil || h.Store == nil {
		return nil
	}
	return h.Store.Close()
}

// Open connects to the configured backend, verifies connectivity and wraps
// the store with prefixing and timeouts. db is required for the postgres backend.
func Open(ctx context.Context, cfg Config, db *sqlx.DB) (*Handle, error) {
	if err := Normalize(&cfg); err != nil {
		return nil, err
	}

	start := time.Now()
	raw, locker, err := openBackend(ctx, cfg, db)
	took := time.Since(start)
	if err != nil {
		logger.Error(ctx, "cache", "cache.connect",
			slog.String("status", "fail"),
			slog.String("backend", cfg.Backend),
			slog.String("host", cfg.Host),
			slog.String("port", cfg.Port),
			slog.Duration("duration", logger.RoundMS(took)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("cache connect: %w", err)
	}

	if cfg.DisableUserLock {
		locker = nil
	}

	logger.Info(ctx, "cache", "cache.connect",
		slog.String("status", "ok"),
		slog.String("backend", cfg.Backend),
		slog.String("host", cfg.Host),
		slog.String("port", cfg.Port),
		slog.Bool("user_lock", locker != nil),
		slog.Duration("duration", logger.RoundMS(took)),
	)

	h := &Handle{
		Backend: cfg.Backend,
		Store:   Wrap(raw, Options{Prefix: cfg.KeyPrefix, Timeout: cfg.Timeout()}),
		Locker:  locker,
	}
	if p, ok := raw.(purger); ok {
		h.purger = p
	}
	return h, nil
}

func openBackend(ctx context.Context, cfg Config, db *sqlx.DB) (Store, Locker, error) {
	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch cfg.Backend {
	case BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.Addr(),
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  connectTimeout,
			ReadTimeout:  cfg.Timeout(),
			WriteTimeout: cfg.Timeout(),
		})
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis ping: %w", err)
		}
		return NewRedisStore(client), NewRedsyncLocker(client, cfg.KeyPrefix, cfg.LockTTL()), nil

	case BackendValkey:
		opts := valkeylib.ClientOption{
			InitAddress: []string{cfg.Addr()},
			SelectDB:    cfg.DB,
		}
		if cfg.Password != "" {
			opts.Password = cfg.Password
		}
		client, err := valkeylib.NewClient(opts)
		if err != nil {
			return nil, nil, fmt.Errorf("valkey client: %w", err)
		}
		if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("valkey ping: %w", err)
		}
		return NewValkeyStore(client), NewLocalLocker(), nil

	case BackendPostgres:
		if db == nil {
			return nil, nil, errors.New("postgres backend requires a database connection")
		}
		if err := db.PingContext(pingCtx); err != nil {
			return nil, nil, fmt.Errorf("postgres ping: %w", err)
		}
		return NewPostgresStore(db), NewLocalLocker(), nil

	case BackendMemory:
		return NewMemoryStore(), NewLocalLocker(), nil
	}
	return nil, nil, fmt.Errorf("unsupported backend %q", cfg.Backend)
}
