// Package bootstrap brings up the infrastructure shared by bots: the logger,
// the optional Postgres pool with its migrations, and the cache store.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/shopbot/core/cache"
	coreconfig "github.com/m3rciful/shopbot/core/config"
	coredatabase "github.com/m3rciful/shopbot/core/database"
	"github.com/m3rciful/shopbot/core/logger"
)

// Options control the bootstrap pipeline. Database is nil when no component
// needs Postgres; the cache store is then opened without a pool.
type Options struct {
	Config   *coreconfig.Config
	Database *coredatabase.Config
	Cache    cache.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error
	OpenCache  func(context.Context, cache.Config, *sqlx.DB) (*cache.Handle, error)
}

// Result exposes infrastructure initialized by the bootstrap pipeline.
type Result struct {
	DB    *sqlx.DB
	Cache *cache.Handle
}

// Close releases the cache handle and the pool.
func (r *Result) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Cache != nil {
		errs = append(errs, r.Cache.Close())
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}

// Run initializes the logger, connects and migrates the database when
// requested, and opens the cache store.
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config provided")
	}

	loggerInit := opts.LoggerInit
	if loggerInit == nil {
		loggerInit = logger.InitLogger
	}
	if err := loggerInit(opts.Config); err != nil {
		return nil, fmt.Errorf("bootstrap: logger init failed: %w", err)
	}

	res := &Result{}
	if opts.Database != nil {
		connect := opts.Connect
		if connect == nil {
			connect = coredatabase.Connect
		}
		migrate := opts.Migrate
		if migrate == nil {
			migrate = coredatabase.RunMigrations
		}

		if err := migrate(ctx, *opts.Database); err != nil {
			return nil, fmt.Errorf("bootstrap: migrations failed: %w", err)
		}
		db, err := connect(ctx, *opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: database initialization failed: %w", err)
		}
		res.DB = db
	}

	open := opts.OpenCache
	if open == nil {
		open = cache.Open
	}
	handle, err := open(ctx, opts.Cache, res.DB)
	if err != nil {
		_ = res.Close()
		return nil, fmt.Errorf("bootstrap: cache initialization failed: %w", err)
	}
	res.Cache = handle
	return res, nil
}
