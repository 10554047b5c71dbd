package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/shopbot/core/cache"
	coreconfig "github.com/m3rciful/shopbot/core/config"
	coredatabase "github.com/m3rciful/shopbot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunWithoutDatabase(t *testing.T) {
	res, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Cache:      cache.Config{Backend: cache.BackendMemory},
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("database must not be touched")
			return nil, nil
		},
	})
	require.NoError(t, err)
	require.NotNil(t, res.Cache)
	assert.Nil(t, res.DB)
	assert.Equal(t, cache.BackendMemory, res.Cache.Backend)
	assert.NotNil(t, res.Cache.Locker)
	require.NoError(t, res.Close())
}

func TestRunMigratesBeforeConnecting(t *testing.T) {
	var steps []string
	migrateErr := errors.New("dirty schema")
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		Database:   &coredatabase.Config{Name: "shop"},
		Cache:      cache.Config{Backend: cache.BackendPostgres},
		LoggerInit: noLogger,
		Migrate: func(_ context.Context, cfg coredatabase.Config) error {
			steps = append(steps, "migrate:"+cfg.Name)
			return migrateErr
		},
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			steps = append(steps, "connect")
			return nil, nil
		},
	})
	require.ErrorIs(t, err, migrateErr)
	assert.Equal(t, []string{"migrate:shop"}, steps)
}

func TestRunLoggerFailure(t *testing.T) {
	_, err := Run(context.Background(), Options{
		Config:     &coreconfig.Config{},
		LoggerInit: func(*coreconfig.Config) error { return errors.New("no sink") },
	})
	assert.Error(t, err)

	_, err = Run(context.Background(), Options{})
	assert.Error(t, err)
}

type countWarmer struct {
	n   int
	err error
}

func (w countWarmer) Warm(context.Context) (int, error) { return w.n, w.err }

func TestRunWarmers(t *testing.T) {
	failed := RunWarmers(context.Background(),
		Warmup{Name: "catalog", Warmer: countWarmer{n: 3}},
		Warmup{Name: "broken", Warmer: countWarmer{err: errors.New("backend down")}},
		Warmup{Name: "skipped"},
	)
	assert.Equal(t, 1, failed)
}
