// Package app is the composition root of the shop bot.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/m3rciful/shopbot/core/bootstrap"
	corecmd "github.com/m3rciful/shopbot/core/cmd"
	"github.com/m3rciful/shopbot/core/logger"
	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telemetry"
	"github.com/m3rciful/shopbot/internal/backend"
	"github.com/m3rciful/shopbot/internal/bot"
	"github.com/m3rciful/shopbot/internal/cart"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/conversation"
	"github.com/m3rciful/shopbot/internal/metrics"
	"github.com/m3rciful/shopbot/internal/session"
)

// App owns every long-lived component of the running bot.
type App struct {
	cfg *Config

	infra     *bootstrap.Result
	telemetry *telemetry.Telemetry
	backend   *backend.Client
	catalog   *catalog.Client
	bot       *bot.Bot
	registry  *tg.Registry

	stopJanitor context.CancelFunc
}

// Bootstrap satisfies core/cmd.Options.Bootstrap.
func Bootstrap(ctx context.Context, carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
	cfg, ok := carrier.(*Config)
	if !ok {
		return nil, fmt.Errorf("app: unexpected config type %T", carrier)
	}
	return New(ctx, cfg, bootstrap.Options{})
}

// New brings up infrastructure and wires the conversation stack. base may
// carry test overrides for the bootstrap hooks; its config fields are replaced.
func New(ctx context.Context, cfg *Config, base bootstrap.Options) (*App, error) {
	opts := base
	opts.Config = cfg.CoreConfig()
	opts.Cache = cfg.Cache
	opts.Database = nil
	if cfg.UsesDatabase() {
		db := cfg.Database
		opts.Database = &db
	}

	infra, err := bootstrap.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	a := &App{cfg: cfg, infra: infra}

	a.telemetry, err = telemetry.Initialize(ctx, cfg.Telemetry)
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}
	m, err := metrics.New(a.telemetry.Meter())
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	a.backend, err = backend.New(cfg.Backend, backend.WithMetrics(m))
	if err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	store := infra.Cache.Store
	a.catalog = catalog.NewClient(store, a.backend,
		catalog.WithTTL(cfg.CatalogTTL()),
		catalog.WithMetrics(m),
	)
	carts := cart.NewService(store, a.backend, a.catalog, m)
	machine := conversation.NewMachine(a.catalog, carts,
		conversation.NewQuantityStore(store, cfg.QuantityTTL()),
	)
	disp := session.NewDispatcher(store, infra.Cache.Locker, machine, session.Options{
		StateTTL:     cfg.StateTTL(),
		ReportErrors: *cfg.Session.ReportErrors,
		Metrics:      m,
	})

	a.bot = bot.New(disp, a.backend, a.catalog)
	a.registry = tg.NewRegistry()
	if err := a.bot.Register(a.registry); err != nil {
		_ = a.close(ctx)
		return nil, err
	}

	logger.Info(ctx, "app", "app.wired",
		slog.String("status", "ok"),
		slog.String("backend", infra.Cache.Backend),
		slog.Bool("user_lock", infra.Cache.Locker != nil),
		slog.Bool("database", infra.DB != nil),
	)
	return a, nil
}

// TelegramRunOptions satisfies core/cmd.TelegramApp.
func (a *App) TelegramRunOptions() (tg.RunOptions, error) {
	core := a.cfg.CoreConfig()
	return tg.RunOptions{
		Config:      core,
		Registry:    a.registry,
		Middlewares: tg.DefaultMiddlewares(core, nil),
		Routes:      a.bot.Routes(a.registry, core.Telegram.AdminID),
		OnStart:     a.start,
		OnStop: func(ctx context.Context, _ tg.Runtime) error {
			return a.close(ctx)
		},
	}, nil
}

func (a *App) start(ctx context.Context, _ tg.Runtime) error {
	janitorCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.stopJanitor = cancel
	go a.infra.Cache.RunJanitor(janitorCtx, a.cfg.Cache.PurgeInterval())

	if !a.cfg.Catalog.SkipWarm {
		bootstrap.RunWarmers(ctx, bootstrap.Warmup{Name: "catalog", Warmer: a.catalog})
	}
	return nil
}

func (a *App) close(ctx context.Context) error {
	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	var errs []error
	if a.backend != nil {
		errs = append(errs, a.backend.Close())
	}
	errs = append(errs, a.infra.Close(), a.telemetry.Shutdown(ctx))
	return errors.Join(errs...)
}

var _ corecmd.TelegramApp = (*App)(nil)
