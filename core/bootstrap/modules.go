package bootstrap

import (
	"context"
	"log/slog"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
)

// Warmer preloads data before the bot starts serving updates.
type Warmer interface {
	Warm(ctx context.Context) (int, error)
}

// Warmup names a Warmer for logging.
type Warmup struct {
	Name   string
	Warmer Warmer
}

// RunWarmers executes each warmup in order and returns how many failed.
// Failures are only logged: caches fill lazily on first use.
func RunWarmers(ctx context.Context, warmups ...Warmup) (failed int) {
	for _, w := range warmups {
		if w.Warmer == nil {
			continue
		}
		start := time.Now()
		n, err := w.Warmer.Warm(ctx)
		attrs := []slog.Attr{
			slog.String("target", w.Name),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		}
		if err != nil {
			failed++
			logger.Warn(ctx, "app", "app.warm", append(attrs,
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)...)
			continue
		}
		logger.Info(ctx, "app", "app.warm", append(attrs,
			slog.String("status", "ok"),
			slog.Int("entries", n),
		)...)
	}
	return failed
}
