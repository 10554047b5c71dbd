package router

import (
	"log/slog"
	"time"

	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/callbacks"
	"github.com/m3rciful/shopbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// CallbackOptions sets what happens to callbacks without a registered key.
type CallbackOptions struct {
	// Default receives every unregistered key. When nil, the registry's
	// not-found handler answers instead.
	Default     tele.HandlerFunc
	DefaultName string
	NotFound    tele.HandlerFunc
}

// CallbackRoute runs the handler registered for the callback key, then
// opts.Default, then the not-found handler. The query is answered before a
// matched handler runs; the not-found handler answers it itself.
func CallbackRoute(reg *tg.Registry, opts CallbackOptions) tg.Route {
	defaultName := cmpOr(opts.DefaultName, "callback.default")

	handler := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		start := time.Now()
		key, _ := callbacks.ParseCallbackData(c.Callback())
		keyAttr := slog.String("cb_key", key)

		if reg != nil {
			if h, ok := reg.GetCallback(key); ok && h != nil {
				_ = c.Respond()
				return run(c, "callback."+handlerName(key), start, h, keyAttr)
			}
		}
		if opts.Default != nil {
			_ = c.Respond()
			return run(c, defaultName, start, opts.Default, keyAttr)
		}

		notFound := opts.NotFound
		if reg != nil && reg.CallbackNotFound() != nil {
			notFound = reg.CallbackNotFound()
		}
		if notFound == nil {
			notFound = func(c tele.Context) error { return c.Respond() }
		}
		return run(c, "callback.not_found", start, notFound, keyAttr, slog.String("reason", "not_found"))
	}
	return tg.Route{
		Endpoint: tele.OnCallback,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}
