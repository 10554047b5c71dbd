package router

import (
	"time"

	tg "github.com/m3rciful/shopbot/core/telegram"
	"github.com/m3rciful/shopbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Conversation receives free text that is not a registered command.
type Conversation interface {
	HandleText(c tele.Context) error
}

// TextOptions sets the handlers for text nobody claims and for documents.
type TextOptions struct {
	UnknownText     tele.HandlerFunc
	UnknownDocument tele.HandlerFunc
}

// TextRoutes routes text and documents. For text, a public command name or
// alias typed without the slash wins over the conversation, which wins over
// the registry fallback and then opts.UnknownText. Admin commands are only
// reachable through their command route.
func TextRoutes(conv Conversation, reg *tg.Registry, opts TextOptions) []tg.Route {
	text := func(c tele.Context) error {
		start := time.Now()
		if reg != nil {
			if key, cmd, ok := reg.LookupCommand(c.Text()); ok && cmd.Handler != nil && !cmd.AdminOnly {
				return run(c, handlerName(key), start, cmd.Handler)
			}
		}
		switch {
		case conv != nil:
			return run(c, "conversation.text", start, conv.HandleText)
		case reg != nil && reg.TextFallback() != nil:
			return run(c, "fallback", start, reg.TextFallback())
		case opts.UnknownText != nil:
			return run(c, "unknown_text", start, opts.UnknownText)
		}
		skipped(c, "unknown_text", start)
		return nil
	}

	document := func(c tele.Context) error {
		start := time.Now()
		if opts.UnknownDocument != nil {
			return run(c, "unexpected_document", start, opts.UnknownDocument)
		}
		skipped(c, "unexpected_document", start)
		return nil
	}

	wrap := func(h tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnDocument, Handler: wrap(document)},
	}
}
