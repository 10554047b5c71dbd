package router

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
	tghelpers "github.com/m3rciful/shopbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// handled is the result recorded on a handler.handled line.
type handled struct {
	name    string
	start   time.Time
	status  string
	outcome string
	err     error
	extras  []slog.Attr
}

// run invokes fn under name and writes its summary line.
func run(c tele.Context, name string, start time.Time, fn tele.HandlerFunc, extras ...slog.Attr) error {
	tghelpers.WithHandler(c, name)
	err := fn(c)
	handled{name: name, start: start, err: err, extras: extras}.log(c)
	return err
}

// skipped records an update nothing handled.
func skipped(c tele.Context, name string, start time.Time) {
	tghelpers.WithHandler(c, name)
	handled{name: name, start: start, status: "skip"}.log(c)
}

func (h handled) log(c tele.Context) {
	ctx := tghelpers.BuildContext(c)
	replies := tghelpers.TallyFrom(c).Snapshot()

	status := cmpOr(h.status, logger.Status(h.err))
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("handler", h.name),
		slog.String("outcome", cmpOr(h.outcome, logger.Status(h.err))),
		slog.Int("messages", replies.Sent),
		slog.Int("edits", replies.Edited),
		slog.Int("deletes", replies.Deleted),
		slog.Bool("kb", replies.Keyboard),
		slog.Duration("duration", time.Since(h.start)),
	}
	if h.err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(h.err.Error(), 256)),
			slog.String("err_code", errorCode(h.err)),
		)
	}
	logger.LogEvent(ctx, logger.Component("tg"), slog.LevelInfo, "handler.handled", append(attrs, h.extras...)...)
}

func cmpOr(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// handlerName turns a command or callback key into a log-friendly name.
func handlerName(key string) string {
	key = strings.TrimPrefix(strings.TrimSpace(key), "/")
	if key == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(key, " ", "_"))
}

// errorCode prefers a Code() from anywhere in the chain and falls back to
// the dynamic type name of err.
func errorCode(err error) string {
	if err == nil {
		return ""
	}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return upperSnake(code)
		}
	}
	name := fmt.Sprintf("%T", err)
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return upperSnake(name)
}

func upperSnake(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, " ", "_"))
}
