// Package session resolves a user's conversation state, runs one transition
// under the user's lock and persists the next state.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/m3rciful/shopbot/core/cache"
	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/internal/conversation"
	"github.com/m3rciful/shopbot/internal/metrics"
)

// User-facing failure notices.
const (
	FailureText       = "Something went wrong, please try again."
	NotUnderstoodText = "Sorry, I did not understand that. Send /start to start over."
)

const (
	unlockTimeout   = 2 * time.Second
	outcomeOK       = "ok"
	outcomeFail     = "fail"
	outcomeRejected = "rejected"
)

// Key returns the cache key holding the user's state.
func Key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// LockKey returns the per-user lock name.
func LockKey(userID int64) string {
	return "lock:user:" + strconv.FormatInt(userID, 10)
}

// Handler is the transition function.
type Handler interface {
	Handle(ctx context.Context, st conversation.State, ev conversation.Event) (conversation.Result, error)
}

// Options tune the dispatcher.
type Options struct {
	// StateTTL expires idle sessions; zero keeps them until evicted.
	StateTTL time.Duration
	// ReportErrors sends a notice to the user when an event fails.
	ReportErrors bool
	Metrics      *metrics.Metrics
}

// Reply is what the transport should deliver for one event.
type Reply struct {
	State     conversation.State
	Next      conversation.State
	Persisted bool
	Effects   []conversation.Effect
}

// Dispatcher serializes events per user and owns the session key.
type Dispatcher struct {
	store   cache.Store
	locker  cache.Locker
	handler Handler
	opts    Options
}

// NewDispatcher builds a dispatcher. locker may be nil to disable per-user locking.
func NewDispatcher(store cache.Store, locker cache.Locker, handler Handler, opts Options) *Dispatcher {
	return &Dispatcher{store: store, locker: locker, handler: handler, opts: opts}
}

// Dispatch processes one event. Any failure leaves the stored state unchanged.
// When the handler fails the returned Reply carries only the failure notice,
// if enabled. When only the state write fails the Reply keeps the handler's
// effects and the error is still returned.
func (d *Dispatcher) Dispatch(ctx context.Context, ev conversation.Event) (Reply, error) {
	start := time.Now()

	if d.locker != nil {
		unlock, err := d.locker.Lock(ctx, LockKey(ev.UserID))
		if err != nil {
			return d.fail(ctx, ev, "", start, err)
		}
		defer d.release(ctx, ev.UserID, unlock)
	}

	st, err := d.currentState(ctx, ev)
	if err != nil {
		return d.fail(ctx, ev, "", start, err)
	}
	ctx = logger.WithState(ctx, string(st))

	res, err := d.handler.Handle(ctx, st, ev)
	if err != nil {
		return d.fail(ctx, ev, st, start, err)
	}

	reply := Reply{State: st, Next: res.Next, Effects: res.Effects}
	if res.Persist && !ev.Kind.Stepper() {
		if err := d.store.Set(ctx, Key(ev.UserID), []byte(res.Next), d.opts.StateTTL); err != nil {
			// The transition already took effect; the user sees its reply only.
			_, ferr := d.fail(ctx, ev, st, start, err)
			return reply, ferr
		}
		reply.Persisted = true
	}

	d.opts.Metrics.ConversationEvent(ctx, string(st), outcomeOK)
	logger.Info(ctx, "session", "event.handled",
		slog.String("status", "ok"),
		slog.Int64("user_id", ev.UserID),
		slog.String("state", string(st)),
		slog.String("next_state", string(res.Next)),
		slog.String("action", ev.Kind.String()),
		slog.Bool("persisted", reply.Persisted),
		slog.Int("effects", len(reply.Effects)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return reply, nil
}

// State reads the stored state without locking. Absent sessions read as START.
func (d *Dispatcher) State(ctx context.Context, userID int64) (conversation.State, error) {
	raw, ok, err := d.store.Get(ctx, Key(userID))
	if err != nil {
		return "", err
	}
	if !ok {
		return conversation.StateStart, nil
	}
	return conversation.ParseState(string(raw))
}

func (d *Dispatcher) currentState(ctx context.Context, ev conversation.Event) (conversation.State, error) {
	if ev.Kind == conversation.EventStart {
		return conversation.StateStart, nil
	}
	return d.State(ctx, ev.UserID)
}

func (d *Dispatcher) release(ctx context.Context, userID int64, unlock cache.Unlock) {
	uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), unlockTimeout)
	defer cancel()
	if err := unlock(uctx); err != nil {
		logger.Warn(ctx, "session", "lock.release",
			slog.String("status", "fail"),
			slog.Int64("user_id", userID),
			slog.String("err", err.Error()),
		)
	}
}

func (d *Dispatcher) fail(ctx context.Context, ev conversation.Event, st conversation.State, start time.Time, err error) (Reply, error) {
	rejected := errors.Is(err, conversation.ErrUnhandledEvent) || errors.Is(err, conversation.ErrUnknownState)
	outcome, level := outcomeFail, slog.LevelError
	if rejected {
		outcome, level = outcomeRejected, slog.LevelWarn
	}
	d.opts.Metrics.ConversationEvent(ctx, string(st), outcome)

	logger.Event(ctx, "session", level, "event.failed",
		slog.String("status", "fail"),
		slog.String("outcome", outcome),
		slog.Int64("user_id", ev.UserID),
		slog.String("state", string(st)),
		slog.String("action", ev.Kind.String()),
		slog.String("payload", logger.SanitizeLimit(ev.Payload, 64)),
		slog.String("err_code", ErrorCode(err)),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)

	reply := Reply{State: st, Next: st}
	if d.opts.ReportErrors {
		text := FailureText
		if rejected {
			text = NotUnderstoodText
		}
		reply.Effects = []conversation.Effect{conversation.SendText(ev.ChatID, text, nil)}
	}
	return reply, err
}
