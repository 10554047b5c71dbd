// Package sender runs outbound Telegram calls on background workers so
// handlers return before the Bot API answers.
package sender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/shopbot/core/logger"
)

var (
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	ErrQueueFull   = errors.New("telegram sender: queue full")
)

// Options tunes the dispatcher. Zero values pick the defaults.
type Options struct {
	// QueueSize is the queue depth of each shard.
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration caps the total time spent on one job, retries included.
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (j job) attrs() []slog.Attr {
	attrs := []slog.Attr{slog.String("action", j.action)}
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return attrs
}

// Dispatcher executes queued Bot API calls. Every chat is pinned to one
// shard, so calls for a chat run in the order they were queued.
type Dispatcher struct {
	opts   Options
	shards []chan job
	wg     sync.WaitGroup

	gate   sync.RWMutex
	closed bool

	failed atomic.Uint64
	rr     atomic.Uint64
}

// NewDispatcher starts opts.Workers shard workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, shards: make([]chan job, opts.Workers)}
	for i := range d.shards {
		d.shards[i] = make(chan job, opts.QueueSize)
		d.wg.Add(1)
		go d.work(d.shards[i])
	}
	return d
}

// Enqueue schedules run on the shard of the chat stored in ctx. run may be
// called more than once. When the shard is full Enqueue waits for a slot;
// it returns an error wrapping ErrQueueFull if ctx ends first.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.gate.RLock()
	defer d.gate.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	shard := d.shard(ctx)
	j := job{ctx: ctx, action: action, endpoint: endpoint, run: run}
	select {
	case shard <- j:
		return nil
	default:
	}
	select {
	case shard <- j:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrQueueFull, ctx.Err())
	}
}

func (d *Dispatcher) shard(ctx context.Context) chan job {
	n := uint64(len(d.shards))
	if chatID := logger.ChatIDFrom(ctx); chatID != 0 {
		return d.shards[uint64(chatID)%n]
	}
	return d.shards[d.rr.Add(1)%n]
}

// ErrorCount reports how many jobs ended in failure.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close stops accepting jobs and waits until the queued ones are done.
func (d *Dispatcher) Close() {
	d.gate.Lock()
	if !d.closed {
		d.closed = true
		for _, s := range d.shards {
			close(s)
		}
	}
	d.gate.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) work(jobs <-chan job) {
	defer d.wg.Done()
	for j := range jobs {
		if err := d.execute(j); err != nil {
			d.failed.Add(1)
		}
	}
}

// execute runs j until it succeeds, fails permanently or runs out of
// attempts or time. Flood-control replies wait the delay Telegram asks for.
func (d *Dispatcher) execute(j job) error {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ctx.Err(); err != nil {
			break
		}
		if err = j.run(); err == nil {
			if shouldLogSuccess(attempt) {
				logger.Debug(j.ctx, "tg.sender", "send.success", append(j.attrs(),
					slog.Int("attempt", attempt),
					slog.Duration("duration", time.Since(start)),
				)...)
			}
			return nil
		}
		delay, retry := d.backoff(err, attempt)
		if !retry || attempt == attempts {
			break
		}
		logger.Debug(j.ctx, "tg.sender", "send.retry", append(j.attrs(),
			slog.String("status", "retry"),
			slog.Int("attempt", attempt),
			slog.Duration("delay", delay),
			slog.String("err", redact(err)),
		)...)
		if !sleep(ctx, delay) {
			err = ctx.Err()
			break
		}
	}

	logger.Error(j.ctx, "tg.sender", "send.fail", append(j.attrs(),
		slog.String("status", "fail"),
		slog.String("error_kind", classify(err)),
		slog.String("err", redact(err)),
		slog.Int("attempts", attempts),
		slog.Duration("duration", time.Since(start)),
	)...)
	return err
}

// shouldLogSuccess limits success lines to retried jobs and sampled first tries.
func shouldLogSuccess(attempt int) bool {
	return attempt > 1 || logger.ShouldSampleDebug()
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
