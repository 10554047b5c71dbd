package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ErrLockLost is returned by an unlock when the lock expired before release.
var ErrLockLost = errors.New("cache: lock expired before release")

// Unlock releases a lock obtained from a Locker.
type Unlock func(ctx context.Context) error

// Locker provides mutual exclusion per key.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// LocalLocker serializes callers within one process. Waiting honours ctx.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker constructs an in-process keyed locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*lockSlot)}
}

// Lock blocks until key is free or ctx is done.
func (l *LocalLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	l.mu.Lock()
	slot, ok := l.slots[key]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[key] = slot
	}
	slot.refs++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.release(key, slot, false)
		return nil, &OpError{Op: "lock", Key: key, Err: ctx.Err()}
	}

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() { l.release(key, slot, true) })
		return nil
	}, nil
}

func (l *LocalLocker) release(key string, slot *lockSlot, held bool) {
	if held {
		<-slot.ch
	}
	l.mu.Lock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, key)
	}
	l.mu.Unlock()
}

// RedsyncLocker takes Redis-backed mutexes so several bot replicas serialize on the same user.
type RedsyncLocker struct {
	rs     *redsync.Redsync
	prefix string
	expiry time.Duration
	delay  time.Duration
	tries  int
}

// NewRedsyncLocker builds a locker on the given client. Keys are namespaced with prefix.
func NewRedsyncLocker(client *redis.Client, prefix string, expiry time.Duration) *RedsyncLocker {
	if expiry <= 0 {
		expiry = defaultLockTTL
	}
	delay := 50 * time.Millisecond
	return &RedsyncLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		prefix: prefix,
		expiry: expiry,
		delay:  delay,
		tries:  int(expiry / delay),
	}
}

// Lock acquires the mutex for key, retrying until the expiry window or ctx runs out.
func (l *RedsyncLocker) Lock(ctx context.Context, key string) (Unlock, error) {
	name := l.prefix + key
	m := l.rs.NewMutex(name,
		redsync.WithExpiry(l.expiry),
		redsync.WithTries(l.tries),
		redsync.WithRetryDelay(l.delay),
	)
	if err := m.LockContext(ctx); err != nil {
		return nil, &OpError{Op: "lock", Key: key, Err: err}
	}
	return func(ctx context.Context) error {
		ok, err := m.UnlockContext(ctx)
		if err != nil {
			return &OpError{Op: "unlock", Key: key, Err: err}
		}
		if !ok {
			return fmt.Errorf("unlock %q: %w", key, ErrLockLost)
		}
		return nil
	}, nil
}
