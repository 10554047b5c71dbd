package conversation

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/m3rciful/shopbot/core/cache"
	"github.com/m3rciful/shopbot/core/logger"
)

// DefaultQuantityTTL bounds how long an abandoned product view keeps its stepper value.
const DefaultQuantityTTL = time.Hour

// QuantityKey is the cache key of the pending quantity for one product view.
func QuantityKey(userID int64, productID string) string {
	return "quantity:" + strconv.FormatInt(userID, 10) + ":" + productID
}

// DisplayQuantity is the value shown on the stepper and sent to the cart.
func DisplayQuantity(tally int) int {
	return max(1, tally)
}

// QuantityStore keeps the raw stepper tally outside the session key.
// The tally starts at 1 and moves by one per press without clamping.
type QuantityStore struct {
	store cache.Store
	ttl   time.Duration
}

// NewQuantityStore uses DefaultQuantityTTL when ttl is not positive.
func NewQuantityStore(store cache.Store, ttl time.Duration) *QuantityStore {
	if ttl <= 0 {
		ttl = DefaultQuantityTTL
	}
	return &QuantityStore{store: store, ttl: ttl}
}

// Reset starts a fresh tally for a product view.
func (q *QuantityStore) Reset(ctx context.Context, userID int64, productID string) error {
	return q.store.Set(ctx, QuantityKey(userID, productID), []byte("1"), q.ttl)
}

// Tally returns the stored tally, 1 when absent or unreadable.
func (q *QuantityStore) Tally(ctx context.Context, userID int64, productID string) (int, error) {
	key := QuantityKey(userID, productID)
	raw, ok, err := q.store.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 1, nil
	}
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		logger.Warn(ctx, "fsm", "quantity.corrupt",
			slog.String("key", key),
			slog.String("err", err.Error()),
		)
		return 1, nil
	}
	return n, nil
}

// Adjust moves the tally by delta and returns the previous and new tallies.
func (q *QuantityStore) Adjust(ctx context.Context, userID int64, productID string, delta int) (int, int, error) {
	before, err := q.Tally(ctx, userID, productID)
	if err != nil {
		return 0, 0, err
	}
	after := before + delta
	if err := q.store.Set(ctx, QuantityKey(userID, productID), []byte(strconv.Itoa(after)), q.ttl); err != nil {
		return 0, 0, err
	}
	return before, after, nil
}
