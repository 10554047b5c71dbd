// Package metrics defines the shop bot counters.
package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics records domain counters. A nil *Metrics is a valid no-op recorder.
type Metrics struct {
	cacheLookups       metric.Int64Counter
	backendRequests    metric.Int64Counter
	conversationEvents metric.Int64Counter
	cartLineItems      metric.Int64Counter
}

// New registers the counters on meter.
func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.cacheLookups, err = meter.Int64Counter(
		"cache_lookups_total",
		metric.WithDescription("Cache lookups by cache name and result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cache_lookups_total counter: %w", err)
	}

	m.backendRequests, err = meter.Int64Counter(
		"backend_requests_total",
		metric.WithDescription("Catalog and cart backend requests by operation and status"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create backend_requests_total counter: %w", err)
	}

	m.conversationEvents, err = meter.Int64Counter(
		"conversation_events_total",
		metric.WithDescription("Conversation events by state and outcome"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation_events_total counter: %w", err)
	}

	m.cartLineItems, err = meter.Int64Counter(
		"cart_line_items_total",
		metric.WithDescription("Cart line item appends by status"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create cart_line_items_total counter: %w", err)
	}

	return m, nil
}

// Noop returns recorders that discard everything.
func Noop() *Metrics {
	m, _ := New(noop.NewMeterProvider().Meter("noop"))
	return m
}

// CacheLookup records a hit or miss on the named cache.
func (m *Metrics) CacheLookup(ctx context.Context, cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cache),
		attribute.String("result", result),
	))
}

// BackendRequest records one backend call. status is "ok" or "error".
func (m *Metrics) BackendRequest(ctx context.Context, op string, err error) {
	if m == nil {
		return
	}
	m.backendRequests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.String("status", status(err)),
	))
}

// ConversationEvent records the outcome of one dispatched event.
func (m *Metrics) ConversationEvent(ctx context.Context, state, outcome string) {
	if m == nil {
		return
	}
	m.conversationEvents.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state", state),
		attribute.String("outcome", outcome),
	))
}

// CartLineItem records an add-to-cart attempt.
func (m *Metrics) CartLineItem(ctx context.Context, err error) {
	if m == nil {
		return
	}
	m.cartLineItems.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", status(err)),
	))
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
