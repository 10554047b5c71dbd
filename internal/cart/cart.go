// Package cart manages the per-user backend cart handle and its line items.
package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/shopbot/core/cache"
	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/metrics"
)

var (
	// ErrCreationFailed means the backend did not create a cart.
	ErrCreationFailed = errors.New("cart creation failed")
	// ErrMutationFailed means a line item append was rejected or lost.
	ErrMutationFailed = errors.New("cart mutation failed")
	// ErrFetchFailed means cart contents could not be loaded.
	ErrFetchFailed = errors.New("cart fetch failed")
	// ErrInvalidQuantity rejects quantities below one.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// HandleKey returns the cache key holding the user's backend cart id.
func HandleKey(userID int64) string {
	return "cart_id:" + strconv.FormatInt(userID, 10)
}

// Backend is the cart half of the commerce API.
type Backend interface {
	CreateCart(ctx context.Context, userID int64) (string, error)
	GetCartLines(ctx context.Context, cartID string) ([]Line, bool, error)
	AddCartProduct(ctx context.Context, cartID, productID string, quantity int) error
}

// Products resolves product details for cart rendering.
type Products interface {
	GetProductDetail(ctx context.Context, id string) (catalog.Product, error)
}

// Item is one rendered cart row.
type Item struct {
	Product  catalog.Product
	Quantity int
}

// Service creates carts on demand and appends line items eagerly.
type Service struct {
	store    cache.Store
	backend  Backend
	products Products
	metrics  *metrics.Metrics
}

// NewService wires the cart service. m may be nil.
func NewService(store cache.Store, backend Backend, products Products, m *metrics.Metrics) *Service {
	return &Service{store: store, backend: backend, products: products, metrics: m}
}

// CartID returns the cached cart id for the user without creating one.
func (s *Service) CartID(ctx context.Context, userID int64) (string, bool, error) {
	raw, ok, err := s.store.Get(ctx, HandleKey(userID))
	if err != nil || !ok {
		return "", false, err
	}
	id := strings.TrimSpace(string(raw))
	return id, id != "", nil
}

// EnsureCart returns the user's cart id, creating the backend cart on first use.
// The cache lookup is the only de-duplication; callers serialize per user.
func (s *Service) EnsureCart(ctx context.Context, userID int64) (string, error) {
	id, ok, err := s.CartID(ctx, userID)
	if err != nil {
		return "", err
	}
	if ok {
		return id, nil
	}

	id, err = s.backend.CreateCart(ctx, userID)
	if err != nil {
		logger.Warn(ctx, "service.cart", "cart.create",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("%w: %w", ErrCreationFailed, err)
	}
	if err := s.store.Set(ctx, HandleKey(userID), []byte(id), 0); err != nil {
		return "", err
	}
	logger.Info(ctx, "service.cart", "cart.create",
		slog.String("status", "ok"),
		slog.String("cart_id", id),
	)
	return id, nil
}

// AddLineItem posts one line item. It never retries.
func (s *Service) AddLineItem(ctx context.Context, cartID, productID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	err := s.backend.AddCartProduct(ctx, cartID, productID, quantity)
	s.metrics.CartLineItem(ctx, err)
	if err != nil {
		logger.Warn(ctx, "service.cart", "cart.add",
			slog.String("status", "fail"),
			slog.String("cart_id", cartID),
			slog.String("product_id", productID),
			slog.Int("quantity", quantity),
			slog.String("err", err.Error()),
		)
		return fmt.Errorf("%w: %w", ErrMutationFailed, err)
	}
	logger.Info(ctx, "service.cart", "cart.add",
		slog.String("status", "ok"),
		slog.String("cart_id", cartID),
		slog.String("product_id", productID),
		slog.Int("quantity", quantity),
	)
	return nil
}

// AddToUserCart ensures the user's cart exists and appends a line item to it.
func (s *Service) AddToUserCart(ctx context.Context, userID int64, productID string, quantity int) (string, error) {
	if quantity < 1 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidQuantity, quantity)
	}
	cartID, err := s.EnsureCart(ctx, userID)
	if err != nil {
		return "", err
	}
	return cartID, s.AddLineItem(ctx, cartID, productID, quantity)
}

// FetchCartContents joins backend lines with product details. A missing
// cart or an empty line set yields an empty result and no error.
func (s *Service) FetchCartContents(ctx context.Context, cartID string) ([]Item, error) {
	lines, found, err := s.backend.GetCartLines(ctx, cartID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	if !found || len(lines) == 0 {
		return nil, nil
	}
	items := make([]Item, 0, len(lines))
	for _, line := range lines {
		product, err := s.products.GetProductDetail(ctx, line.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: product %s: %w", ErrFetchFailed, line.ProductID, err)
		}
		items = append(items, Item{Product: product, Quantity: line.Quantity})
	}
	logger.Debug(ctx, "service.cart", "cart.fetch",
		slog.String("status", "ok"),
		slog.String("cart_id", cartID),
		slog.Int("lines", len(items)),
	)
	return items, nil
}

// Contents returns the user's cart rows; a user without a cart has an empty cart.
func (s *Service) Contents(ctx context.Context, userID int64) ([]Item, error) {
	cartID, ok, err := s.CartID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return s.FetchCartContents(ctx, cartID)
}
