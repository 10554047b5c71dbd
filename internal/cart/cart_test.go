package cart

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/shopbot/core/cache"
	"github.com/m3rciful/shopbot/internal/catalog"
)

type fakeBackend struct {
	mu        sync.Mutex
	creates   int
	createErr error
	addErr    error
	carts     map[string][]Line
	nextID    int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{carts: make(map[string][]Line), nextID: 100}
}

func (f *fakeBackend) CreateCart(_ context.Context, _ int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := strconv.Itoa(f.nextID)
	f.carts[id] = nil
	return id, nil
}

func (f *fakeBackend) GetCartLines(_ context.Context, cartID string) ([]Line, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines, ok := f.carts[cartID]
	return append([]Line(nil), lines...), ok, nil
}

func (f *fakeBackend) AddCartProduct(_ context.Context, cartID, productID string, quantity int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.carts[cartID] = append(f.carts[cartID], Line{ProductID: productID, Quantity: quantity})
	return nil
}

type fakeProducts map[string]catalog.Product

func (f fakeProducts) GetProductDetail(_ context.Context, id string) (catalog.Product, error) {
	p, ok := f[id]
	if !ok {
		return catalog.Product{}, catalog.ErrUnavailable
	}
	return p, nil
}

var products = fakeProducts{
	"7": {ID: "7", Title: "Tuna", Price: 12.5},
	"8": {ID: "8", Title: "Salmon", Price: 20},
}

func TestEnsureCartCreatesOnce(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	backend := newFakeBackend()
	svc := NewService(store, backend, products, nil)

	first, err := svc.EnsureCart(ctx, 42)
	require.NoError(t, err)
	second, err := svc.EnsureCart(ctx, 42)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.creates)

	raw, ok, err := store.Get(ctx, "cart_id:42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, string(raw))
}

func TestEnsureCartFailureCachesNothing(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	backend := newFakeBackend()
	backend.createErr = errors.New("502 bad gateway")
	svc := NewService(store, backend, products, nil)

	_, err := svc.EnsureCart(ctx, 42)
	require.ErrorIs(t, err, ErrCreationFailed)
	assert.Equal(t, 0, store.Len())

	backend.createErr = nil
	_, err = svc.EnsureCart(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.creates)
}

func TestAddLineItemRejectsNonPositiveQuantity(t *testing.T) {
	backend := newFakeBackend()
	svc := NewService(cache.NewMemoryStore(), backend, products, nil)

	for _, q := range []int{0, -3} {
		err := svc.AddLineItem(context.Background(), "c1", "7", q)
		assert.ErrorIs(t, err, ErrInvalidQuantity)
	}
	assert.Empty(t, backend.carts)
}

func TestAddLineItemFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.addErr = errors.New("timeout")
	svc := NewService(cache.NewMemoryStore(), backend, products, nil)

	err := svc.AddLineItem(context.Background(), "c1", "7", 2)
	assert.ErrorIs(t, err, ErrMutationFailed)
}

func TestContentsJoinsProducts(t *testing.T) {
	ctx := context.Background()
	backend := newFakeBackend()
	svc := NewService(cache.NewMemoryStore(), backend, products, nil)

	cartID, err := svc.AddToUserCart(ctx, 42, "7", 3)
	require.NoError(t, err)
	_, err = svc.AddToUserCart(ctx, 42, "8", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, backend.creates)

	items, err := svc.FetchCartContents(ctx, cartID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Tuna", items[0].Product.Title)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "Salmon", items[1].Product.Title)

	same, err := svc.Contents(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, items, same)
}

func TestContentsWithoutCartIsEmpty(t *testing.T) {
	backend := newFakeBackend()
	svc := NewService(cache.NewMemoryStore(), backend, products, nil)

	items, err := svc.Contents(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Zero(t, backend.creates)

	items, err = svc.FetchCartContents(context.Background(), "gone")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestFetchCartContentsUnknownProduct(t *testing.T) {
	backend := newFakeBackend()
	backend.carts["c1"] = []Line{{ProductID: "99", Quantity: 1}}
	svc := NewService(cache.NewMemoryStore(), backend, products, nil)

	_, err := svc.FetchCartContents(context.Background(), "c1")
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.ErrorIs(t, err, catalog.ErrUnavailable)
}
