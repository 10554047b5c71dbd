package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/shopbot/core/cache"
	"github.com/m3rciful/shopbot/internal/cart"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/conversation"
)

type catalogSource struct {
	products []catalog.Product
	calls    atomic.Int32
}

func (s *catalogSource) ListProducts(context.Context) ([]catalog.Product, error) {
	s.calls.Add(1)
	return s.products, nil
}

func (s *catalogSource) GetProduct(_ context.Context, id string) (catalog.Product, error) {
	s.calls.Add(1)
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return catalog.Product{}, errors.New("404 not found")
}

type cartBackend struct {
	mu      sync.Mutex
	creates int
	lines   map[string][]cart.Line
}

func (b *cartBackend) CreateCart(context.Context, int64) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.creates++
	if b.lines == nil {
		b.lines = make(map[string][]cart.Line)
	}
	b.lines["31"] = nil
	return "31", nil
}

func (b *cartBackend) GetCartLines(_ context.Context, cartID string) ([]cart.Line, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	lines, ok := b.lines[cartID]
	return lines, ok, nil
}

func (b *cartBackend) AddCartProduct(_ context.Context, cartID, productID string, quantity int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lines[cartID] = append(b.lines[cartID], cart.Line{ProductID: productID, Quantity: quantity})
	return nil
}

type fixture struct {
	store   *cache.MemoryStore
	source  *catalogSource
	backend *cartBackend
	disp    *Dispatcher
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	store := cache.NewMemoryStore()
	source := &catalogSource{products: []catalog.Product{
		{ID: "7", Title: "Tuna", Description: "Yellowfin", Price: 12.5, ImageURL: "/uploads/tuna.jpg"},
		{ID: "8", Title: "Salmon", Price: 20},
	}}
	backend := &cartBackend{}
	catalogClient := catalog.NewClient(store, source)
	carts := cart.NewService(store, backend, catalogClient, nil)
	machine := conversation.NewMachine(catalogClient, carts, conversation.NewQuantityStore(store, 0))
	return &fixture{
		store:   store,
		source:  source,
		backend: backend,
		disp:    NewDispatcher(store, cache.NewLocalLocker(), machine, opts),
	}
}

func (f *fixture) storedState(t *testing.T, userID int64) (string, bool) {
	t.Helper()
	raw, ok, err := f.store.Get(context.Background(), Key(userID))
	require.NoError(t, err)
	return string(raw), ok
}

func TestShoppingScenario(t *testing.T) {
	f := newFixture(t, Options{ReportErrors: true})
	ctx := context.Background()
	const user, chat = int64(42), int64(42)

	reply, err := f.disp.Dispatch(ctx, conversation.StartEvent(user, chat))
	require.NoError(t, err)
	require.Len(t, reply.Effects, 1)
	var titles []string
	for _, row := range reply.Effects[0].Keyboard[:len(reply.Effects[0].Keyboard)-1] {
		titles = append(titles, row[0].Text)
	}
	assert.Equal(t, []string{"Tuna", "Salmon"}, titles)
	st, _ := f.storedState(t, user)
	assert.Equal(t, "BROWSING_MENU", st)

	reply, err = f.disp.Dispatch(ctx, conversation.ParseCallback(user, chat, 100, "7"))
	require.NoError(t, err)
	require.Equal(t, conversation.EffectSendPhoto, reply.Effects[0].Kind)
	assert.Equal(t, "1", reply.Effects[0].Keyboard[0][1].Text)
	st, _ = f.storedState(t, user)
	assert.Equal(t, "VIEWING_PRODUCT", st)

	for i := 0; i < 2; i++ {
		reply, err = f.disp.Dispatch(ctx, conversation.ParseCallback(user, chat, 101, "increase_7"))
		require.NoError(t, err)
		assert.False(t, reply.Persisted)
	}
	require.Len(t, reply.Effects, 1)
	assert.Equal(t, "3", reply.Effects[0].Keyboard[0][1].Text)
	st, _ = f.storedState(t, user)
	assert.Equal(t, "VIEWING_PRODUCT", st)

	_, err = f.disp.Dispatch(ctx, conversation.ParseCallback(user, chat, 101, "add_to_cart_7"))
	require.NoError(t, err)
	assert.Equal(t, 1, f.backend.creates)
	assert.Equal(t, []cart.Line{{ProductID: "7", Quantity: 3}}, f.backend.lines["31"])

	reply, err = f.disp.Dispatch(ctx, conversation.ParseCallback(user, chat, 101, "SHOW_CART"))
	require.NoError(t, err)
	require.Len(t, reply.Effects, 1)
	assert.Contains(t, reply.Effects[0].Text, "Tuna")
	assert.Contains(t, reply.Effects[0].Text, "3 pcs")
	st, _ = f.storedState(t, user)
	assert.Equal(t, "BROWSING_MENU", st)
}

func TestAbsentSessionIsStart(t *testing.T) {
	f := newFixture(t, Options{})
	reply, err := f.disp.Dispatch(context.Background(), conversation.TextEvent(5, 5, "hello"))
	require.NoError(t, err)
	assert.Equal(t, conversation.StateStart, reply.State)
	assert.Equal(t, conversation.StateBrowsingMenu, reply.Next)
	assert.True(t, reply.Persisted)
}

func TestUnhandledEventKeepsState(t *testing.T) {
	f := newFixture(t, Options{ReportErrors: true})
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, Key(5), []byte("BROWSING_MENU"), 0))

	before, _ := f.storedState(t, 5)
	reply, err := f.disp.Dispatch(ctx, conversation.TextEvent(5, 5, "where is my order"))
	require.ErrorIs(t, err, conversation.ErrUnhandledEvent)
	after, _ := f.storedState(t, 5)

	assert.Equal(t, before, after)
	assert.False(t, reply.Persisted)
	require.Len(t, reply.Effects, 1)
	assert.Equal(t, NotUnderstoodText, reply.Effects[0].Text)
}

func TestUnknownStoredStateRequiresStart(t *testing.T) {
	f := newFixture(t, Options{ReportErrors: true})
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, Key(5), []byte("HANDLE_DESCRIPTION"), 0))

	_, err := f.disp.Dispatch(ctx, conversation.ParseCallback(5, 5, 1, "7"))
	require.ErrorIs(t, err, conversation.ErrUnknownState)
	st, _ := f.storedState(t, 5)
	assert.Equal(t, "HANDLE_DESCRIPTION", st)

	_, err = f.disp.Dispatch(ctx, conversation.StartEvent(5, 5))
	require.NoError(t, err)
	st, _ = f.storedState(t, 5)
	assert.Equal(t, "BROWSING_MENU", st)
}

func TestFailuresWithoutReportingAreSilent(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, Key(5), []byte("VIEWING_PRODUCT"), 0))

	reply, err := f.disp.Dispatch(ctx, conversation.ParseCallback(5, 5, 1, "99"))
	require.Error(t, err)
	assert.Empty(t, reply.Effects)
}

func TestServiceFailureNotice(t *testing.T) {
	f := newFixture(t, Options{ReportErrors: true})
	ctx := context.Background()
	require.NoError(t, f.store.Set(ctx, Key(5), []byte("BROWSING_MENU"), 0))

	reply, err := f.disp.Dispatch(ctx, conversation.ParseCallback(5, 5, 1, "99"))
	require.ErrorIs(t, err, catalog.ErrUnavailable)
	assert.Equal(t, "catalog_unavailable", ErrorCode(err))
	require.Len(t, reply.Effects, 1)
	assert.Equal(t, FailureText, reply.Effects[0].Text)
	st, _ := f.storedState(t, 5)
	assert.Equal(t, "BROWSING_MENU", st)
}

func TestStateTTL(t *testing.T) {
	store := &recordingStore{MemoryStore: cache.NewMemoryStore()}
	machine := conversation.NewMachine(
		catalog.NewClient(store, &catalogSource{}),
		nil,
		conversation.NewQuantityStore(store, 0),
	)
	disp := NewDispatcher(store, nil, machine, Options{StateTTL: 30 * time.Minute})

	_, err := disp.Dispatch(context.Background(), conversation.StartEvent(9, 9))
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, store.ttls[Key(9)])
}

type recordingStore struct {
	*cache.MemoryStore
	ttls map[string]time.Duration
}

func (s *recordingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.ttls == nil {
		s.ttls = make(map[string]time.Duration)
	}
	s.ttls[key] = ttl
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

type unavailableStore struct{ cache.Store }

func (unavailableStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, &cache.OpError{Op: "get", Err: context.DeadlineExceeded}
}

func TestCacheUnavailable(t *testing.T) {
	disp := NewDispatcher(unavailableStore{}, nil, nil, Options{ReportErrors: true})
	reply, err := disp.Dispatch(context.Background(), conversation.ParseCallback(1, 1, 1, "7"))
	require.ErrorIs(t, err, cache.ErrUnavailable)
	assert.Equal(t, "cache_unavailable", ErrorCode(err))
	require.Len(t, reply.Effects, 1)
	assert.Equal(t, FailureText, reply.Effects[0].Text)
}

type stateWriteFailStore struct {
	*cache.MemoryStore
}

func (s stateWriteFailStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if key == Key(3) {
		return &cache.OpError{Op: "set", Key: key, Err: errors.New("connection reset")}
	}
	return s.MemoryStore.Set(ctx, key, value, ttl)
}

type addedHandler struct{}

func (addedHandler) Handle(_ context.Context, _ conversation.State, ev conversation.Event) (conversation.Result, error) {
	return conversation.Result{
		Next:    conversation.StateViewingProduct,
		Persist: true,
		Effects: []conversation.Effect{conversation.SendText(ev.ChatID, conversation.AddedText(2, "Tuna"), nil)},
	}, nil
}

func TestStateWriteFailureKeepsReplyOnly(t *testing.T) {
	store := stateWriteFailStore{MemoryStore: cache.NewMemoryStore()}
	ctx := context.Background()
	require.NoError(t, store.MemoryStore.Set(ctx, Key(3), []byte("VIEWING_PRODUCT"), 0))
	disp := NewDispatcher(store, cache.NewLocalLocker(), addedHandler{}, Options{ReportErrors: true})

	reply, err := disp.Dispatch(ctx, conversation.ParseCallback(3, 3, 1, "add_to_cart_7"))
	require.ErrorIs(t, err, cache.ErrUnavailable)
	assert.False(t, reply.Persisted)
	require.Len(t, reply.Effects, 1)
	assert.Equal(t, "2 pcs Tuna added to cart", reply.Effects[0].Text)
	for _, eff := range reply.Effects {
		assert.NotEqual(t, FailureText, eff.Text)
	}
}

type overlapHandler struct {
	active  atomic.Int32
	overlap atomic.Bool
}

func (h *overlapHandler) Handle(context.Context, conversation.State, conversation.Event) (conversation.Result, error) {
	if h.active.Add(1) > 1 {
		h.overlap.Store(true)
	}
	time.Sleep(2 * time.Millisecond)
	h.active.Add(-1)
	return conversation.Result{Next: conversation.StateBrowsingMenu, Persist: true}, nil
}

func TestSameUserEventsAreSerialized(t *testing.T) {
	h := &overlapHandler{}
	disp := NewDispatcher(cache.NewMemoryStore(), cache.NewLocalLocker(), h, Options{})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := disp.Dispatch(context.Background(), conversation.ParseCallback(1, 1, 1, "SHOW_CART"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.False(t, h.overlap.Load())
}
