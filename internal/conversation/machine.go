package conversation

import (
	"context"
	"log/slog"

	"github.com/m3rciful/shopbot/core/logger"
	"github.com/m3rciful/shopbot/internal/cart"
	"github.com/m3rciful/shopbot/internal/catalog"
)

// Catalog is the read side used to render menus and product views.
type Catalog interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	GetProductDetail(ctx context.Context, id string) (catalog.Product, error)
}

// Cart is the write and read side of the user's cart.
type Cart interface {
	AddToUserCart(ctx context.Context, userID int64, productID string, quantity int) (string, error)
	Contents(ctx context.Context, userID int64) ([]cart.Item, error)
}

// Machine maps (state, event) to effects and the next state.
type Machine struct {
	catalog    Catalog
	cart       Cart
	quantities *QuantityStore
}

// NewMachine wires the transition function to its collaborators.
func NewMachine(cat Catalog, c Cart, quantities *QuantityStore) *Machine {
	return &Machine{catalog: cat, cart: c, quantities: quantities}
}

// Handle runs one transition. On error no effects are returned and the
// caller must leave the session untouched.
func (m *Machine) Handle(ctx context.Context, st State, ev Event) (Result, error) {
	if ev.Kind == EventStart {
		return m.showMenu(ctx, ev)
	}

	switch st {
	case StateStart:
		return m.showMenu(ctx, ev)
	case StateBrowsingMenu, StateViewingCart:
		return m.handleMenu(ctx, st, ev)
	case StateViewingProduct:
		return m.handleProduct(ctx, st, ev)
	}
	return Result{}, &StateError{Value: string(st)}
}

func (m *Machine) handleMenu(ctx context.Context, st State, ev Event) (Result, error) {
	switch ev.Kind {
	case EventSelectProduct:
		return m.showProduct(ctx, ev)
	case EventShowCart:
		return m.showCart(ctx, ev)
	case EventBackToMenu:
		return m.showMenu(ctx, ev)
	}
	return Result{}, &EventError{State: st, Event: ev}
}

func (m *Machine) handleProduct(ctx context.Context, st State, ev Event) (Result, error) {
	switch ev.Kind {
	case EventIncrease:
		return m.step(ctx, ev, 1)
	case EventDecrease:
		return m.step(ctx, ev, -1)
	case EventQuantityLabel:
		return Result{Next: StateViewingProduct}, nil
	case EventAddToCart:
		return m.addToCart(ctx, ev)
	case EventShowCart:
		return m.showCart(ctx, ev)
	case EventBackToMenu:
		return m.showMenu(ctx, ev)
	}
	return Result{}, &EventError{State: st, Event: ev}
}

// showMenu sends the product list and drops the message the user pressed on.
func (m *Machine) showMenu(ctx context.Context, ev Event) (Result, error) {
	products, err := m.catalog.ListProducts(ctx)
	if err != nil {
		return Result{}, err
	}
	effects := []Effect{SendText(ev.ChatID, MenuText, MenuKeyboard(products))}
	if ev.Kind == EventBackToMenu && ev.MessageID != 0 {
		effects = append(effects, Effect{Kind: EffectDeleteMessage, ChatID: ev.ChatID, MessageID: ev.MessageID})
	}
	return Result{Next: StateBrowsingMenu, Persist: true, Effects: effects}, nil
}

func (m *Machine) showProduct(ctx context.Context, ev Event) (Result, error) {
	product, err := m.catalog.GetProductDetail(ctx, ev.ProductID)
	if err != nil {
		return Result{}, err
	}
	if err := m.quantities.Reset(ctx, ev.UserID, product.ID); err != nil {
		return Result{}, err
	}

	effects := []Effect{{
		Kind:     EffectSendPhoto,
		ChatID:   ev.ChatID,
		Text:     product.Caption(),
		ImageURL: product.ImageURL,
		Keyboard: ProductKeyboard(product.ID, 1),
	}}
	if ev.MessageID != 0 {
		effects = append(effects, Effect{Kind: EffectDeleteMessage, ChatID: ev.ChatID, MessageID: ev.MessageID})
	}
	logger.Debug(ctx, "fsm", "product.view",
		slog.String("product_id", product.ID),
	)
	return Result{Next: StateViewingProduct, Persist: true, Effects: effects}, nil
}

// step adjusts the pending quantity and redraws the stepper in place.
// The session key is never written for stepper events.
func (m *Machine) step(ctx context.Context, ev Event, delta int) (Result, error) {
	before, after, err := m.quantities.Adjust(ctx, ev.UserID, ev.ProductID, delta)
	if err != nil {
		return Result{}, err
	}
	res := Result{Next: StateViewingProduct}
	shown := DisplayQuantity(after)
	if shown != DisplayQuantity(before) && ev.MessageID != 0 {
		res.Effects = []Effect{{
			Kind:      EffectEditKeyboard,
			ChatID:    ev.ChatID,
			MessageID: ev.MessageID,
			Keyboard:  ProductKeyboard(ev.ProductID, shown),
		}}
	}
	return res, nil
}

func (m *Machine) addToCart(ctx context.Context, ev Event) (Result, error) {
	tally, err := m.quantities.Tally(ctx, ev.UserID, ev.ProductID)
	if err != nil {
		return Result{}, err
	}
	quantity := DisplayQuantity(tally)

	product, err := m.catalog.GetProductDetail(ctx, ev.ProductID)
	if err != nil {
		return Result{}, err
	}
	cartID, err := m.cart.AddToUserCart(ctx, ev.UserID, product.ID, quantity)
	if err != nil {
		return Result{}, err
	}
	logger.Info(ctx, "fsm", "cart.added",
		slog.String("cart_id", cartID),
		slog.String("product_id", product.ID),
		slog.Int("quantity", quantity),
	)
	return Result{
		Next:    StateViewingProduct,
		Persist: true,
		Effects: []Effect{SendText(ev.ChatID, AddedText(quantity, product.Title), nil)},
	}, nil
}

// showCart renders the cart; afterwards the user is back on the menu.
func (m *Machine) showCart(ctx context.Context, ev Event) (Result, error) {
	items, err := m.cart.Contents(ctx, ev.UserID)
	if err != nil {
		return Result{}, err
	}
	ctx = logger.WithState(ctx, string(StateViewingCart))
	logger.Debug(ctx, "fsm", "cart.view",
		slog.Int("lines", len(items)),
	)
	return Result{
		Next:    StateBrowsingMenu,
		Persist: true,
		Effects: []Effect{SendText(ev.ChatID, CartText(items), CartKeyboard())},
	}, nil
}
