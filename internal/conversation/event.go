package conversation

import "strings"

// Callback payloads shared by the keyboards and the parser.
const (
	PayloadShowCart   = "SHOW_CART"
	PayloadBackToMenu = "BACK_TO_MENU"

	prefixIncrease  = "increase_"
	prefixDecrease  = "decrease_"
	prefixAddToCart = "add_to_cart_"
	prefixQuantity  = "quantity_"
)

// EventKind classifies inbound events.
type EventKind int

const (
	EventUnknown EventKind = iota
	EventStart
	EventText
	EventSelectProduct
	EventIncrease
	EventDecrease
	EventQuantityLabel
	EventAddToCart
	EventBackToMenu
	EventShowCart
)

var eventKindNames = [...]string{
	EventUnknown:       "unknown",
	EventStart:         "start",
	EventText:          "text",
	EventSelectProduct: "select_product",
	EventIncrease:      "increase",
	EventDecrease:      "decrease",
	EventQuantityLabel: "quantity_label",
	EventAddToCart:     "add_to_cart",
	EventBackToMenu:    "back_to_menu",
	EventShowCart:      "show_cart",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

// Stepper reports whether the event only adjusts the pending quantity.
func (k EventKind) Stepper() bool {
	return k == EventIncrease || k == EventDecrease || k == EventQuantityLabel
}

// Event is one inbound user action.
type Event struct {
	Kind   EventKind
	UserID int64
	ChatID int64
	// MessageID is the message carrying the pressed keyboard; zero for typed input.
	MessageID int
	ProductID string
	// Payload is the raw callback data or message text.
	Payload string
}

func (e Event) String() string {
	if e.ProductID != "" {
		return e.Kind.String() + ":" + e.ProductID
	}
	return e.Kind.String()
}

// StartEvent is the explicit restart command.
func StartEvent(userID, chatID int64) Event {
	return Event{Kind: EventStart, UserID: userID, ChatID: chatID, Payload: "/start"}
}

// TextEvent wraps a free-text message.
func TextEvent(userID, chatID int64, text string) Event {
	return Event{Kind: EventText, UserID: userID, ChatID: chatID, Payload: text}
}

// ParseCallback classifies a button press by its callback data.
// Anything that is not a control payload selects the product with that id.
func ParseCallback(userID, chatID int64, messageID int, data string) Event {
	ev := Event{UserID: userID, ChatID: chatID, MessageID: messageID, Payload: data}
	data = strings.TrimSpace(data)

	switch {
	case data == "":
		ev.Kind = EventUnknown
	case data == PayloadShowCart:
		ev.Kind = EventShowCart
	case data == PayloadBackToMenu:
		ev.Kind = EventBackToMenu
	case strings.HasPrefix(data, prefixIncrease):
		ev.Kind, ev.ProductID = withProduct(EventIncrease, data, prefixIncrease)
	case strings.HasPrefix(data, prefixDecrease):
		ev.Kind, ev.ProductID = withProduct(EventDecrease, data, prefixDecrease)
	case strings.HasPrefix(data, prefixAddToCart):
		ev.Kind, ev.ProductID = withProduct(EventAddToCart, data, prefixAddToCart)
	case strings.HasPrefix(data, prefixQuantity):
		ev.Kind, ev.ProductID = withProduct(EventQuantityLabel, data, prefixQuantity)
	default:
		ev.Kind, ev.ProductID = EventSelectProduct, data
	}
	return ev
}

func withProduct(kind EventKind, data, prefix string) (EventKind, string) {
	id := strings.TrimPrefix(data, prefix)
	if id == "" {
		return EventUnknown, ""
	}
	return kind, id
}
