package conversation

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/m3rciful/shopbot/internal/cart"
	"github.com/m3rciful/shopbot/internal/catalog"
)

// Texts shown to users.
const (
	MenuText       = "Please choose:"
	EmptyCartText  = "Your cart is empty."
	myCartLabel    = "🛒 My cart"
	addToCartLabel = "Add to cart"
	backLabel      = "⬅️ Back"
	backToMenu     = "⬅️ Back to menu"
)

// MenuKeyboard lists one button per product followed by the cart button.
func MenuKeyboard(products []catalog.Product) Keyboard {
	kb := make(Keyboard, 0, len(products)+1)
	for _, p := range products {
		kb = append(kb, []Button{{Text: p.Title, Data: p.ID}})
	}
	return append(kb, []Button{{Text: myCartLabel, Data: PayloadShowCart}})
}

// ProductKeyboard is the detail view stepper with add, cart and back controls.
func ProductKeyboard(productID string, quantity int) Keyboard {
	return Keyboard{
		{
			{Text: "-", Data: prefixDecrease + productID},
			{Text: strconv.Itoa(quantity), Data: prefixQuantity + productID},
			{Text: "+", Data: prefixIncrease + productID},
		},
		{{Text: addToCartLabel, Data: prefixAddToCart + productID}},
		{{Text: myCartLabel, Data: PayloadShowCart}},
		{{Text: backLabel, Data: PayloadBackToMenu}},
	}
}

// CartKeyboard returns the user to the menu.
func CartKeyboard() Keyboard {
	return Keyboard{{{Text: backToMenu, Data: PayloadBackToMenu}}}
}

// CartText renders one line per cart row with the order total.
func CartText(items []cart.Item) string {
	if len(items) == 0 {
		return EmptyCartText
	}
	var (
		b     strings.Builder
		total float64
	)
	b.WriteString("Your cart:\n\n")
	for _, it := range items {
		sum := it.Product.Price * float64(it.Quantity)
		total += sum
		fmt.Fprintf(&b, "%s\n%s per item, %d pcs, %s\n\n",
			it.Product.Title, it.Product.PriceText(), it.Quantity, formatMoney(sum))
	}
	fmt.Fprintf(&b, "Total: %s", formatMoney(total))
	return b.String()
}

// AddedText confirms an add-to-cart.
func AddedText(quantity int, title string) string {
	return fmt.Sprintf("%d pcs %s added to cart", quantity, title)
}

func formatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
