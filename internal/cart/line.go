package cart

// Line is one (product, quantity) pair attached to a backend cart.
type Line struct {
	ProductID string
	Quantity  int
}
