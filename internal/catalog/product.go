package catalog

import (
	"strconv"
	"strings"
)

// Product is one catalog entry as cached and rendered by the bot.
type Product struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Price       float64 `json:"price"`
	// ImageURL is the backend-relative path of the main picture; may be empty.
	ImageURL string `json:"image_url,omitempty"`
}

// PriceText formats the price without trailing zeros.
func (p Product) PriceText() string {
	return strconv.FormatFloat(p.Price, 'f', -1, 64)
}

// Caption is the product detail text shown under the photo.
func (p Product) Caption() string {
	title := strings.TrimSpace(p.Title)
	desc := strings.TrimSpace(p.Description)
	if desc == "" {
		return title
	}
	return title + ":\n\n" + desc
}
