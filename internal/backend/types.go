package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/m3rciful/shopbot/internal/catalog"
)

// entityID accepts numeric or string identifiers.
type entityID string

func (id *entityID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = entityID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("entity id: %w", err)
	}
	*id = entityID(n.String())
	return nil
}

type envelope[T any] struct {
	Data T `json:"data"`
}

type relation[T any] struct {
	Data *T `json:"data"`
}

type relationList[T any] struct {
	Data []T `json:"data"`
}

type mediaEntity struct {
	ID         entityID `json:"id"`
	Attributes struct {
		URL string `json:"url"`
	} `json:"attributes"`
}

type productEntity struct {
	ID         entityID `json:"id"`
	Attributes struct {
		Title       string                `json:"title"`
		Description string                `json:"description"`
		Price       json.Number           `json:"price"`
		Picture     relation[mediaEntity] `json:"picture"`
	} `json:"attributes"`
}

func (p productEntity) toProduct() catalog.Product {
	out := catalog.Product{
		ID:          string(p.ID),
		Title:       p.Attributes.Title,
		Description: p.Attributes.Description,
	}
	if p.Attributes.Price != "" {
		if f, err := strconv.ParseFloat(p.Attributes.Price.String(), 64); err == nil {
			out.Price = f
		}
	}
	if pic := p.Attributes.Picture.Data; pic != nil {
		out.ImageURL = pic.Attributes.URL
	}
	return out
}

type cartProductEntity struct {
	ID         entityID `json:"id"`
	Attributes struct {
		Quantity int                     `json:"quantity"`
		Product  relation[productEntity] `json:"product"`
	} `json:"attributes"`
}

type cartEntity struct {
	ID         entityID `json:"id"`
	Attributes struct {
		TelegramUserID string                          `json:"TelegramUserID"`
		CartProducts   relationList[cartProductEntity] `json:"cart_products"`
	} `json:"attributes"`
}

type createCartRequest struct {
	TelegramUserID string `json:"TelegramUserID"`
}

type createCartProductRequest struct {
	Cart     string `json:"cart"`
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}
