package session

import (
	"errors"

	"github.com/m3rciful/shopbot/core/cache"
	"github.com/m3rciful/shopbot/internal/cart"
	"github.com/m3rciful/shopbot/internal/catalog"
	"github.com/m3rciful/shopbot/internal/conversation"
)

var errorCodes = []struct {
	err  error
	code string
}{
	{cache.ErrUnavailable, "cache_unavailable"},
	{catalog.ErrUnavailable, "catalog_unavailable"},
	{cart.ErrCreationFailed, "cart_creation_failed"},
	{cart.ErrMutationFailed, "cart_mutation_failed"},
	{cart.ErrFetchFailed, "cart_fetch_failed"},
	{cart.ErrInvalidQuantity, "invalid_quantity"},
	{conversation.ErrUnknownState, "unknown_state"},
	{conversation.ErrUnhandledEvent, "unhandled_event"},
}

// ErrorCode maps an error to its kind for logs.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, ec := range errorCodes {
		if errors.Is(err, ec.err) {
			return ec.code
		}
	}
	return "internal"
}
