package storefront

import (
	"context"
	"errors"
)

// Store persists session carts by token.
type Store interface {
	Load(ctx context.Context, token string) (*Cart, error)
	Save(ctx context.Context, cart *Cart) error
	Delete(ctx context.Context, token string) error
}

var ErrCartNotFound = errors.New("cart not found")
