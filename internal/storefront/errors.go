package storefront

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownLine     = errors.New("cart line not found")
	ErrUnknownVariant  = errors.New("variant not found")
	ErrSoldOut         = errors.New("variant is sold out")
	ErrInvalidQuantity = errors.New("quantity must not be negative")
	ErrEmptyMutation   = errors.New("mutation changes nothing")
)

// SoldOutError reports a variant that cannot be added at all.
type SoldOutError struct {
	Title string
}

func (e *SoldOutError) Error() string {
	return fmt.Sprintf("The product '%s' is already sold out.", e.Title)
}

func (e *SoldOutError) Is(target error) bool {
	return target == ErrSoldOut
}
