package gateway

import (
	"errors"
	"fmt"

	"github.com/fjod/go_cart/cart-drawer/internal/domain"
)

var (
	ErrTransport   = errors.New("cart request did not complete")
	ErrValidation  = errors.New("cart rejected the mutation")
	ErrUnavailable = errors.New("item is no longer available")
)

// Error is the typed outcome of a failed mutation.
type Error struct {
	Kind    domain.ErrorKind
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = sentinel(e.Kind).Error()
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == domain.TransportError
	case ErrValidation:
		return e.Kind == domain.ValidationError
	case ErrUnavailable:
		return e.Kind == domain.UnavailableError
	}
	return false
}

func sentinel(kind domain.ErrorKind) error {
	switch kind {
	case domain.ValidationError:
		return ErrValidation
	case domain.UnavailableError:
		return ErrUnavailable
	default:
		return ErrTransport
	}
}

// KindOf returns the outcome kind carried by err.
func KindOf(err error) (domain.ErrorKind, bool) {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Kind, true
	}
	return 0, false
}

// MessageOf returns the platform message carried by err, if any.
func MessageOf(err error) string {
	var gwErr *Error
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return ""
}
