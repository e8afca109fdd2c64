package services

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/stackmartapp/stackmart/internal/models"
)

var (
	// ErrUnauthorized means the caller is not authenticated.
	ErrUnauthorized = errors.New("authentication required")
	// ErrForbidden means the caller may not act on this resource.
	ErrForbidden = errors.New("forbidden")
	// ErrEmptyCart means checkout was attempted with no cart items.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInvalidTotal means the caller's total does not match the cart
	// priced against current product data.
	ErrInvalidTotal = errors.New("order total does not match cart")
)

// InvalidInputError reports a request field that failed validation.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTransitionError reports a status change the state machine forbids.
type InvalidTransitionError struct {
	OrderID   uuid.UUID
	Current   models.OrderStatus
	Requested models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("order %s cannot move from %s to %s", e.OrderID, e.Current, e.Requested)
}
