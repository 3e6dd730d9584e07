package order

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Sentinel errors for order and line item mutations.
var (
	ErrAdjustmentNotFound = errors.New("adjustment not found")
	ErrInvalidQuantity    = errors.New("quantity must be at least 1")
	ErrDuplicateLineItem  = errors.New("line item already in order")
	ErrNilLineItem        = errors.New("line item is nil")
	ErrAmbiguousReference = errors.New("reference must contain a single id")
	ErrInvalidReference   = errors.New("reference id must not be negative")
)

// Sentinel errors returned by the order service and repositories.
var (
	ErrNotFound             = errors.New("order not found")
	ErrLineItemNotFound     = errors.New("line item not found")
	ErrOrderLocked          = errors.New("order is no longer a draft")
	ErrEmptyOrder           = errors.New("order has no line items")
	ErrCouponAlreadyApplied = errors.New("order already has a promotion")
)

// InvalidQuantityError indicates a line item quantity below 1.
type InvalidQuantityError struct {
	Quantity int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be at least 1, got %d", e.Quantity)
}

// Is makes InvalidQuantityError match ErrInvalidQuantity.
func (e *InvalidQuantityError) Is(target error) bool {
	return target == ErrInvalidQuantity
}
