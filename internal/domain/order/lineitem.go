package order

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/commerce-order/internal/domain/money"
)

// LineItem is a quantity of one purchasable entity at a unit price, with its
// own adjustments.
//
// Adjustments on a line item are per-unit deltas: they are added to the unit
// price before scaling by quantity.
//
// A line item belongs to at most one order at a time. While it does, every
// price, quantity or adjustment change recomputes that order's total and is
// rejected, leaving both untouched, if the order can no longer be totalled.
type LineItem struct {
	ID                string
	OrderID           string
	Title             string
	PurchasedEntityID string
	CreatedAt         time.Time
	UpdatedAt         time.Time

	unitPrice   money.Money
	quantity    int
	adjustments []Adjustment

	owner *Order
}

// NewLineItem returns a line item with a fresh ID.
func NewLineItem(unitPrice money.Money, quantity int) (*LineItem, error) {
	if quantity < 1 {
		return nil, &InvalidQuantityError{Quantity: quantity}
	}
	now := time.Now()
	return &LineItem{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
		unitPrice: unitPrice,
		quantity:  quantity,
	}, nil
}

// UnitPrice returns the price of a single unit before adjustments.
func (li *LineItem) UnitPrice() money.Money { return li.unitPrice }

// SetUnitPrice replaces the unit price. It fails with money.ErrCurrencyMismatch
// if existing adjustments are in another currency.
func (li *LineItem) SetUnitPrice(price money.Money) error {
	return li.update(price, li.quantity, li.adjustments)
}

// Quantity returns the number of units.
func (li *LineItem) Quantity() int { return li.quantity }

// SetQuantity sets the number of units.
func (li *LineItem) SetQuantity(quantity int) error {
	if quantity < 1 {
		return &InvalidQuantityError{Quantity: quantity}
	}
	return li.update(li.unitPrice, quantity, li.adjustments)
}

// Adjustments returns a copy of the adjustments in insertion order.
func (li *LineItem) Adjustments() []Adjustment {
	return slices.Clone(li.adjustments)
}

// SetAdjustments replaces all adjustments.
func (li *LineItem) SetAdjustments(adjustments []Adjustment) error {
	return li.update(li.unitPrice, li.quantity, slices.Clone(adjustments))
}

// AddAdjustment appends an adjustment.
func (li *LineItem) AddAdjustment(a Adjustment) error {
	return li.update(li.unitPrice, li.quantity, append(slices.Clone(li.adjustments), a))
}

// RemoveAdjustment removes the first adjustment equal to a, or fails with
// ErrAdjustmentNotFound.
func (li *LineItem) RemoveAdjustment(a Adjustment) error {
	next, err := removeAdjustment(li.adjustments, a)
	if err != nil {
		return err
	}
	return li.update(li.unitPrice, li.quantity, next)
}

// update validates the candidate state, stores it and recomputes the owning
// order's total. Any failure restores the previous state.
func (li *LineItem) update(price money.Money, quantity int, adjustments []Adjustment) error {
	if err := validateAdjustments(adjustments); err != nil {
		return err
	}
	if _, err := applyAdjustments(price, adjustments); err != nil {
		return err
	}

	prevPrice, prevQuantity, prevAdjustments := li.unitPrice, li.quantity, li.adjustments
	li.unitPrice, li.quantity, li.adjustments = price, quantity, adjustments
	if li.owner == nil {
		return nil
	}
	if err := li.owner.RecalculateTotalPrice(); err != nil {
		li.unitPrice, li.quantity, li.adjustments = prevPrice, prevQuantity, prevAdjustments
		return err
	}
	return nil
}

// AdjustedUnitPrice returns the unit price plus all non-included adjustments.
func (li *LineItem) AdjustedUnitPrice() (money.Money, error) {
	return applyAdjustments(li.unitPrice, li.adjustments)
}

// TotalPrice returns the adjusted unit price multiplied by quantity.
func (li *LineItem) TotalPrice() (money.Money, error) {
	unit, err := li.AdjustedUnitPrice()
	if err != nil {
		return money.Money{}, err
	}
	return unit.MulInt(int64(li.quantity)), nil
}
