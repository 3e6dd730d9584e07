package order

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/xenking/commerce-order/internal/domain/money"
)

// State is an order lifecycle label. Transitions between states are validated
// by a Workflow; Order stores whatever it is given.
type State string

const (
	StateDraft     State = "draft"
	StatePlaced    State = "placed"
	StateCompleted State = "completed"
	StateCanceled  State = "canceled"
)

func (s State) String() string { return string(s) }

// DefaultType is the order bundle used when none is given.
const DefaultType = "default"

// Order is the aggregate root of a purchase: line items, order-level
// adjustments, lifecycle state and the derived total price.
//
// Every mutation of line items or adjustments recomputes the total before
// committing. A mutation that cannot be totalled (mixed currencies) is
// rejected and leaves the order unchanged. The same holds for changes made
// through a line item the order holds.
//
// Order is not safe for concurrent use.
type Order struct {
	ID string

	typ              string
	orderNumber      string
	storeID          int64
	ownerID          int64
	billingProfileID int64
	email            string
	ipAddress        string
	state            State
	createdAt        time.Time
	placedAt         time.Time

	lineItems   []*LineItem
	adjustments []Adjustment
	total       *money.Money
}

// New returns a draft order of the default type with a fresh ID.
func New() *Order {
	return &Order{
		ID:        uuid.New().String(),
		typ:       DefaultType,
		state:     StateDraft,
		createdAt: time.Now(),
	}
}

// Type returns the order bundle.
func (o *Order) Type() string {
	if o.typ == "" {
		return DefaultType
	}
	return o.typ
}

func (o *Order) SetType(typ string) { o.typ = typ }

func (o *Order) OrderNumber() string { return o.orderNumber }

func (o *Order) SetOrderNumber(n string) { o.orderNumber = n }

func (o *Order) Email() string { return o.email }

func (o *Order) SetEmail(email string) { o.email = email }

func (o *Order) IPAddress() string { return o.ipAddress }

func (o *Order) SetIPAddress(ip string) { o.ipAddress = ip }

// State returns the lifecycle label.
func (o *Order) State() State { return o.state }

// SetState stores the label verbatim. Validity is the Workflow's concern.
func (o *Order) SetState(s State) { o.state = s }

func (o *Order) CreatedAt() time.Time { return o.createdAt }

func (o *Order) SetCreatedAt(t time.Time) { o.createdAt = t }

// PlacedAt returns the time the order was placed, or the zero time.
func (o *Order) PlacedAt() time.Time { return o.placedAt }

func (o *Order) SetPlacedAt(t time.Time) { o.placedAt = t }

// StoreID returns the store reference and whether it is set.
func (o *Order) StoreID() (int64, bool) { return o.storeID, o.storeID != 0 }

// SetStoreID accepts a bare id or a single-element slice spread with ids...;
// zero or no id clears the reference.
func (o *Order) SetStoreID(ids ...int64) error {
	return setReference(&o.storeID, ids)
}

// OwnerID returns the owning customer reference and whether it is set.
func (o *Order) OwnerID() (int64, bool) { return o.ownerID, o.ownerID != 0 }

// SetOwnerID follows the same conventions as SetStoreID.
func (o *Order) SetOwnerID(ids ...int64) error {
	return setReference(&o.ownerID, ids)
}

// BillingProfileID returns the billing profile reference and whether it is set.
func (o *Order) BillingProfileID() (int64, bool) {
	return o.billingProfileID, o.billingProfileID != 0
}

// SetBillingProfileID follows the same conventions as SetStoreID.
func (o *Order) SetBillingProfileID(ids ...int64) error {
	return setReference(&o.billingProfileID, ids)
}

func setReference(dst *int64, ids []int64) error {
	var id int64
	switch len(ids) {
	case 0:
	case 1:
		id = ids[0]
	default:
		return ErrAmbiguousReference
	}
	if id < 0 {
		return ErrInvalidReference
	}
	*dst = id
	return nil
}

// LineItems returns the line items in insertion order. The slice is a copy;
// the line items are shared.
func (o *Order) LineItems() []*LineItem {
	return slices.Clone(o.lineItems)
}

// SetLineItems replaces all line items. Nil entries and repeated IDs are
// rejected.
func (o *Order) SetLineItems(items []*LineItem) error {
	seen := make(map[string]struct{}, len(items))
	for _, li := range items {
		if li == nil {
			return ErrNilLineItem
		}
		if _, ok := seen[li.ID]; ok {
			return ErrDuplicateLineItem
		}
		seen[li.ID] = struct{}{}
	}
	return o.commit(slices.Clone(items), o.adjustments)
}

// AddLineItem appends li unless a line item with the same ID is present, in
// which case it does nothing.
func (o *Order) AddLineItem(li *LineItem) error {
	if li == nil {
		return ErrNilLineItem
	}
	if o.HasLineItem(li) {
		return nil
	}
	return o.commit(append(slices.Clone(o.lineItems), li), o.adjustments)
}

// RemoveLineItem removes the line item with li's ID. Absent items are ignored.
func (o *Order) RemoveLineItem(li *LineItem) error {
	if li == nil {
		return nil
	}
	i := o.indexOf(li.ID)
	if i < 0 {
		return nil
	}
	return o.commit(slices.Delete(slices.Clone(o.lineItems), i, i+1), o.adjustments)
}

// HasLineItem reports whether a line item with li's ID is in the order.
func (o *Order) HasLineItem(li *LineItem) bool {
	return li != nil && o.indexOf(li.ID) >= 0
}

// HasLineItems reports whether the order has at least one line item.
func (o *Order) HasLineItems() bool { return len(o.lineItems) > 0 }

// LineItemByID returns the line item with the given ID.
func (o *Order) LineItemByID(id string) (*LineItem, bool) {
	i := o.indexOf(id)
	if i < 0 {
		return nil, false
	}
	return o.lineItems[i], true
}

func (o *Order) indexOf(id string) int {
	return slices.IndexFunc(o.lineItems, func(li *LineItem) bool { return li.ID == id })
}

// Adjustments returns a copy of the order-level adjustments.
func (o *Order) Adjustments() []Adjustment {
	return slices.Clone(o.adjustments)
}

// SetAdjustments replaces all order-level adjustments.
func (o *Order) SetAdjustments(adjustments []Adjustment) error {
	return o.commit(o.lineItems, slices.Clone(adjustments))
}

// AddAdjustment appends an order-level adjustment.
func (o *Order) AddAdjustment(a Adjustment) error {
	return o.commit(o.lineItems, append(slices.Clone(o.adjustments), a))
}

// RemoveAdjustment removes the first order-level adjustment equal to a, or
// fails with ErrAdjustmentNotFound.
func (o *Order) RemoveAdjustment(a Adjustment) error {
	next, err := removeAdjustment(o.adjustments, a)
	if err != nil {
		return err
	}
	return o.commit(o.lineItems, next)
}

// CollectAdjustments returns the adjustments of every line item followed by
// the order-level adjustments.
func (o *Order) CollectAdjustments() []Adjustment {
	var all []Adjustment
	for _, li := range o.lineItems {
		all = append(all, li.adjustments...)
	}
	return append(all, o.adjustments...)
}

// TotalPrice returns the total and false when the order has no line items.
// It never recomputes.
func (o *Order) TotalPrice() (money.Money, bool) {
	if o.total == nil {
		return money.Money{}, false
	}
	return *o.total, true
}

// SubtotalPrice returns the sum of line item totals before order-level
// adjustments, and false when the order has no line items.
func (o *Order) SubtotalPrice() (money.Money, bool, error) {
	sub, err := subtotal(o.lineItems)
	if err != nil || sub == nil {
		return money.Money{}, false, err
	}
	return *sub, true, nil
}

// RecalculateTotalPrice recomputes the cached total from the current line
// items and adjustments. On failure the previous total is kept. Line item
// changes call it on their own; it is needed only after the order's line
// items were changed while held by another order.
func (o *Order) RecalculateTotalPrice() error {
	return o.commit(o.lineItems, o.adjustments)
}

// commit computes the total for the candidate collections and stores
// everything only if that succeeds.
// Line items entering the order are adopted by it; line items leaving it are
// released.
func (o *Order) commit(items []*LineItem, adjustments []Adjustment) error {
	if err := validateAdjustments(adjustments); err != nil {
		return err
	}
	total, err := computeTotal(items, adjustments)
	if err != nil {
		return err
	}
	for _, li := range o.lineItems {
		if li.owner == o && !slices.Contains(items, li) {
			li.owner = nil
		}
	}
	for _, li := range items {
		li.owner = o
	}
	o.lineItems = items
	o.adjustments = adjustments
	o.total = total
	return nil
}

func subtotal(items []*LineItem) (*money.Money, error) {
	if len(items) == 0 {
		return nil, nil
	}
	sum, err := items[0].TotalPrice()
	if err != nil {
		return nil, err
	}
	for _, li := range items[1:] {
		price, err := li.TotalPrice()
		if err != nil {
			return nil, err
		}
		if sum, err = sum.Add(price); err != nil {
			return nil, err
		}
	}
	return &sum, nil
}

func computeTotal(items []*LineItem, adjustments []Adjustment) (*money.Money, error) {
	sub, err := subtotal(items)
	if err != nil || sub == nil {
		return nil, err
	}
	total, err := applyAdjustments(*sub, adjustments)
	if err != nil {
		return nil, err
	}
	return &total, nil
}

// Repository defines persistence operations for orders and their line items.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Save(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	NextOrderNumber(ctx context.Context) (int64, error)
}

// Workflow validates lifecycle transitions.
type Workflow interface {
	Apply(from State, transition string) (State, error)
}
