package order

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/commerce-order/internal/domain/coupon"
	"github.com/xenking/commerce-order/internal/domain/customer"
	"github.com/xenking/commerce-order/internal/domain/product"
	"github.com/xenking/commerce-order/internal/domain/store"
)

// CreateOrderRequest holds the input for creating a draft order.
type CreateOrderRequest struct {
	StoreID          int64
	OwnerID          int64
	BillingProfileID int64
	Email            string
	IPAddress        string
}

// AddProductRequest holds the input for adding a product to an order.
type AddProductRequest struct {
	OrderID   string
	ProductID string
	Quantity  int
}

// Parties are the entities an order's references resolve to. Unset
// references stay nil.
type Parties struct {
	Store          *store.Store
	Owner          *customer.Customer
	BillingProfile *customer.Profile
}

// Service composes the order aggregate with its collaborators.
type Service struct {
	orders    Repository
	products  product.Repository
	stores    store.Repository
	customers customer.Repository
	coupons   coupon.Validator
	workflow  Workflow
	now       func() time.Time
}

// NewService creates an order Service with the required dependencies.
func NewService(
	orders Repository,
	products product.Repository,
	stores store.Repository,
	customers customer.Repository,
	coupons coupon.Validator,
	workflow Workflow,
) *Service {
	return &Service{
		orders:    orders,
		products:  products,
		stores:    stores,
		customers: customers,
		coupons:   coupons,
		workflow:  workflow,
		now:       time.Now,
	}
}

// CreateOrder persists a new draft order for an existing store.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (*Order, error) {
	if _, err := s.stores.GetByID(ctx, req.StoreID); err != nil {
		return nil, errors.Wrap(err, "get store")
	}

	o := New()
	o.SetCreatedAt(s.now())
	o.SetEmail(req.Email)
	o.SetIPAddress(req.IPAddress)
	if err := o.SetStoreID(req.StoreID); err != nil {
		return nil, err
	}
	if err := o.SetOwnerID(req.OwnerID); err != nil {
		return nil, err
	}
	if err := o.SetBillingProfileID(req.BillingProfileID); err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// GetOrder loads an order by ID.
func (s *Service) GetOrder(ctx context.Context, id string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}

// AddProduct adds quantity units of a product to a draft order. A line item
// for the same product is reused and its quantity increased.
func (s *Service) AddProduct(ctx context.Context, req AddProductRequest) (*Order, error) {
	if req.Quantity < 1 {
		return nil, &InvalidQuantityError{Quantity: req.Quantity}
	}

	o, err := s.draft(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}

	p, err := s.products.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}

	if li := findByProduct(o, p.ID); li != nil {
		if err := li.SetQuantity(li.Quantity() + req.Quantity); err != nil {
			return nil, err
		}
		li.UpdatedAt = s.now()
	} else {
		li, err := NewLineItem(p.Price, req.Quantity)
		if err != nil {
			return nil, err
		}
		li.OrderID = o.ID
		li.Title = p.Name
		li.PurchasedEntityID = p.ID
		if err := o.AddLineItem(li); err != nil {
			return nil, errors.Wrapf(err, "add product %s", p.ID)
		}
	}

	if err := s.orders.Save(ctx, o); err != nil {
		return nil, errors.Wrap(err, "save order")
	}
	return o, nil
}

func findByProduct(o *Order, productID string) *LineItem {
	for _, li := range o.LineItems() {
		if li.PurchasedEntityID == productID {
			return li
		}
	}
	return nil
}

// RemoveLineItem drops a line item from a draft order.
func (s *Service) RemoveLineItem(ctx context.Context, orderID, lineItemID string) (*Order, error) {
	o, err := s.draft(ctx, orderID)
	if err != nil {
		return nil, err
	}

	li, ok := o.LineItemByID(lineItemID)
	if !ok {
		return nil, ErrLineItemNotFound
	}
	if err := o.RemoveLineItem(li); err != nil {
		return nil, err
	}

	if err := s.orders.Save(ctx, o); err != nil {
		return nil, errors.Wrap(err, "save order")
	}
	return o, nil
}

// ApplyCoupon validates a coupon against the order's line items and records
// the discount as a promotion adjustment. The coupon use is counted only after
// the order has been saved.
func (s *Service) ApplyCoupon(ctx context.Context, orderID, code string) (*Order, error) {
	o, err := s.draft(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.HasLineItems() {
		return nil, ErrEmptyOrder
	}
	for _, a := range o.Adjustments() {
		if a.Type == AdjustmentPromotion {
			return nil, ErrCouponAlreadyApplied
		}
	}

	lineItems := o.LineItems()
	items := make([]coupon.Item, len(lineItems))
	for i, li := range lineItems {
		unit, err := li.AdjustedUnitPrice()
		if err != nil {
			return nil, err
		}
		items[i] = coupon.Item{
			LineItemID: li.ID,
			UnitPrice:  unit,
			Quantity:   li.Quantity(),
		}
	}

	discount, err := s.coupons.Validate(ctx, code, items)
	if err != nil {
		return nil, errors.Wrap(err, "validate coupon")
	}

	label := discount.Description
	if label == "" {
		label = discount.Code
	}
	if err := o.AddAdjustment(Adjustment{
		Type:   AdjustmentPromotion,
		Label:  label,
		Amount: discount.Amount.Neg(),
	}); err != nil {
		return nil, err
	}

	if err := s.orders.Save(ctx, o); err != nil {
		return nil, errors.Wrap(err, "save order")
	}
	if err := s.coupons.Redeem(ctx, discount.Code); err != nil {
		return nil, errors.Wrap(err, "redeem coupon")
	}
	return o, nil
}

// Transition moves the order along its workflow. Entering the placed state
// stamps the placed time and assigns an order number when missing.
func (s *Service) Transition(ctx context.Context, orderID, transition string) (*Order, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	next, err := s.workflow.Apply(o.State(), transition)
	if err != nil {
		return nil, err
	}
	o.SetState(next)

	if next == StatePlaced {
		o.SetPlacedAt(s.now())
		if o.OrderNumber() == "" {
			n, err := s.orders.NextOrderNumber(ctx)
			if err != nil {
				return nil, errors.Wrap(err, "next order number")
			}
			o.SetOrderNumber(strconv.FormatInt(n, 10))
		}
	}

	if err := s.orders.Save(ctx, o); err != nil {
		return nil, errors.Wrap(err, "save order")
	}
	return o, nil
}

// ResolveParties looks up the store, owner and billing profile of an order.
func (s *Service) ResolveParties(ctx context.Context, o *Order) (*Parties, error) {
	var (
		p   Parties
		err error
	)
	if id, ok := o.StoreID(); ok {
		if p.Store, err = s.stores.GetByID(ctx, id); err != nil {
			return nil, errors.Wrap(err, "get store")
		}
	}
	if id, ok := o.OwnerID(); ok {
		if p.Owner, err = s.customers.GetByID(ctx, id); err != nil {
			return nil, errors.Wrap(err, "get owner")
		}
	}
	if id, ok := o.BillingProfileID(); ok {
		if p.BillingProfile, err = s.customers.GetProfile(ctx, id); err != nil {
			return nil, errors.Wrap(err, "get billing profile")
		}
	}
	return &p, nil
}

func (s *Service) draft(ctx context.Context, orderID string) (*Order, error) {
	o, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.State() != StateDraft {
		return nil, ErrOrderLocked
	}
	return o, nil
}
