package coupon

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-order/internal/domain/money"
)

var hundred = decimal.NewFromInt(100)

// Apply calculates the discount for the given rule and items. Items must share
// one currency. It returns ErrInvalidCoupon when there are no items, fewer
// units than the rule's minimum, or a fixed rule in another currency.
func Apply(rule *Rule, items []Item) (Discount, error) {
	if len(items) == 0 {
		return Discount{}, ErrInvalidCoupon
	}
	if rule.MinItems > 0 && totalQuantity(items) < rule.MinItems {
		return Discount{}, ErrInvalidCoupon
	}

	subtotal, err := calcSubtotal(items)
	if err != nil {
		return Discount{}, errors.Wrap(err, "subtotal")
	}

	var amount money.Money
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.Value.Div(hundred))
	case DiscountFixed:
		if rule.Currency != "" && !strings.EqualFold(rule.Currency, subtotal.Currency()) {
			return Discount{}, ErrInvalidCoupon
		}
		fixed, err := money.New(rule.Value, subtotal.Currency())
		if err != nil {
			return Discount{}, err
		}
		if amount, err = fixed.Min(subtotal); err != nil {
			return Discount{}, err
		}
	case DiscountFreeLowest:
		if amount, err = lowestUnitPrice(items); err != nil {
			return Discount{}, err
		}
	default:
		return Discount{}, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	if rule.MaxDiscount.IsPositive() {
		limit, err := money.New(rule.MaxDiscount, amount.Currency())
		if err != nil {
			return Discount{}, err
		}
		if amount, err = amount.Min(limit); err != nil {
			return Discount{}, err
		}
	}

	return Discount{
		Code:        rule.Code,
		Amount:      floorAtZero(amount).Round(),
		Description: rule.Description,
	}, nil
}

// calcSubtotal returns the sum of unit price * quantity across all items.
func calcSubtotal(items []Item) (money.Money, error) {
	sum := items[0].UnitPrice.MulInt(int64(items[0].Quantity))
	for _, item := range items[1:] {
		var err error
		sum, err = sum.Add(item.UnitPrice.MulInt(int64(item.Quantity)))
		if err != nil {
			return money.Money{}, err
		}
	}
	return sum, nil
}

func totalQuantity(items []Item) int {
	total := 0
	for _, item := range items {
		total += item.Quantity
	}
	return total
}

func lowestUnitPrice(items []Item) (money.Money, error) {
	lowest := items[0].UnitPrice
	for _, item := range items[1:] {
		var err error
		if lowest, err = lowest.Min(item.UnitPrice); err != nil {
			return money.Money{}, err
		}
	}
	return lowest, nil
}

func floorAtZero(m money.Money) money.Money {
	if m.IsNegative() {
		return m.Mul(decimal.Zero)
	}
	return m
}
