package order

import (
	"slices"

	"github.com/go-faster/errors"

	"github.com/xenking/commerce-order/internal/domain/money"
)

// AdjustmentType categorises an adjustment. The set is open; callers may use
// their own values.
type AdjustmentType string

const (
	AdjustmentCustom    AdjustmentType = "custom"
	AdjustmentPromotion AdjustmentType = "promotion"
	AdjustmentFee       AdjustmentType = "fee"
	AdjustmentTax       AdjustmentType = "tax"
)

// Adjustment is a labelled monetary delta applied to a line item or an order.
//
// Adjustments are values: collections store copies, so a caller holding an
// Adjustment cannot change one that was already added.
type Adjustment struct {
	Type   AdjustmentType
	Label  string
	Amount money.Money
	// Included marks an adjustment already reflected in the price it is
	// attached to. Included adjustments are reported but never added to a
	// total.
	Included bool
}

// Equal reports structural equality over all fields.
func (a Adjustment) Equal(b Adjustment) bool {
	return a.Type == b.Type &&
		a.Label == b.Label &&
		a.Included == b.Included &&
		a.Amount.Equal(b.Amount)
}

// removeAdjustment drops the first element equal to target. Duplicates beyond
// the first match are kept.
func removeAdjustment(list []Adjustment, target Adjustment) ([]Adjustment, error) {
	i := slices.IndexFunc(list, target.Equal)
	if i < 0 {
		return nil, ErrAdjustmentNotFound
	}
	return slices.Delete(slices.Clone(list), i, i+1), nil
}

// validateAdjustments rejects adjustments without a currency, which could
// never be read back.
func validateAdjustments(list []Adjustment) error {
	for _, a := range list {
		if a.Amount.Currency() == "" {
			return errors.Wrapf(money.ErrInvalidCurrency, "adjustment %q", a.Label)
		}
	}
	return nil
}

// applyAdjustments adds every non-included adjustment amount to base. Every
// adjustment, included or not, must share base's currency.
func applyAdjustments(base money.Money, list []Adjustment) (money.Money, error) {
	total := base
	for _, a := range list {
		if a.Amount.Currency() != base.Currency() {
			return money.Money{}, errors.Wrapf(money.ErrCurrencyMismatch,
				"adjustment %q in %s, price in %s", a.Label, a.Amount.Currency(), base.Currency())
		}
		if a.Included {
			continue
		}
		var err error
		if total, err = total.Add(a.Amount); err != nil {
			return money.Money{}, err
		}
	}
	return total, nil
}
