package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/commerce-order/internal/domain/money"
)

func TestNewLineItem(t *testing.T) {
	tests := []struct {
		name    string
		qty     int
		wantErr bool
	}{
		{name: "single unit", qty: 1},
		{name: "many units", qty: 40},
		{name: "zero", qty: 0, wantErr: true},
		{name: "negative", qty: -2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			li, err := NewLineItem(usd("1.50"), tt.qty)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidQuantity)
				var qe *InvalidQuantityError
				require.ErrorAs(t, err, &qe)
				assert.Equal(t, tt.qty, qe.Quantity)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, li.ID)
			assert.Equal(t, tt.qty, li.Quantity())
			assert.True(t, usd("1.50").Equal(li.UnitPrice()))
		})
	}
}

func TestLineItem_Prices(t *testing.T) {
	li := mustLineItem(t, usd("3.00"), 2)

	total, err := li.TotalPrice()
	require.NoError(t, err)
	assert.True(t, usd("6.00").Equal(total))

	require.NoError(t, li.AddAdjustment(adj("5.00")))
	require.NoError(t, li.AddAdjustment(Adjustment{Type: AdjustmentTax, Amount: usd("1.00"), Included: true}))

	unit, err := li.AdjustedUnitPrice()
	require.NoError(t, err)
	assert.True(t, usd("8.00").Equal(unit))

	total, err = li.TotalPrice()
	require.NoError(t, err)
	assert.True(t, usd("16.00").Equal(total))

	require.NoError(t, li.SetQuantity(3))
	total, err = li.TotalPrice()
	require.NoError(t, err)
	assert.True(t, usd("24.00").Equal(total))

	require.ErrorIs(t, li.SetQuantity(0), ErrInvalidQuantity)
	assert.Equal(t, 3, li.Quantity())
}

func TestLineItem_Adjustments(t *testing.T) {
	li := mustLineItem(t, usd("10.00"), 1)

	require.NoError(t, li.SetAdjustments([]Adjustment{adj("-1.00"), adj("2.00")}))
	assert.Len(t, li.Adjustments(), 2)

	require.NoError(t, li.RemoveAdjustment(adj("-1.00")))
	got := li.Adjustments()
	require.Len(t, got, 1)
	assert.True(t, adj("2.00").Equal(got[0]))

	require.ErrorIs(t, li.RemoveAdjustment(adj("-1.00")), ErrAdjustmentNotFound)

	// Mutating the returned copy does not affect the line item.
	got[0].Label = "changed"
	assert.Equal(t, "adj 2.00", li.Adjustments()[0].Label)
}

func TestLineItem_CurrencyMismatch(t *testing.T) {
	li := mustLineItem(t, usd("10.00"), 1)
	require.NoError(t, li.AddAdjustment(adj("1.00")))

	eur := Adjustment{Type: AdjustmentFee, Amount: money.MustParse("1.00", "EUR")}
	require.ErrorIs(t, li.AddAdjustment(eur), money.ErrCurrencyMismatch)
	require.ErrorIs(t, li.SetAdjustments([]Adjustment{eur}), money.ErrCurrencyMismatch)
	assert.Len(t, li.Adjustments(), 1)

	vat := Adjustment{Type: AdjustmentTax, Label: "VAT", Amount: money.MustParse("2.00", "EUR"), Included: true}
	require.ErrorIs(t, li.AddAdjustment(vat), money.ErrCurrencyMismatch)
	assert.Len(t, li.Adjustments(), 1)

	require.ErrorIs(t, li.AddAdjustment(Adjustment{Label: "no currency"}), money.ErrInvalidCurrency)
	assert.Len(t, li.Adjustments(), 1)

	require.ErrorIs(t, li.SetUnitPrice(money.MustParse("10.00", "EUR")), money.ErrCurrencyMismatch)
	assert.Equal(t, "USD", li.UnitPrice().Currency())

	require.NoError(t, li.SetUnitPrice(usd("12.00")))
	unit, err := li.AdjustedUnitPrice()
	require.NoError(t, err)
	assert.True(t, usd("13.00").Equal(unit))
}
