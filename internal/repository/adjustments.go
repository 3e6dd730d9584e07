package repository

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/commerce-order/internal/domain/money"
	"github.com/xenking/commerce-order/internal/domain/order"
)

// encodeAdjustments renders adjustments as a JSON array for a JSONB column.
// Amounts are written as decimal strings so no precision is lost.
func encodeAdjustments(list []order.Adjustment) []byte {
	var e jx.Encoder
	e.Arr(func(e *jx.Encoder) {
		for _, a := range list {
			e.Obj(func(e *jx.Encoder) {
				e.Field("type", func(e *jx.Encoder) { e.Str(string(a.Type)) })
				e.Field("label", func(e *jx.Encoder) { e.Str(a.Label) })
				e.Field("amount", func(e *jx.Encoder) { e.Str(a.Amount.Amount().String()) })
				e.Field("currency", func(e *jx.Encoder) { e.Str(a.Amount.Currency()) })
				if a.Included {
					e.Field("included", func(e *jx.Encoder) { e.Bool(true) })
				}
			})
		}
	})
	return e.Bytes()
}

// decodeAdjustments parses the output of encodeAdjustments. Unknown fields are
// skipped.
func decodeAdjustments(data []byte) ([]order.Adjustment, error) {
	if len(data) == 0 {
		return nil, nil
	}

	var list []order.Adjustment
	d := jx.DecodeBytes(data)
	if d.Next() == jx.Null {
		return nil, d.Null()
	}

	err := d.Arr(func(d *jx.Decoder) error {
		var (
			a            order.Adjustment
			amount, code string
		)
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "type":
				var s string
				s, err = d.Str()
				a.Type = order.AdjustmentType(s)
			case "label":
				a.Label, err = d.Str()
			case "amount":
				amount, err = d.Str()
			case "currency":
				code, err = d.Str()
			case "included":
				a.Included, err = d.Bool()
			default:
				err = d.Skip()
			}
			return err
		}); err != nil {
			return err
		}

		m, err := money.Parse(amount, code)
		if err != nil {
			return errors.Wrapf(err, "adjustment %q", a.Label)
		}
		a.Amount = m
		list = append(list, a)
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode adjustments")
	}
	return list, nil
}
