package main

import (
	"context"
	"os"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/commerce-order/internal/domain/coupon"
	"github.com/xenking/commerce-order/internal/domain/customer"
	"github.com/xenking/commerce-order/internal/domain/money"
	"github.com/xenking/commerce-order/internal/domain/product"
	"github.com/xenking/commerce-order/internal/domain/store"
)

func TestDecodeCatalog_SeedFile(t *testing.T) {
	data, err := os.ReadFile("../../db/seed/catalog.json")
	require.NoError(t, err)

	c, err := decodeCatalog(data)
	require.NoError(t, err)

	require.Len(t, c.Stores, 2)
	assert.Equal(t, "EUR", c.Stores[1].DefaultCurrency)
	require.Len(t, c.Customers, 2)
	require.Len(t, c.Profiles, 2)
	assert.Equal(t, int64(2), c.Profiles[1].CustomerID)
	assert.Equal(t, "GB", c.Profiles[0].CountryCode)

	require.Len(t, c.Products, 4)
	assert.True(t, c.Products[2].Price.Equal(money.MustParse("34.99", "USD")))
	assert.Equal(t, "EUR", c.Products[3].Price.Currency())

	require.Len(t, c.Coupons, 3)
	assert.Equal(t, coupon.DiscountFreeLowest, c.Coupons[1].DiscountType)
	assert.Equal(t, 2, c.Coupons[1].MinItems)
	assert.Equal(t, "USD", c.Coupons[2].Currency)
	assert.Equal(t, 1000, c.Coupons[2].MaxUses)
}

func TestDecodeCatalog_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr string
	}{
		{name: "not an object", input: `[]`, wantErr: "decode catalog"},
		{name: "bad product currency", input: `{"products":[{"id":"1","price":"1.00","currency":"XX"}]}`, wantErr: `product "1" price`},
		{name: "bad product amount", input: `{"products":[{"id":"1","price":"abc","currency":"USD"}]}`, wantErr: `product "1" price`},
		{name: "bad coupon value", input: `{"coupons":[{"code":"X","value":"ten"}]}`, wantErr: `coupon "X" value`},
		{name: "store id as string", input: `{"stores":[{"id":"1"}]}`, wantErr: "store"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeCatalog([]byte(tt.input))
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestDecodeCatalog_SkipsUnknown(t *testing.T) {
	c, err := decodeCatalog([]byte(`{"version":2,"stores":[{"id":3,"name":"X","extra":{"a":[1]}}]}`))
	require.NoError(t, err)
	require.Len(t, c.Stores, 1)
	assert.Equal(t, store.Store{ID: 3, Name: "X"}, c.Stores[0])
}

type recorder struct {
	calls []string
	fail  string
}

func (r *recorder) record(call string) error {
	r.calls = append(r.calls, call)
	if call == r.fail {
		return errors.New("write failed")
	}
	return nil
}

type storeRec struct{ *recorder }

func (s storeRec) Upsert(context.Context, store.Store) error { return s.record("store") }

type customerRec struct{ *recorder }

func (c customerRec) Upsert(context.Context, customer.Customer) error { return c.record("customer") }

func (c customerRec) UpsertProfile(context.Context, customer.Profile) error {
	return c.record("profile")
}

type productRec struct{ *recorder }

func (p productRec) Upsert(context.Context, product.Product) error { return p.record("product") }

type couponRec struct{ *recorder }

func (c couponRec) Upsert(context.Context, ...coupon.Rule) error { return c.record("coupons") }

func newWriters(r *recorder) writers {
	return writers{
		stores:    storeRec{r},
		customers: customerRec{r},
		products:  productRec{r},
		coupons:   couponRec{r},
	}
}

func TestSeed(t *testing.T) {
	c := &catalog{
		Stores:    []store.Store{{ID: 1}},
		Customers: []customer.Customer{{ID: 1}},
		Profiles:  []customer.Profile{{ID: 1, CustomerID: 1}},
		Products:  []product.Product{{ID: "1", Price: money.MustParse("1.00", "USD")}},
		Coupons:   []coupon.Rule{{Code: "A"}, {Code: "B"}},
	}

	t.Run("order", func(t *testing.T) {
		r := &recorder{}
		require.NoError(t, seed(context.Background(), newWriters(r), c))
		assert.Equal(t, []string{"store", "customer", "profile", "product", "coupons"}, r.calls)
	})

	t.Run("stops on failure", func(t *testing.T) {
		r := &recorder{fail: "customer"}
		err := seed(context.Background(), newWriters(r), c)
		require.ErrorContains(t, err, "upsert customer 1")
		assert.Equal(t, []string{"store", "customer"}, r.calls)
	})
}
