package main

import (
	"context"
	"log/slog"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-order/internal/domain/coupon"
	"github.com/xenking/commerce-order/internal/domain/customer"
	"github.com/xenking/commerce-order/internal/domain/money"
	"github.com/xenking/commerce-order/internal/domain/product"
	"github.com/xenking/commerce-order/internal/domain/store"
)

// catalog is the reference data a fresh database is seeded with.
type catalog struct {
	Stores    []store.Store
	Customers []customer.Customer
	Profiles  []customer.Profile
	Products  []product.Product
	Coupons   []coupon.Rule
}

func decodeCatalog(data []byte) (*catalog, error) {
	var c catalog
	d := jx.DecodeBytes(data)
	err := d.Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "stores":
			return d.Arr(func(d *jx.Decoder) error {
				s, err := decodeStore(d)
				c.Stores = append(c.Stores, s)
				return err
			})
		case "customers":
			return d.Arr(func(d *jx.Decoder) error {
				cu, err := decodeCustomer(d)
				c.Customers = append(c.Customers, cu)
				return err
			})
		case "profiles":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProfile(d)
				c.Profiles = append(c.Profiles, p)
				return err
			})
		case "products":
			return d.Arr(func(d *jx.Decoder) error {
				p, err := decodeProduct(d)
				c.Products = append(c.Products, p)
				return err
			})
		case "coupons":
			return d.Arr(func(d *jx.Decoder) error {
				r, err := decodeCoupon(d)
				c.Coupons = append(c.Coupons, r)
				return err
			})
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return nil, errors.Wrap(err, "decode catalog")
	}
	return &c, nil
}

func decodeStore(d *jx.Decoder) (s store.Store, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			s.ID, err = d.Int64()
		case "name":
			s.Name, err = d.Str()
		case "defaultCurrency":
			s.DefaultCurrency, err = d.Str()
		case "email":
			s.Email, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return s, errors.Wrap(err, "store")
}

func decodeCustomer(d *jx.Decoder) (c customer.Customer, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			c.ID, err = d.Int64()
		case "name":
			c.Name, err = d.Str()
		case "email":
			c.Email, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return c, errors.Wrap(err, "customer")
}

func decodeProfile(d *jx.Decoder) (p customer.Profile, err error) {
	err = d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Int64()
		case "customerId":
			p.CustomerID, err = d.Int64()
		case "type":
			p.Type, err = d.Str()
		case "fullName":
			p.FullName, err = d.Str()
		case "addressLine":
			p.AddressLine, err = d.Str()
		case "locality":
			p.Locality, err = d.Str()
		case "postalCode":
			p.PostalCode, err = d.Str()
		case "countryCode":
			p.CountryCode, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	})
	return p, errors.Wrap(err, "profile")
}

func decodeProduct(d *jx.Decoder) (product.Product, error) {
	var (
		p               product.Product
		price, currency string
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "id":
			p.ID, err = d.Str()
		case "name":
			p.Name, err = d.Str()
		case "price":
			price, err = d.Str()
		case "currency":
			currency, err = d.Str()
		case "category":
			p.Category, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return p, errors.Wrap(err, "product")
	}

	m, err := money.Parse(price, currency)
	if err != nil {
		return p, errors.Wrapf(err, "product %q price", p.ID)
	}
	p.Price = m
	return p, nil
}

func decodeCoupon(d *jx.Decoder) (coupon.Rule, error) {
	var (
		r     coupon.Rule
		value string
	)
	if err := d.Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "code":
			r.Code, err = d.Str()
		case "discountType":
			var s string
			s, err = d.Str()
			r.DiscountType = coupon.DiscountType(s)
		case "value":
			value, err = d.Str()
		case "currency":
			r.Currency, err = d.Str()
		case "minItems":
			r.MinItems, err = d.Int()
		case "maxUses":
			r.MaxUses, err = d.Int()
		case "description":
			r.Description, err = d.Str()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return r, errors.Wrap(err, "coupon")
	}

	v, err := decimal.NewFromString(value)
	if err != nil {
		return r, errors.Wrapf(err, "coupon %q value", r.Code)
	}
	r.Value = v
	return r, nil
}

type storeWriter interface {
	Upsert(ctx context.Context, s store.Store) error
}

type customerWriter interface {
	Upsert(ctx context.Context, c customer.Customer) error
	UpsertProfile(ctx context.Context, p customer.Profile) error
}

type productWriter interface {
	Upsert(ctx context.Context, p product.Product) error
}

type couponWriter interface {
	Upsert(ctx context.Context, rules ...coupon.Rule) error
}

type writers struct {
	stores    storeWriter
	customers customerWriter
	products  productWriter
	coupons   couponWriter
}

// seed writes c in dependency order: profiles reference customers.
func seed(ctx context.Context, w writers, c *catalog) error {
	for _, s := range c.Stores {
		if err := w.stores.Upsert(ctx, s); err != nil {
			return errors.Wrapf(err, "upsert store %d", s.ID)
		}
		slog.Info("upserted store", slog.Int64("id", s.ID), slog.String("name", s.Name))
	}
	for _, cu := range c.Customers {
		if err := w.customers.Upsert(ctx, cu); err != nil {
			return errors.Wrapf(err, "upsert customer %d", cu.ID)
		}
		slog.Info("upserted customer", slog.Int64("id", cu.ID))
	}
	for _, p := range c.Profiles {
		if err := w.customers.UpsertProfile(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert profile %d", p.ID)
		}
		slog.Info("upserted profile", slog.Int64("id", p.ID), slog.Int64("customer_id", p.CustomerID))
	}
	for _, p := range c.Products {
		if err := w.products.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("price", p.Price.String()))
	}
	if err := w.coupons.Upsert(ctx, c.Coupons...); err != nil {
		return errors.Wrap(err, "upsert coupons")
	}
	slog.Info("upserted coupons", slog.Int("count", len(c.Coupons)))
	return nil
}
