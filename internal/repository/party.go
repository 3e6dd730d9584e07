package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/commerce-order/internal/domain/customer"
	"github.com/xenking/commerce-order/internal/domain/store"
)

const (
	getStoreSQL = `SELECT id, name, default_currency, email FROM stores WHERE id = $1`

	upsertStoreSQL = `INSERT INTO stores (id, name, default_currency, email)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			default_currency = EXCLUDED.default_currency,
			email = EXCLUDED.email`

	getCustomerSQL = `SELECT id, name, email FROM customers WHERE id = $1`

	upsertCustomerSQL = `INSERT INTO customers (id, name, email)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email`

	getProfileSQL = `SELECT id, customer_id, type, full_name, address_line, locality, postal_code, country_code
		FROM billing_profiles WHERE id = $1`

	upsertProfileSQL = `INSERT INTO billing_profiles
			(id, customer_id, type, full_name, address_line, locality, postal_code, country_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			customer_id = EXCLUDED.customer_id,
			type = EXCLUDED.type,
			full_name = EXCLUDED.full_name,
			address_line = EXCLUDED.address_line,
			locality = EXCLUDED.locality,
			postal_code = EXCLUDED.postal_code,
			country_code = EXCLUDED.country_code`
)

var (
	_ store.Repository    = (*StoreRepository)(nil)
	_ customer.Repository = (*CustomerRepository)(nil)
)

// StoreRepository implements store.Repository backed by PostgreSQL.
type StoreRepository struct {
	pool *pgxpool.Pool
}

// NewStoreRepository returns a StoreRepository that uses the given pool.
func NewStoreRepository(pool *pgxpool.Pool) *StoreRepository {
	return &StoreRepository{pool: pool}
}

func (r *StoreRepository) GetByID(ctx context.Context, id int64) (*store.Store, error) {
	rows, err := r.pool.Query(ctx, getStoreSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting store %d: %w", id, err)
	}
	s, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[store.Store])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("getting store %d: %w", id, err)
	}
	return &s, nil
}

func (r *StoreRepository) Upsert(ctx context.Context, s store.Store) error {
	if _, err := r.pool.Exec(ctx, upsertStoreSQL, s.ID, s.Name, s.DefaultCurrency, s.Email); err != nil {
		return fmt.Errorf("upserting store %d: %w", s.ID, err)
	}
	return nil
}

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	pool *pgxpool.Pool
}

// NewCustomerRepository returns a CustomerRepository that uses the given pool.
func NewCustomerRepository(pool *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{pool: pool}
}

func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*customer.Customer, error) {
	rows, err := r.pool.Query(ctx, getCustomerSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting customer %d: %w", id, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[customer.Customer])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %d: %w", id, err)
	}
	return &c, nil
}

func (r *CustomerRepository) GetProfile(ctx context.Context, id int64) (*customer.Profile, error) {
	rows, err := r.pool.Query(ctx, getProfileSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting profile %d: %w", id, err)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[customer.Profile])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrProfileNotFound
		}
		return nil, fmt.Errorf("getting profile %d: %w", id, err)
	}
	return &p, nil
}

func (r *CustomerRepository) Upsert(ctx context.Context, c customer.Customer) error {
	if _, err := r.pool.Exec(ctx, upsertCustomerSQL, c.ID, c.Name, c.Email); err != nil {
		return fmt.Errorf("upserting customer %d: %w", c.ID, err)
	}
	return nil
}

func (r *CustomerRepository) UpsertProfile(ctx context.Context, p customer.Profile) error {
	_, err := r.pool.Exec(ctx, upsertProfileSQL,
		p.ID, p.CustomerID, p.Type, p.FullName, p.AddressLine, p.Locality, p.PostalCode, p.CountryCode,
	)
	if err != nil {
		return fmt.Errorf("upserting profile %d: %w", p.ID, err)
	}
	return nil
}
