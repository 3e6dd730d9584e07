package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/commerce-order/internal/domain/money"
	"github.com/xenking/commerce-order/internal/domain/order"
)

const (
	orderColumns = `id, type, order_number, store_id, owner_id, billing_profile_id,
		email, ip_address, state, adjustments, created_at, placed_at`

	insertOrderSQL = `INSERT INTO orders (` + orderColumns + `, total_amount, total_currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	upsertOrderSQL = `INSERT INTO orders (` + orderColumns + `, total_amount, total_currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			type = EXCLUDED.type,
			order_number = EXCLUDED.order_number,
			store_id = EXCLUDED.store_id,
			owner_id = EXCLUDED.owner_id,
			billing_profile_id = EXCLUDED.billing_profile_id,
			email = EXCLUDED.email,
			ip_address = EXCLUDED.ip_address,
			state = EXCLUDED.state,
			adjustments = EXCLUDED.adjustments,
			placed_at = EXCLUDED.placed_at,
			total_amount = EXCLUDED.total_amount,
			total_currency = EXCLUDED.total_currency,
			updated_at = now()`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrderLineItemsSQL = `SELECT ` + lineItemColumns + `
		FROM line_items WHERE order_id = $1 ORDER BY position`

	deleteDroppedLineItemsSQL = `DELETE FROM line_items
		WHERE order_id = $1 AND NOT (id = ANY($2))`

	nextOrderNumberSQL = `SELECT nextval('order_number_seq')`

	listOrderIDsSQL = `SELECT id FROM orders WHERE id > $1 ORDER BY id LIMIT $2`

	updateOrderTotalSQL = `UPDATE orders SET total_amount = $2, total_currency = $3, updated_at = now()
		WHERE id = $1
			AND (total_amount IS DISTINCT FROM $2 OR total_currency IS DISTINCT FROM $3)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items live in their own table and are written in the same transaction as
// the order row.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create inserts a new order together with its line items.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, insertOrderSQL, orderArgs(o)...); err != nil {
			return err
		}
		return saveLineItems(ctx, tx, o)
	})
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// Save upserts the order row, upserts its line items in order and deletes
// line items no longer attached to it.
func (r *OrderRepository) Save(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertOrderSQL, orderArgs(o)...); err != nil {
			return err
		}
		if err := saveLineItems(ctx, tx, o); err != nil {
			return err
		}

		items := o.LineItems()
		ids := make([]string, len(items))
		for i, li := range items {
			ids[i] = li.ID
		}
		_, err := tx.Exec(ctx, deleteDroppedLineItemsSQL, o.ID, ids)
		return err
	})
	if err != nil {
		return fmt.Errorf("saving order %q: %w", o.ID, err)
	}
	return nil
}

func saveLineItems(ctx context.Context, tx pgx.Tx, o *order.Order) error {
	items := o.LineItems()
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, li := range items {
		batch.Queue(upsertLineItemSQL, lineItemArgs(li, o.ID, i)...)
	}
	return tx.SendBatch(ctx, batch).Close()
}

// GetByID loads an order and its line items. The total is recomputed from the
// loaded rows rather than read back.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, scanOrderRow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	rows, err = r.pool.Query(ctx, listOrderLineItemsSQL, id)
	if err != nil {
		return nil, fmt.Errorf("listing line items of order %q: %w", id, err)
	}
	items, err := pgx.CollectRows(rows, scanLineItem)
	if err != nil {
		return nil, fmt.Errorf("listing line items of order %q: %w", id, err)
	}
	for _, li := range items {
		li.OrderID = id
	}

	o, err := row.build(items)
	if err != nil {
		return nil, fmt.Errorf("rebuilding order %q: %w", id, err)
	}
	return o, nil
}

// NextOrderNumber draws the next value of the order number sequence.
func (r *OrderRepository) NextOrderNumber(ctx context.Context) (int64, error) {
	var n int64
	if err := r.pool.QueryRow(ctx, nextOrderNumberSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("drawing order number: %w", err)
	}
	return n, nil
}

// ListIDs returns up to limit order ids greater than after, in ascending
// order. Pass an empty after to start from the beginning.
func (r *OrderRepository) ListIDs(ctx context.Context, after string, limit int) ([]string, error) {
	rows, err := r.pool.Query(ctx, listOrderIDsSQL, after, limit)
	if err != nil {
		return nil, fmt.Errorf("listing order ids: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// UpdateTotal stores total for the order unless it already matches. A nil
// total clears the stored value. It reports whether a row was written.
func (r *OrderRepository) UpdateTotal(ctx context.Context, id string, total *money.Money) (bool, error) {
	amount, code := totalArgs(total)
	tag, err := r.pool.Exec(ctx, updateOrderTotalSQL, id, amount, code)
	if err != nil {
		return false, fmt.Errorf("updating total of order %q: %w", id, err)
	}
	return tag.RowsAffected() > 0, nil
}

func orderArgs(o *order.Order) []any {
	storeID, _ := o.StoreID()
	ownerID, _ := o.OwnerID()
	profileID, _ := o.BillingProfileID()

	var total *money.Money
	if t, ok := o.TotalPrice(); ok {
		total = &t
	}
	amount, code := totalArgs(total)

	return []any{
		o.ID, o.Type(), o.OrderNumber(),
		nullID(storeID), nullID(ownerID), nullID(profileID),
		o.Email(), o.IPAddress(), string(o.State()),
		encodeAdjustments(o.Adjustments()),
		o.CreatedAt(), nullTime(o.PlacedAt()),
		amount, code,
	}
}

func totalArgs(total *money.Money) (*decimal.Decimal, *string) {
	if total == nil {
		return nil, nil
	}
	amount := total.Amount()
	code := total.Currency()
	return &amount, &code
}

func nullID(id int64) *int64 {
	if id == 0 {
		return nil
	}
	return &id
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

type orderRow struct {
	id               string
	typ              string
	orderNumber      string
	storeID          *int64
	ownerID          *int64
	billingProfileID *int64
	email            string
	ipAddress        string
	state            string
	adjustments      []byte
	createdAt        time.Time
	placedAt         *time.Time
}

func scanOrderRow(row pgx.CollectableRow) (orderRow, error) {
	var r orderRow
	err := row.Scan(
		&r.id, &r.typ, &r.orderNumber, &r.storeID, &r.ownerID, &r.billingProfileID,
		&r.email, &r.ipAddress, &r.state, &r.adjustments, &r.createdAt, &r.placedAt,
	)
	return r, err
}

func (r orderRow) build(items []*order.LineItem) (*order.Order, error) {
	o := order.New()
	o.ID = r.id
	o.SetType(r.typ)
	o.SetOrderNumber(r.orderNumber)
	o.SetEmail(r.email)
	o.SetIPAddress(r.ipAddress)
	o.SetState(order.State(r.state))
	o.SetCreatedAt(r.createdAt)
	if r.placedAt != nil {
		o.SetPlacedAt(*r.placedAt)
	}
	for _, ref := range []struct {
		id  *int64
		set func(...int64) error
	}{
		{r.storeID, o.SetStoreID},
		{r.ownerID, o.SetOwnerID},
		{r.billingProfileID, o.SetBillingProfileID},
	} {
		if ref.id == nil {
			continue
		}
		if err := ref.set(*ref.id); err != nil {
			return nil, err
		}
	}

	adjustments, err := decodeAdjustments(r.adjustments)
	if err != nil {
		return nil, err
	}
	if err := o.SetLineItems(items); err != nil {
		return nil, err
	}
	if err := o.SetAdjustments(adjustments); err != nil {
		return nil, err
	}
	return o, nil
}
