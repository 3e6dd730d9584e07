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
	lineItemColumns = `id, title, purchased_entity_id, unit_price, currency, quantity,
		adjustments, created_at, updated_at`

	upsertLineItemSQL = `INSERT INTO line_items (order_id, position, id, title, purchased_entity_id,
			unit_price, currency, quantity, adjustments, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO UPDATE SET
			order_id = EXCLUDED.order_id,
			position = EXCLUDED.position,
			title = EXCLUDED.title,
			purchased_entity_id = EXCLUDED.purchased_entity_id,
			unit_price = EXCLUDED.unit_price,
			currency = EXCLUDED.currency,
			quantity = EXCLUDED.quantity,
			adjustments = EXCLUDED.adjustments,
			updated_at = EXCLUDED.updated_at`

	getLineItemSQL = `SELECT ` + lineItemColumns + `, COALESCE(order_id, '')
		FROM line_items WHERE id = $1`
)

// LineItemRepository persists line items on their own, outside an order
// save. Edits made this way are picked up by the reconciler.
type LineItemRepository struct {
	pool *pgxpool.Pool
}

// NewLineItemRepository returns a LineItemRepository that uses the given pool.
func NewLineItemRepository(pool *pgxpool.Pool) *LineItemRepository {
	return &LineItemRepository{pool: pool}
}

// Save upserts li. The owning order is taken from li.OrderID; an empty value
// stores a detached line item.
func (r *LineItemRepository) Save(ctx context.Context, li *order.LineItem, position int) error {
	if _, err := r.pool.Exec(ctx, upsertLineItemSQL, lineItemArgs(li, li.OrderID, position)...); err != nil {
		return fmt.Errorf("saving line item %q: %w", li.ID, err)
	}
	return nil
}

// GetByID loads a single line item.
func (r *LineItemRepository) GetByID(ctx context.Context, id string) (*order.LineItem, error) {
	rows, err := r.pool.Query(ctx, getLineItemSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting line item %q: %w", id, err)
	}

	li, err := pgx.CollectExactlyOneRow(rows, func(row pgx.CollectableRow) (*order.LineItem, error) {
		var orderID string
		li, err := scanLineItemInto(row, &orderID)
		if err != nil {
			return nil, err
		}
		li.OrderID = orderID
		return li, nil
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrLineItemNotFound
		}
		return nil, fmt.Errorf("getting line item %q: %w", id, err)
	}
	return li, nil
}

func lineItemArgs(li *order.LineItem, orderID string, position int) []any {
	var owner *string
	if orderID != "" {
		owner = &orderID
	}
	price := li.UnitPrice()
	return []any{
		owner, position, li.ID, li.Title, li.PurchasedEntityID,
		price.Amount(), price.Currency(), li.Quantity(),
		encodeAdjustments(li.Adjustments()),
		li.CreatedAt, li.UpdatedAt,
	}
}

func scanLineItem(row pgx.CollectableRow) (*order.LineItem, error) {
	return scanLineItemInto(row)
}

func scanLineItemInto(row pgx.CollectableRow, extra ...any) (*order.LineItem, error) {
	var (
		id, title, entityID string
		unitPrice           decimal.Decimal
		code                string
		quantity            int32
		adjustments         []byte
		createdAt           time.Time
		updatedAt           time.Time
	)
	dest := append([]any{
		&id, &title, &entityID, &unitPrice, &code, &quantity,
		&adjustments, &createdAt, &updatedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	price, err := money.New(unitPrice, code)
	if err != nil {
		return nil, err
	}
	li, err := order.NewLineItem(price, int(quantity))
	if err != nil {
		return nil, err
	}
	li.ID = id
	li.Title = title
	li.PurchasedEntityID = entityID
	li.CreatedAt = createdAt
	li.UpdatedAt = updatedAt

	list, err := decodeAdjustments(adjustments)
	if err != nil {
		return nil, err
	}
	if err := li.SetAdjustments(list); err != nil {
		return nil, err
	}
	return li, nil
}
