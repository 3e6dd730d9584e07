package product

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/commerce-order/internal/domain/money"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a purchasable entity referenced by line items.
type Product struct {
	ID       string
	Name     string
	Price    money.Money
	Category string
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
}
