// Package store describes the shops that own orders.
package store

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a store does not exist.
var ErrNotFound = errors.New("store not found")

// Store is a shop orders are placed in.
type Store struct {
	ID              int64
	Name            string
	DefaultCurrency string
	Email           string
}

// Repository resolves store ids.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Store, error)
}
