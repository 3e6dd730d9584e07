// Package customer describes order owners and their billing profiles.
package customer

import (
	"context"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrProfileNotFound is returned when a billing profile does not exist.
	ErrProfileNotFound = errors.New("profile not found")
)

// Customer is the account owning an order.
type Customer struct {
	ID    int64
	Name  string
	Email string
}

// Profile holds billing contact details.
type Profile struct {
	ID          int64
	CustomerID  int64
	Type        string
	FullName    string
	AddressLine string
	Locality    string
	PostalCode  string
	CountryCode string
}

// Repository resolves customer and profile ids.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Customer, error)
	GetProfile(ctx context.Context, id int64) (*Profile, error)
}
