// Package store persists product records.
package store

import (
	"context"

	"github.com/abgdnv/gocommerce-catalog/internal/product"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RecordStore is the durable ledger of product records. It assigns ids, stamps versions
// and keeps soft-deleted records; visibility filtering of single records is the caller's job.
type RecordStore interface {
	// Create adds a new product with version 0 and equal creation and update timestamps.
	// Returns ErrInvalidInput for a blank name or a negative price.
	Create(ctx context.Context, name string, price decimal.Decimal) (*product.Product, error)

	// FindByID returns the record whether or not it is soft-deleted.
	// Returns ErrProductNotFound if no record exists with the given ID.
	FindByID(ctx context.Context, id uuid.UUID) (*product.Product, error)

	// Save persists the full record image p if the stored version still equals expectedVersion.
	// The caller sets the new version and update time on p.
	// Returns ErrProductNotFound if the record does not exist and a *VersionConflictError
	// if the stored version has moved.
	Save(ctx context.Context, p product.Product, expectedVersion int32) (*product.Product, error)

	// SoftDelete marks the record deleted, bumps its version and refreshes its update time.
	// Returns ErrProductNotFound if the record does not exist or is already deleted.
	SoftDelete(ctx context.Context, id uuid.UUID) error

	// ListActive returns one page of non-deleted records.
	ListActive(ctx context.Context, spec product.PageSpec) (*product.Page, error)

	// ListAll returns one page of all records, soft-deleted ones included.
	ListAll(ctx context.Context, spec product.PageSpec) (*product.Page, error)

	// Ping reports whether the store is reachable.
	Ping(ctx context.Context) error
}
