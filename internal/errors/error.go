// Package errors provides the error kinds surfaced by the catalog.
package errors

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidInput reports malformed arguments such as a negative price or a blank name.
	ErrInvalidInput = errors.New("invalid input")
	// ErrProductNotFound reports an id that does not resolve to a visible product.
	ErrProductNotFound = errors.New("product not found")
	// ErrVersionConflict reports that the caller's version of a product is stale.
	ErrVersionConflict = errors.New("version conflict")
	// ErrStoreUnavailable reports that the record store is refusing calls, e.g. an open circuit breaker.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// VersionConflictError carries both versions of a rejected update. It matches ErrVersionConflict.
type VersionConflictError struct {
	ID       uuid.UUID
	Expected int32
	Current  int32
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("your version of product with id=%s is outdated. Your version: %d. Current version: %d",
		e.ID, e.Expected, e.Current)
}

func (e *VersionConflictError) Unwrap() error {
	return ErrVersionConflict
}

// InvalidInputf formats a message wrapping ErrInvalidInput.
func InvalidInputf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
