// Package product defines the catalog record and the paging contract used by every read path.
package product

import (
	"strings"
	"time"
	"unicode/utf8"

	perrors "github.com/abgdnv/gocommerce-catalog/internal/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxNameLength is the longest accepted product name, in characters.
const MaxNameLength = 100

// Product is a priced catalog entry. Version starts at 0 and grows by one per accepted mutation.
type Product struct {
	ID        uuid.UUID
	Name      string
	Price     decimal.Decimal
	Version   int32
	Deleted   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsVisible is the single visibility rule for active read paths: soft-deleted records are invisible.
func IsVisible(p *Product) bool {
	return p != nil && !p.Deleted
}

// ValidateName rejects blank and over-long names.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return perrors.InvalidInputf("name must not be blank")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return perrors.InvalidInputf("name must be at most %d characters", MaxNameLength)
	}
	return nil
}

// ValidatePrice rejects negative prices.
func ValidatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return perrors.InvalidInputf("price must not be negative: %s", price)
	}
	return nil
}
