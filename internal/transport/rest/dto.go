package rest

import (
	"reflect"
	"time"

	"github.com/abgdnv/gocommerce-catalog/internal/product"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductCreateDto is the body of a create request.
type ProductCreateDto struct {
	Name  string           `json:"name"  validate:"required,max=100"`
	Price *decimal.Decimal `json:"price" validate:"required,dgte0"`
}

// PriceUpdateDto is the body of a price update. Omitting Version updates unconditionally.
type PriceUpdateDto struct {
	Price   *decimal.Decimal `json:"price"   validate:"required,dgte0"`
	Version *int32           `json:"version" validate:"omitempty,gte=0"`
}

// ProductDto is the public view of a visible product.
type ProductDto struct {
	ID        uuid.UUID       `json:"id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	Version   int32           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AuditProductDto adds the deletion flag for the admin listing.
type AuditProductDto struct {
	ProductDto
	Deleted bool `json:"deleted"`
}

// PageDto is one page of a listing.
type PageDto[T any] struct {
	Items         []T   `json:"items"`
	Page          int   `json:"page"`
	Size          int   `json:"size"`
	TotalElements int64 `json:"total_elements"`
	TotalPages    int   `json:"total_pages"`
}

func toDto(p *product.Product) ProductDto {
	return ProductDto{
		ID:        p.ID,
		Name:      p.Name,
		Price:     p.Price,
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func toAuditDto(p *product.Product) AuditProductDto {
	return AuditProductDto{ProductDto: toDto(p), Deleted: p.Deleted}
}

func toPageDto[T any](page *product.Page, convert func(*product.Product) T) PageDto[T] {
	items := make([]T, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, convert(&page.Items[i]))
	}
	return PageDto[T]{
		Items:         items,
		Page:          page.Number(),
		Size:          page.Limit,
		TotalElements: page.Total,
		TotalPages:    page.TotalPages(),
	}
}

// newValidator registers the decimal rules used by the DTOs.
// Decimals are validated through their string form; dgte0 accepts non-negative amounts.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.String()
		}
		return nil
	}, decimal.Decimal{})
	_ = v.RegisterValidation("dgte0", func(fl validator.FieldLevel) bool {
		d, err := decimal.NewFromString(fl.Field().String())
		return err == nil && !d.IsNegative()
	})
	return v
}
