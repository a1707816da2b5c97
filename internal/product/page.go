package product

import (
	"bytes"
	"cmp"
	"slices"

	perrors "github.com/abgdnv/gocommerce-catalog/internal/errors"
)

// SortField names a sortable product attribute.
type SortField string

const (
	SortByID        SortField = "id"
	SortByName      SortField = "name"
	SortByPrice     SortField = "price"
	SortByCreatedAt SortField = "createdAt"
	SortByUpdatedAt SortField = "updatedAt"
)

// Direction is the sort order of a page.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// MaxPageSize caps PageSpec.Limit.
const MaxPageSize = 100

// PageSpec selects one page of a sorted listing. Ties on the sort field are broken by id ascending.
type PageSpec struct {
	Sort      SortField
	Direction Direction
	Offset    int
	Limit     int
}

// DefaultPageSpec is the first ten products by id.
func DefaultPageSpec() PageSpec {
	return PageSpec{Sort: SortByID, Direction: Asc, Offset: 0, Limit: 10}
}

// NewPageSpec builds a spec from a zero-based page number and a page size.
func NewPageSpec(page, size int, sortBy, direction string) (PageSpec, error) {
	if page < 0 {
		return PageSpec{}, perrors.InvalidInputf("page must not be negative: %d", page)
	}
	spec := PageSpec{
		Sort:      SortField(sortBy),
		Direction: Direction(direction),
		Offset:    page * size,
		Limit:     size,
	}
	return spec, spec.Validate()
}

// Validate checks the sort field, direction and bounds.
func (s PageSpec) Validate() error {
	switch s.Sort {
	case SortByID, SortByName, SortByPrice, SortByCreatedAt, SortByUpdatedAt:
	default:
		return perrors.InvalidInputf("unsupported sort field: %q", s.Sort)
	}
	if s.Direction != Asc && s.Direction != Desc {
		return perrors.InvalidInputf("unsupported sort direction: %q", s.Direction)
	}
	if s.Offset < 0 {
		return perrors.InvalidInputf("offset must not be negative: %d", s.Offset)
	}
	if s.Limit < 1 || s.Limit > MaxPageSize {
		return perrors.InvalidInputf("limit must be between 1 and %d: %d", MaxPageSize, s.Limit)
	}
	return nil
}

// Page is one slice of a sorted listing together with the size of the whole listing.
type Page struct {
	Items  []Product
	Total  int64
	Offset int
	Limit  int
}

// Number is the zero-based page index.
func (p Page) Number() int {
	if p.Limit == 0 {
		return 0
	}
	return p.Offset / p.Limit
}

// TotalPages is the number of pages of size Limit needed for Total items.
func (p Page) TotalPages() int {
	if p.Limit == 0 {
		return 0
	}
	return int((p.Total + int64(p.Limit) - 1) / int64(p.Limit))
}

// Compare orders a and b by spec, then by id ascending.
func Compare(a, b *Product, spec PageSpec) int {
	var c int
	switch spec.Sort {
	case SortByName:
		c = cmp.Compare(a.Name, b.Name)
	case SortByPrice:
		c = a.Price.Cmp(b.Price)
	case SortByCreatedAt:
		c = a.CreatedAt.Compare(b.CreatedAt)
	case SortByUpdatedAt:
		c = a.UpdatedAt.Compare(b.UpdatedAt)
	}
	if spec.Direction == Desc {
		c = -c
	}
	if c != 0 {
		return c
	}
	idCmp := bytes.Compare(a.ID[:], b.ID[:])
	if spec.Sort == SortByID && spec.Direction == Desc {
		return -idCmp
	}
	return idCmp
}

// Paginate sorts items in place by spec and returns the requested window.
func Paginate(items []Product, spec PageSpec) Page {
	slices.SortStableFunc(items, func(a, b Product) int {
		return Compare(&a, &b, spec)
	})
	page := Page{Total: int64(len(items)), Offset: spec.Offset, Limit: spec.Limit, Items: []Product{}}
	if spec.Offset >= len(items) {
		return page
	}
	end := min(spec.Offset+spec.Limit, len(items))
	page.Items = append(page.Items, items[spec.Offset:end]...)
	return page
}
