package store

import (
	"context"
	"sync"
	"time"

	perrors "github.com/abgdnv/gocommerce-catalog/internal/errors"
	"github.com/abgdnv/gocommerce-catalog/internal/product"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InMemory is a RecordStore kept in a map. Save is an atomic compare-and-swap on the version.
type InMemory struct {
	mu       sync.RWMutex
	products map[uuid.UUID]product.Product
	now      func() time.Time
}

var _ RecordStore = (*InMemory)(nil)

// NewInMemory creates an empty in-memory store.
func NewInMemory() *InMemory {
	return NewInMemoryWithClock(time.Now)
}

// NewInMemoryWithClock creates an empty in-memory store reading time from now.
func NewInMemoryWithClock(now func() time.Time) *InMemory {
	return &InMemory{
		products: make(map[uuid.UUID]product.Product),
		now:      now,
	}
}

func (s *InMemory) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func (s *InMemory) Create(ctx context.Context, name string, price decimal.Decimal) (*product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := product.ValidateName(name); err != nil {
		return nil, err
	}
	if err := product.ValidatePrice(price); err != nil {
		return nil, err
	}
	now := s.timestamp()
	p := product.Product{
		ID:        uuid.New(),
		Name:      name,
		Price:     price,
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.products[p.ID] = p
	s.mu.Unlock()
	return &p, nil
}

func (s *InMemory) FindByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return nil, perrors.ErrProductNotFound
	}
	return &p, nil
}

func (s *InMemory) Save(ctx context.Context, p product.Product, expectedVersion int32) (*product.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := product.ValidatePrice(p.Price); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.products[p.ID]
	if !ok {
		return nil, perrors.ErrProductNotFound
	}
	if current.Version != expectedVersion {
		return nil, &perrors.VersionConflictError{ID: p.ID, Expected: expectedVersion, Current: current.Version}
	}
	// identity and creation time are immutable
	p.CreatedAt = current.CreatedAt
	p.UpdatedAt = p.UpdatedAt.UTC().Truncate(time.Microsecond)
	s.products[p.ID] = p
	return &p, nil
}

func (s *InMemory) SoftDelete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.Deleted {
		return perrors.ErrProductNotFound
	}
	p.Deleted = true
	p.Version++
	p.UpdatedAt = s.timestamp()
	s.products[id] = p
	return nil
}

func (s *InMemory) ListActive(ctx context.Context, spec product.PageSpec) (*product.Page, error) {
	return s.list(ctx, spec, func(p *product.Product) bool { return product.IsVisible(p) })
}

func (s *InMemory) ListAll(ctx context.Context, spec product.PageSpec) (*product.Page, error) {
	return s.list(ctx, spec, func(*product.Product) bool { return true })
}

func (s *InMemory) list(ctx context.Context, spec product.PageSpec, keep func(*product.Product) bool) (*product.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	items := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		if keep(&p) {
			items = append(items, p)
		}
	}
	s.mu.RUnlock()

	page := product.Paginate(items, spec)
	return &page, nil
}

func (s *InMemory) Ping(ctx context.Context) error {
	return ctx.Err()
}
