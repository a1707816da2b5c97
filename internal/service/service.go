// Package service implements the catalog's product operations on top of a RecordStore and a Cache.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/abgdnv/gocommerce-catalog/internal/cache"
	perrors "github.com/abgdnv/gocommerce-catalog/internal/errors"
	"github.com/abgdnv/gocommerce-catalog/internal/product"
	"github.com/abgdnv/gocommerce-catalog/internal/store"
	"github.com/abgdnv/gocommerce-catalog/pkg/config"
	"github.com/abgdnv/gocommerce-catalog/pkg/messaging"
	"github.com/abgdnv/gocommerce-catalog/pkg/messaging/events"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "catalog-service"

// ProductService defines the catalog operations.
type ProductService interface {
	// AddProduct creates a product with version 0.
	// Returns ErrInvalidInput for a blank name or a negative price.
	AddProduct(ctx context.Context, name string, price decimal.Decimal) (*product.Product, error)

	// GetProductByID returns a visible product.
	// Returns ErrProductNotFound if the product does not exist or is soft-deleted.
	GetProductByID(ctx context.Context, id uuid.UUID) (*product.Product, error)

	// UpdatePrice sets a new price and bumps the version.
	// A nil expectedVersion updates unconditionally; otherwise a stale expectedVersion
	// yields a *VersionConflictError and leaves the product unchanged.
	UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal, expectedVersion *int32) (*product.Product, error)

	// GetAllProducts returns one page of visible products.
	GetAllProducts(ctx context.Context, spec product.PageSpec) (*product.Page, error)

	// SoftDeleteProduct hides a visible product from every active read path.
	// Returns ErrProductNotFound if the product does not exist or is already deleted.
	SoftDeleteProduct(ctx context.Context, id uuid.UUID) error

	// ListAllProducts returns one page of all products, soft-deleted ones included.
	ListAllProducts(ctx context.Context, spec product.PageSpec) (*product.Page, error)

	// CacheStats reports product cache usage.
	CacheStats() cache.Stats
}

// Service implements ProductService.
//
// Every cache write for an id happens while holding that id's lock, right after the
// store call it reflects, so cached snapshots never move back to an older version.
type Service struct {
	records   store.RecordStore
	cache     cache.Cache
	publisher messaging.Publisher
	retry     config.RetryConfig
	logger    *slog.Logger
	locks     keyLock
	now       func() time.Time
	tracer    trace.Tracer

	createdCounter   metric.Int64Counter
	priceCounter     metric.Int64Counter
	conflictsCounter metric.Int64Counter
	deletedCounter   metric.Int64Counter
}

var _ ProductService = (*Service)(nil)

// NewService creates a new instance of ProductService.
func NewService(records store.RecordStore, c cache.Cache, publisher messaging.Publisher, retry config.RetryConfig, logger *slog.Logger) *Service {
	if retry.MaxAttempts == 0 {
		retry.MaxAttempts = 1
	}
	meter := otel.Meter(instrumentationName)
	return &Service{
		records:          records,
		cache:            c,
		publisher:        publisher,
		retry:            retry,
		logger:           logger.With("component", "product-service"),
		now:              time.Now,
		tracer:           otel.Tracer(instrumentationName),
		createdCounter:   mustCounter(meter, "catalog_products_created", "Total number of created products"),
		priceCounter:     mustCounter(meter, "catalog_price_updates", "Total number of accepted price updates"),
		conflictsCounter: mustCounter(meter, "catalog_version_conflicts", "Total number of rejected stale price updates"),
		deletedCounter:   mustCounter(meter, "catalog_products_deleted", "Total number of soft-deleted products"),
	}
}

func mustCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		panic(fmt.Sprintf("failed to create %s counter: %v", name, err))
	}
	return counter
}

func (s *Service) AddProduct(ctx context.Context, name string, price decimal.Decimal) (*product.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.AddProduct")
	defer span.End()

	if err := product.ValidateName(name); err != nil {
		return nil, fail(span, err)
	}
	if err := product.ValidatePrice(price); err != nil {
		return nil, fail(span, err)
	}
	created, err := s.records.Create(ctx, name, price)
	if err != nil {
		return nil, fail(span, err)
	}
	span.SetAttributes(attribute.String("product.id", created.ID.String()))

	unlock := s.locks.Lock(created.ID)
	// a writer that found the new id through a listing may already have cached a later version
	if cached, ok := s.cache.Peek(created.ID); !ok || cached.Version < created.Version {
		s.cache.Put(created.ID, *created)
	}
	unlock()

	s.createdCounter.Add(ctx, 1)
	s.publish(ctx, events.ProductCreatedEvent{
		Carrier:   carrier(ctx),
		ProductID: created.ID,
		Name:      created.Name,
		Price:     created.Price,
		Version:   created.Version,
		CreatedAt: created.CreatedAt,
	})
	return created, nil
}

func (s *Service) GetProductByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.GetProductByID", trace.WithAttributes(attribute.String("product.id", id.String())))
	defer span.End()

	if cached, ok := s.cache.Get(id); ok {
		if product.IsVisible(&cached) {
			span.SetAttributes(attribute.Bool("cache.hit", true))
			return &cached, nil
		}
		s.cache.Invalidate(id)
	}

	unlock := s.locks.Lock(id)
	defer unlock()
	current, err := s.loadVisible(ctx, id)
	if err != nil {
		return nil, fail(span, err)
	}
	s.cache.Put(id, *current)
	return current, nil
}

// loadVisible reads id from the store and applies the visibility rule.
// A hidden or missing record also drops any cached snapshot. Callers hold the id's lock.
func (s *Service) loadVisible(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	current, err := s.records.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, perrors.ErrProductNotFound) {
			s.cache.Invalidate(id)
		}
		return nil, err
	}
	if !product.IsVisible(current) {
		s.cache.Invalidate(id)
		return nil, perrors.ErrProductNotFound
	}
	return current, nil
}

func (s *Service) UpdatePrice(ctx context.Context, id uuid.UUID, price decimal.Decimal, expectedVersion *int32) (*product.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.UpdatePrice", trace.WithAttributes(attribute.String("product.id", id.String())))
	defer span.End()

	if err := product.ValidatePrice(price); err != nil {
		return nil, fail(span, err)
	}

	attempts := uint(1)
	if expectedVersion == nil {
		attempts = s.retry.MaxAttempts
	}
	backoff := s.retry.InitialBackoff
	for attempt := uint(1); ; attempt++ {
		updated, previous, err := s.updatePriceOnce(ctx, id, price, expectedVersion)
		if err == nil {
			s.priceCounter.Add(ctx, 1)
			s.publish(ctx, events.ProductPriceChangedEvent{
				Carrier:   carrier(ctx),
				ProductID: updated.ID,
				OldPrice:  previous,
				NewPrice:  updated.Price,
				Version:   updated.Version,
				UpdatedAt: updated.UpdatedAt,
			})
			return updated, nil
		}
		if !errors.Is(err, perrors.ErrVersionConflict) {
			return nil, fail(span, err)
		}
		if attempt >= attempts {
			s.conflictsCounter.Add(ctx, 1)
			s.logger.WarnContext(ctx, "Price update rejected", "ID", id, "error", err)
			return nil, fail(span, err)
		}
		s.logger.DebugContext(ctx, "Retrying unconditional price update", "ID", id, "attempt", attempt)
		if err := sleep(ctx, backoff); err != nil {
			return nil, fail(span, err)
		}
		backoff *= 2
	}
}

// updatePriceOnce runs one read-compare-save round under the id's lock.
// It returns the saved record and the price it replaced.
func (s *Service) updatePriceOnce(ctx context.Context, id uuid.UUID, price decimal.Decimal, expectedVersion *int32) (*product.Product, decimal.Decimal, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	current, err := s.loadVisible(ctx, id)
	if err != nil {
		return nil, decimal.Decimal{}, err
	}
	if expectedVersion != nil && *expectedVersion != current.Version {
		s.cache.Put(id, *current)
		return nil, decimal.Decimal{}, &perrors.VersionConflictError{ID: id, Expected: *expectedVersion, Current: current.Version}
	}

	next := *current
	next.Price = price
	next.Version = current.Version + 1
	next.UpdatedAt = s.now()
	saved, err := s.records.Save(ctx, next, current.Version)
	if err != nil {
		// the stored record moved or vanished; the cached copy cannot be trusted
		if errors.Is(err, perrors.ErrVersionConflict) || errors.Is(err, perrors.ErrProductNotFound) {
			s.cache.Invalidate(id)
		}
		return nil, decimal.Decimal{}, err
	}
	s.cache.Put(id, *saved)
	return saved, current.Price, nil
}

func (s *Service) GetAllProducts(ctx context.Context, spec product.PageSpec) (*product.Page, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.GetAllProducts")
	defer span.End()

	page, err := s.records.ListActive(ctx, spec)
	if err != nil {
		return nil, fail(span, err)
	}
	visible := page.Items[:0]
	for _, p := range page.Items {
		if product.IsVisible(&p) {
			visible = append(visible, p)
		}
	}
	page.Items = visible
	return page, nil
}

func (s *Service) SoftDeleteProduct(ctx context.Context, id uuid.UUID) error {
	ctx, span := s.tracer.Start(ctx, "ProductService.SoftDeleteProduct", trace.WithAttributes(attribute.String("product.id", id.String())))
	defer span.End()

	err := s.softDelete(ctx, id)
	if err != nil {
		return fail(span, err)
	}
	s.deletedCounter.Add(ctx, 1)
	s.publish(ctx, events.ProductDeletedEvent{
		Carrier:   carrier(ctx),
		ProductID: id,
		DeletedAt: s.now().UTC(),
	})
	return nil
}

func (s *Service) softDelete(ctx context.Context, id uuid.UUID) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	if _, err := s.loadVisible(ctx, id); err != nil {
		return err
	}
	err := s.records.SoftDelete(ctx, id)
	// after the store call, whatever its outcome
	s.cache.Invalidate(id)
	return err
}

func (s *Service) ListAllProducts(ctx context.Context, spec product.PageSpec) (*product.Page, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.ListAllProducts")
	defer span.End()

	page, err := s.records.ListAll(ctx, spec)
	if err != nil {
		return nil, fail(span, err)
	}
	return page, nil
}

func (s *Service) CacheStats() cache.Stats {
	return s.cache.Stats()
}

func (s *Service) publish(ctx context.Context, event messaging.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish event", "subject", event.Subject(), "error", err)
	}
}

func carrier(ctx context.Context) propagation.MapCarrier {
	c := make(propagation.MapCarrier)
	otel.GetTextMapPropagator().Inject(ctx, c)
	return c
}

// fail records err on span unless it is an expected caller outcome.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	if !errors.Is(err, perrors.ErrInvalidInput) &&
		!errors.Is(err, perrors.ErrProductNotFound) &&
		!errors.Is(err, perrors.ErrVersionConflict) {
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
