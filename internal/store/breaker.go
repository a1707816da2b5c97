package store

import (
	"context"
	"errors"
	"fmt"

	perrors "github.com/abgdnv/gocommerce-catalog/internal/errors"
	"github.com/abgdnv/gocommerce-catalog/internal/product"
	"github.com/abgdnv/gocommerce-catalog/pkg/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// BreakerStore guards a RecordStore with a circuit breaker.
// Domain outcomes (not found, conflicts, bad input, caller cancellation) never count as failures.
type BreakerStore struct {
	next RecordStore
	cb   *gobreaker.CircuitBreaker[any]
}

var _ RecordStore = (*BreakerStore)(nil)

// NewBreakerStore wraps next. onStateChange may be nil.
func NewBreakerStore(next RecordStore, cfg config.CircuitBreakerConfig, onStateChange func(name string, from, to gobreaker.State)) *BreakerStore {
	st := gobreaker.Settings{
		Name:        "record-store",
		MaxRequests: 3,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.TotalSuccesses + counts.TotalFailures
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures ||
				(cfg.MinRequests > 0 && total >= cfg.MinRequests &&
					float64(counts.TotalFailures)/float64(total)*100 > float64(cfg.ErrorRatePercent))
		},
		IsSuccessful:  isStoreSuccess,
		OnStateChange: onStateChange,
	}
	return &BreakerStore{
		next: next,
		cb:   gobreaker.NewCircuitBreaker[any](st),
	}
}

// State reports the current breaker state.
func (s *BreakerStore) State() gobreaker.State {
	return s.cb.State()
}

func isStoreSuccess(err error) bool {
	switch {
	case err == nil,
		errors.Is(err, perrors.ErrProductNotFound),
		errors.Is(err, perrors.ErrVersionConflict),
		errors.Is(err, perrors.ErrInvalidInput),
		errors.Is(err, context.Canceled):
		return true
	default:
		return false
	}
}

func (s *BreakerStore) execute(fn func() (any, error)) (any, error) {
	res, err := s.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", perrors.ErrStoreUnavailable, err)
	}
	return res, err
}

func executeProduct(s *BreakerStore, fn func() (*product.Product, error)) (*product.Product, error) {
	res, err := s.execute(func() (any, error) { return fn() })
	if err != nil {
		return nil, err
	}
	return res.(*product.Product), nil
}

func executePage(s *BreakerStore, fn func() (*product.Page, error)) (*product.Page, error) {
	res, err := s.execute(func() (any, error) { return fn() })
	if err != nil {
		return nil, err
	}
	return res.(*product.Page), nil
}

func (s *BreakerStore) Create(ctx context.Context, name string, price decimal.Decimal) (*product.Product, error) {
	return executeProduct(s, func() (*product.Product, error) { return s.next.Create(ctx, name, price) })
}

func (s *BreakerStore) FindByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	return executeProduct(s, func() (*product.Product, error) { return s.next.FindByID(ctx, id) })
}

func (s *BreakerStore) Save(ctx context.Context, p product.Product, expectedVersion int32) (*product.Product, error) {
	return executeProduct(s, func() (*product.Product, error) { return s.next.Save(ctx, p, expectedVersion) })
}

func (s *BreakerStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	_, err := s.execute(func() (any, error) { return nil, s.next.SoftDelete(ctx, id) })
	return err
}

func (s *BreakerStore) ListActive(ctx context.Context, spec product.PageSpec) (*product.Page, error) {
	return executePage(s, func() (*product.Page, error) { return s.next.ListActive(ctx, spec) })
}

func (s *BreakerStore) ListAll(ctx context.Context, spec product.PageSpec) (*product.Page, error) {
	return executePage(s, func() (*product.Page, error) { return s.next.ListAll(ctx, spec) })
}

// Ping bypasses the breaker so health probes observe the real store.
func (s *BreakerStore) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}
