package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"testing"
	"time"

	"github.com/abgdnv/gocommerce-catalog/internal/cache"
	perrors "github.com/abgdnv/gocommerce-catalog/internal/errors"
	"github.com/abgdnv/gocommerce-catalog/internal/product"
	"github.com/abgdnv/gocommerce-catalog/internal/store"
	"github.com/abgdnv/gocommerce-catalog/pkg/config"
	"github.com/abgdnv/gocommerce-catalog/pkg/messaging"
	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// catalogWorld is the per-scenario state of the feature steps.
type catalogWorld struct {
	svc     *Service
	id      uuid.UUID
	lastErr error
}

func (w *catalogWorld) aProductPriced(ctx context.Context, name, price string) error {
	created, err := w.svc.AddProduct(ctx, name, decimal.RequireFromString(price))
	if err != nil {
		return err
	}
	w.id = created.ID
	return nil
}

func (w *catalogWorld) updatePriceExpecting(ctx context.Context, price string, v int) error {
	expected := int32(v)
	_, w.lastErr = w.svc.UpdatePrice(ctx, w.id, decimal.RequireFromString(price), &expected)
	return nil
}

func (w *catalogWorld) updatePriceUnconditionally(ctx context.Context, price string) error {
	_, w.lastErr = w.svc.UpdatePrice(ctx, w.id, decimal.RequireFromString(price), nil)
	return nil
}

func (w *catalogWorld) deleteProduct(ctx context.Context) error {
	return w.svc.SoftDeleteProduct(ctx, w.id)
}

func (w *catalogWorld) updateSucceeds() error {
	return w.lastErr
}

func (w *catalogWorld) updateFailsWith(kind string) error {
	var want error
	switch kind {
	case "a version conflict":
		want = perrors.ErrVersionConflict
	case "not found":
		want = perrors.ErrProductNotFound
	case "invalid input":
		want = perrors.ErrInvalidInput
	default:
		return fmt.Errorf("unknown error kind %q", kind)
	}
	if !errors.Is(w.lastErr, want) {
		return fmt.Errorf("expected %v, got %v", want, w.lastErr)
	}
	return nil
}

func (w *catalogWorld) productHasVersion(ctx context.Context, v int) error {
	p, err := w.svc.GetProductByID(ctx, w.id)
	if err != nil {
		return err
	}
	if p.Version != int32(v) {
		return fmt.Errorf("expected version %d, got %d", v, p.Version)
	}
	return nil
}

func (w *catalogWorld) productHasVersionAndPrice(ctx context.Context, v int, price string) error {
	if err := w.productHasVersion(ctx, v); err != nil {
		return err
	}
	p, err := w.svc.GetProductByID(ctx, w.id)
	if err != nil {
		return err
	}
	if !p.Price.Equal(decimal.RequireFromString(price)) {
		return fmt.Errorf("expected price %s, got %s", price, p.Price)
	}
	return nil
}

func (w *catalogWorld) fetchFailsWithNotFound(ctx context.Context) error {
	_, err := w.svc.GetProductByID(ctx, w.id)
	if !errors.Is(err, perrors.ErrProductNotFound) {
		return fmt.Errorf("expected not found, got %v", err)
	}
	return nil
}

func (w *catalogWorld) productIsNotListed(ctx context.Context) error {
	page, err := w.svc.GetAllProducts(ctx, product.PageSpec{Sort: product.SortByID, Direction: product.Asc, Limit: product.MaxPageSize})
	if err != nil {
		return err
	}
	for _, p := range page.Items {
		if p.ID == w.id {
			return fmt.Errorf("deleted product %s is listed", w.id)
		}
	}
	return nil
}

func initializeScenario(sc *godog.ScenarioContext) {
	w := &catalogWorld{}
	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		w.svc = NewService(store.NewInMemory(), cache.NewLRU(100, time.Hour), messaging.NoopPublisher{},
			config.RetryConfig{MaxAttempts: 3}, logger)
		w.id = uuid.Nil
		w.lastErr = nil
		return ctx, nil
	})

	sc.Step(`^a product "([^"]*)" priced (-?[\d.]+)$`, w.aProductPriced)
	sc.Step(`^I update the price to (-?[\d.]+) expecting version (\d+)$`, w.updatePriceExpecting)
	sc.Step(`^I update the price to (-?[\d.]+) without a version$`, w.updatePriceUnconditionally)
	sc.Step(`^I delete the product$`, w.deleteProduct)
	sc.Step(`^the update succeeds$`, w.updateSucceeds)
	sc.Step(`^the update fails with (a version conflict|not found|invalid input)$`, w.updateFailsWith)
	sc.Step(`^the product has version (\d+)$`, w.productHasVersion)
	sc.Step(`^the product has version (\d+) and price (-?[\d.]+)$`, w.productHasVersionAndPrice)
	sc.Step(`^fetching the product fails with not found$`, w.fetchFailsWithNotFound)
	sc.Step(`^the product is not listed$`, w.productIsNotListed)
}

func TestFeatures(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping feature scenarios in short mode")
	}
	suite := godog.TestSuite{
		Name:                "catalog",
		ScenarioInitializer: initializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features"},
			Strict:   true,
			TestingT: t,
		},
	}
	if status := suite.Run(); status != 0 {
		t.Fatal("feature scenarios failed with status " + strconv.Itoa(status))
	}
}
