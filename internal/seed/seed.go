// Package seed loads sample products into an empty catalog.
package seed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/abgdnv/gocommerce-catalog/internal/product"
	"github.com/abgdnv/gocommerce-catalog/internal/service"
	"github.com/shopspring/decimal"
)

type entry struct {
	name  string
	price string
}

var sampleProducts = []entry{
	{"Personal Checking", "0.00"},
	{"Business Checking", "15.00"},
	{"Savings", "0.00"},
	{"High-Yield Savings", "0.00"},
	{"CD 1yr", "1000.00"},
	{"CD 5yr", "1000.00"},
	{"Personal Loan", "0.00"},
	{"Business Loan", "0.00"},
	{"Mortgage", "0.00"},
	{"Credit Card Basic", "0.00"},
	{"Credit Card Premium", "95.00"},
	{"Investment Account", "0.00"},
}

// Load adds the sample products when the active catalog is empty.
// It returns the number of products created.
func Load(ctx context.Context, svc service.ProductService, logger *slog.Logger) (int, error) {
	page, err := svc.GetAllProducts(ctx, product.PageSpec{Sort: product.SortByID, Direction: product.Asc, Limit: 1})
	if err != nil {
		return 0, fmt.Errorf("failed to check catalog before seeding: %w", err)
	}
	if page.Total > 0 {
		logger.InfoContext(ctx, "Catalog already populated, skipping seed", "products", page.Total)
		return 0, nil
	}
	for i, e := range sampleProducts {
		if _, err := svc.AddProduct(ctx, e.name, decimal.RequireFromString(e.price)); err != nil {
			return i, fmt.Errorf("failed to seed product %q: %w", e.name, err)
		}
	}
	logger.InfoContext(ctx, "Catalog seeded", "products", len(sampleProducts))
	return len(sampleProducts), nil
}
