package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	perrors "github.com/abgdnv/gocommerce-catalog/internal/errors"
	"github.com/abgdnv/gocommerce-catalog/internal/product"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgStore implements RecordStore on PostgreSQL. Save is a conditional UPDATE on (id, version).
type PgStore struct {
	db *pgxpool.Pool
}

var _ RecordStore = (*PgStore)(nil)

// NewPgStore creates a new instance of RecordStore using a PostgreSQL connection pool.
func NewPgStore(dbp *pgxpool.Pool) *PgStore {
	return &PgStore{db: dbp}
}

// price is read as text so the decimal is parsed without a float round trip.
const productColumns = `id, name, price::text, version, deleted, created_at, updated_at`

const createProduct = `INSERT INTO products (name, price) VALUES ($1, $2::numeric)
RETURNING ` + productColumns

const findProductByID = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

const findVersionByID = `SELECT version FROM products WHERE id = $1`

const saveProduct = `UPDATE products
SET name = $2, price = $3::numeric, version = $4, deleted = $5, updated_at = $6
WHERE id = $1 AND version = $7
RETURNING ` + productColumns

const softDeleteProduct = `UPDATE products
SET deleted = TRUE, version = version + 1, updated_at = now()
WHERE id = $1 AND NOT deleted`

// orderColumns maps sort fields to SQL. Names compare bytewise to match in-memory ordering.
var orderColumns = map[product.SortField]string{
	product.SortByID:        "id",
	product.SortByName:      `name COLLATE "C"`,
	product.SortByPrice:     "price",
	product.SortByCreatedAt: "created_at",
	product.SortByUpdatedAt: "updated_at",
}

func scanProduct(row pgx.Row) (*product.Product, error) {
	var (
		p     product.Product
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &price, &p.Version, &p.Deleted, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored price %q: %w", price, err)
	}
	p.Price = parsed
	p.CreatedAt = p.CreatedAt.UTC()
	p.UpdatedAt = p.UpdatedAt.UTC()
	return &p, nil
}

// Create adds a new product; the database assigns id, version and timestamps.
func (p *PgStore) Create(ctx context.Context, name string, price decimal.Decimal) (*product.Product, error) {
	if err := product.ValidateName(name); err != nil {
		return nil, err
	}
	if err := product.ValidatePrice(price); err != nil {
		return nil, err
	}
	created, err := scanProduct(p.db.QueryRow(ctx, createProduct, name, price.String()))
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}
	return created, nil
}

// FindByID retrieves a product by its unique identifier, deleted or not.
// Returns ErrProductNotFound if no product exists with the given ID.
func (p *PgStore) FindByID(ctx context.Context, id uuid.UUID) (*product.Product, error) {
	found, err := scanProduct(p.db.QueryRow(ctx, findProductByID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, perrors.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return found, nil
}

// Save writes the record image if the stored version is still expectedVersion.
func (p *PgStore) Save(ctx context.Context, prod product.Product, expectedVersion int32) (*product.Product, error) {
	if err := product.ValidatePrice(prod.Price); err != nil {
		return nil, err
	}
	var saved *product.Product
	txErr := p.withTransaction(ctx, func(q dbtx) error {
		var err error
		saved, err = scanProduct(q.QueryRow(ctx, saveProduct,
			prod.ID, prod.Name, prod.Price.String(), prod.Version, prod.Deleted,
			prod.UpdatedAt.UTC().Truncate(time.Microsecond), expectedVersion))
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("failed to save product: %w", err)
		}
		// Check if the product exists, or it's a version conflict.
		var current int32
		if err := q.QueryRow(ctx, findVersionByID, prod.ID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return perrors.ErrProductNotFound
			}
			return fmt.Errorf("failed to read product version: %w", err)
		}
		return &perrors.VersionConflictError{ID: prod.ID, Expected: expectedVersion, Current: current}
	})
	if txErr != nil {
		return nil, txErr
	}
	return saved, nil
}

// SoftDelete flags the product as deleted.
// Returns ErrProductNotFound if no active product exists with the given ID.
func (p *PgStore) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := p.db.Exec(ctx, softDeleteProduct, id)
	if err != nil {
		return fmt.Errorf("failed to soft delete product: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return perrors.ErrProductNotFound
	}
	return nil
}

// ListActive returns a page of products that are not soft-deleted.
func (p *PgStore) ListActive(ctx context.Context, spec product.PageSpec) (*product.Page, error) {
	return p.list(ctx, spec, "WHERE NOT deleted")
}

// ListAll returns a page of all products, soft-deleted included.
func (p *PgStore) ListAll(ctx context.Context, spec product.PageSpec) (*product.Page, error) {
	return p.list(ctx, spec, "")
}

func (p *PgStore) list(ctx context.Context, spec product.PageSpec, where string) (*product.Page, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	page := &product.Page{Offset: spec.Offset, Limit: spec.Limit, Items: []product.Product{}}
	// count and rows come from the same snapshot
	txErr := p.withReadOnlyTransaction(ctx, func(q dbtx) error {
		if err := q.QueryRow(ctx, `SELECT count(*) FROM products `+where).Scan(&page.Total); err != nil {
			return fmt.Errorf("failed to count products: %w", err)
		}
		rows, err := q.Query(ctx, listQuery(spec, where), spec.Limit, spec.Offset)
		if err != nil {
			return fmt.Errorf("failed to list products: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			item, err := scanProduct(rows)
			if err != nil {
				return fmt.Errorf("failed to scan product: %w", err)
			}
			page.Items = append(page.Items, *item)
		}
		return rows.Err()
	})
	if txErr != nil {
		return nil, txErr
	}
	return page, nil
}

// listQuery renders the page query. Only whitelisted columns and directions reach the SQL text.
func listQuery(spec product.PageSpec, where string) string {
	dir := "ASC"
	if spec.Direction == product.Desc {
		dir = "DESC"
	}
	order := orderColumns[spec.Sort] + " " + dir
	if spec.Sort != product.SortByID {
		order += ", id ASC"
	}
	return `SELECT ` + productColumns + ` FROM products ` + where + ` ORDER BY ` + order + ` LIMIT $1 OFFSET $2`
}

// Ping checks the database connection.
func (p *PgStore) Ping(ctx context.Context) error {
	return p.db.Ping(ctx)
}

func (p *PgStore) withTransaction(ctx context.Context, fn func(q dbtx) error) error {
	return p.inTx(ctx, pgx.TxOptions{}, fn)
}

func (p *PgStore) withReadOnlyTransaction(ctx context.Context, fn func(q dbtx) error) error {
	return p.inTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly}, fn)
}

func (p *PgStore) inTx(ctx context.Context, opts pgx.TxOptions, fn func(q dbtx) error) error {
	tx, err := p.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
