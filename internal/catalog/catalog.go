package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/shopworks/commerce-core/internal/postgres"
)

var ErrProductNotFound = errors.New("product not found")

// Product is the slice of the catalog the order core needs: enough to
// resolve a stock unit and to snapshot price and name at checkout time.
type Product struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	HasSizes bool
}

// Lookup is the contract the core consumes; catalog CRUD itself lives
// elsewhere.
type Lookup interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
}

type PostgresLookup struct {
	pool *pgxpool.Pool
}

func NewPostgresLookup(pool *pgxpool.Pool) *PostgresLookup {
	return &PostgresLookup{pool: pool}
}

func (l *PostgresLookup) GetProduct(ctx context.Context, productID string) (Product, error) {
	var p Product
	err := postgres.Q(ctx, l.pool).QueryRow(ctx,
		`SELECT id, name, price, has_sizes FROM products WHERE id = $1`,
		productID).Scan(&p.ID, &p.Name, &p.Price, &p.HasSizes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrProductNotFound
		}
		return Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}
