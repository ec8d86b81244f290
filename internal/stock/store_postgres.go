package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopworks/commerce-core/internal/postgres"
)

// PostgresStore persists stock units in the stock_units table. Row locks via
// SELECT ... FOR UPDATE serialize concurrent mutators of the same unit while
// leaving unrelated units unblocked.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return postgres.WithTx(ctx, s.pool, fn)
}

const unitColumns = `id, product_id, COALESCE(size, ''), quantity, reserved, updated_at`

func (s *PostgresStore) Get(ctx context.Context, ref UnitRef) (Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM stock_units WHERE product_id = $1 AND size IS NOT DISTINCT FROM NULLIF($2, '')`
	return s.scanUnit(postgres.Q(ctx, s.pool).QueryRow(ctx, query, ref.ProductID, ref.Size))
}

func (s *PostgresStore) GetForUpdate(ctx context.Context, ref UnitRef) (Unit, error) {
	query := `SELECT ` + unitColumns + ` FROM stock_units WHERE product_id = $1 AND size IS NOT DISTINCT FROM NULLIF($2, '') FOR UPDATE`
	return s.scanUnit(postgres.Q(ctx, s.pool).QueryRow(ctx, query, ref.ProductID, ref.Size))
}

func (s *PostgresStore) UpdateCounters(ctx context.Context, id string, quantity, reserved int) error {
	ct, err := postgres.Q(ctx, s.pool).Exec(ctx,
		`UPDATE stock_units SET quantity = $2, reserved = $3, updated_at = NOW() WHERE id = $1`,
		id, quantity, reserved)
	if err != nil {
		return fmt.Errorf("update stock counters: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return ErrUnitNotFound
	}
	return nil
}

// Create registers a unit when a product or size variant is created.
func (s *PostgresStore) Create(ctx context.Context, ref UnitRef, quantity int) (Unit, error) {
	query := `
INSERT INTO stock_units (product_id, size, quantity, reserved)
VALUES ($1, NULLIF($2, ''), $3, 0)
RETURNING ` + unitColumns
	return s.scanUnit(postgres.Q(ctx, s.pool).QueryRow(ctx, query, ref.ProductID, ref.Size, quantity))
}

// Delete removes a unit when its product or size variant is removed.
func (s *PostgresStore) Delete(ctx context.Context, ref UnitRef) error {
	_, err := postgres.Q(ctx, s.pool).Exec(ctx,
		`DELETE FROM stock_units WHERE product_id = $1 AND size IS NOT DISTINCT FROM NULLIF($2, '')`,
		ref.ProductID, ref.Size)
	if err != nil {
		return fmt.Errorf("delete stock unit: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanUnit(row pgx.Row) (Unit, error) {
	var u Unit
	err := row.Scan(&u.ID, &u.ProductID, &u.Size, &u.Quantity, &u.Reserved, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Unit{}, ErrUnitNotFound
		}
		return Unit{}, fmt.Errorf("scan stock unit: %w", err)
	}
	return u, nil
}
