package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shopworks/commerce-core/internal/catalog"
	"github.com/shopworks/commerce-core/internal/postgres"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return postgres.WithTx(ctx, s.pool, fn)
}

const itemColumns = `id, user_id, product_id, product_name, COALESCE(size, ''), properties, quantity, unit_price, reservation_held, added_at, updated_at`

func (s *PostgresStore) Find(ctx context.Context, userID, productID, size string) (*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM cart_items
WHERE user_id = $1 AND product_id = $2 AND size IS NOT DISTINCT FROM NULLIF($3, '')`
	item, err := scanItem(postgres.Q(ctx, s.pool).QueryRow(ctx, query, userID, productID, size))
	if err != nil {
		if errors.Is(err, ErrItemNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &item, nil
}

func (s *PostgresStore) Get(ctx context.Context, itemID string) (Item, error) {
	query := `SELECT ` + itemColumns + ` FROM cart_items WHERE id = $1`
	return scanItem(postgres.Q(ctx, s.pool).QueryRow(ctx, query, itemID))
}

func (s *PostgresStore) GetForUpdate(ctx context.Context, itemID string) (Item, error) {
	query := `SELECT ` + itemColumns + ` FROM cart_items WHERE id = $1 FOR UPDATE`
	return scanItem(postgres.Q(ctx, s.pool).QueryRow(ctx, query, itemID))
}

func (s *PostgresStore) ListByUser(ctx context.Context, userID string) ([]Item, error) {
	query := `SELECT ` + itemColumns + ` FROM cart_items WHERE user_id = $1 ORDER BY added_at`
	rows, err := postgres.Q(ctx, s.pool).Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list cart items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *PostgresStore) Create(ctx context.Context, item Item) (Item, error) {
	query := `
INSERT INTO cart_items (user_id, product_id, product_name, size, properties, quantity, unit_price, reservation_held)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8)
RETURNING ` + itemColumns
	created, err := scanItem(postgres.Q(ctx, s.pool).QueryRow(ctx, query,
		item.UserID, item.ProductID, item.ProductName, item.Size,
		item.Properties, item.Quantity, item.UnitPrice, item.ReservationHeld))
	if err != nil {
		// Two concurrent adds of the same unit race past Find; the
		// (user_id, product_id, size) constraint catches the loser.
		if postgres.IsUniqueViolation(err) {
			return Item{}, ErrDuplicateItem
		}
		if postgres.IsForeignKeyViolation(err) {
			return Item{}, catalog.ErrProductNotFound
		}
		return Item{}, err
	}
	return created, nil
}

func (s *PostgresStore) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	ct, err := postgres.Q(ctx, s.pool).Exec(ctx,
		`UPDATE cart_items SET quantity = $2, updated_at = NOW() WHERE id = $1`, itemID, quantity)
	if err != nil {
		return fmt.Errorf("update cart quantity: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return ErrItemNotFound
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, itemID string) error {
	ct, err := postgres.Q(ctx, s.pool).Exec(ctx, `DELETE FROM cart_items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func scanItem(row pgx.Row) (Item, error) {
	var i Item
	err := row.Scan(&i.ID, &i.UserID, &i.ProductID, &i.ProductName, &i.Size,
		&i.Properties, &i.Quantity, &i.UnitPrice, &i.ReservationHeld, &i.AddedAt, &i.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, fmt.Errorf("scan cart item: %w", err)
	}
	return i, nil
}
