package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

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

const orderColumns = `id, user_id, product_id, product_name, COALESCE(size, ''), properties, quantity,
unit_price, total_price, status, payment_status, payment_hash, payment_key, payment_method,
payment_expires_at, paid_at, shipping_address, customer_notes, admin_notes, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, o Order) (Order, error) {
	query := `
INSERT INTO orders (id, user_id, product_id, product_name, size, properties, quantity,
	unit_price, total_price, status, payment_status, payment_hash, payment_key, payment_method,
	payment_expires_at, shipping_address, customer_notes, admin_notes)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING ` + orderColumns
	return scanOrder(postgres.Q(ctx, s.pool).QueryRow(ctx, query,
		o.ID, o.UserID, o.ProductID, o.ProductName, o.Size, o.Properties, o.Quantity,
		o.UnitPrice, o.TotalPrice, o.Status, o.PaymentStatus, o.PaymentHash, o.PaymentKey,
		o.PaymentMethod, o.PaymentExpiresAt, o.ShippingAddress, o.CustomerNotes, o.AdminNotes))
}

func (s *PostgresStore) Get(ctx context.Context, orderID string) (Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return scanOrder(postgres.Q(ctx, s.pool).QueryRow(ctx, query, orderID))
}

func (s *PostgresStore) GetForUpdate(ctx context.Context, orderID string) (Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1 FOR UPDATE`
	return scanOrder(postgres.Q(ctx, s.pool).QueryRow(ctx, query, orderID))
}

func (s *PostgresStore) ListByHashForUpdate(ctx context.Context, paymentHash string) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_hash = $1 ORDER BY id FOR UPDATE`
	return s.list(ctx, query, paymentHash)
}

func (s *PostgresStore) Update(ctx context.Context, o Order) error {
	ct, err := postgres.Q(ctx, s.pool).Exec(ctx, `
UPDATE orders SET status = $2, payment_status = $3, paid_at = $4, admin_notes = $5, updated_at = NOW()
WHERE id = $1`,
		o.ID, o.Status, o.PaymentStatus, o.PaidAt, o.AdminNotes)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if ct.RowsAffected() != 1 {
		return ErrOrderNotFound
	}
	return nil
}

// ListExpired relies on the (status, payment_expires_at) index so the sweep
// stays cheap at scale.
func (s *PostgresStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders
WHERE status = 'under_paying' AND payment_expires_at < $1
ORDER BY payment_expires_at
LIMIT $2`
	return s.list(ctx, query, now, limit)
}

func (s *PostgresStore) CountExpired(ctx context.Context, now time.Time) (int, error) {
	var n int
	err := postgres.Q(ctx, s.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE status = 'under_paying' AND payment_expires_at < $1`,
		now).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expired orders: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountUnderPayingByHash(ctx context.Context, paymentHash string) (int, error) {
	var n int
	err := postgres.Q(ctx, s.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE payment_hash = $1 AND status = 'under_paying'`,
		paymentHash).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count under_paying orders: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]Order, error) {
	rows, err := postgres.Q(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.UserID, &o.ProductID, &o.ProductName, &o.Size, &o.Properties,
		&o.Quantity, &o.UnitPrice, &o.TotalPrice, &o.Status, &o.PaymentStatus,
		&o.PaymentHash, &o.PaymentKey, &o.PaymentMethod, &o.PaymentExpiresAt, &o.PaidAt,
		&o.ShippingAddress, &o.CustomerNotes, &o.AdminNotes, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("scan order: %w", err)
	}
	return o, nil
}
