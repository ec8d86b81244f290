package payments

import (
	"context"
	"errors"
	"fmt"

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

const paymentColumns = `id, payment_hash, user_id, amount, fee_amount, net_amount, currency, method, gateway, status, order_ids, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p Payment) (Payment, error) {
	query := `
INSERT INTO payments (payment_hash, user_id, amount, fee_amount, net_amount, currency, method, gateway, status, order_ids)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + paymentColumns
	return scanPayment(postgres.Q(ctx, s.pool).QueryRow(ctx, query,
		p.PaymentHash, p.UserID, p.Amount, p.FeeAmount, p.NetAmount,
		p.Currency, p.Method, p.Gateway, p.Status, p.OrderIDs))
}

func (s *PostgresStore) GetByHash(ctx context.Context, paymentHash string) (Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_hash = $1`
	return scanPayment(postgres.Q(ctx, s.pool).QueryRow(ctx, query, paymentHash))
}

func (s *PostgresStore) UpdateStatusByHash(ctx context.Context, paymentHash string, status Status) error {
	ct, err := postgres.Q(ctx, s.pool).Exec(ctx,
		`UPDATE payments SET status = $2, updated_at = NOW() WHERE payment_hash = $1`,
		paymentHash, status)
	if err != nil {
		return fmt.Errorf("update payment status: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.PaymentHash, &p.UserID, &p.Amount, &p.FeeAmount, &p.NetAmount,
		&p.Currency, &p.Method, &p.Gateway, &p.Status, &p.OrderIDs, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, ErrPaymentNotFound
		}
		return Payment{}, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}
