package payments

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var ErrPaymentNotFound = errors.New("payment not found")

type Store interface {
	Create(ctx context.Context, p Payment) (Payment, error)
	GetByHash(ctx context.Context, paymentHash string) (Payment, error)
	UpdateStatusByHash(ctx context.Context, paymentHash string, status Status) error
}

type Service struct {
	store   Store
	gateway Gateway
}

func NewService(store Store, gateway Gateway) *Service {
	return &Service{store: store, gateway: gateway}
}

type CreateInput struct {
	PaymentHash string
	UserID      string
	Amount      decimal.Decimal
	Currency    string
	Method      Method
	OrderIDs    []string
}

// CreateForOrders records one payment covering all orders of a checkout.
// Called inside the checkout transaction so orders and payment appear
// atomically.
func (s *Service) CreateForOrders(ctx context.Context, in CreateInput) (Payment, error) {
	fee := s.gateway.Fee(in.Amount)
	p := Payment{
		PaymentHash: in.PaymentHash,
		UserID:      in.UserID,
		Amount:      in.Amount,
		FeeAmount:   fee,
		NetAmount:   in.Amount.Sub(fee),
		Currency:    in.Currency,
		Method:      in.Method,
		Gateway:     s.gateway.Name,
		Status:      StatusPending,
		OrderIDs:    in.OrderIDs,
	}
	created, err := s.store.Create(ctx, p)
	if err != nil {
		return Payment{}, err
	}
	log.Info().
		Str("payment", created.ID).
		Str("payment_hash", created.PaymentHash).
		Str("amount", created.Amount.StringFixed(2)).
		Int("orders", len(created.OrderIDs)).
		Msg("payment created")
	return created, nil
}

func (s *Service) GetByHash(ctx context.Context, paymentHash string) (Payment, error) {
	return s.store.GetByHash(ctx, paymentHash)
}

func (s *Service) MarkCompleted(ctx context.Context, paymentHash string) error {
	return s.store.UpdateStatusByHash(ctx, paymentHash, StatusCompleted)
}

func (s *Service) MarkExpired(ctx context.Context, paymentHash string) error {
	return s.store.UpdateStatusByHash(ctx, paymentHash, StatusExpired)
}
