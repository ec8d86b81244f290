package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated     = "OrderCreated"
	EventPaymentConfirmed = "PaymentConfirmed"
	EventOrderExpired     = "OrderExpired"
	EventGatewayCallback  = "GatewayCallback"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // payment_hash
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreatedPayload struct {
	PaymentHash string    `json:"payment_hash"`
	UserID      string    `json:"user_id"`
	OrderIDs    []string  `json:"order_ids"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type PaymentConfirmedPayload struct {
	PaymentHash string    `json:"payment_hash"`
	OrderIDs    []string  `json:"order_ids"`
	PaidAt      time.Time `json:"paid_at"`
}

type OrderExpiredPayload struct {
	OrderID     string    `json:"order_id"`
	PaymentHash string    `json:"payment_hash"`
	ExpiredAt   time.Time `json:"expired_at"`
}

// GatewayCallbackPayload is what the payment gateway pushes onto
// payment.gateway.callback for asynchronous confirmation.
type GatewayCallbackPayload struct {
	PaymentHash   string `json:"payment_hash"`
	PaymentKey    string `json:"payment_key"`
	GatewayStatus string `json:"gateway_status"` // e.g. COMPLETED | FAILED
}
