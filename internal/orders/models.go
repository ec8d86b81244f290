package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shopworks/commerce-core/internal/stock"
)

// Order is one checked-out cart item. Several orders created by a single
// checkout share one payment hash/key and therefore one payment record.
// Orders are never physically deleted; cancellation is a terminal status.
type Order struct {
	ID          string
	UserID      string
	ProductID   string
	ProductName string
	Size        string
	Properties  map[string]any
	Quantity    int

	UnitPrice  decimal.Decimal
	TotalPrice decimal.Decimal

	Status        Status
	PaymentStatus PaymentStatus

	PaymentHash   string
	PaymentKey    string
	PaymentMethod string

	// PaymentExpiresAt is set while the order is under_paying; once the
	// status moves on it is immutable history.
	PaymentExpiresAt *time.Time
	PaidAt           *time.Time

	ShippingAddress string
	CustomerNotes   string
	AdminNotes      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o Order) UnitRef() stock.UnitRef {
	return stock.UnitRef{ProductID: o.ProductID, Size: o.Size}
}

// PaymentStatusInfo answers "can this order still be paid, and how long is
// left?" for shoppers polling the payment screen.
type PaymentStatusInfo struct {
	OrderID              string        `json:"order_id"`
	IsActive             bool          `json:"is_active"`
	TimeRemainingSeconds int64         `json:"time_remaining_seconds"`
	Status               Status        `json:"status"`
	PaymentStatus        PaymentStatus `json:"payment_status"`
	ExpiresAt            *time.Time    `json:"expires_at,omitempty"`
}

func NewOrderID() string {
	return "ORD-" + strings.ToUpper(uuid.NewString()[:8])
}

func NewPaymentHash() string {
	return "PAY-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func NewPaymentKey() string {
	return "KEY-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}
