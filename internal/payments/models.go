package payments

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
)

type Method string

const (
	MethodCreditCard    Method = "credit_card"
	MethodBankTransfer  Method = "bank_transfer"
	MethodMobileMoney   Method = "mobile_money"
	MethodAfterDelivery Method = "after_delivery"
)

func ValidMethod(m Method) bool {
	switch m {
	case MethodCreditCard, MethodBankTransfer, MethodMobileMoney, MethodAfterDelivery:
		return true
	}
	return false
}

// Payment binds one-or-many orders of a single checkout via PaymentHash.
type Payment struct {
	ID          string
	PaymentHash string
	UserID      string
	Amount      decimal.Decimal
	FeeAmount   decimal.Decimal
	NetAmount   decimal.Decimal
	Currency    string
	Method      Method
	Gateway     string
	Status      Status
	OrderIDs    []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Gateway describes a payment gateway and its fee structure.
type Gateway struct {
	Name          string
	FixedFee      decimal.Decimal
	PercentageFee decimal.Decimal
}

// Fee is the gateway's cut for a given amount: fixed plus percentage.
func (g Gateway) Fee(amount decimal.Decimal) decimal.Decimal {
	pct := amount.Mul(g.PercentageFee).Div(decimal.NewFromInt(100))
	return g.FixedFee.Add(pct)
}

// TestGateway accepts everything and charges nothing; used outside
// production and in tests.
func TestGateway() Gateway {
	return Gateway{Name: "test_gateway"}
}
