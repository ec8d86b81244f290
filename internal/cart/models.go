package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopworks/commerce-core/internal/stock"
)

// Item is one line in a user's cart. When ReservationHeld is true, exactly
// Quantity units are reflected in the corresponding stock unit's reserved
// counter on this item's behalf.
type Item struct {
	ID              string
	UserID          string
	ProductID       string
	ProductName     string
	Size            string
	Properties      map[string]any
	Quantity        int
	UnitPrice       decimal.Decimal
	ReservationHeld bool
	AddedAt         time.Time
	UpdatedAt       time.Time
}

func (i Item) UnitRef() stock.UnitRef {
	return stock.UnitRef{ProductID: i.ProductID, Size: i.Size}
}

func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Summary is the cart as shown to the shopper.
type Summary struct {
	TotalItems int           `json:"total_items"`
	TotalPrice string        `json:"total_price"`
	Items      []SummaryItem `json:"items"`
}

type SummaryItem struct {
	ID          string         `json:"id"`
	ProductID   string         `json:"product_id"`
	ProductName string         `json:"product_name"`
	Size        string         `json:"size,omitempty"`
	Properties  map[string]any `json:"properties,omitempty"`
	Quantity    int            `json:"quantity"`
	UnitPrice   string         `json:"unit_price"`
	Subtotal    string         `json:"subtotal"`
}

// ClearReport aggregates a best-effort cart clear: items whose release
// failed are still removed, and reported here instead of aborting.
type ClearReport struct {
	Released int             `json:"released"`
	Failed   []FailedRelease `json:"failed,omitempty"`
}

type FailedRelease struct {
	ItemID string `json:"item_id"`
	Error  string `json:"error"`
}
