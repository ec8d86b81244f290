package stock

import "time"

// UnitRef identifies a stock-keeping unit: a product, or one size variant
// of a product. Size is empty for products without sizes.
type UnitRef struct {
	ProductID string `json:"product_id"`
	Size      string `json:"size,omitempty"`
}

func (r UnitRef) String() string {
	if r.Size == "" {
		return r.ProductID
	}
	return r.ProductID + "/" + r.Size
}

// Unit holds the authoritative counters for one stock-keeping unit.
// Quantity is the total owned; Reserved counts units held by unpaid
// carts and orders. Available stock is always derived, never stored.
type Unit struct {
	ID        string
	ProductID string
	Size      string
	Quantity  int
	Reserved  int
	UpdatedAt time.Time
}

func (u Unit) Ref() UnitRef {
	return UnitRef{ProductID: u.ProductID, Size: u.Size}
}

func (u Unit) Available() int {
	return u.Quantity - u.Reserved
}

// Availability is the read-only answer to "can I have n of these?".
// It may already be stale when returned; the next reservation attempt
// re-checks under the row lock.
type Availability struct {
	Available         bool `json:"available"`
	AvailableQuantity int  `json:"available_quantity"`
}
