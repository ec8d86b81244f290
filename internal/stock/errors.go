package stock

import (
	"errors"
	"fmt"
)

var (
	ErrUnitNotFound    = errors.New("stock unit not found")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrSizeRequired    = errors.New("size must be specified for products with sizes")
)

// InsufficientStockError carries available vs requested so callers can build
// a useful message ("only 3 left").
type InsufficientStockError struct {
	Unit      UnitRef
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %d, available %d",
		e.Unit, e.Requested, e.Available)
}

func IsInsufficientStock(err error) bool {
	var ise *InsufficientStockError
	return errors.As(err, &ise)
}
