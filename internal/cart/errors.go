package cart

import "errors"

var (
	ErrItemNotFound  = errors.New("cart item not found")
	ErrCartEmpty     = errors.New("cart is empty")
	ErrDuplicateItem = errors.New("cart item already exists for this unit")
)
