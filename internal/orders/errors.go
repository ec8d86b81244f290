package orders

import "errors"

var (
	ErrOrderNotFound             = errors.New("order not found")
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrPaymentExpired            = errors.New("payment window expired")
	ErrPaymentNotExpired         = errors.New("payment window still open")
	ErrInvalidPaymentCredentials = errors.New("invalid payment credentials")
	ErrStockProcessingFailed     = errors.New("stock processing failed")
	ErrReservationFailed         = errors.New("reservation no longer valid")
	ErrShippingAddressRequired   = errors.New("shipping address required")
	ErrInvalidPaymentMethod      = errors.New("invalid payment method")
)
