package redisx

import "time"

const (
	// Idempotency for checkout: idem:checkout:{user_id}:{request_id} -> payment_hash
	KeyIdemCheckout = "idem:checkout:%s:%s"

	// Cache payment status per order: order_payment:{order_id} -> JSON
	KeyOrderPayment = "order_payment:%s"

	// Dedup gateway callback processing: dedup:{service}:{id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency  = 24 * time.Hour
	TTLPaymentCache = 30 * time.Second
	TTLDedup        = 48 * time.Hour
)
