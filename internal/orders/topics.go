package orders

const (
	TopicOrderCreated     = "order.created"
	TopicPaymentConfirmed = "order.payment.confirmed"
	TopicOrderExpired     = "order.expired"
	TopicGatewayCallback  = "payment.gateway.callback"
)

// Partition key = payment_hash, so all events of one checkout keep their
// order on the wire.
func PartitionKey(paymentHash string) []byte { return []byte(paymentHash) }
