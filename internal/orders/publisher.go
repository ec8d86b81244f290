package orders

import (
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/shopworks/commerce-core/internal/kafka"
)

// EventSink receives order lifecycle events after they are committed.
// *EventPublisher is the kafka-backed implementation.
type EventSink interface {
	OrderCreated(payload OrderCreatedPayload)
	PaymentConfirmed(payload PaymentConfirmedPayload)
	OrderExpired(payload OrderExpiredPayload)
}

// EventPublisher fans order lifecycle events out to their topics. A nil
// publisher is valid and publishes nothing, so tests and tools can run
// without a broker.
type EventPublisher struct {
	Created   *kafkax.Producer
	Confirmed *kafkax.Producer
	Expired   *kafkax.Producer
	Service   string
}

func (p *EventPublisher) publish(prod *kafkax.Producer, eventType, paymentHash string, payload any) {
	if prod == nil {
		return
	}
	ev := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      p.Service,
		CorrelationID: paymentHash,
		Payload:       kafkax.MustMarshal(payload),
	}
	prod.Publish(PartitionKey(paymentHash), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (p *EventPublisher) OrderCreated(payload OrderCreatedPayload) {
	if p == nil {
		return
	}
	p.publish(p.Created, EventOrderCreated, payload.PaymentHash, payload)
}

func (p *EventPublisher) PaymentConfirmed(payload PaymentConfirmedPayload) {
	if p == nil {
		return
	}
	p.publish(p.Confirmed, EventPaymentConfirmed, payload.PaymentHash, payload)
}

func (p *EventPublisher) OrderExpired(payload OrderExpiredPayload) {
	if p == nil {
		return
	}
	p.publish(p.Expired, EventOrderExpired, payload.PaymentHash, payload)
}
