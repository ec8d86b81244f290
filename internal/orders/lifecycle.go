package orders

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/shopworks/commerce-core/internal/clock"
)

// Lifecycle owns every order status change: payment confirmation, expiry
// and manual transitions. Nothing else mutates orders.
type Lifecycle struct {
	store    Store
	stock    Stock
	payments Payments
	clock    clock.Clock
	events   EventSink
}

func NewLifecycle(store Store, st Stock, pay Payments, clk clock.Clock, events EventSink) *Lifecycle {
	return &Lifecycle{store: store, stock: st, payments: pay, clock: clk, events: events}
}

// ConfirmPayment settles every order under the payment hash, all-or-nothing:
// each order's reserved units become a permanent deduction, then the order
// moves to pending. If any unit cannot cover its quantity (stock corrected
// downward externally) the whole confirmation rolls back and the orders stay
// under_paying for retry or manual resolution.
func (l *Lifecycle) ConfirmPayment(ctx context.Context, paymentHash, paymentKey string) ([]Order, error) {
	now := l.clock.Now()
	var confirmed []Order
	var settled bool

	err := l.store.WithTx(ctx, func(txCtx context.Context) error {
		all, err := l.store.ListByHashForUpdate(txCtx, paymentHash)
		if err != nil {
			return err
		}
		if len(all) == 0 {
			return ErrInvalidPaymentCredentials
		}
		for _, o := range all {
			if o.PaymentKey != paymentKey {
				return ErrInvalidPaymentCredentials
			}
		}

		pending := make([]Order, 0, len(all))
		for _, o := range all {
			if o.Status == StatusUnderPaying {
				pending = append(pending, o)
			}
		}
		if len(pending) == 0 {
			// Gateway retry after a successful confirmation is a no-op.
			if all[0].PaymentStatus == PaymentCompleted {
				confirmed = all
				return nil
			}
			return ErrPaymentExpired
		}

		for _, o := range pending {
			if o.PaymentExpiresAt != nil && now.After(*o.PaymentExpiresAt) {
				return ErrPaymentExpired
			}
		}

		for _, o := range pending {
			if err := l.stock.Confirm(txCtx, o.UnitRef(), o.Quantity); err != nil {
				return fmt.Errorf("%w: order %s: %v", ErrStockProcessingFailed, o.ID, err)
			}
		}

		paidAt := now
		for _, o := range pending {
			o.Status = StatusPending
			o.PaymentStatus = PaymentCompleted
			o.PaidAt = &paidAt
			if err := l.store.Update(txCtx, o); err != nil {
				return err
			}
			confirmed = append(confirmed, o)
		}
		settled = true
		return l.payments.MarkCompleted(txCtx, paymentHash)
	})
	if err != nil {
		return nil, err
	}

	// A gateway retry that found nothing left to settle emits no event;
	// downstream consumers already saw this confirmation.
	if settled {
		if l.events != nil {
			ids := make([]string, 0, len(confirmed))
			for _, o := range confirmed {
				ids = append(ids, o.ID)
			}
			l.events.PaymentConfirmed(PaymentConfirmedPayload{PaymentHash: paymentHash, OrderIDs: ids, PaidAt: now})
		}
		log.Info().Str("payment_hash", paymentHash).Int("orders", len(confirmed)).Msg("payment confirmed")
	}
	return confirmed, nil
}

// Expire cancels an under_paying order whose deadline has passed and returns
// its reserved units to available stock. Idempotent: expiring an order that
// already left under_paying is a no-op, not an error, so overlapping sweeps
// are safe.
func (l *Lifecycle) Expire(ctx context.Context, orderID string) error {
	var expired *Order
	err := l.store.WithTx(ctx, func(txCtx context.Context) error {
		o, err := l.store.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if o.Status != StatusUnderPaying {
			return nil
		}
		if o.PaymentExpiresAt == nil {
			return fmt.Errorf("order %s is under_paying without a payment deadline", o.ID)
		}
		if !l.clock.Now().After(*o.PaymentExpiresAt) {
			return ErrPaymentNotExpired
		}

		if err := l.stock.Release(txCtx, o.UnitRef(), o.Quantity); err != nil {
			return err
		}
		o.Status = StatusCancelled
		o.PaymentStatus = PaymentExpired
		if err := l.store.Update(txCtx, o); err != nil {
			return err
		}

		// The payment record goes expired once no sibling order is still
		// waiting on it.
		remaining, err := l.store.CountUnderPayingByHash(txCtx, o.PaymentHash)
		if err != nil {
			return err
		}
		if remaining == 0 {
			if err := l.payments.MarkExpired(txCtx, o.PaymentHash); err != nil {
				return err
			}
		}
		expired = &o
		return nil
	})
	if err != nil {
		return err
	}
	if expired != nil {
		if l.events != nil {
			l.events.OrderExpired(OrderExpiredPayload{
				OrderID:     expired.ID,
				PaymentHash: expired.PaymentHash,
				ExpiredAt:   l.clock.Now(),
			})
		}
		log.Info().Str("order", expired.ID).Str("payment_hash", expired.PaymentHash).Msg("order expired")
	}
	return nil
}

// UpdateStatus applies a manual transition (business owner action) under the
// transition table. Illegal transitions fail and leave the order untouched.
func (l *Lifecycle) UpdateStatus(ctx context.Context, orderID string, newStatus Status, actor, notes string) (Order, error) {
	var updated Order
	err := l.store.WithTx(ctx, func(txCtx context.Context) error {
		o, err := l.store.GetForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}
		if !CanTransition(o.Status, newStatus) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, o.Status, newStatus)
		}

		if newStatus == StatusCancelled {
			switch {
			case o.Status == StatusUnderPaying:
				// Unpaid cancellation returns the withheld units.
				if err := l.stock.Release(txCtx, o.UnitRef(), o.Quantity); err != nil {
					return err
				}
				o.PaymentStatus = PaymentFailed
			case o.PaymentStatus == PaymentCompleted:
				o.PaymentStatus = PaymentRefunded
			}
		}

		o.Status = newStatus
		if notes != "" {
			if o.AdminNotes != "" {
				o.AdminNotes += "\n"
			}
			o.AdminNotes += notes
		}
		if err := l.store.Update(txCtx, o); err != nil {
			return err
		}
		updated = o
		return nil
	})
	if err != nil {
		return Order{}, err
	}
	log.Info().
		Str("order", orderID).
		Str("status", string(newStatus)).
		Str("actor", actor).
		Msg("order status updated")
	return updated, nil
}

// GetPaymentStatus reports whether the payment window is still open and how
// many seconds remain. Reads are unlocked.
func (l *Lifecycle) GetPaymentStatus(ctx context.Context, orderID string) (PaymentStatusInfo, error) {
	o, err := l.store.Get(ctx, orderID)
	if err != nil {
		return PaymentStatusInfo{}, err
	}
	info := PaymentStatusInfo{
		OrderID:       o.ID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		ExpiresAt:     o.PaymentExpiresAt,
	}
	if o.Status == StatusUnderPaying && o.PaymentExpiresAt != nil {
		remaining := o.PaymentExpiresAt.Sub(l.clock.Now()).Seconds()
		if remaining > 0 {
			info.IsActive = true
			info.TimeRemainingSeconds = int64(remaining)
		}
	}
	return info, nil
}
