package stock

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Store is the persistence contract for stock units. GetForUpdate must take
// an exclusive row lock that is held until the surrounding transaction
// commits, so concurrent mutators of the same unit serialize.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	Get(ctx context.Context, ref UnitRef) (Unit, error)
	GetForUpdate(ctx context.Context, ref UnitRef) (Unit, error)
	UpdateCounters(ctx context.Context, id string, quantity, reserved int) error
}

// Service is the only component permitted to mutate ledger counters.
// Every mutation runs inside a transaction holding the unit's row lock
// and leaves an audit line with the resulting counters.
type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// CheckAvailability is read-only and intentionally unlocked; the answer may
// be stale the instant it is produced.
func (s *Service) CheckAvailability(ctx context.Context, ref UnitRef, quantity int) (Availability, error) {
	if quantity <= 0 {
		return Availability{}, ErrInvalidQuantity
	}
	unit, err := s.store.Get(ctx, ref)
	if err != nil {
		return Availability{}, err
	}
	avail := unit.Available()
	return Availability{Available: quantity <= avail, AvailableQuantity: avail}, nil
}

// Snapshot returns the current counters without locking. Checkout uses it to
// re-validate that a held reservation is still backed by real stock.
func (s *Service) Snapshot(ctx context.Context, ref UnitRef) (Unit, error) {
	return s.store.Get(ctx, ref)
}

// Reserve withholds quantity units from other shoppers without deducting
// them. Not idempotent; idempotency is the caller's responsibility.
func (s *Service) Reserve(ctx context.Context, ref UnitRef, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return s.store.WithTx(ctx, func(txCtx context.Context) error {
		unit, err := s.store.GetForUpdate(txCtx, ref)
		if err != nil {
			return err
		}
		if quantity > unit.Available() {
			return &InsufficientStockError{Unit: ref, Requested: quantity, Available: unit.Available()}
		}
		reserved := unit.Reserved + quantity
		if err := s.store.UpdateCounters(txCtx, unit.ID, unit.Quantity, reserved); err != nil {
			return err
		}
		s.audit("reserve", ref, quantity, unit.Quantity, reserved)
		return nil
	})
}

// Release returns reserved units to available stock. The counter is clamped
// at zero so bookkeeping drift never fails the release path.
func (s *Service) Release(ctx context.Context, ref UnitRef, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return s.store.WithTx(ctx, func(txCtx context.Context) error {
		unit, err := s.store.GetForUpdate(txCtx, ref)
		if err != nil {
			return err
		}
		reserved := unit.Reserved - quantity
		if reserved < 0 {
			log.Warn().
				Str("unit", ref.String()).
				Int("reserved", unit.Reserved).
				Int("release", quantity).
				Msg("reserved counter went negative, clamping to zero")
			reserved = 0
		}
		if err := s.store.UpdateCounters(txCtx, unit.ID, unit.Quantity, reserved); err != nil {
			return err
		}
		s.audit("release", ref, -quantity, unit.Quantity, reserved)
		return nil
	})
}

// Confirm finalizes a sale: the reserved batch is freed and the same amount
// is deducted from the total owned quantity, under one lock acquisition so
// no concurrent reservation can race between the two sub-steps.
func (s *Service) Confirm(ctx context.Context, ref UnitRef, quantity int) error {
	if quantity <= 0 {
		return ErrInvalidQuantity
	}
	return s.store.WithTx(ctx, func(txCtx context.Context) error {
		unit, err := s.store.GetForUpdate(txCtx, ref)
		if err != nil {
			return err
		}
		if quantity > unit.Quantity {
			// Stock was corrected downward externally; the sale cannot be
			// finalized without going negative.
			return &InsufficientStockError{Unit: ref, Requested: quantity, Available: unit.Quantity}
		}
		reserved := unit.Reserved - quantity
		if reserved < 0 {
			log.Warn().
				Str("unit", ref.String()).
				Int("reserved", unit.Reserved).
				Int("confirm", quantity).
				Msg("reserved counter went negative on confirm, clamping to zero")
			reserved = 0
		}
		total := unit.Quantity - quantity
		if err := s.store.UpdateCounters(txCtx, unit.ID, total, reserved); err != nil {
			return err
		}
		s.audit("confirm", ref, -quantity, total, reserved)
		return nil
	})
}

func (s *Service) audit(op string, ref UnitRef, delta, quantity, reserved int) {
	log.Info().
		Str("op", op).
		Str("unit", ref.String()).
		Int("delta", delta).
		Int("quantity", quantity).
		Int("reserved", reserved).
		Msg("stock ledger")
}
