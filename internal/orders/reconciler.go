package orders

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/shopworks/commerce-core/internal/clock"
)

const (
	DefaultSweepInterval = 5 * time.Minute
	sweepBatchSize       = 1000
)

// Reconciler periodically finds orders whose payment deadline has passed and
// drives them through expiry. Each order is handled independently so one
// failure never blocks the rest, and Expire's idempotence makes overlapping
// sweeps safe.
type Reconciler struct {
	store     Store
	lifecycle *Lifecycle
	clock     clock.Clock
	interval  time.Duration
}

func NewReconciler(store Store, lc *Lifecycle, clk clock.Clock, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Reconciler{store: store, lifecycle: lc, clock: clk, interval: interval}
}

type Report struct {
	ProcessedCount int          `json:"processed_count"`
	FailedCount    int          `json:"failed_count"`
	Errors         []OrderError `json:"errors,omitempty"`
	DryRun         bool         `json:"dry_run,omitempty"`
	WouldExpire    []string     `json:"would_expire,omitempty"`
}

type OrderError struct {
	OrderID string `json:"order_id"`
	Error   string `json:"error"`
}

// ExpiredCount reports how many orders currently need cleanup.
func (r *Reconciler) ExpiredCount(ctx context.Context) (int, error) {
	return r.store.CountExpired(ctx, r.clock.Now())
}

// RunCleanup sweeps expired orders once. With dryRun it only reports what
// would be expired, mutating nothing.
func (r *Reconciler) RunCleanup(ctx context.Context, dryRun bool) (Report, error) {
	expired, err := r.store.ListExpired(ctx, r.clock.Now(), sweepBatchSize)
	if err != nil {
		return Report{}, err
	}

	if dryRun {
		report := Report{DryRun: true}
		for _, o := range expired {
			report.WouldExpire = append(report.WouldExpire, o.ID)
		}
		return report, nil
	}

	var report Report
	for _, o := range expired {
		if err := r.lifecycle.Expire(ctx, o.ID); err != nil {
			report.FailedCount++
			report.Errors = append(report.Errors, OrderError{OrderID: o.ID, Error: err.Error()})
			continue
		}
		report.ProcessedCount++
	}
	return report, nil
}

// Run sweeps on a fixed interval until ctx is done.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	log.Info().Dur("interval", r.interval).Msg("expiry reconciler started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("expiry reconciler stopped")
			return
		case <-ticker.C:
			report, err := r.RunCleanup(ctx, false)
			if err != nil {
				log.Error().Err(err).Msg("expiry sweep failed")
				continue
			}
			if report.ProcessedCount > 0 || report.FailedCount > 0 {
				log.Info().
					Int("processed", report.ProcessedCount).
					Int("failed", report.FailedCount).
					Msg("expiry sweep completed")
			}
			for _, e := range report.Errors {
				log.Warn().Str("order", e.OrderID).Str("error", e.Error).Msg("order expiry failed")
			}
		}
	}
}
