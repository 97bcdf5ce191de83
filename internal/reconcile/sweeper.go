package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"travel-marketplace/internal/domain/orders"
	"travel-marketplace/internal/events"
	"travel-marketplace/internal/gateway"
)

// SweepReport counts what one ExpireStale pass did.
type SweepReport struct {
	Paid     int   `json:"paid"`
	Failed   int   `json:"failed"`
	Expired  int   `json:"expired"`
	Skipped  int   `json:"skipped"`
	Purged   int64 `json:"purged"`
	Examined int   `json:"examined"`
}

// ExpireStale closes open orders whose handoff window has passed. Each one
// is checked with the gateway first so a late payment is still credited.
// Orders the gateway cannot answer for are left for the next pass.
func (r *Reconciler) ExpireStale(ctx context.Context) (SweepReport, error) {
	var rep SweepReport
	now := r.now()

	stale, err := r.orders.ListStale(ctx, now, r.cfg.SweepBatch)
	if err != nil {
		return rep, err
	}
	rep.Examined = len(stale)

	for _, o := range stale {
		if ctx.Err() != nil {
			return rep, ctx.Err()
		}
		switch r.sweepOne(ctx, o) {
		case orders.StatusPaid:
			rep.Paid++
		case orders.StatusFailed:
			rep.Failed++
		case orders.StatusExpired:
			rep.Expired++
		default:
			rep.Skipped++
		}
	}

	purged, err := r.handoffs.PurgeExpired(ctx, now.Add(-r.cfg.Retention))
	if err != nil {
		r.log.Error("handoff purge failed", "error", err)
		return rep, err
	}
	rep.Purged = purged
	return rep, nil
}

// sweepOne returns the status the order ended in, or "" when it was skipped.
func (r *Reconciler) sweepOne(ctx context.Context, o orders.Order) orders.Status {
	log := r.log.With("order_id", o.ID, "user_id", o.UserID)

	if _, ok, err := r.ledger.GrantForOrder(ctx, o.ID); err != nil {
		log.Error("sweep: grant lookup failed", "error", err)
		return ""
	} else if ok {
		if _, err := r.settle(ctx, o); err != nil {
			return ""
		}
		return orders.StatusPaid
	}

	st, err := r.queryStatus(ctx, o)
	switch {
	case errors.Is(err, gateway.ErrNoCheckout):
		st = gateway.StatusUnpaid
	case err != nil:
		log.Warn("sweep: payment status unavailable, retry next pass", "error", err)
		return ""
	}

	switch st {
	case gateway.StatusPaid:
		if _, err := r.settle(ctx, o); err != nil {
			return ""
		}
		return orders.StatusPaid
	case gateway.StatusFailed:
		r.fail(ctx, o, "payment_failed")
		return r.statusOf(ctx, o.ID)
	}

	// Unpaid: close the provider checkout before closing the order so the
	// client cannot pay for an order we no longer honour.
	if o.ProviderRef != "" {
		_, err := withRetry(ctx, r.cfg.Gateway, log, "expire_checkout", nil,
			func(ctx context.Context) (struct{}, error) {
				return struct{}{}, r.gateway.ExpireCheckout(ctx, o)
			})
		if err != nil {
			log.Warn("sweep: checkout still open, retry next pass", "error", err)
			return ""
		}
	}

	moved, err := r.orders.Transition(ctx, o.ID, orders.StatusExpired, r.now(), map[string]interface{}{
		"failure_reason": "handoff_expired",
	})
	if err != nil {
		log.Error("sweep: could not expire order", "error", err)
		return ""
	}
	if moved {
		log.Info("order expired")
		r.publish(ctx, o, events.OrderExpired, func(e *events.Event) { e.Reason = "handoff_expired" })
		return orders.StatusExpired
	}
	return r.statusOf(ctx, o.ID)
}

func (r *Reconciler) statusOf(ctx context.Context, id string) orders.Status {
	o, err := r.orders.Get(ctx, id)
	if err != nil {
		return ""
	}
	return o.Status
}

// Sweeper runs ExpireStale on a fixed interval.
type Sweeper struct {
	r        *Reconciler
	interval time.Duration
	log      *slog.Logger
}

func NewSweeper(r *Reconciler, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{r: r, interval: interval, log: r.log.With("loop", "sweeper")}
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("sweeper started", "interval", s.interval)
	t := time.NewTicker(s.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("sweeper stopped")
			return
		case <-t.C:
			rep, err := s.r.ExpireStale(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.log.Error("sweep failed", "error", err)
				continue
			}
			if rep.Examined > 0 || rep.Purged > 0 {
				s.log.Info("sweep done",
					"examined", rep.Examined, "paid", rep.Paid, "failed", rep.Failed,
					"expired", rep.Expired, "skipped", rep.Skipped, "purged", rep.Purged)
			}
		}
	}
}
