package booking

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tinyhouse/internal/app/commands"
	"tinyhouse/internal/app/outbox"
	"tinyhouse/internal/app/uow"
	domainbooking "tinyhouse/internal/domain/booking"
)

const (
	reconcileBookingKey = "booking.reconcile"
	reconcileStaleKey   = "booking.reconcile_stale"

	defaultStaleAfter  = 10 * time.Minute
	defaultStaleLimit  = 100
	staleReleaseReason = "reservation expired before the charge was recorded"
)

// ReconcileBookingCommand repairs one booking left between saga steps.
type ReconcileBookingCommand struct {
	BookingID string
}

func (c ReconcileBookingCommand) Key() string { return reconcileBookingKey }

// ReconcileStaleCommand repairs every PENDING or CHARGED booking not touched
// since OlderThan.
type ReconcileStaleCommand struct {
	OlderThan time.Time
	Limit     int
}

func (c ReconcileStaleCommand) Key() string { return reconcileStaleKey }

type ReconcileResult struct {
	BookingID string                     `json:"bookingId"`
	State     domainbooking.BookingState `json:"state"`
	Changed   bool                       `json:"changed"`
}

type ReconcileStaleResult struct {
	Scanned   int `json:"scanned"`
	Confirmed int `json:"confirmed"`
	Released  int `json:"released"`
	Failed    int `json:"failed"`
}

// Reconciler rolls CHARGED bookings forward and releases PENDING bookings
// whose request died before charging. Roll forward is idempotent by booking
// id: income and tenant bookings are never applied twice.
type Reconciler struct {
	UoWFactory uow.UoWFactory
	Outbox     outbox.Outbox
	Encoder    outbox.EventEncoder
	Logger     *slog.Logger
	// StaleAfter is the age after which a PENDING booking is abandoned.
	// It must exceed the charge timeout.
	StaleAfter time.Duration
	Now        func() time.Time
}

func (r *Reconciler) Handle(ctx context.Context, cmd ReconcileBookingCommand) (*ReconcileResult, error) {
	return r.ReconcileBooking(ctx, domainbooking.BookingID(cmd.BookingID))
}

// ReconcileBooking inspects one booking and completes or undoes its saga.
func (r *Reconciler) ReconcileBooking(ctx context.Context, id domainbooking.BookingID) (*ReconcileResult, error) {
	if r.UoWFactory == nil {
		return nil, domainbooking.StoreUnavailable(uow.ErrUnitOfWorkMissing)
	}
	b, err := r.UoWFactory.Bookings().ByID(ctx, id)
	if err != nil {
		if errors.Is(err, domainbooking.ErrBookingNotFound) {
			return nil, &domainbooking.Error{Kind: domainbooking.KindNotFound, Resource: domainbooking.ResourceBooking, BookingID: string(id), Err: err}
		}
		return nil, domainbooking.StoreUnavailable(err)
	}
	return r.reconcile(ctx, b, r.now().Add(-r.staleAfter()))
}

// ReconcileStale runs ReconcileBooking for up to limit stale bookings.
func (r *Reconciler) ReconcileStale(ctx context.Context, olderThan time.Time, limit int) (ReconcileStaleResult, error) {
	if r.UoWFactory == nil {
		return ReconcileStaleResult{}, domainbooking.StoreUnavailable(uow.ErrUnitOfWorkMissing)
	}
	if limit <= 0 {
		limit = defaultStaleLimit
	}
	stale, err := r.UoWFactory.Bookings().ListStale(ctx, []domainbooking.BookingState{domainbooking.StatePending, domainbooking.StateCharged}, olderThan, limit)
	if err != nil {
		return ReconcileStaleResult{}, domainbooking.StoreUnavailable(err)
	}
	res := ReconcileStaleResult{Scanned: len(stale)}
	for _, b := range stale {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		out, err := r.reconcile(ctx, b, olderThan)
		if err != nil {
			res.Failed++
			r.logger().WarnContext(ctx, "booking reconciliation failed", "booking_id", b.ID, "state", b.State, "error", err)
			continue
		}
		if !out.Changed {
			continue
		}
		switch out.State {
		case domainbooking.StateConfirmed:
			res.Confirmed++
		case domainbooking.StateFailed:
			res.Released++
		}
	}
	if res.Scanned > 0 {
		r.logger().InfoContext(ctx, "stale bookings reconciled", "scanned", res.Scanned, "confirmed", res.Confirmed, "released", res.Released, "failed", res.Failed)
	}
	return res, nil
}

// Run reconciles stale bookings every interval until ctx ends.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.ReconcileStale(ctx, r.now().Add(-r.staleAfter()), defaultStaleLimit); err != nil && ctx.Err() == nil {
				r.logger().ErrorContext(ctx, "stale booking scan failed", "error", err)
			}
			// the ticker runs outside the command pipeline, so nothing else flushes
			if r.Outbox != nil {
				if err := r.Outbox.Flush(ctx); err != nil && ctx.Err() == nil {
					r.logger().WarnContext(ctx, "outbox flush after scan failed", "error", err)
				}
			}
		}
	}
}

func (r *Reconciler) reconcile(ctx context.Context, b *domainbooking.Booking, staleBefore time.Time) (*ReconcileResult, error) {
	steps := saga{
		factory:  r.UoWFactory,
		recorder: outbox.Recorder{Outbox: r.Outbox, Encoder: r.Encoder},
		now:      r.now,
	}
	logger := r.logger().With("booking_id", b.ID, "listing_id", b.ListingID)
	switch b.State {
	case domainbooking.StateCharged:
		confirmed, err := steps.confirm(ctx, b)
		if err != nil {
			return nil, storeError(err)
		}
		logger.InfoContext(ctx, "charged booking rolled forward", "charge_id", confirmed.ChargeID)
		return &ReconcileResult{BookingID: string(b.ID), State: confirmed.State, Changed: true}, nil
	case domainbooking.StatePending:
		if b.UpdatedAt.After(staleBefore) {
			return &ReconcileResult{BookingID: string(b.ID), State: b.State}, nil
		}
		if err := steps.release(ctx, b, staleReleaseReason); err != nil {
			return nil, storeError(err)
		}
		// The request may have died after the gateway accepted the charge.
		logger.WarnContext(ctx, "stale pending booking released, check the gateway for an orphan charge", "created_at", b.CreatedAt)
		return &ReconcileResult{BookingID: string(b.ID), State: b.State, Changed: true}, nil
	default:
		return &ReconcileResult{BookingID: string(b.ID), State: b.State}, nil
	}
}

func (r *Reconciler) staleAfter() time.Duration {
	if r.StaleAfter > 0 {
		return r.StaleAfter
	}
	return defaultStaleAfter
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// ReconcileStaleHandler exposes ReconcileStale on the command bus.
type ReconcileStaleHandler struct {
	Reconciler *Reconciler
}

func (h ReconcileStaleHandler) Handle(ctx context.Context, cmd ReconcileStaleCommand) (*ReconcileStaleResult, error) {
	olderThan := cmd.OlderThan
	if olderThan.IsZero() {
		olderThan = h.Reconciler.now().Add(-h.Reconciler.staleAfter())
	}
	res, err := h.Reconciler.ReconcileStale(ctx, olderThan, cmd.Limit)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

var _ commands.Handler[ReconcileBookingCommand, *ReconcileResult] = (*Reconciler)(nil)
var _ commands.Handler[ReconcileStaleCommand, *ReconcileStaleResult] = ReconcileStaleHandler{}
