package booking

import (
	"context"
	"errors"
	"time"

	"tinyhouse/internal/app/outbox"
	"tinyhouse/internal/app/uow"
	domainbooking "tinyhouse/internal/domain/booking"
	domainlistings "tinyhouse/internal/domain/listings"
)

// saga holds the local transactions shared by the orchestrator and the
// reconciler. Every step is safe to repeat for the same booking.
type saga struct {
	factory  uow.UoWFactory
	recorder outbox.Recorder
	now      func() time.Time
}

// insertPending stores a new PENDING booking with its requested event.
func (s saga) insertPending(ctx context.Context, b *domainbooking.Booking) error {
	return uow.Run(ctx, s.factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Bookings().Insert(ctx, b); err != nil {
			return err
		}
		return s.recorder.Drain(ctx, b)
	})
}

// reserve writes plan conditionally on the listing version and records the
// reservation on a copy of the listing.
func (s saga) reserve(ctx context.Context, listing *domainlistings.Listing, plan domainlistings.Reservation) error {
	return uow.Run(ctx, s.factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := unit.Listings().ReserveDates(ctx, plan); err != nil {
			return err
		}
		applied := listing.Clone()
		if err := applied.ApplyReservation(plan, s.now()); err != nil {
			return err
		}
		return s.recorder.Drain(ctx, applied)
	})
}

// releaseAttempts bounds how often release restarts after losing a race on
// the listing.
const releaseAttempts = 5

// release frees the booking's days and marks it FAILED. A lost race on the
// listing restarts the whole step, since a transactional store aborts the
// transaction it happened in.
func (s saga) release(ctx context.Context, b *domainbooking.Booking, reason string) error {
	var err error
	for attempt := 0; attempt < releaseAttempts; attempt++ {
		err = s.releaseOnce(ctx, b, reason)
		if !errors.Is(err, domainlistings.ErrConcurrentUpdate) {
			return err
		}
	}
	return err
}

func (s saga) releaseOnce(ctx context.Context, b *domainbooking.Booking, reason string) error {
	return uow.Run(ctx, s.factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if _, err := unit.Listings().ReleaseDates(ctx, domainlistings.Release{
			ListingID: b.ListingID,
			BookingID: string(b.ID),
			Range:     b.Range,
		}); err != nil && !errors.Is(err, domainlistings.ErrNotFound) {
			return err
		}
		if b.State == domainbooking.StateFailed {
			return nil
		}
		if err := b.Fail(reason, s.now()); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		return s.recorder.Drain(ctx, b)
	})
}

// markCharged records the gateway receipt on the booking.
func (s saga) markCharged(ctx context.Context, b *domainbooking.Booking, chargeID string) error {
	return uow.Run(ctx, s.factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if err := b.MarkCharged(chargeID, s.now()); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		return s.recorder.Drain(ctx, b)
	})
}

// confirm applies host income and the tenant booking, then confirms. When
// another worker confirmed the booking first, the stored booking is returned.
func (s saga) confirm(ctx context.Context, b *domainbooking.Booking) (*domainbooking.Booking, error) {
	err := uow.Run(ctx, s.factory, uow.TxOptions{}, func(ctx context.Context, unit uow.UnitOfWork) error {
		if _, err := unit.Users().ApplyIncome(ctx, b.HostID, string(b.ID), b.Total.Amount); err != nil {
			return err
		}
		if err := unit.Users().AppendBooking(ctx, b.TenantID, string(b.ID)); err != nil {
			return err
		}
		if err := b.Confirm(s.now()); err != nil {
			return err
		}
		if err := unit.Bookings().Save(ctx, b); err != nil {
			return err
		}
		return s.recorder.Drain(ctx, b)
	})
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, domainbooking.ErrConcurrentUpdate) {
		return nil, err
	}
	stored, loadErr := s.factory.Bookings().ByID(ctx, b.ID)
	if loadErr != nil {
		return nil, errors.Join(err, loadErr)
	}
	if stored.State != domainbooking.StateConfirmed {
		return nil, err
	}
	return stored, nil
}
