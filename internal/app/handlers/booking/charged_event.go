package booking

import (
	"context"
	"errors"
	"log/slog"

	jsoniter "github.com/json-iterator/go"

	"tinyhouse/internal/app/outbox"
	domainbooking "tinyhouse/internal/domain/booking"
)

var ErrMalformedEvent = errors.New("booking: malformed booking event")

// ChargedEventHandler rolls a booking forward as soon as its charge is
// published, instead of waiting for the stale scan.
type ChargedEventHandler struct {
	Reconciler *Reconciler
	Inbox      outbox.Inbox
	Logger     *slog.Logger
}

func (h ChargedEventHandler) Name() string { return "booking.rollforward" }

func (h ChargedEventHandler) OnEvent(ctx context.Context, ev outbox.EventRecord) error {
	if ev.Name != domainbooking.EventCharged {
		return nil
	}
	if h.Inbox != nil && ev.ID != "" {
		seen, err := h.Inbox.Seen(ctx, ev.ID)
		if err != nil {
			return err
		}
		if seen {
			return nil
		}
	}
	var payload struct {
		BookingID string
	}
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(ev.Payload, &payload); err != nil || payload.BookingID == "" {
		return ErrMalformedEvent
	}
	res, err := h.Reconciler.ReconcileBooking(ctx, domainbooking.BookingID(payload.BookingID))
	if err != nil {
		// the stale scan picks the booking up later
		h.logger().WarnContext(ctx, "charged booking roll forward failed", "booking_id", payload.BookingID, "event_id", ev.ID, "error", err)
		return nil
	}
	h.logger().DebugContext(ctx, "charged booking event handled", "booking_id", res.BookingID, "state", res.State, "changed", res.Changed)
	return nil
}

func (h ChargedEventHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

var _ outbox.Subscriber = ChargedEventHandler{}
