package booking

import (
	"time"

	"tinyhouse/internal/domain/listings"
	"tinyhouse/internal/domain/shared/daterange"
	"tinyhouse/internal/domain/shared/money"
	"tinyhouse/internal/domain/user"
)

// EventCharged is consumed by the roll-forward reconciler.
const EventCharged = "booking.charged"

type BookingRequested struct {
	BookingID BookingID
	ListingID listings.ListingID
	TenantID  user.ID
	Range     daterange.DateRange
	Total     money.Money
	At        time.Time
}

func (e BookingRequested) EventName() string     { return "booking.requested" }
func (e BookingRequested) AggregateID() string   { return string(e.BookingID) }
func (e BookingRequested) OccurredAt() time.Time { return e.At }

type BookingCharged struct {
	BookingID BookingID
	ListingID listings.ListingID
	ChargeID  string
	Total     money.Money
	At        time.Time
}

func (e BookingCharged) EventName() string     { return EventCharged }
func (e BookingCharged) AggregateID() string   { return string(e.BookingID) }
func (e BookingCharged) OccurredAt() time.Time { return e.At }

type BookingConfirmed struct {
	BookingID BookingID
	ListingID listings.ListingID
	TenantID  user.ID
	HostID    user.ID
	Range     daterange.DateRange
	Total     money.Money
	At        time.Time
}

func (e BookingConfirmed) EventName() string     { return "booking.confirmed" }
func (e BookingConfirmed) AggregateID() string   { return string(e.BookingID) }
func (e BookingConfirmed) OccurredAt() time.Time { return e.At }

type BookingFailed struct {
	BookingID BookingID
	ListingID listings.ListingID
	Reason    string
	At        time.Time
}

func (e BookingFailed) EventName() string     { return "booking.failed" }
func (e BookingFailed) AggregateID() string   { return string(e.BookingID) }
func (e BookingFailed) OccurredAt() time.Time { return e.At }
