package listings

import (
	"time"

	"tinyhouse/internal/domain/shared/daterange"
)

type DatesReservedEvent struct {
	ListingID ListingID
	BookingID string
	Range     daterange.DateRange
	At        time.Time
}

func (e DatesReservedEvent) EventName() string     { return "listing.dates_reserved" }
func (e DatesReservedEvent) AggregateID() string   { return string(e.ListingID) }
func (e DatesReservedEvent) OccurredAt() time.Time { return e.At }

type DatesReleasedEvent struct {
	ListingID ListingID
	BookingID string
	Range     daterange.DateRange
	At        time.Time
}

func (e DatesReleasedEvent) EventName() string     { return "listing.dates_released" }
func (e DatesReleasedEvent) AggregateID() string   { return string(e.ListingID) }
func (e DatesReleasedEvent) OccurredAt() time.Time { return e.At }
