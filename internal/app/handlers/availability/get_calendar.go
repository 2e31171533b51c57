package availability

import (
	"context"
	"errors"
	"strings"
	"time"

	"tinyhouse/internal/app/dto"
	"tinyhouse/internal/app/queries"
	"tinyhouse/internal/app/uow"
	domainlistings "tinyhouse/internal/domain/listings"
	"tinyhouse/internal/domain/shared/daterange"
)

const (
	getCalendarKey = "availability.calendar"
	defaultWindow  = 90
	maxWindow      = 366
)

var ErrWindowTooLarge = errors.New("availability: calendar window can't exceed 366 days")

// GetCalendarQuery asks for the booked days of a listing between From and To.
// Zero bounds default to a window starting today.
type GetCalendarQuery struct {
	ListingID string
	From      time.Time
	To        time.Time
}

func (q GetCalendarQuery) Key() string { return getCalendarKey }

func (q GetCalendarQuery) Validate() error {
	if strings.TrimSpace(q.ListingID) == "" {
		return domainlistings.ErrIDRequired
	}
	return nil
}

type GetCalendarHandler struct {
	Repos uow.Repositories
	Now   func() time.Time
}

func (h *GetCalendarHandler) Handle(ctx context.Context, q GetCalendarQuery) (dto.Availability, error) {
	window, err := h.window(q)
	if err != nil {
		return dto.Availability{}, err
	}
	listing, err := h.Repos.Listings().ByID(ctx, domainlistings.ListingID(strings.TrimSpace(q.ListingID)))
	if err != nil {
		return dto.Availability{}, err
	}
	return dto.MapAvailability(listing, window), nil
}

func (h *GetCalendarHandler) window(q GetCalendarQuery) (daterange.DateRange, error) {
	from := q.From
	if from.IsZero() {
		now := time.Now()
		if h.Now != nil {
			now = h.Now()
		}
		from = now
	}
	from = daterange.Day(from)
	to := q.To
	if to.IsZero() {
		to = from.AddDate(0, 0, defaultWindow-1)
	}
	window, err := daterange.New(from, to)
	if err != nil {
		return daterange.DateRange{}, err
	}
	if window.Days() > maxWindow {
		return daterange.DateRange{}, ErrWindowTooLarge
	}
	return window, nil
}

var _ queries.Handler[GetCalendarQuery, dto.Availability] = (*GetCalendarHandler)(nil)
