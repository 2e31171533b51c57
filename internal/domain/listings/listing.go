package listings

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"tinyhouse/internal/domain/availability"
	"tinyhouse/internal/domain/shared/daterange"
	"tinyhouse/internal/domain/shared/events"
)

var (
	ErrNotFound          = errors.New("listings: listing can't be found")
	ErrConcurrentUpdate  = errors.New("listings: concurrent update")
	ErrIDRequired        = errors.New("listings: id is required")
	ErrHostRequired      = errors.New("listings: host is required")
	ErrTitleTooLong      = errors.New("listings: listing title must be under 100 characters")
	ErrTitleRequired     = errors.New("listings: title is required")
	ErrDescriptionLength = errors.New("listings: listing description must be under 5000 characters")
	ErrInvalidType       = errors.New("listings: listing type must be either an apartment or house")
	ErrInvalidPrice      = errors.New("listings: price must be greater than 0")
	ErrGuestsLimit       = errors.New("listings: number of guests must be at least 1")
	ErrBookingRequired   = errors.New("listings: booking id is required")
)

const (
	maxTitleLength       = 100
	maxDescriptionLength = 5000
)

type ListingID string

// HostID is the id of the owning user.
type HostID string

type ListingType string

const (
	TypeApartment ListingType = "APARTMENT"
	TypeHouse     ListingType = "HOUSE"
)

func (t ListingType) Valid() bool {
	return t == TypeApartment || t == TypeHouse
}

type Listing struct {
	ID            ListingID
	Host          HostID
	Title         string
	Description   string
	Image         string
	Type          ListingType
	Address       string
	Country       string
	Admin         string
	City          string
	NumOfGuests   int
	Price         int64
	BookingsIndex availability.Index
	Bookings      []string
	Version       int64
	events.EventRecorder
}

// Reservation is a conditional write of the availability index: it only
// applies while the stored listing is still at ExpectedVersion.
type Reservation struct {
	ListingID       ListingID
	ExpectedVersion int64
	BookingID       string
	Range           daterange.DateRange
	Index           availability.Index
}

// Release removes a booking's days from a listing that still holds it.
type Release struct {
	ListingID ListingID
	BookingID string
	Range     daterange.DateRange
}

type ListingRepository interface {
	ByID(ctx context.Context, id ListingID) (*Listing, error)
	Save(ctx context.Context, listing *Listing) error
	// ReserveDates returns ErrConcurrentUpdate when the version moved.
	ReserveDates(ctx context.Context, r Reservation) error
	// ReleaseDates reports whether the listing held the booking.
	ReleaseDates(ctx context.Context, r Release) (bool, error)
	Search(ctx context.Context, params SearchParams) (SearchResult, error)
}

type CreateListingParams struct {
	ID          ListingID
	Host        HostID
	Title       string
	Description string
	Image       string
	Type        ListingType
	Address     string
	Country     string
	Admin       string
	City        string
	NumOfGuests int
	Price       int64
}

func NewListing(params CreateListingParams) (*Listing, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, ErrIDRequired
	}
	if strings.TrimSpace(string(params.Host)) == "" {
		return nil, ErrHostRequired
	}
	title := strings.TrimSpace(params.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return nil, ErrTitleTooLong
	}
	if utf8.RuneCountInString(params.Description) > maxDescriptionLength {
		return nil, ErrDescriptionLength
	}
	if !params.Type.Valid() {
		return nil, ErrInvalidType
	}
	if params.Price <= 0 {
		return nil, ErrInvalidPrice
	}
	if params.NumOfGuests < 1 {
		return nil, ErrGuestsLimit
	}
	return &Listing{
		ID:            params.ID,
		Host:          params.Host,
		Title:         title,
		Description:   strings.TrimSpace(params.Description),
		Image:         strings.TrimSpace(params.Image),
		Type:          params.Type,
		Address:       strings.TrimSpace(params.Address),
		Country:       strings.TrimSpace(params.Country),
		Admin:         strings.TrimSpace(params.Admin),
		City:          strings.TrimSpace(params.City),
		NumOfGuests:   params.NumOfGuests,
		Price:         params.Price,
		BookingsIndex: availability.Index{},
	}, nil
}

// PlanReservation computes the index the listing would have after booking dr.
// The listing itself is left untouched.
func (l *Listing) PlanReservation(bookingID string, dr daterange.DateRange) (Reservation, error) {
	if strings.TrimSpace(bookingID) == "" {
		return Reservation{}, ErrBookingRequired
	}
	next, err := l.BookingsIndex.Extend(dr)
	if err != nil {
		return Reservation{}, err
	}
	return Reservation{
		ListingID:       l.ID,
		ExpectedVersion: l.Version,
		BookingID:       bookingID,
		Range:           dr,
		Index:           next,
	}, nil
}

// ApplyReservation commits a planned reservation to the in-memory aggregate.
func (l *Listing) ApplyReservation(r Reservation, now time.Time) error {
	if r.ExpectedVersion != l.Version {
		return ErrConcurrentUpdate
	}
	l.BookingsIndex = r.Index.Clone()
	l.Bookings = append(l.Bookings, r.BookingID)
	l.Version++
	l.Record(DatesReservedEvent{ListingID: l.ID, BookingID: r.BookingID, Range: r.Range, At: now.UTC()})
	return nil
}

// ApplyRelease drops the booking and its days. It is a no-op when the
// listing does not hold the booking.
func (l *Listing) ApplyRelease(r Release, now time.Time) bool {
	pos := -1
	for i, id := range l.Bookings {
		if id == r.BookingID {
			pos = i
			break
		}
	}
	if pos < 0 {
		return false
	}
	l.BookingsIndex = l.BookingsIndex.Release(r.Range)
	l.Bookings = append(l.Bookings[:pos:pos], l.Bookings[pos+1:]...)
	l.Version++
	l.Record(DatesReleasedEvent{ListingID: l.ID, BookingID: r.BookingID, Range: r.Range, At: now.UTC()})
	return true
}

func (l *Listing) HasBooking(bookingID string) bool {
	for _, id := range l.Bookings {
		if id == bookingID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy without pending events.
func (l *Listing) Clone() *Listing {
	if l == nil {
		return nil
	}
	out := *l
	out.BookingsIndex = l.BookingsIndex.Clone()
	out.Bookings = append([]string(nil), l.Bookings...)
	out.EventRecorder = events.EventRecorder{}
	return &out
}
