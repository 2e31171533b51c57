package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"tinyhouse/internal/domain/listings"
	"tinyhouse/internal/domain/shared/daterange"
	"tinyhouse/internal/domain/shared/events"
	"tinyhouse/internal/domain/shared/money"
	"tinyhouse/internal/domain/user"
)

var (
	ErrInvalidState     = errors.New("booking: invalid state transition")
	ErrBookingNotFound  = errors.New("booking: not found")
	ErrConcurrentUpdate = errors.New("booking: concurrent update")
	ErrAlreadyExists    = errors.New("booking: already exists")
	ErrChargeRequired   = errors.New("booking: charge id required")
	ErrTotalRequired    = errors.New("booking: total must be positive")
)

type BookingID string

type BookingState string

const (
	// StatePending holds reserved days while the charge is outstanding.
	StatePending BookingState = "PENDING"
	// StateCharged means the gateway accepted the charge but income and
	// tenant bookings may not be applied yet.
	StateCharged   BookingState = "CHARGED"
	StateConfirmed BookingState = "CONFIRMED"
	StateFailed    BookingState = "FAILED"
)

func (s BookingState) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

type Booking struct {
	ID            BookingID
	ListingID     listings.ListingID
	TenantID      user.ID
	HostID        user.ID
	Range         daterange.DateRange
	Total         money.Money
	State         BookingState
	ChargeID      string
	FailureReason string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Version       int64
	events.EventRecorder
}

type Repository interface {
	ByID(ctx context.Context, id BookingID) (*Booking, error)
	// Insert fails with ErrAlreadyExists on a duplicate id.
	Insert(ctx context.Context, booking *Booking) error
	// Save is versioned and returns ErrConcurrentUpdate on a stale copy.
	Save(ctx context.Context, booking *Booking) error
	// ListByIDs returns one page of the given bookings in id order plus the
	// total. A non-empty state keeps only bookings in that state.
	ListByIDs(ctx context.Context, ids []BookingID, state BookingState, offset, limit int) ([]*Booking, int, error)
	// ListStale returns bookings in states last updated before olderThan.
	ListStale(ctx context.Context, states []BookingState, olderThan time.Time, limit int) ([]*Booking, error)
}

type CreateParams struct {
	ID        BookingID
	ListingID listings.ListingID
	TenantID  user.ID
	HostID    user.ID
	Range     daterange.DateRange
	Total     money.Money
	CreatedAt time.Time
}

// NewPending creates a booking that reserves days but has not been charged.
func NewPending(params CreateParams) (*Booking, error) {
	if strings.TrimSpace(string(params.ID)) == "" {
		return nil, errors.New("booking: id required")
	}
	if params.TenantID == "" || params.HostID == "" {
		return nil, errors.New("booking: tenant and host required")
	}
	if err := params.Range.Validate(); err != nil {
		return nil, err
	}
	if !params.Total.IsPositive() {
		return nil, ErrTotalRequired
	}
	now := params.CreatedAt.UTC()
	b := &Booking{
		ID:        params.ID,
		ListingID: params.ListingID,
		TenantID:  params.TenantID,
		HostID:    params.HostID,
		Range:     params.Range,
		Total:     params.Total,
		State:     StatePending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	b.Record(BookingRequested{BookingID: b.ID, ListingID: b.ListingID, TenantID: b.TenantID, Range: b.Range, Total: b.Total, At: now})
	return b, nil
}

func (b *Booking) MarkCharged(chargeID string, now time.Time) error {
	if b.State != StatePending {
		return ErrInvalidState
	}
	if strings.TrimSpace(chargeID) == "" {
		return ErrChargeRequired
	}
	b.State = StateCharged
	b.ChargeID = chargeID
	b.UpdatedAt = now.UTC()
	b.Record(BookingCharged{BookingID: b.ID, ListingID: b.ListingID, ChargeID: chargeID, Total: b.Total, At: b.UpdatedAt})
	return nil
}

func (b *Booking) Confirm(now time.Time) error {
	if b.State != StateCharged {
		return ErrInvalidState
	}
	b.State = StateConfirmed
	b.UpdatedAt = now.UTC()
	b.Record(BookingConfirmed{
		BookingID: b.ID,
		ListingID: b.ListingID,
		TenantID:  b.TenantID,
		HostID:    b.HostID,
		Range:     b.Range,
		Total:     b.Total,
		At:        b.UpdatedAt,
	})
	return nil
}

// Fail moves a pending booking to the terminal failed state.
func (b *Booking) Fail(reason string, now time.Time) error {
	if b.State != StatePending {
		return ErrInvalidState
	}
	b.State = StateFailed
	b.FailureReason = reason
	b.UpdatedAt = now.UTC()
	b.Record(BookingFailed{BookingID: b.ID, ListingID: b.ListingID, Reason: reason, At: b.UpdatedAt})
	return nil
}

func (b *Booking) Clone() *Booking {
	if b == nil {
		return nil
	}
	out := *b
	out.EventRecorder = events.EventRecorder{}
	return &out
}
