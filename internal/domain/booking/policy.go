package booking

import (
	"errors"
	"fmt"

	"tinyhouse/internal/domain/listings"
	"tinyhouse/internal/domain/shared/daterange"
	"tinyhouse/internal/domain/shared/money"
	"tinyhouse/internal/domain/user"
)

// DefaultMaxStayDays bounds a single booking.
const DefaultMaxStayDays = 365

// PlatformFeePercent is the share of each charge kept by the platform.
const PlatformFeePercent = 5

// Policy holds the booking preconditions. Each check is pure and they are
// meant to run in declaration order: viewer, listing, self booking, dates,
// host, payout account.
type Policy struct {
	MaxStayDays int
}

func NewPolicy(maxStayDays int) Policy {
	if maxStayDays <= 0 {
		maxStayDays = DefaultMaxStayDays
	}
	return Policy{MaxStayDays: maxStayDays}
}

// Input is everything Validate needs, already loaded.
type Input struct {
	Viewer   *user.User
	Listing  *listings.Listing
	Host     *user.User
	CheckIn  string
	CheckOut string
}

// Validate runs every check in order and returns the parsed range.
func (p Policy) Validate(in Input) (daterange.DateRange, error) {
	if err := p.CheckViewer(in.Viewer); err != nil {
		return daterange.DateRange{}, err
	}
	if err := p.CheckListing(in.Listing); err != nil {
		return daterange.DateRange{}, err
	}
	if err := p.CheckNotSelf(in.Viewer, in.Listing); err != nil {
		return daterange.DateRange{}, err
	}
	dr, err := p.CheckRange(in.CheckIn, in.CheckOut)
	if err != nil {
		return daterange.DateRange{}, err
	}
	if err := p.CheckHost(in.Host); err != nil {
		return daterange.DateRange{}, err
	}
	if err := p.CheckPayable(in.Host); err != nil {
		return daterange.DateRange{}, err
	}
	return dr, nil
}

func (p Policy) CheckViewer(viewer *user.User) error {
	if viewer == nil {
		return &Error{Kind: KindUnauthenticated}
	}
	return nil
}

func (p Policy) CheckListing(l *listings.Listing) error {
	if l == nil {
		return NotFound(ResourceListing, nil)
	}
	return nil
}

func (p Policy) CheckNotSelf(viewer *user.User, l *listings.Listing) error {
	if string(viewer.ID) == string(l.Host) {
		return &Error{Kind: KindSelfBookingForbidden, ListingID: string(l.ID), TenantID: string(viewer.ID)}
	}
	return nil
}

func (p Policy) CheckRange(checkIn, checkOut string) (daterange.DateRange, error) {
	dr, err := daterange.Parse(checkIn, checkOut)
	if err != nil {
		e := &Error{Kind: KindInvalidDateRange, Err: err}
		if errors.Is(err, daterange.ErrInvalidDate) {
			e.Message = "check in and check out must be calendar dates"
		}
		return daterange.DateRange{}, e
	}
	limit := p.MaxStayDays
	if limit <= 0 {
		limit = DefaultMaxStayDays
	}
	if dr.Days() > limit {
		return daterange.DateRange{}, &Error{
			Kind:    KindInvalidDateRange,
			Message: fmt.Sprintf("a booking can't be longer than %d days", limit),
		}
	}
	return dr, nil
}

func (p Policy) CheckHost(host *user.User) error {
	if host == nil {
		return NotFound(ResourceHost, nil)
	}
	return nil
}

func (p Policy) CheckPayable(host *user.User) error {
	if !host.Payable() {
		return &Error{Kind: KindHostNotPayable, HostID: string(host.ID)}
	}
	return nil
}

// TotalPrice is price per day times the inclusive number of days.
func TotalPrice(pricePerDay int64, dr daterange.DateRange) (money.Money, error) {
	total, err := money.Cents(pricePerDay).Multiply(int64(dr.Days()))
	if err != nil {
		return money.Money{}, &Error{Kind: KindInvalidDateRange, Message: "booking total is too large", Err: err}
	}
	return total, nil
}

// PlatformFee is PlatformFeePercent of total rounded half up.
func PlatformFee(total money.Money) money.Money {
	return total.Percent(PlatformFeePercent)
}
