package booking

import (
	"errors"
	"strings"
)

// Kind is the closed set of booking failure categories.
type Kind string

const (
	KindUnauthenticated      Kind = "UNAUTHENTICATED"
	KindNotFound             Kind = "NOT_FOUND"
	KindSelfBookingForbidden Kind = "SELF_BOOKING_FORBIDDEN"
	KindInvalidDateRange     Kind = "INVALID_DATE_RANGE"
	KindHostNotPayable       Kind = "HOST_NOT_PAYABLE"
	KindDateConflict         Kind = "DATE_CONFLICT"
	KindChargeFailed         Kind = "CHARGE_FAILED"
	KindStoreUnavailable     Kind = "STORE_UNAVAILABLE"
)

// Resources named by NotFound errors.
const (
	ResourceListing = "listing"
	ResourceHost    = "host"
	ResourceBooking = "booking"
	ResourceViewer  = "viewer"
)

// Kind sentinels, usable with errors.Is against any *Error.
var (
	ErrUnauthenticated      = &Error{Kind: KindUnauthenticated}
	ErrNotFound             = &Error{Kind: KindNotFound}
	ErrSelfBookingForbidden = &Error{Kind: KindSelfBookingForbidden}
	ErrInvalidDateRange     = &Error{Kind: KindInvalidDateRange}
	ErrHostNotPayable       = &Error{Kind: KindHostNotPayable}
	ErrDateConflict         = &Error{Kind: KindDateConflict}
	ErrChargeFailed         = &Error{Kind: KindChargeFailed}
	ErrStoreUnavailable     = &Error{Kind: KindStoreUnavailable}
)

var defaultMessages = map[Kind]string{
	KindUnauthenticated:      "viewer cannot be found",
	KindNotFound:             "resource can't be found",
	KindSelfBookingForbidden: "viewer can't book own listing",
	KindInvalidDateRange:     "check out date can't be before check in date",
	KindHostNotPayable:       "the host is not connected with Stripe",
	KindDateConflict:         "dates can't overlap dates that have already been booked",
	KindChargeFailed:         "failed to create charge",
	KindStoreUnavailable:     "store unavailable",
}

var notFoundMessages = map[string]string{
	ResourceListing: "listing can't be found",
	ResourceHost:    "the host can't be found",
	ResourceBooking: "booking can't be found",
	ResourceViewer:  "viewer cannot be found",
}

// Error is a tagged booking failure.
type Error struct {
	Kind      Kind
	Resource  string
	Message   string
	ListingID string
	TenantID  string
	HostID    string
	BookingID string
	Err       error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("booking: ")
	b.WriteString(e.message())
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Public is the message safe to show to callers.
func (e *Error) Public() string {
	return e.message()
}

func (e *Error) message() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind == KindNotFound {
		if msg, ok := notFoundMessages[e.Resource]; ok {
			return msg
		}
	}
	if msg, ok := defaultMessages[e.Kind]; ok {
		return msg
	}
	return strings.ToLower(string(e.Kind))
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches by kind so callers can compare against the package sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf extracts the kind of a booking error, or "" for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func NotFound(resource string, cause error) *Error {
	return &Error{Kind: KindNotFound, Resource: resource, Err: cause}
}

func StoreUnavailable(cause error) *Error {
	return &Error{Kind: KindStoreUnavailable, Err: cause}
}

func ChargeFailed(bookingID BookingID, cause error) *Error {
	return &Error{Kind: KindChargeFailed, BookingID: string(bookingID), Err: cause}
}
