package listings

import (
	"context"
	"strings"

	"tinyhouse/internal/app/dto"
	"tinyhouse/internal/app/middleware"
	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/app/queries"
	"tinyhouse/internal/app/services/auth"
	"tinyhouse/internal/app/uow"
	domainbooking "tinyhouse/internal/domain/booking"
	domainlistings "tinyhouse/internal/domain/listings"
)

const (
	getListingKey        = "listings.get"
	defaultBookingsLimit = 10
	maxBookingsLimit     = 50
)

type GetListingQuery struct {
	ID            string
	Credentials   policies.Credentials
	BookingsLimit int
	BookingsPage  int
}

func (q GetListingQuery) Key() string { return getListingKey }

func (q GetListingQuery) ViewerCredentials() policies.Credentials { return q.Credentials }

func (q GetListingQuery) Validate() error {
	if strings.TrimSpace(q.ID) == "" {
		return domainlistings.ErrIDRequired
	}
	return nil
}

// GetListingHandler returns a listing; its host also sees a page of its
// confirmed bookings.
type GetListingHandler struct {
	Repos         uow.Repositories
	Authenticator policies.Authenticator
}

func (h *GetListingHandler) Handle(ctx context.Context, q GetListingQuery) (dto.Listing, error) {
	listing, err := h.Repos.Listings().ByID(ctx, domainlistings.ListingID(strings.TrimSpace(q.ID)))
	if err != nil {
		return dto.Listing{}, err
	}
	out := dto.MapListing(listing)

	viewer, err := auth.Resolve(ctx, h.Authenticator, q.Credentials)
	if err != nil {
		return dto.Listing{}, err
	}
	if viewer == nil || string(viewer.ID) != string(listing.Host) {
		return out, nil
	}
	out.Authorized = true

	limit, page := pageBounds(q.BookingsLimit, q.BookingsPage)
	ids := make([]domainbooking.BookingID, 0, len(listing.Bookings))
	for _, id := range listing.Bookings {
		ids = append(ids, domainbooking.BookingID(id))
	}
	items, total, err := h.Repos.Bookings().ListByIDs(ctx, ids, domainbooking.StateConfirmed, (page-1)*limit, limit)
	if err != nil {
		return dto.Listing{}, err
	}
	bookings := dto.MapBookingPage(items, total)
	out.Bookings = &bookings
	return out, nil
}

func pageBounds(limit, page int) (int, int) {
	if limit <= 0 {
		limit = defaultBookingsLimit
	}
	if limit > maxBookingsLimit {
		limit = maxBookingsLimit
	}
	if page < 1 {
		page = 1
	}
	return limit, page
}

var _ queries.Handler[GetListingQuery, dto.Listing] = (*GetListingHandler)(nil)
var _ middleware.Credentialed = GetListingQuery{}
