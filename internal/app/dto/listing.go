package dto

import (
	"time"

	"tinyhouse/internal/domain/availability"
	domainlistings "tinyhouse/internal/domain/listings"
	"tinyhouse/internal/domain/shared/daterange"
)

type Listing struct {
	ID            string                `json:"id"`
	HostID        string                `json:"hostId"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Image         string                `json:"image"`
	Type          string                `json:"type"`
	Address       string                `json:"address"`
	Country       string                `json:"country"`
	Admin         string                `json:"admin"`
	City          string                `json:"city"`
	NumOfGuests   int                   `json:"numOfGuests"`
	Price         int64                 `json:"price"`
	BookingsIndex availability.Document `json:"bookingsIndex"`
	// Authorized is set when the viewer owns the listing; only then Bookings is filled.
	Authorized bool         `json:"authorized"`
	Bookings   *BookingPage `json:"bookings,omitempty"`
}

// ListingSummary is the search result card.
type ListingSummary struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Image       string `json:"image"`
	Address     string `json:"address"`
	Price       int64  `json:"price"`
	NumOfGuests int    `json:"numOfGuests"`
}

type ListingsPage struct {
	Region *string          `json:"region"`
	Total  int              `json:"total"`
	Result []ListingSummary `json:"result"`
}

// Availability lists the booked days of a listing inside a window.
type Availability struct {
	ListingID  string    `json:"listingId"`
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	BookedDays []string  `json:"bookedDays"`
}

func MapListing(l *domainlistings.Listing) Listing {
	if l == nil {
		return Listing{}
	}
	return Listing{
		ID:            string(l.ID),
		HostID:        string(l.Host),
		Title:         l.Title,
		Description:   l.Description,
		Image:         l.Image,
		Type:          string(l.Type),
		Address:       l.Address,
		Country:       l.Country,
		Admin:         l.Admin,
		City:          l.City,
		NumOfGuests:   l.NumOfGuests,
		Price:         l.Price,
		BookingsIndex: l.BookingsIndex.Document(),
	}
}

func MapListingsPage(res domainlistings.SearchResult, region string) ListingsPage {
	page := ListingsPage{Total: res.Total, Result: make([]ListingSummary, 0, len(res.Items))}
	if region != "" {
		page.Region = &region
	}
	for _, l := range res.Items {
		page.Result = append(page.Result, ListingSummary{
			ID:          string(l.ID),
			Title:       l.Title,
			Image:       l.Image,
			Address:     l.Address,
			Price:       l.Price,
			NumOfGuests: l.NumOfGuests,
		})
	}
	return page
}

func MapAvailability(l *domainlistings.Listing, window daterange.DateRange) Availability {
	out := Availability{ListingID: string(l.ID), From: window.CheckIn, To: window.CheckOut, BookedDays: []string{}}
	for _, day := range l.BookingsIndex.Days() {
		if window.ContainsDate(day) {
			out.BookedDays = append(out.BookedDays, day.Format(daterange.DateLayout))
		}
	}
	return out
}
