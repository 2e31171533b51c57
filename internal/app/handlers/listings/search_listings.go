package listings

import (
	"context"
	"fmt"
	"strings"

	"tinyhouse/internal/app/dto"
	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/app/queries"
	"tinyhouse/internal/app/uow"
	domainlistings "tinyhouse/internal/domain/listings"
)

const searchListingsKey = "listings.search"

type SearchListingsQuery struct {
	Location string
	Filter   string
	Limit    int
	Page     int
}

func (q SearchListingsQuery) Key() string { return searchListingsKey }

func (q SearchListingsQuery) Validate() error {
	if !domainlistings.SortFilter(strings.ToUpper(strings.TrimSpace(q.Filter))).Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownFilter, q.Filter)
	}
	return nil
}

// SearchListingsHandler geocodes an optional location into country, admin
// and city filters and pages through the matches sorted by price.
type SearchListingsHandler struct {
	Repos    uow.Repositories
	Geocoder policies.Geocoder
}

func (h *SearchListingsHandler) Handle(ctx context.Context, q SearchListingsQuery) (dto.ListingsPage, error) {
	params := domainlistings.SearchParams{
		Sort:  domainlistings.SortFilter(q.Filter),
		Limit: q.Limit,
		Page:  q.Page,
	}
	region := ""
	if location := strings.TrimSpace(q.Location); location != "" {
		if h.Geocoder == nil {
			return dto.ListingsPage{}, ErrGeocoderMissing
		}
		loc, err := h.Geocoder.Geocode(ctx, location)
		if err != nil {
			return dto.ListingsPage{}, err
		}
		if strings.TrimSpace(loc.Country) == "" {
			return dto.ListingsPage{}, policies.ErrLocationNotFound
		}
		params.Country, params.Admin, params.City = loc.Country, loc.Admin, loc.City
		region = domainlistings.Region(loc.Country, loc.Admin, loc.City)
	}
	res, err := h.Repos.Listings().Search(ctx, params.Normalized())
	if err != nil {
		return dto.ListingsPage{}, err
	}
	return dto.MapListingsPage(res, region), nil
}

var _ queries.Handler[SearchListingsQuery, dto.ListingsPage] = (*SearchListingsHandler)(nil)
