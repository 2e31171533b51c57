package listings

import (
	"sort"
	"strings"
)

// SortFilter defines a supported catalog ordering.
type SortFilter string

const (
	SortNone           SortFilter = ""
	SortPriceLowToHigh SortFilter = "PRICE_LOW_TO_HIGH"
	SortPriceHighToLow SortFilter = "PRICE_HIGH_TO_LOW"
)

const (
	defaultSearchLimit = 10
	maxSearchLimit     = 50
)

func (s SortFilter) Valid() bool {
	switch s {
	case SortNone, SortPriceLowToHigh, SortPriceHighToLow:
		return true
	}
	return false
}

// SearchParams filter listings by geocoded location components; an empty
// component does not filter.
type SearchParams struct {
	Country string
	Admin   string
	City    string
	Sort    SortFilter
	Limit   int
	Page    int
}

// Normalized returns a sanitized copy of params.
func (p SearchParams) Normalized() SearchParams {
	normalized := p
	normalized.Country = strings.TrimSpace(normalized.Country)
	normalized.Admin = strings.TrimSpace(normalized.Admin)
	normalized.City = strings.TrimSpace(normalized.City)
	normalized.Sort = SortFilter(strings.ToUpper(strings.TrimSpace(string(normalized.Sort))))
	if !normalized.Sort.Valid() {
		normalized.Sort = SortNone
	}
	if normalized.Limit <= 0 {
		normalized.Limit = defaultSearchLimit
	}
	if normalized.Limit > maxSearchLimit {
		normalized.Limit = maxSearchLimit
	}
	if normalized.Page < 1 {
		normalized.Page = 1
	}
	return normalized
}

// Offset is the number of matches skipped before the current page.
func (p SearchParams) Offset() int {
	if p.Page <= 1 || p.Limit <= 0 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// Matches reports whether a listing satisfies the location filter.
func (p SearchParams) Matches(l *Listing) bool {
	if l == nil {
		return false
	}
	if p.Country != "" && l.Country != p.Country {
		return false
	}
	if p.Admin != "" && l.Admin != p.Admin {
		return false
	}
	if p.City != "" && l.City != p.City {
		return false
	}
	return true
}

// Apply filters, sorts and paginates an in-memory set of listings.
func (p SearchParams) Apply(all []*Listing) SearchResult {
	params := p.Normalized()
	matched := make([]*Listing, 0, len(all))
	for _, l := range all {
		if params.Matches(l) {
			matched = append(matched, l)
		}
	}
	switch params.Sort {
	case SortPriceLowToHigh:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Price < matched[j].Price })
	case SortPriceHighToLow:
		sort.SliceStable(matched, func(i, j int) bool { return matched[i].Price > matched[j].Price })
	}
	total := len(matched)
	offset := params.Offset()
	if offset >= total {
		return SearchResult{Items: []*Listing{}, Total: total}
	}
	end := offset + params.Limit
	if end > total {
		end = total
	}
	return SearchResult{Items: matched[offset:end], Total: total}
}

// Region renders "city, admin, country" skipping empty parts.
func Region(country, admin, city string) string {
	parts := make([]string, 0, 3)
	for _, part := range []string{city, admin, country} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, ", ")
}

// SearchResult wraps search hits with meta.
type SearchResult struct {
	Items []*Listing
	Total int
}
