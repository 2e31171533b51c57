package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	domainbooking "tinyhouse/internal/domain/booking"
	domainlistings "tinyhouse/internal/domain/listings"
)

// ListingRepository is an in-memory implementation for demo purposes. Every
// read and write copies the aggregate so callers never share state.
type ListingRepository struct {
	mu    sync.RWMutex
	items map[domainlistings.ListingID]*domainlistings.Listing
}

// NewListingRepository builds an empty repository.
func NewListingRepository() *ListingRepository {
	return &ListingRepository{
		items: make(map[domainlistings.ListingID]*domainlistings.Listing),
	}
}

// ByID returns a copy of the listing or domainlistings.ErrNotFound.
func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	listing, ok := r.items[id]
	if !ok {
		return nil, domainlistings.ErrNotFound
	}
	return listing.Clone(), nil
}

// Save stores/updates a listing entry.
func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	if listing == nil || strings.TrimSpace(string(listing.ID)) == "" {
		return domainlistings.ErrIDRequired
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[listing.ID] = listing.Clone()
	return nil
}

// ReserveDates applies the reservation only while the listing is unchanged.
func (r *ListingRepository) ReserveDates(ctx context.Context, res domainlistings.Reservation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.items[res.ListingID]
	if !ok {
		return domainlistings.ErrNotFound
	}
	next := listing.Clone()
	if err := next.ApplyReservation(res, time.Now()); err != nil {
		return err
	}
	next.ClearEvents()
	r.items[res.ListingID] = next
	return nil
}

func (r *ListingRepository) ReleaseDates(ctx context.Context, rel domainlistings.Release) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	listing, ok := r.items[rel.ListingID]
	if !ok {
		return false, domainlistings.ErrNotFound
	}
	next := listing.Clone()
	if !next.ApplyRelease(rel, time.Now()) {
		return false, nil
	}
	next.ClearEvents()
	r.items[rel.ListingID] = next
	return true, nil
}

// Search returns listings that satisfy provided filters.
func (r *ListingRepository) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	r.mu.RLock()
	all := make([]*domainlistings.Listing, 0, len(r.items))
	for _, listing := range r.items {
		all = append(all, listing.Clone())
	}
	r.mu.RUnlock()
	if err := ctx.Err(); err != nil {
		return domainlistings.SearchResult{}, err
	}
	// map order is random; keep unsorted results stable
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return params.Apply(all), nil
}

// BookingRepository keeps bookings with optimistic versioning.
type BookingRepository struct {
	mu    sync.RWMutex
	items map[domainbooking.BookingID]*domainbooking.Booking
}

func NewBookingRepository() *BookingRepository {
	return &BookingRepository{items: make(map[domainbooking.BookingID]*domainbooking.Booking)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.items[id]
	if !ok {
		return nil, domainbooking.ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[b.ID]; exists {
		return domainbooking.ErrAlreadyExists
	}
	r.items[b.ID] = b.Clone()
	return nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[b.ID]
	if !ok {
		return domainbooking.ErrBookingNotFound
	}
	if stored.Version != b.Version {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version++
	r.items[b.ID] = b.Clone()
	return nil
}

// ListByIDs pages through ids in the given order; unknown ids are skipped.
func (r *BookingRepository) ListByIDs(ctx context.Context, ids []domainbooking.BookingID, state domainbooking.BookingState, offset, limit int) ([]*domainbooking.Booking, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	found := make([]*domainbooking.Booking, 0, len(ids))
	for _, id := range ids {
		b, ok := r.items[id]
		if !ok || (state != "" && b.State != state) {
			continue
		}
		found = append(found, b)
	}
	total := len(found)
	if offset < 0 {
		offset = 0
	}
	if offset >= total || limit <= 0 {
		return []*domainbooking.Booking{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	out := make([]*domainbooking.Booking, 0, end-offset)
	for _, b := range found[offset:end] {
		out = append(out, b.Clone())
	}
	return out, total, nil
}

func (r *BookingRepository) ListStale(ctx context.Context, states []domainbooking.BookingState, olderThan time.Time, limit int) ([]*domainbooking.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domainbooking.Booking, 0)
	for _, b := range r.items {
		if !stateIn(b.State, states) || !b.UpdatedAt.Before(olderThan) {
			continue
		}
		out = append(out, b.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func stateIn(state domainbooking.BookingState, states []domainbooking.BookingState) bool {
	for _, s := range states {
		if s == state {
			return true
		}
	}
	return false
}

var (
	_ domainlistings.ListingRepository = (*ListingRepository)(nil)
	_ domainbooking.Repository         = (*BookingRepository)(nil)
)
