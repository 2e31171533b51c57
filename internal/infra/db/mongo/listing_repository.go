package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tinyhouse/internal/domain/availability"
	domainlistings "tinyhouse/internal/domain/listings"
)

// releaseAttempts bounds the read-modify-write loop of ReleaseDates.
const releaseAttempts = 5

// ListingRepository stores listings with their bookings index inline. Writes
// to the index are conditional on the listing version.
type ListingRepository struct {
	col *mongo.Collection
	now func() time.Time
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection(listingsCollection), now: time.Now}
}

func (r *ListingRepository) ByID(ctx context.Context, id domainlistings.ListingID) (*domainlistings.Listing, error) {
	var doc listingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainlistings.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate()
}

func (r *ListingRepository) Save(ctx context.Context, listing *domainlistings.Listing) error {
	if listing == nil || listing.ID == "" {
		return domainlistings.ErrIDRequired
	}
	doc := newListingDocument(listing)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *ListingRepository) ReserveDates(ctx context.Context, res domainlistings.Reservation) error {
	filter := bson.M{"_id": string(res.ListingID), "version": res.ExpectedVersion}
	update := bson.M{
		"$set":  bson.M{"bookings_index": res.Index.Document(), "version": res.ExpectedVersion + 1},
		"$push": bson.M{"bookings": res.BookingID},
	}
	out, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return conflictAs(err, domainlistings.ErrConcurrentUpdate)
	}
	if out.MatchedCount == 1 {
		return nil
	}
	return r.missOrConflict(ctx, res.ListingID)
}

// ReleaseDates reloads and rewrites the index until the conditional write
// lands or the listing no longer holds the booking. Inside a transaction a
// lost race aborts it, so only one attempt is made and the caller retries.
func (r *ListingRepository) ReleaseDates(ctx context.Context, rel domainlistings.Release) (bool, error) {
	attempts := releaseAttempts
	if mongo.SessionFromContext(ctx) != nil {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		listing, err := r.ByID(ctx, rel.ListingID)
		if err != nil {
			return false, err
		}
		version := listing.Version
		if !listing.ApplyRelease(rel, r.now()) {
			return false, nil
		}
		filter := bson.M{"_id": string(rel.ListingID), "version": version, "bookings": rel.BookingID}
		update := bson.M{
			"$set":  bson.M{"bookings_index": listing.BookingsIndex.Document(), "version": version + 1},
			"$pull": bson.M{"bookings": rel.BookingID},
		}
		out, err := r.col.UpdateOne(ctx, filter, update)
		if err != nil {
			return false, conflictAs(err, domainlistings.ErrConcurrentUpdate)
		}
		if out.MatchedCount == 1 {
			return true, nil
		}
	}
	return false, domainlistings.ErrConcurrentUpdate
}

func (r *ListingRepository) Search(ctx context.Context, params domainlistings.SearchParams) (domainlistings.SearchResult, error) {
	params = params.Normalized()
	filter := bson.M{}
	if params.Country != "" {
		filter["country"] = params.Country
	}
	if params.Admin != "" {
		filter["admin"] = params.Admin
	}
	if params.City != "" {
		filter["city"] = params.City
	}
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return domainlistings.SearchResult{}, err
	}
	sort := bson.D{{Key: "_id", Value: 1}}
	switch params.Sort {
	case domainlistings.SortPriceLowToHigh:
		sort = bson.D{{Key: "price", Value: 1}, {Key: "_id", Value: 1}}
	case domainlistings.SortPriceHighToLow:
		sort = bson.D{{Key: "price", Value: -1}, {Key: "_id", Value: 1}}
	}
	opts := options.Find().
		SetSort(sort).
		SetSkip(int64(params.Offset())).
		SetLimit(int64(params.Limit))
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return domainlistings.SearchResult{}, err
	}
	var docs []listingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return domainlistings.SearchResult{}, err
	}
	items := make([]*domainlistings.Listing, 0, len(docs))
	for _, doc := range docs {
		l, err := doc.toAggregate()
		if err != nil {
			return domainlistings.SearchResult{}, err
		}
		items = append(items, l)
	}
	return domainlistings.SearchResult{Items: items, Total: int(total)}, nil
}

func (r *ListingRepository) missOrConflict(ctx context.Context, id domainlistings.ListingID) error {
	n, err := r.col.CountDocuments(ctx, bson.M{"_id": string(id)}, options.Count().SetLimit(1))
	if err != nil {
		return err
	}
	if n == 0 {
		return domainlistings.ErrNotFound
	}
	return domainlistings.ErrConcurrentUpdate
}

type listingDocument struct {
	ID            string                `bson:"_id"`
	Host          string                `bson:"host"`
	Title         string                `bson:"title"`
	Description   string                `bson:"description"`
	Image         string                `bson:"image"`
	Type          string                `bson:"type"`
	Address       string                `bson:"address"`
	Country       string                `bson:"country"`
	Admin         string                `bson:"admin"`
	City          string                `bson:"city"`
	NumOfGuests   int                   `bson:"num_of_guests"`
	Price         int64                 `bson:"price"`
	BookingsIndex availability.Document `bson:"bookings_index"`
	Bookings      []string              `bson:"bookings"`
	Version       int64                 `bson:"version"`
}

func newListingDocument(l *domainlistings.Listing) listingDocument {
	bookings := l.Bookings
	if bookings == nil {
		bookings = []string{}
	}
	return listingDocument{
		ID:            string(l.ID),
		Host:          string(l.Host),
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
		Bookings:      bookings,
		Version:       l.Version,
	}
}

func (d listingDocument) toAggregate() (*domainlistings.Listing, error) {
	idx, err := availability.FromDocument(d.BookingsIndex)
	if err != nil {
		return nil, fmt.Errorf("mongo: listing %s: %w", d.ID, err)
	}
	return &domainlistings.Listing{
		ID:            domainlistings.ListingID(d.ID),
		Host:          domainlistings.HostID(d.Host),
		Title:         d.Title,
		Description:   d.Description,
		Image:         d.Image,
		Type:          domainlistings.ListingType(d.Type),
		Address:       d.Address,
		Country:       d.Country,
		Admin:         d.Admin,
		City:          d.City,
		NumOfGuests:   d.NumOfGuests,
		Price:         d.Price,
		BookingsIndex: idx,
		Bookings:      append([]string(nil), d.Bookings...),
		Version:       d.Version,
	}, nil
}

var _ domainlistings.ListingRepository = (*ListingRepository)(nil)
