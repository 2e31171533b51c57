package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "tinyhouse/internal/domain/booking"
	"tinyhouse/internal/domain/listings"
	"tinyhouse/internal/domain/shared/daterange"
	"tinyhouse/internal/domain/shared/money"
	"tinyhouse/internal/domain/user"
)

type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(db *mongo.Database) *BookingRepository {
	return &BookingRepository{col: db.Collection(bookingsCollection)}
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrBookingNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *BookingRepository) Insert(ctx context.Context, b *domainbooking.Booking) error {
	if _, err := r.col.InsertOne(ctx, newBookingDocument(b)); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	res, err := r.col.ReplaceOne(ctx, filter, doc)
	if err != nil {
		return conflictAs(err, domainbooking.ErrConcurrentUpdate)
	}
	if res.MatchedCount == 0 {
		n, err := r.col.CountDocuments(ctx, bson.M{"_id": doc.ID}, options.Count().SetLimit(1))
		if err != nil {
			return err
		}
		if n == 0 {
			return domainbooking.ErrBookingNotFound
		}
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

// ListByIDs keeps the order of ids. Listing booking lists are short, so the
// page is cut after loading every match.
func (r *BookingRepository) ListByIDs(ctx context.Context, ids []domainbooking.BookingID, state domainbooking.BookingState, offset, limit int) ([]*domainbooking.Booking, int, error) {
	if len(ids) == 0 {
		return []*domainbooking.Booking{}, 0, nil
	}
	raw := make([]string, 0, len(ids))
	for _, id := range ids {
		raw = append(raw, string(id))
	}
	filter := bson.M{"_id": bson.M{"$in": raw}}
	if state != "" {
		filter["state"] = string(state)
	}
	cur, err := r.col.Find(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, err
	}
	byID := make(map[string]bookingDocument, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}
	found := make([]*domainbooking.Booking, 0, len(docs))
	for _, id := range raw {
		if doc, ok := byID[id]; ok {
			found = append(found, doc.toAggregate())
		}
	}
	total := len(found)
	if offset < 0 {
		offset = 0
	}
	if offset >= total || limit <= 0 {
		return []*domainbooking.Booking{}, total, nil
	}
	end := min(offset+limit, total)
	return found[offset:end], total, nil
}

func (r *BookingRepository) ListStale(ctx context.Context, states []domainbooking.BookingState, olderThan time.Time, limit int) ([]*domainbooking.Booking, error) {
	raw := make([]string, 0, len(states))
	for _, s := range states {
		raw = append(raw, string(s))
	}
	filter := bson.M{
		"state":      bson.M{"$in": raw},
		"updated_at": bson.M{"$lt": olderThan.UTC()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "updated_at", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]*domainbooking.Booking, 0, len(docs))
	for _, doc := range docs {
		out = append(out, doc.toAggregate())
	}
	return out, nil
}

type bookingDocument struct {
	ID            string        `bson:"_id"`
	ListingID     string        `bson:"listing_id"`
	TenantID      string        `bson:"tenant_id"`
	HostID        string        `bson:"host_id"`
	Range         rangeDocument `bson:"range"`
	Total         moneyDocument `bson:"total"`
	State         string        `bson:"state"`
	ChargeID      string        `bson:"charge_id,omitempty"`
	FailureReason string        `bson:"failure_reason,omitempty"`
	CreatedAt     time.Time     `bson:"created_at"`
	UpdatedAt     time.Time     `bson:"updated_at"`
	Version       int64         `bson:"version"`
}

type rangeDocument struct {
	CheckIn  string `bson:"check_in"`
	CheckOut string `bson:"check_out"`
}

type moneyDocument struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func newBookingDocument(b *domainbooking.Booking) bookingDocument {
	return bookingDocument{
		ID:            string(b.ID),
		ListingID:     string(b.ListingID),
		TenantID:      string(b.TenantID),
		HostID:        string(b.HostID),
		Range:         rangeDocument{CheckIn: b.Range.CheckIn.Format(daterange.DateLayout), CheckOut: b.Range.CheckOut.Format(daterange.DateLayout)},
		Total:         moneyDocument{Amount: b.Total.Amount, Currency: b.Total.Currency},
		State:         string(b.State),
		ChargeID:      b.ChargeID,
		FailureReason: b.FailureReason,
		CreatedAt:     b.CreatedAt.UTC(),
		UpdatedAt:     b.UpdatedAt.UTC(),
		Version:       b.Version,
	}
}

func (d bookingDocument) toAggregate() *domainbooking.Booking {
	checkIn, _ := daterange.ParseDate(d.Range.CheckIn)
	checkOut, _ := daterange.ParseDate(d.Range.CheckOut)
	return &domainbooking.Booking{
		ID:            domainbooking.BookingID(d.ID),
		ListingID:     listings.ListingID(d.ListingID),
		TenantID:      user.ID(d.TenantID),
		HostID:        user.ID(d.HostID),
		Range:         daterange.DateRange{CheckIn: checkIn, CheckOut: checkOut},
		Total:         money.Money{Amount: d.Total.Amount, Currency: d.Total.Currency},
		State:         domainbooking.BookingState(d.State),
		ChargeID:      d.ChargeID,
		FailureReason: d.FailureReason,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
		Version:       d.Version,
	}
}

var _ domainbooking.Repository = (*BookingRepository)(nil)
