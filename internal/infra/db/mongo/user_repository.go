package mongo

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tinyhouse/internal/domain/shared/money"
	domainuser "tinyhouse/internal/domain/user"
)

// UserRepository applies income and booking deltas with single-document
// operators so concurrent sagas never overwrite each other.
type UserRepository struct {
	col *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{col: db.Collection(usersCollection)}
}

func (r *UserRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)})
}

func (r *UserRepository) ByToken(ctx context.Context, id domainuser.ID, token string) (*domainuser.User, error) {
	if token == "" {
		return nil, domainuser.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"_id": string(id), "token": token})
}

func (r *UserRepository) Save(ctx context.Context, user *domainuser.User) error {
	if user == nil || strings.TrimSpace(string(user.ID)) == "" {
		return domainuser.ErrIDRequired
	}
	doc := newUserDocument(user)
	_, err := r.col.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return err
}

func (r *UserRepository) ApplyIncome(ctx context.Context, id domainuser.ID, bookingID string, amount int64) (bool, error) {
	if bookingID == "" {
		return false, domainuser.ErrBookingID
	}
	if amount < 0 {
		return false, domainuser.ErrInvalidIncome
	}
	filter := bson.M{
		"_id":               string(id),
		"credited_bookings": bson.M{"$ne": bookingID},
		"income":            bson.M{"$lte": math.MaxInt64 - amount},
	}
	update := bson.M{
		"$inc":  bson.M{"income": amount},
		"$push": bson.M{"credited_bookings": bookingID},
	}
	out, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if out.MatchedCount == 1 {
		return true, nil
	}
	user, err := r.ByID(ctx, id)
	if err != nil {
		return false, err
	}
	if user.HasCredited(bookingID) {
		return false, nil
	}
	return false, money.ErrOverflow
}

func (r *UserRepository) AppendBooking(ctx context.Context, id domainuser.ID, bookingID string) error {
	if bookingID == "" {
		return domainuser.ErrBookingID
	}
	out, err := r.col.UpdateOne(ctx, bson.M{"_id": string(id)}, bson.M{"$addToSet": bson.M{"bookings": bookingID}})
	if err != nil {
		return err
	}
	if out.MatchedCount == 0 {
		return domainuser.ErrNotFound
	}
	return nil
}

func (r *UserRepository) SetWallet(ctx context.Context, id domainuser.ID, walletID string) (*domainuser.User, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc userDocument
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": string(id)},
		bson.M{"$set": bson.M{"wallet_id": strings.TrimSpace(walletID)}},
		opts,
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*domainuser.User, error) {
	var doc userDocument
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrNotFound
		}
		return nil, err
	}
	return doc.toAggregate(), nil
}

type userDocument struct {
	ID               string   `bson:"_id"`
	Token            string   `bson:"token"`
	Name             string   `bson:"name"`
	Avatar           string   `bson:"avatar"`
	Contact          string   `bson:"contact"`
	WalletID         string   `bson:"wallet_id"`
	Income           int64    `bson:"income"`
	Bookings         []string `bson:"bookings"`
	Listings         []string `bson:"listings"`
	CreditedBookings []string `bson:"credited_bookings"`
}

func newUserDocument(u *domainuser.User) userDocument {
	return userDocument{
		ID:               string(u.ID),
		Token:            u.Token,
		Name:             u.Name,
		Avatar:           u.Avatar,
		Contact:          u.Contact,
		WalletID:         u.WalletID,
		Income:           u.Income,
		Bookings:         nonNil(u.Bookings),
		Listings:         nonNil(u.Listings),
		CreditedBookings: nonNil(u.CreditedBookings),
	}
}

func (d userDocument) toAggregate() *domainuser.User {
	return &domainuser.User{
		ID:               domainuser.ID(d.ID),
		Token:            d.Token,
		Name:             d.Name,
		Avatar:           d.Avatar,
		Contact:          d.Contact,
		WalletID:         d.WalletID,
		Income:           d.Income,
		Bookings:         d.Bookings,
		Listings:         d.Listings,
		CreditedBookings: d.CreditedBookings,
	}
}

// nonNil keeps array fields arrays, since $push fails on null.
func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var _ domainuser.Repository = (*UserRepository)(nil)
