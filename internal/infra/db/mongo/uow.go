package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readconcern"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"tinyhouse/internal/app/uow"
	domainbooking "tinyhouse/internal/domain/booking"
	domainlistings "tinyhouse/internal/domain/listings"
	domainuser "tinyhouse/internal/domain/user"
)

// Factory wires Mongo sessions into the generic UnitOfWork interface.
// Multi-document transactions need a replica set, so they are opt-in; without
// them every repository write is atomic on its own document.
type Factory struct {
	DB           *mongo.Database
	Transactions bool

	ListingsRepo *ListingRepository
	UsersRepo    *UserRepository
	BookingsRepo *BookingRepository
}

var ErrUnitOfWorkNotConfigured = errors.New("mongo: unit of work factory missing database")

func NewFactory(db *mongo.Database, transactions bool) Factory {
	return Factory{
		DB:           db,
		Transactions: transactions,
		ListingsRepo: NewListingRepository(db),
		UsersRepo:    NewUserRepository(db),
		BookingsRepo: NewBookingRepository(db),
	}
}

func (f Factory) Listings() domainlistings.ListingRepository { return f.ListingsRepo }

func (f Factory) Users() domainuser.Repository { return f.UsersRepo }

func (f Factory) Bookings() domainbooking.Repository { return f.BookingsRepo }

// Begin starts a session and, when enabled, a transaction on it.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.DB == nil {
		return nil, ErrUnitOfWorkNotConfigured
	}
	unit := &Unit{factory: f}
	if !f.Transactions {
		return unit, nil
	}
	session, err := f.DB.Client().StartSession()
	if err != nil {
		return nil, err
	}
	txnOpts := options.Transaction().
		SetReadConcern(readconcern.Snapshot()).
		SetWriteConcern(writeconcern.Majority())
	if opts.ReadOnly {
		txnOpts = txnOpts.SetReadConcern(readconcern.Majority())
	}
	if err := session.StartTransaction(txnOpts); err != nil {
		session.EndSession(ctx)
		return nil, err
	}
	unit.session = session
	return unit, nil
}

type Unit struct {
	factory Factory
	session mongo.Session
}

func (u *Unit) Listings() domainlistings.ListingRepository { return u.factory.ListingsRepo }

func (u *Unit) Users() domainuser.Repository { return u.factory.UsersRepo }

func (u *Unit) Bookings() domainbooking.Repository { return u.factory.BookingsRepo }

func (u *Unit) Commit(ctx context.Context) error {
	if u.session == nil {
		return nil
	}
	defer u.session.EndSession(ctx)
	return u.session.CommitTransaction(ctx)
}

func (u *Unit) Rollback(ctx context.Context) error {
	if u.session == nil {
		return nil
	}
	defer u.session.EndSession(ctx)
	return u.session.AbortTransaction(ctx)
}

// InjectContext ensures Mongo session is available in context for downstream repos.
func (u *Unit) InjectContext(ctx context.Context) context.Context {
	if u.session == nil {
		return ctx
	}
	return mongo.NewSessionContext(ctx, u.session)
}

var (
	_ uow.UoWFactory      = Factory{}
	_ uow.ContextInjector = (*Unit)(nil)
)
