package memory

import (
	"context"
	"errors"

	"tinyhouse/internal/app/uow"
	domainbooking "tinyhouse/internal/domain/booking"
	domainlistings "tinyhouse/internal/domain/listings"
	domainuser "tinyhouse/internal/domain/user"
)

// Factory wires in-memory repositories into a unit-of-work boundary.
type Factory struct {
	ListingsRepo domainlistings.ListingRepository
	UsersRepo    domainuser.Repository
	BookingsRepo domainbooking.Repository
}

// ErrFactoryMisconfigured indicates missing repositories.
var ErrFactoryMisconfigured = errors.New("memory: unit of work factory misconfigured")

// NewFactory builds a factory over fresh repositories.
func NewFactory() Factory {
	return Factory{
		ListingsRepo: NewListingRepository(),
		UsersRepo:    NewUserRepository(),
		BookingsRepo: NewBookingRepository(),
	}
}

// Begin starts a lightweight transaction boundary. No isolation is provided:
// every repository call is atomic on its own, which is what the booking saga
// assumes of the document store.
func (f Factory) Begin(ctx context.Context, opts uow.TxOptions) (uow.UnitOfWork, error) {
	if f.ListingsRepo == nil || f.UsersRepo == nil || f.BookingsRepo == nil {
		return nil, ErrFactoryMisconfigured
	}
	return &Unit{factory: f}, nil
}

func (f Factory) Listings() domainlistings.ListingRepository { return f.ListingsRepo }

func (f Factory) Users() domainuser.Repository { return f.UsersRepo }

func (f Factory) Bookings() domainbooking.Repository { return f.BookingsRepo }

// Unit is a lightweight uow.UnitOfWork backed by in-memory stores.
type Unit struct {
	factory Factory
}

func (u *Unit) Listings() domainlistings.ListingRepository { return u.factory.ListingsRepo }

func (u *Unit) Users() domainuser.Repository { return u.factory.UsersRepo }

func (u *Unit) Bookings() domainbooking.Repository { return u.factory.BookingsRepo }

func (u *Unit) Commit(ctx context.Context) error {
	return nil
}

func (u *Unit) Rollback(ctx context.Context) error {
	return nil
}

var _ uow.UoWFactory = Factory{}
