package uow

import (
	"context"

	domainbooking "tinyhouse/internal/domain/booking"
	domainlistings "tinyhouse/internal/domain/listings"
	domainuser "tinyhouse/internal/domain/user"
)

// Repositories exposes the aggregate stores.
type Repositories interface {
	Listings() domainlistings.ListingRepository
	Users() domainuser.Repository
	Bookings() domainbooking.Repository
}

// UnitOfWork coordinates repositories inside a transaction boundary.
type UnitOfWork interface {
	Repositories

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// UoWFactory starts unit of work instances. Repositories used outside a unit
// write directly.
type UoWFactory interface {
	Repositories
	Begin(ctx context.Context, opts TxOptions) (UnitOfWork, error)
}

// TxOptions configure transaction boundaries.
type TxOptions struct {
	ReadOnly bool
}

// ContextInjector is implemented by units that carry a driver session in ctx.
type ContextInjector interface {
	InjectContext(ctx context.Context) context.Context
}

// Run executes fn inside a new unit, committing on success and rolling back
// otherwise. An already active unit in ctx is reused without committing.
func Run(ctx context.Context, factory UoWFactory, opts TxOptions, fn func(ctx context.Context, unit UnitOfWork) error) error {
	if unit, ok := FromContext(ctx); ok {
		return fn(ctx, unit)
	}
	if factory == nil {
		return ErrUnitOfWorkMissing
	}
	unit, err := factory.Begin(ctx, opts)
	if err != nil {
		return err
	}
	execCtx := ctx
	if injector, ok := unit.(ContextInjector); ok {
		execCtx = injector.InjectContext(ctx)
	}
	execCtx = ContextWithUnitOfWork(execCtx, unit)
	committed := false
	defer func() {
		if !committed {
			_ = unit.Rollback(execCtx)
		}
	}()
	if err := fn(execCtx, unit); err != nil {
		return err
	}
	if err := unit.Commit(execCtx); err != nil {
		return err
	}
	committed = true
	return nil
}
