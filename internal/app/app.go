// Package app assembles the command and query buses over injected adapters.
package app

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"tinyhouse/internal/app/commands"
	"tinyhouse/internal/app/dto"
	availabilityapp "tinyhouse/internal/app/handlers/availability"
	bookingapp "tinyhouse/internal/app/handlers/booking"
	listingsapp "tinyhouse/internal/app/handlers/listings"
	viewerapp "tinyhouse/internal/app/handlers/viewer"
	"tinyhouse/internal/app/middleware"
	"tinyhouse/internal/app/outbox"
	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/app/queries"
	"tinyhouse/internal/app/uow"
	domainbooking "tinyhouse/internal/domain/booking"
)

// Deps are the adapters chosen by configuration.
type Deps struct {
	UoWFactory    uow.UoWFactory
	Authenticator policies.Authenticator
	Payments      policies.PaymentsPort
	Geocoder      policies.Geocoder
	Locker        policies.ListingLocker
	Outbox        outbox.Outbox
	Encoder       outbox.EventEncoder
	Headers       outbox.HeaderSource
	Idempotency   middleware.IdempotencyStore
	Policy        domainbooking.Policy
	Logger        *slog.Logger
	Tracer        trace.Tracer

	ChargeTimeout time.Duration
	StaleAfter    time.Duration
	Now           func() time.Time
	NewID         func() string
}

type Application struct {
	Commands   commands.Bus
	Queries    queries.Bus
	Reconciler *bookingapp.Reconciler
}

func New(d Deps) *Application {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	encoder := d.Encoder
	if encoder == nil {
		encoder = outbox.JSONEventEncoder{}
	}

	reconciler := &bookingapp.Reconciler{
		UoWFactory: d.UoWFactory,
		Outbox:     d.Outbox,
		Encoder:    encoder,
		Logger:     logger,
		StaleAfter: d.StaleAfter,
		Now:        d.Now,
	}

	commandBus := commands.NewInMemoryBus()
	commands.RegisterHandler[bookingapp.CreateBookingCommand, *dto.Booking](commandBus, bookingapp.CreateBookingCommand{}.Key(), &bookingapp.CreateBookingHandler{
		UoWFactory:    d.UoWFactory,
		Authenticator: d.Authenticator,
		Payments:      d.Payments,
		Locker:        d.Locker,
		Outbox:        d.Outbox,
		Encoder:       encoder,
		Headers:       d.Headers,
		Policy:        d.Policy,
		Logger:        logger,
		Tracer:        d.Tracer,
		ChargeTimeout: d.ChargeTimeout,
		Now:           d.Now,
		NewID:         d.NewID,
	})
	commands.RegisterHandler[bookingapp.ReconcileBookingCommand, *bookingapp.ReconcileResult](commandBus, bookingapp.ReconcileBookingCommand{}.Key(), reconciler)
	commands.RegisterHandler[bookingapp.ReconcileStaleCommand, *bookingapp.ReconcileStaleResult](commandBus, bookingapp.ReconcileStaleCommand{}.Key(), bookingapp.ReconcileStaleHandler{Reconciler: reconciler})
	wallet := &viewerapp.WalletHandler{
		Repos:         d.UoWFactory,
		Authenticator: d.Authenticator,
		Payments:      d.Payments,
		Logger:        logger,
	}
	wallet.Register(commandBus)

	queryBus := queries.NewInMemoryBus()
	queries.RegisterHandler[listingsapp.GetListingQuery, dto.Listing](queryBus, listingsapp.GetListingQuery{}.Key(), &listingsapp.GetListingHandler{
		Repos:         d.UoWFactory,
		Authenticator: d.Authenticator,
	})
	queries.RegisterHandler[listingsapp.SearchListingsQuery, dto.ListingsPage](queryBus, listingsapp.SearchListingsQuery{}.Key(), &listingsapp.SearchListingsHandler{
		Repos:    d.UoWFactory,
		Geocoder: d.Geocoder,
	})
	queries.RegisterHandler[availabilityapp.GetCalendarQuery, dto.Availability](queryBus, availabilityapp.GetCalendarQuery{}.Key(), &availabilityapp.GetCalendarHandler{
		Repos: d.UoWFactory,
		Now:   d.Now,
	})

	cmdMiddleware := []middleware.CommandMiddleware{
		middleware.Logging(logger),
		middleware.Authentication(d.Authenticator),
		middleware.Validation(middleware.SelfValidation),
	}
	if d.Idempotency != nil {
		cmdMiddleware = append(cmdMiddleware, middleware.Idempotency(d.Idempotency, middleware.JSONResultCodec{}, logger))
	}
	cmdMiddleware = append(cmdMiddleware, middleware.Transaction(d.UoWFactory, nil))
	if d.Outbox != nil {
		cmdMiddleware = append(cmdMiddleware, middleware.OutboxFlush(d.Outbox, logger))
	}

	return &Application{
		Commands: middleware.ChainCommands(commandBus, cmdMiddleware...),
		Queries: middleware.ChainQueries(queryBus,
			middleware.QueryLogging(logger),
			middleware.QueryAuthentication(d.Authenticator),
			middleware.QueryValidation(middleware.SelfValidation),
		),
		Reconciler: reconciler,
	}
}
