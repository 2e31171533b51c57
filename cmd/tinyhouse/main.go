package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"tinyhouse/internal/app"
	bookingapp "tinyhouse/internal/app/handlers/booking"
	"tinyhouse/internal/app/middleware"
	appoutbox "tinyhouse/internal/app/outbox"
	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/app/services/auth"
	"tinyhouse/internal/app/uow"
	domainbooking "tinyhouse/internal/domain/booking"
	"tinyhouse/internal/infra/broker/kafka"
	"tinyhouse/internal/infra/config"
	mongostore "tinyhouse/internal/infra/db/mongo"
	"tinyhouse/internal/infra/fixtures"
	"tinyhouse/internal/infra/geocoding/google"
	ginserver "tinyhouse/internal/infra/http/gin"
	"tinyhouse/internal/infra/inbox"
	redislock "tinyhouse/internal/infra/lock/redis"
	"tinyhouse/internal/infra/obs"
	"tinyhouse/internal/infra/outbox"
	"tinyhouse/internal/infra/payments/stripe"
	"tinyhouse/internal/infra/storage/memory"
)

const serviceName = "tinyhouse"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		obs.NewLogger(os.Getenv("APP_ENV")).Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("tinyhouse stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("tinyhouse stopped")
}

// components are the adapters picked by configuration plus their cleanup.
type components struct {
	factory     uow.UoWFactory
	outbox      appoutbox.Outbox
	memOutbox   *memory.Outbox
	outboxQueue outbox.Queue
	inbox       appoutbox.Inbox
	idempotency middleware.IdempotencyStore
	payments    policies.PaymentsPort
	geocoder    policies.Geocoder
	memGeocoder *memory.Geocoder
	locker      policies.ListingLocker
	checks      map[string]obs.Check
	closers     []func(context.Context) error
}

func (c *components) close(logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			logger.Warn("shutdown step failed", "error", err)
		}
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracer, err := obs.InitTracer(ctx, serviceName, cfg.Env, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(sctx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	comp, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer comp.close(logger)

	if cfg.FixturesPath != "" {
		target := fixtures.Target{Users: comp.factory.Users(), Listings: comp.factory.Listings()}
		if comp.memGeocoder != nil {
			target.Locations = comp.memGeocoder
		}
		res, err := fixtures.LoadFile(ctx, cfg.FixturesPath, target, logger)
		if err != nil {
			return err
		}
		logger.Info("fixtures loaded", "path", cfg.FixturesPath, "users", res.Users, "listings", res.Listings, "locations", res.Locations)
	}

	authn := &auth.Service{Users: comp.factory.Users(), Logger: logger}
	application := app.New(app.Deps{
		UoWFactory:    comp.factory,
		Authenticator: authn,
		Payments:      comp.payments,
		Geocoder:      comp.geocoder,
		Locker:        comp.locker,
		Outbox:        comp.outbox,
		Headers:       obs.TraceHeaders,
		Idempotency:   comp.idempotency,
		Policy:        domainbooking.NewPolicy(cfg.MaxStayDays),
		Logger:        logger,
		Tracer:        otel.Tracer(serviceName),
		ChargeTimeout: cfg.ChargeTimeout,
		StaleAfter:    cfg.ReconcileStaleAfter,
		NewID:         uuid.NewString,
	})
	charged := bookingapp.ChargedEventHandler{Reconciler: application.Reconciler, Inbox: comp.inbox, Logger: logger}

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: comp.checks}, ginserver.Handlers{
		Booking: ginserver.BookingHandler{Commands: application.Commands},
		Listing: ginserver.ListingHandler{Queries: application.Queries},
		Viewer:  ginserver.ViewerHandler{Commands: application.Commands},
	})

	// workers are built before the group starts, so a failure leaves nothing running
	var workers []func(context.Context) error
	switch {
	case comp.memOutbox != nil:
		comp.memOutbox.Subscribe(charged)
	case cfg.KafkaEnabled():
		workers, err = newKafkaWorkers(cfg, comp, charged, logger)
		if err != nil {
			return err
		}
	default:
		logger.Warn("no broker configured, charged bookings are rolled forward by the reconciler only")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server starting", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(sctx)
	})
	g.Go(func() error {
		return application.Reconciler.Run(gctx, cfg.ReconcileInterval)
	})
	for _, work := range workers {
		g.Go(func() error { return work(gctx) })
	}

	return g.Wait()
}

func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*components, error) {
	comp := &components{checks: map[string]obs.Check{}}
	ok := false
	defer func() {
		if !ok {
			comp.close(logger)
		}
	}()

	switch cfg.StoreMode {
	case config.ModeMongo:
		client, err := mongostore.New(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return nil, err
		}
		comp.closers = append(comp.closers, client.Close)
		comp.checks["mongo"] = client.Ping
		if err := client.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		comp.factory = mongostore.NewFactory(client.DB, cfg.MongoTransactions)
		box, err := outbox.NewStore(ctx, client.DB)
		if err != nil {
			return nil, err
		}
		comp.outbox, comp.outboxQueue = box, box
		in, err := inbox.NewStore(ctx, client.DB, cfg.KafkaConsumerGroup, cfg.IdempotencyTTL)
		if err != nil {
			return nil, err
		}
		comp.inbox = in
		idem, err := mongostore.NewIdempotencyStore(ctx, client.DB, cfg.IdempotencyTTL)
		if err != nil {
			return nil, err
		}
		comp.idempotency = idem
	default:
		comp.factory = memory.NewFactory()
		comp.memOutbox = memory.NewOutbox()
		comp.outbox = comp.memOutbox
		comp.idempotency = memory.NewIdempotencyStore(cfg.IdempotencyTTL)
	}

	switch cfg.PaymentsMode {
	case config.ModeStripe:
		gw, err := stripe.New(cfg.StripeSecretKey, nil)
		if err != nil {
			return nil, err
		}
		comp.payments = gw
	default:
		logger.Warn("using in-memory payments, no money moves")
		comp.payments = memory.NewPayments()
	}

	switch cfg.GeocoderMode {
	case config.ModeGoogle:
		geo, err := google.New(cfg.GoogleMapsKey)
		if err != nil {
			return nil, err
		}
		comp.geocoder = geo
	default:
		comp.memGeocoder = memory.NewGeocoder(nil)
		comp.geocoder = comp.memGeocoder
	}

	switch cfg.LockMode {
	case config.ModeRedis:
		client, err := redislock.NewClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		comp.closers = append(comp.closers, func(context.Context) error { return client.Close() })
		comp.checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		comp.locker = redislock.NewListingLocker(client, cfg.LockTTL, logger)
	case config.ModeNone:
		comp.locker = policies.NoopLocker{}
	default:
		comp.locker = memory.NewListingLocker()
	}

	ok = true
	return comp, nil
}

// newKafkaWorkers builds the outbox publisher and the consumer that feeds
// booking events back into the charged-booking handler.
func newKafkaWorkers(cfg config.Config, comp *components, charged bookingapp.ChargedEventHandler, logger *slog.Logger) ([]func(context.Context) error, error) {
	if comp.outboxQueue == nil {
		return nil, errors.New("kafka needs the mongo store for its outbox")
	}
	producer, err := kafka.NewProducer(cfg.KafkaBrokers, kafka.NewConfig(serviceName))
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	comp.closers = append(comp.closers, func(context.Context) error { return producer.Close() })

	consumer, err := kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaConsumerGroup, kafka.NewConfig(serviceName), kafka.Dispatcher{
		Subscribers: []appoutbox.Subscriber{charged},
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	comp.closers = append(comp.closers, func(context.Context) error { return consumer.Close() })

	worker := &outbox.Worker{
		Queue:       comp.outboxQueue,
		Producer:    producer,
		Logger:      logger,
		Interval:    cfg.OutboxPollInterval,
		TopicPrefix: cfg.KafkaTopicPrefix,
		Backoff:     cfg.RetryBackoff,
	}
	topics := []string{outbox.TopicFor(cfg.KafkaTopicPrefix, domainbooking.EventCharged)}
	return []func(context.Context) error{
		worker.Run,
		func(ctx context.Context) error { return consumer.Run(ctx, topics) },
	}, nil
}
