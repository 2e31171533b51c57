package booking

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"tinyhouse/internal/app/commands"
	"tinyhouse/internal/app/dto"
	"tinyhouse/internal/app/middleware"
	"tinyhouse/internal/app/outbox"
	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/app/services/auth"
	"tinyhouse/internal/app/uow"
	domainbooking "tinyhouse/internal/domain/booking"
	domainlistings "tinyhouse/internal/domain/listings"
	"tinyhouse/internal/domain/shared/daterange"
	domainuser "tinyhouse/internal/domain/user"
)

const createBookingKey = "booking.create"

const (
	defaultChargeTimeout   = 15 * time.Second
	defaultReserveAttempts = 5
	detachedTimeout        = 10 * time.Second
)

var ErrListingContended = errors.New("booking: listing kept changing during reservation")

type CreateBookingCommand struct {
	Credentials policies.Credentials
	ListingID   string
	// Source is the tenant's payment token.
	Source          string
	CheckIn         string
	CheckOut        string
	IdempotencyKeyV string
}

func (c CreateBookingCommand) Key() string { return createBookingKey }

func (c CreateBookingCommand) ViewerCredentials() policies.Credentials { return c.Credentials }

// IdempotencyKey falls back to a key derived from the viewer session and the
// requested stay, so a resubmitted form replays instead of charging twice.
func (c CreateBookingCommand) IdempotencyKey() string {
	if key := strings.TrimSpace(c.IdempotencyKeyV); key != "" {
		return createBookingKey + ":" + c.Credentials.ViewerID + ":" + key
	}
	if c.Credentials.Empty() {
		return ""
	}
	sum := sha256.Sum256([]byte(strings.Join([]string{
		c.Credentials.ViewerID,
		c.Credentials.Token,
		c.ListingID,
		strings.TrimSpace(c.CheckIn),
		strings.TrimSpace(c.CheckOut),
	}, "\x00")))
	return createBookingKey + ":" + hex.EncodeToString(sum[:])
}

func (c CreateBookingCommand) ResultPrototype() any { return &dto.Booking{} }

// CreateBookingHandler sequences validation, reservation, charge and
// persistence of one booking. Days are reserved on the listing before the
// charge so concurrent requests can't both win a day; a failed charge
// releases them again.
type CreateBookingHandler struct {
	UoWFactory    uow.UoWFactory
	Authenticator policies.Authenticator
	Payments      policies.PaymentsPort
	Locker        policies.ListingLocker
	Outbox        outbox.Outbox
	Encoder       outbox.EventEncoder
	Headers       outbox.HeaderSource
	Policy        domainbooking.Policy
	Logger        *slog.Logger
	Tracer        trace.Tracer

	ChargeTimeout   time.Duration
	ReserveAttempts int
	Now             func() time.Time
	NewID           func() string
}

func (h *CreateBookingHandler) Handle(ctx context.Context, cmd CreateBookingCommand) (*dto.Booking, error) {
	ctx, span := h.tracer().Start(ctx, "booking.create", trace.WithAttributes(
		attribute.String("listing_id", cmd.ListingID),
		attribute.String("check_in", cmd.CheckIn),
		attribute.String("check_out", cmd.CheckOut),
	))
	defer span.End()

	logger := h.logger().With("listing_id", cmd.ListingID)
	tx := newTransaction(ctx, logger, span)
	booking, err := h.run(ctx, tx, logger, cmd)
	if err != nil {
		return nil, tx.fail(ctx, err)
	}
	if err := tx.advance(ctx, StateDone); err != nil {
		return nil, tx.fail(ctx, err)
	}
	span.SetAttributes(attribute.String("booking_id", string(booking.ID)))
	logger.InfoContext(ctx, "booking created", "booking_id", booking.ID, "tenant_id", booking.TenantID, "total", booking.Total.Amount)
	out := dto.MapBooking(booking)
	return &out, nil
}

func (h *CreateBookingHandler) run(ctx context.Context, tx *transaction, logger *slog.Logger, cmd CreateBookingCommand) (*domainbooking.Booking, error) {
	if h.UoWFactory == nil || h.Payments == nil {
		return nil, domainbooking.StoreUnavailable(errors.New("booking: handler not configured"))
	}
	steps := h.saga()

	viewer, listing, host, dr, err := h.validate(ctx, cmd)
	if err != nil {
		return nil, err
	}
	if err := tx.advance(ctx, StateComputingIndex); err != nil {
		return nil, err
	}

	total, err := domainbooking.TotalPrice(listing.Price, dr)
	if err != nil {
		return nil, err
	}
	id := domainbooking.BookingID(h.newID())
	if _, err := listing.PlanReservation(string(id), dr); err != nil {
		return nil, conflictError(err, listing, viewer)
	}
	booking, err := domainbooking.NewPending(domainbooking.CreateParams{
		ID:        id,
		ListingID: listing.ID,
		TenantID:  viewer.ID,
		HostID:    host.ID,
		Range:     dr,
		Total:     total,
		CreatedAt: h.now(),
	})
	if err != nil {
		return nil, domainbooking.StoreUnavailable(err)
	}
	logger = logger.With("booking_id", booking.ID)
	if err := steps.insertPending(ctx, booking); err != nil {
		return nil, storeError(err)
	}
	if err := h.reserve(ctx, steps, listing, booking); err != nil {
		h.compensate(ctx, steps, logger, booking, err)
		return nil, err
	}
	if err := tx.advance(ctx, StateCharging); err != nil {
		h.compensate(ctx, steps, logger, booking, err)
		return nil, err
	}

	receipt, err := h.charge(ctx, booking, cmd.Source, host.WalletID)
	if err != nil {
		chargeErr := domainbooking.ChargeFailed(booking.ID, err)
		chargeErr.ListingID = string(listing.ID)
		chargeErr.TenantID = string(viewer.ID)
		chargeErr.HostID = string(host.ID)
		h.compensate(ctx, steps, logger, booking, chargeErr)
		return nil, chargeErr
	}
	logger.DebugContext(ctx, "booking charged", "charge_id", receipt.ChargeID, "fee", receipt.Fee.Amount)
	if err := tx.advance(ctx, StatePersisting); err != nil {
		return nil, err
	}

	// The charge went through: from here on failures leave the booking
	// CHARGED for the reconciler and never undo the reservation.
	persistCtx, cancel := detached(ctx)
	defer cancel()
	if err := steps.markCharged(persistCtx, booking, receipt.ChargeID); err != nil {
		logger.ErrorContext(ctx, "charged booking not recorded", "charge_id", receipt.ChargeID, "error", err)
		return nil, storeError(err)
	}
	confirmed, err := steps.confirm(persistCtx, booking)
	if err != nil {
		logger.WarnContext(ctx, "booking left charged for reconciliation", "error", err)
		return nil, storeError(err)
	}
	return confirmed, nil
}

// validate loads the records the policy needs, in the order the checks run,
// so a failing check never pays for later lookups.
func (h *CreateBookingHandler) validate(ctx context.Context, cmd CreateBookingCommand) (*domainuser.User, *domainlistings.Listing, *domainuser.User, daterange.DateRange, error) {
	policy := h.Policy
	viewer, err := auth.Resolve(ctx, h.Authenticator, cmd.Credentials)
	if err != nil {
		return nil, nil, nil, daterange.DateRange{}, domainbooking.StoreUnavailable(err)
	}
	if err := policy.CheckViewer(viewer); err != nil {
		return nil, nil, nil, daterange.DateRange{}, err
	}
	listing, err := h.UoWFactory.Listings().ByID(ctx, domainlistings.ListingID(strings.TrimSpace(cmd.ListingID)))
	if err != nil && !errors.Is(err, domainlistings.ErrNotFound) {
		return nil, nil, nil, daterange.DateRange{}, domainbooking.StoreUnavailable(err)
	}
	if err := policy.CheckListing(listing); err != nil {
		return nil, nil, nil, daterange.DateRange{}, withIDs(err, cmd.ListingID, viewer, "")
	}
	if err := policy.CheckNotSelf(viewer, listing); err != nil {
		return nil, nil, nil, daterange.DateRange{}, err
	}
	dr, err := policy.CheckRange(cmd.CheckIn, cmd.CheckOut)
	if err != nil {
		return nil, nil, nil, daterange.DateRange{}, withIDs(err, cmd.ListingID, viewer, string(listing.Host))
	}
	host, err := h.UoWFactory.Users().ByID(ctx, domainuser.ID(listing.Host))
	if err != nil && !errors.Is(err, domainuser.ErrNotFound) {
		return nil, nil, nil, daterange.DateRange{}, domainbooking.StoreUnavailable(err)
	}
	if err := policy.CheckHost(host); err != nil {
		return nil, nil, nil, daterange.DateRange{}, withIDs(err, cmd.ListingID, viewer, string(listing.Host))
	}
	if err := policy.CheckPayable(host); err != nil {
		return nil, nil, nil, daterange.DateRange{}, withIDs(err, cmd.ListingID, viewer, string(host.ID))
	}
	return viewer, listing, host, dr, nil
}

// reserve writes the extended index on the listing. A version conflict means
// another booking touched the listing: reload and recompute against it.
func (h *CreateBookingHandler) reserve(ctx context.Context, steps saga, listing *domainlistings.Listing, b *domainbooking.Booking) error {
	unlock, err := h.locker().Lock(ctx, string(listing.ID))
	if err != nil {
		return domainbooking.StoreUnavailable(err)
	}
	defer unlock()

	current := listing
	for attempt := 0; attempt < h.reserveAttempts(); attempt++ {
		if attempt > 0 {
			current, err = h.UoWFactory.Listings().ByID(ctx, listing.ID)
			if err != nil {
				return storeError(err)
			}
		}
		plan, err := current.PlanReservation(string(b.ID), b.Range)
		if err != nil {
			return conflictError(err, current, nil)
		}
		err = steps.reserve(ctx, current, plan)
		if err == nil {
			return nil
		}
		if !errors.Is(err, domainlistings.ErrConcurrentUpdate) {
			return storeError(err)
		}
		h.logger().DebugContext(ctx, "listing changed during reservation", "listing_id", listing.ID, "attempt", attempt+1)
	}
	return domainbooking.StoreUnavailable(ErrListingContended)
}

func (h *CreateBookingHandler) charge(ctx context.Context, b *domainbooking.Booking, source, wallet string) (policies.ChargeReceipt, error) {
	chargeCtx, cancel := context.WithTimeout(ctx, h.chargeTimeout())
	defer cancel()
	receipt, err := h.Payments.Charge(chargeCtx, policies.ChargeRequest{
		Amount:         b.Total,
		Source:         source,
		Destination:    wallet,
		IdempotencyKey: "booking-" + string(b.ID),
	})
	if err != nil {
		return policies.ChargeReceipt{}, err
	}
	return receipt, nil
}

// compensate undoes the reservation of a booking that was never charged.
// It runs detached from ctx so a cancelled request still cleans up.
func (h *CreateBookingHandler) compensate(ctx context.Context, steps saga, logger *slog.Logger, b *domainbooking.Booking, cause error) {
	cleanupCtx, cancel := detached(ctx)
	defer cancel()
	reason := cause.Error()
	var bookingErr *domainbooking.Error
	if errors.As(cause, &bookingErr) {
		reason = bookingErr.Public()
	}
	if err := steps.release(cleanupCtx, b, reason); err != nil {
		logger.ErrorContext(ctx, "pending booking not released, left for reconciliation", "error", err)
		return
	}
	logger.DebugContext(ctx, "pending booking released", "reason", reason)
}

func (h *CreateBookingHandler) saga() saga {
	return saga{
		factory:  h.UoWFactory,
		recorder: outbox.Recorder{Outbox: h.Outbox, Encoder: h.Encoder, Headers: h.Headers},
		now:      h.now,
	}
}

func (h *CreateBookingHandler) now() time.Time {
	if h.Now != nil {
		return h.Now().UTC()
	}
	return time.Now().UTC()
}

func (h *CreateBookingHandler) newID() string {
	if h.NewID != nil {
		return h.NewID()
	}
	return uuid.NewString()
}

func (h *CreateBookingHandler) chargeTimeout() time.Duration {
	if h.ChargeTimeout > 0 {
		return h.ChargeTimeout
	}
	return defaultChargeTimeout
}

func (h *CreateBookingHandler) reserveAttempts() int {
	if h.ReserveAttempts > 0 {
		return h.ReserveAttempts
	}
	return defaultReserveAttempts
}

func (h *CreateBookingHandler) locker() policies.ListingLocker {
	if h.Locker != nil {
		return h.Locker
	}
	return policies.NoopLocker{}
}

func (h *CreateBookingHandler) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *CreateBookingHandler) tracer() trace.Tracer {
	if h.Tracer != nil {
		return h.Tracer
	}
	return otel.Tracer("tinyhouse/booking")
}

func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), detachedTimeout)
}

func conflictError(err error, listing *domainlistings.Listing, viewer *domainuser.User) error {
	out := &domainbooking.Error{Kind: domainbooking.KindDateConflict, ListingID: string(listing.ID), HostID: string(listing.Host), Err: err}
	if viewer != nil {
		out.TenantID = string(viewer.ID)
	}
	return out
}

// storeError keeps tagged errors and tags anything else as a store failure.
func storeError(err error) error {
	if domainbooking.KindOf(err) != "" {
		return err
	}
	return domainbooking.StoreUnavailable(err)
}

func withIDs(err error, listingID string, viewer *domainuser.User, hostID string) error {
	var e *domainbooking.Error
	if !errors.As(err, &e) {
		return err
	}
	if e.ListingID == "" {
		e.ListingID = listingID
	}
	if e.TenantID == "" && viewer != nil {
		e.TenantID = string(viewer.ID)
	}
	if e.HostID == "" {
		e.HostID = hostID
	}
	return e
}

var _ commands.Handler[CreateBookingCommand, *dto.Booking] = (*CreateBookingHandler)(nil)
var _ middleware.IdempotentCommand = CreateBookingCommand{}
var _ middleware.Credentialed = CreateBookingCommand{}
