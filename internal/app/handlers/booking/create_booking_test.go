package booking_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyhouse/internal/app/dto"
	bookingapp "tinyhouse/internal/app/handlers/booking"
	"tinyhouse/internal/app/policies"
	"tinyhouse/internal/app/services/auth"
	"tinyhouse/internal/domain/availability"
	domainbooking "tinyhouse/internal/domain/booking"
	domainlistings "tinyhouse/internal/domain/listings"
	domainuser "tinyhouse/internal/domain/user"
	"tinyhouse/internal/infra/storage/memory"
)

var (
	hostCreds   = policies.Credentials{ViewerID: "host", Token: "host-token"}
	tenantCreds = policies.Credentials{ViewerID: "tenant", Token: "tenant-token"}
)

type testEnv struct {
	listings *memory.ListingRepository
	users    *memory.UserRepository
	bookings *memory.BookingRepository
	factory  memory.Factory
	payments *memory.Payments
	outbox   *memory.Outbox
	handler  *bookingapp.CreateBookingHandler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		listings: memory.NewListingRepository(),
		users:    memory.NewUserRepository(),
		bookings: memory.NewBookingRepository(),
		payments: memory.NewPayments(),
		outbox:   memory.NewOutbox(),
	}
	env.factory = memory.Factory{ListingsRepo: env.listings, UsersRepo: env.users, BookingsRepo: env.bookings}
	ctx := context.Background()

	host, err := domainuser.NewUser(domainuser.CreateParams{ID: "host", Token: "host-token", Name: "Host", WalletID: "acct_host"})
	require.NoError(t, err)
	tenant, err := domainuser.NewUser(domainuser.CreateParams{ID: "tenant", Token: "tenant-token", Name: "Tenant"})
	require.NoError(t, err)
	require.NoError(t, env.users.Save(ctx, host))
	require.NoError(t, env.users.Save(ctx, tenant))

	listing, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID:          "listing",
		Host:        "host",
		Title:       "Cozy cabin",
		Type:        domainlistings.TypeHouse,
		Country:     "Canada",
		NumOfGuests: 2,
		Price:       100,
	})
	require.NoError(t, err)
	require.NoError(t, env.listings.Save(ctx, listing))

	var seq atomic.Int64
	env.handler = &bookingapp.CreateBookingHandler{
		UoWFactory:    env.factory,
		Authenticator: &auth.Service{Users: env.users, Logger: discardLogger()},
		Payments:      env.payments,
		Locker:        memory.NewListingLocker(),
		Outbox:        env.outbox,
		Policy:        domainbooking.NewPolicy(0),
		Logger:        discardLogger(),
		NewID: func() string {
			return fmt.Sprintf("b%d", seq.Add(1))
		},
	}
	return env
}

func (e *testEnv) book(creds policies.Credentials, checkIn, checkOut string) (*dto.Booking, error) {
	return e.handler.Handle(context.Background(), bookingapp.CreateBookingCommand{
		Credentials: creds,
		ListingID:   "listing",
		Source:      "tok_visa",
		CheckIn:     checkIn,
		CheckOut:    checkOut,
	})
}

func (e *testEnv) listing(t *testing.T) *domainlistings.Listing {
	t.Helper()
	l, err := e.listings.ByID(context.Background(), "listing")
	require.NoError(t, err)
	return l
}

func (e *testEnv) user(t *testing.T, id domainuser.ID) *domainuser.User {
	t.Helper()
	u, err := e.users.ByID(context.Background(), id)
	require.NoError(t, err)
	return u
}

func Test_CreateBooking_EndToEnd(t *testing.T) {
	env := newEnv(t)

	res, err := env.book(tenantCreds, "2023-06-01", "2023-06-02")

	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, "listing", res.ListingID)
	assert.Equal(t, "tenant", res.TenantID)
	assert.Equal(t, "2023-06-01", res.CheckIn)
	assert.Equal(t, "2023-06-02", res.CheckOut)
	assert.Equal(t, int64(200), res.Total.Amount)
	assert.Equal(t, string(domainbooking.StateConfirmed), res.Status)

	listing := env.listing(t)
	assert.Equal(t, availability.Index{2023: {5: {1: true, 2: true}}}, listing.BookingsIndex)
	assert.Equal(t, []string{res.ID}, listing.Bookings)
	assert.Equal(t, int64(200), env.user(t, "host").Income)
	assert.Equal(t, []string{res.ID}, env.user(t, "tenant").Bookings)
	assert.Empty(t, env.user(t, "host").Bookings)

	stored, err := env.bookings.ByID(context.Background(), domainbooking.BookingID(res.ID))
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StateConfirmed, stored.State)
	assert.NotEmpty(t, stored.ChargeID)

	reqs := env.payments.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, int64(200), reqs[0].Amount.Amount)
	assert.Equal(t, "tok_visa", reqs[0].Source)
	assert.Equal(t, "acct_host", reqs[0].Destination)
	assert.Equal(t, "booking-"+res.ID, reqs[0].IdempotencyKey)

	names := make([]string, 0)
	for _, rec := range env.outbox.Pending() {
		names = append(names, rec.Name)
	}
	assert.Equal(t, []string{"booking.requested", "listing.dates_reserved", domainbooking.EventCharged, "booking.confirmed"}, names)
}

func Test_CreateBooking_TotalIsPriceTimesInclusiveDays(t *testing.T) {
	env := newEnv(t)

	res, err := env.book(tenantCreds, "2023-01-01", "2023-01-03")

	require.NoError(t, err)
	assert.Equal(t, int64(300), res.Total.Amount)
	assert.Equal(t, int64(300), env.user(t, "host").Income)
}

func Test_CreateBooking_RejectsBeforeAnySideEffect(t *testing.T) {
	tests := []struct {
		name     string
		creds    policies.Credentials
		prepare  func(t *testing.T, env *testEnv)
		checkIn  string
		checkOut string
		want     error
	}{
		{name: "unknown_token", creds: policies.Credentials{ViewerID: "tenant", Token: "stale"}, checkIn: "2023-06-01", checkOut: "2023-06-02", want: domainbooking.ErrUnauthenticated},
		{name: "no_credentials", checkIn: "2023-06-01", checkOut: "2023-06-02", want: domainbooking.ErrUnauthenticated},
		{name: "self_booking", creds: hostCreds, checkIn: "2023-06-01", checkOut: "2023-06-02", want: domainbooking.ErrSelfBookingForbidden},
		{name: "self_booking_with_bad_dates", creds: hostCreds, checkIn: "2023-06-03", checkOut: "2023-06-01", want: domainbooking.ErrSelfBookingForbidden},
		{name: "check_out_before_check_in", creds: tenantCreds, checkIn: "2023-06-03", checkOut: "2023-06-01", want: domainbooking.ErrInvalidDateRange},
		{name: "not_a_date", creds: tenantCreds, checkIn: "June 1st", checkOut: "2023-06-01", want: domainbooking.ErrInvalidDateRange},
		{
			name:  "host_without_wallet",
			creds: tenantCreds,
			prepare: func(t *testing.T, env *testEnv) {
				_, err := env.users.SetWallet(context.Background(), "host", "")
				require.NoError(t, err)
			},
			checkIn: "2023-06-01", checkOut: "2023-06-02", want: domainbooking.ErrHostNotPayable,
		},
		{
			name:  "host_missing",
			creds: tenantCreds,
			prepare: func(t *testing.T, env *testEnv) {
				l := env.listing(t)
				l.Host = "ghost"
				require.NoError(t, env.listings.Save(context.Background(), l))
			},
			checkIn: "2023-06-01", checkOut: "2023-06-02", want: domainbooking.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(t)
			if tt.prepare != nil {
				tt.prepare(t, env)
			}

			res, err := env.book(tt.creds, tt.checkIn, tt.checkOut)

			require.Error(t, err)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, env.payments.Requests())
			assert.Empty(t, env.listing(t).Bookings)
			assert.Zero(t, env.listing(t).BookingsIndex.Count())
			assert.Empty(t, env.outbox.Pending())
		})
	}
}

func Test_CreateBooking_UnknownListing(t *testing.T) {
	env := newEnv(t)

	_, err := env.handler.Handle(context.Background(), bookingapp.CreateBookingCommand{
		Credentials: tenantCreds, ListingID: "nope", Source: "tok", CheckIn: "2023-06-01", CheckOut: "2023-06-01",
	})

	var bookingErr *domainbooking.Error
	require.ErrorAs(t, err, &bookingErr)
	assert.Equal(t, domainbooking.KindNotFound, bookingErr.Kind)
	assert.Equal(t, domainbooking.ResourceListing, bookingErr.Resource)
	assert.Equal(t, "nope", bookingErr.ListingID)
}

func Test_CreateBooking_OverlapIsDateConflict(t *testing.T) {
	env := newEnv(t)
	first, err := env.book(tenantCreds, "2023-06-01", "2023-06-02")
	require.NoError(t, err)

	_, err = env.book(tenantCreds, "2023-06-02", "2023-06-05")

	assert.ErrorIs(t, err, domainbooking.ErrDateConflict)
	assert.Equal(t, "booking: dates can't overlap dates that have already been booked", errorPublicPrefix(err))
	assert.Len(t, env.payments.Requests(), 1)
	listing := env.listing(t)
	assert.Equal(t, []string{first.ID}, listing.Bookings)
	assert.Equal(t, 2, listing.BookingsIndex.Count())
	assert.Equal(t, int64(200), env.user(t, "host").Income)
}

func errorPublicPrefix(err error) string {
	var e *domainbooking.Error
	if !errors.As(err, &e) {
		return ""
	}
	return "booking: " + e.Public()
}

func Test_CreateBooking_DeclinedChargeReleasesDays(t *testing.T) {
	env := newEnv(t)
	env.payments.Decline = true

	res, err := env.book(tenantCreds, "2023-06-01", "2023-06-02")

	assert.Nil(t, res)
	assert.ErrorIs(t, err, domainbooking.ErrChargeFailed)
	assert.ErrorIs(t, err, policies.ErrChargeDeclined)
	listing := env.listing(t)
	assert.Empty(t, listing.Bookings)
	assert.Zero(t, listing.BookingsIndex.Count())
	assert.Zero(t, env.user(t, "host").Income)
	assert.Empty(t, env.user(t, "tenant").Bookings)

	stored, err := env.bookings.ByID(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StateFailed, stored.State)
	assert.Equal(t, "failed to create charge", stored.FailureReason)

	env.payments.Decline = false
	again, err := env.book(tenantCreds, "2023-06-01", "2023-06-02")
	require.NoError(t, err, "released days can be booked again")
	assert.Equal(t, []string{again.ID}, env.listing(t).Bookings)
}

func Test_CreateBooking_ChargeTimeoutAborts(t *testing.T) {
	env := newEnv(t)
	env.payments.Block = true
	env.handler.ChargeTimeout = 20 * time.Millisecond

	_, err := env.book(tenantCreds, "2023-06-01", "2023-06-01")

	assert.ErrorIs(t, err, domainbooking.ErrChargeFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, env.listing(t).BookingsIndex.Count())
	stored, err := env.bookings.ByID(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StateFailed, stored.State)
}

func Test_CreateBooking_ConcurrentSameDay(t *testing.T) {
	tests := []struct {
		name   string
		locker policies.ListingLocker
	}{
		{name: "with_listing_lock", locker: memory.NewListingLocker()},
		{name: "optimistic_only", locker: policies.NoopLocker{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for round := 0; round < 20; round++ {
				env := newEnv(t)
				env.handler.Locker = tt.locker

				const requests = 2
				var wg sync.WaitGroup
				start := make(chan struct{})
				errs := make([]error, requests)
				for i := 0; i < requests; i++ {
					wg.Add(1)
					go func(i int) {
						defer wg.Done()
						<-start
						_, errs[i] = env.book(tenantCreds, "2023-07-14", "2023-07-14")
					}(i)
				}
				close(start)
				wg.Wait()

				successes, conflicts := 0, 0
				for _, err := range errs {
					switch {
					case err == nil:
						successes++
					case errors.Is(err, domainbooking.ErrDateConflict):
						conflicts++
					default:
						t.Fatalf("unexpected error: %v", err)
					}
				}
				require.Equal(t, 1, successes)
				require.Equal(t, 1, conflicts)
				require.Len(t, env.listing(t).Bookings, 1)
				require.Equal(t, 1, env.payments.Charged())
				require.Equal(t, int64(100), env.user(t, "host").Income)
			}
		})
	}
}

// abortingListings fails the first writes with ErrConcurrentUpdate and
// leaves the listing untouched, as a store does when it aborts a transaction
// that lost a write race.
type abortingListings struct {
	domainlistings.ListingRepository
	reserveAborts atomic.Int32
	releaseAborts atomic.Int32
}

func (r *abortingListings) ReserveDates(ctx context.Context, res domainlistings.Reservation) error {
	if r.reserveAborts.Add(-1) >= 0 {
		return domainlistings.ErrConcurrentUpdate
	}
	return r.ListingRepository.ReserveDates(ctx, res)
}

func (r *abortingListings) ReleaseDates(ctx context.Context, rel domainlistings.Release) (bool, error) {
	if r.releaseAborts.Add(-1) >= 0 {
		return false, domainlistings.ErrConcurrentUpdate
	}
	return r.ListingRepository.ReleaseDates(ctx, rel)
}

func withAbortingListings(env *testEnv, reserveAborts, releaseAborts int32) {
	repo := &abortingListings{ListingRepository: env.listings}
	repo.reserveAborts.Store(reserveAborts)
	repo.releaseAborts.Store(releaseAborts)
	env.factory.ListingsRepo = repo
	env.handler.UoWFactory = env.factory
}

func Test_CreateBooking_RetriesAbortedReservation(t *testing.T) {
	env := newEnv(t)
	withAbortingListings(env, 2, 0)

	res, err := env.book(tenantCreds, "2023-06-01", "2023-06-02")

	require.NoError(t, err)
	assert.Equal(t, []string{res.ID}, env.listing(t).Bookings)
	assert.Equal(t, 1, env.payments.Charged())
}

func Test_CreateBooking_RetriesAbortedRelease(t *testing.T) {
	env := newEnv(t)
	withAbortingListings(env, 0, 2)
	env.payments.Decline = true

	_, err := env.book(tenantCreds, "2023-06-01", "2023-06-02")

	assert.ErrorIs(t, err, domainbooking.ErrChargeFailed)
	assert.Empty(t, env.listing(t).Bookings)
	assert.Zero(t, env.listing(t).BookingsIndex.Count())
	stored, err := env.bookings.ByID(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StateFailed, stored.State)
}
