package mongo

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"

	domainbooking "tinyhouse/internal/domain/booking"
	domainlistings "tinyhouse/internal/domain/listings"
	"tinyhouse/internal/domain/shared/daterange"
	"tinyhouse/internal/domain/shared/money"
	domainuser "tinyhouse/internal/domain/user"
)

// newTestDB connects to TEST_MONGO_URI and returns a throwaway database.
func newTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	client, err := New(ctx, uri, "tinyhouse_test_"+uuid.NewString()[:8])
	require.NoError(t, err)
	require.NoError(t, client.EnsureIndexes(ctx))
	t.Cleanup(func() {
		_ = client.DB.Drop(context.Background())
		_ = client.Close(context.Background())
	})
	return client.DB
}

func Test_ListingRepository_ReserveIsVersioned(t *testing.T) {
	ctx := context.Background()
	repo := NewListingRepository(newTestDB(t))
	l, err := domainlistings.NewListing(domainlistings.CreateListingParams{
		ID: "l1", Host: "host", Title: "Cabin", Type: domainlistings.TypeHouse,
		Country: "Canada", Admin: "Ontario", City: "Toronto", NumOfGuests: 2, Price: 100,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, l))

	dr, err := daterange.Parse("2023-06-01", "2023-06-02")
	require.NoError(t, err)
	plan, err := l.PlanReservation("b1", dr)
	require.NoError(t, err)
	require.NoError(t, repo.ReserveDates(ctx, plan))
	assert.ErrorIs(t, repo.ReserveDates(ctx, plan), domainlistings.ErrConcurrentUpdate)

	stored, err := repo.ByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, stored.Bookings)
	assert.Equal(t, 2, stored.BookingsIndex.Count())

	released, err := repo.ReleaseDates(ctx, domainlistings.Release{ListingID: "l1", BookingID: "b1", Range: dr})
	require.NoError(t, err)
	assert.True(t, released)
	stored, err = repo.ByID(ctx, "l1")
	require.NoError(t, err)
	assert.Empty(t, stored.Bookings)
	assert.Zero(t, stored.BookingsIndex.Count())
}

func Test_UserRepository_IncomeIsCreditedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepository(newTestDB(t))
	u, err := domainuser.NewUser(domainuser.CreateParams{ID: "host", Token: "tok", Name: "Host"})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, u))

	first, err := repo.ApplyIncome(ctx, "host", "b1", 200)
	require.NoError(t, err)
	second, err := repo.ApplyIncome(ctx, "host", "b1", 200)
	require.NoError(t, err)
	require.NoError(t, repo.AppendBooking(ctx, "host", "b1"))
	require.NoError(t, repo.AppendBooking(ctx, "host", "b1"))

	assert.True(t, first)
	assert.False(t, second)
	stored, err := repo.ByToken(ctx, "host", "tok")
	require.NoError(t, err)
	assert.Equal(t, int64(200), stored.Income)
	assert.Equal(t, []string{"b1"}, stored.Bookings)

	_, err = repo.ApplyIncome(ctx, "ghost", "b1", 200)
	assert.ErrorIs(t, err, domainuser.ErrNotFound)

	stored.Income = math.MaxInt64 - 100
	require.NoError(t, repo.Save(ctx, stored))
	_, err = repo.ApplyIncome(ctx, "host", "b2", 200)
	assert.ErrorIs(t, err, money.ErrOverflow)
	again, err := repo.ApplyIncome(ctx, "host", "b1", 200)
	require.NoError(t, err)
	assert.False(t, again)
	stored, err = repo.ByID(ctx, "host")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MaxInt64-100), stored.Income)
	_, err = repo.ByToken(ctx, "host", "wrong")
	assert.ErrorIs(t, err, domainuser.ErrNotFound)
}

func Test_BookingRepository_SaveDetectsStaleCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewBookingRepository(newTestDB(t))
	dr, err := daterange.Parse("2023-06-01", "2023-06-02")
	require.NoError(t, err)
	created := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	b, err := domainbooking.NewPending(domainbooking.CreateParams{
		ID: "b1", ListingID: "l1", TenantID: "tenant", HostID: "host",
		Range: dr, Total: money.Cents(200), CreatedAt: created,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Insert(ctx, b))
	assert.ErrorIs(t, repo.Insert(ctx, b), domainbooking.ErrAlreadyExists)

	stale, err := repo.ByID(ctx, "b1")
	require.NoError(t, err)
	require.NoError(t, b.MarkCharged("ch_1", created.Add(time.Minute)))
	require.NoError(t, repo.Save(ctx, b))
	assert.ErrorIs(t, repo.Save(ctx, stale), domainbooking.ErrConcurrentUpdate)

	stored, err := repo.ByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, domainbooking.StateCharged, stored.State)
	assert.Equal(t, dr, stored.Range)
	assert.Equal(t, money.Cents(200), stored.Total)

	stale2, err := repo.ListStale(ctx, []domainbooking.BookingState{domainbooking.StateCharged}, created.Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale2, 1)

	page, total, err := repo.ListByIDs(ctx, []domainbooking.BookingID{"missing", "b1"}, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, domainbooking.BookingID("b1"), page[0].ID)

	confirmed, total, err := repo.ListByIDs(ctx, []domainbooking.BookingID{"b1"}, domainbooking.StateConfirmed, 0, 10)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, confirmed)
}
