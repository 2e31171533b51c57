package booking_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tinyhouse/internal/domain/booking"
	"tinyhouse/internal/domain/shared/daterange"
	"tinyhouse/internal/domain/shared/money"
)

func newPending(t *testing.T) *booking.Booking {
	t.Helper()
	dr, err := daterange.Parse("2023-06-01", "2023-06-02")
	require.NoError(t, err)
	b, err := booking.NewPending(booking.CreateParams{
		ID:        "b1",
		ListingID: "l1",
		TenantID:  "tenant",
		HostID:    "host",
		Range:     dr,
		Total:     money.Cents(200),
		CreatedAt: time.Date(2023, time.May, 1, 12, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	return b
}

func eventNames(b *booking.Booking) []string {
	var names []string
	for _, ev := range b.PendingEvents() {
		names = append(names, ev.EventName())
	}
	return names
}

func Test_Booking_HappyPath(t *testing.T) {
	b := newPending(t)
	now := time.Now()

	require.NoError(t, b.MarkCharged("ch_1", now))
	require.NoError(t, b.Confirm(now))

	assert.Equal(t, booking.StateConfirmed, b.State)
	assert.Equal(t, "ch_1", b.ChargeID)
	assert.Equal(t, []string{"booking.requested", booking.EventCharged, "booking.confirmed"}, eventNames(b))
	assert.True(t, b.State.Terminal())
}

func Test_Booking_RejectsInvalidTransitions(t *testing.T) {
	b := newPending(t)
	now := time.Now()

	assert.ErrorIs(t, b.Confirm(now), booking.ErrInvalidState)
	assert.ErrorIs(t, b.MarkCharged("", now), booking.ErrChargeRequired)

	require.NoError(t, b.MarkCharged("ch_1", now))
	assert.ErrorIs(t, b.Fail("late", now), booking.ErrInvalidState)
	require.NoError(t, b.Confirm(now))
	assert.ErrorIs(t, b.MarkCharged("ch_2", now), booking.ErrInvalidState)
}

func Test_Booking_FailFromPending(t *testing.T) {
	b := newPending(t)

	require.NoError(t, b.Fail("card declined", time.Now()))

	assert.Equal(t, booking.StateFailed, b.State)
	assert.Equal(t, "card declined", b.FailureReason)
	assert.ErrorIs(t, b.Fail("again", time.Now()), booking.ErrInvalidState)
}

func Test_NewPending_RequiresPositiveTotal(t *testing.T) {
	dr, err := daterange.Parse("2023-06-01", "2023-06-02")
	require.NoError(t, err)

	_, err = booking.NewPending(booking.CreateParams{ID: "b1", TenantID: "t", HostID: "h", Range: dr, Total: money.Cents(0)})

	assert.ErrorIs(t, err, booking.ErrTotalRequired)
}
