package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appoutbox "tinyhouse/internal/app/outbox"
	"tinyhouse/internal/infra/storage/memory"
)

type recordingSubscriber struct {
	failOn string
	seen   []string
}

func (s *recordingSubscriber) Name() string { return "recording" }

func (s *recordingSubscriber) OnEvent(ctx context.Context, ev appoutbox.EventRecord) error {
	if ev.ID == s.failOn {
		return errors.New("subscriber unavailable")
	}
	s.seen = append(s.seen, ev.ID)
	return nil
}

func pendingIDs(o *memory.Outbox) []string {
	ids := []string{}
	for _, rec := range o.Pending() {
		ids = append(ids, rec.ID)
	}
	return ids
}

func Test_Outbox_FlushKeepsUndeliveredRecords(t *testing.T) {
	ctx := context.Background()
	sub := &recordingSubscriber{failOn: "e2"}
	box := memory.NewOutbox(sub)
	for _, id := range []string{"e1", "e2", "e3"} {
		require.NoError(t, box.Add(ctx, appoutbox.EventRecord{ID: id, Name: "booking.charged"}))
	}

	assert.Error(t, box.Flush(ctx))
	assert.Equal(t, []string{"e1"}, sub.seen)
	assert.Equal(t, []string{"e2", "e3"}, pendingIDs(box))

	require.NoError(t, box.Add(ctx, appoutbox.EventRecord{ID: "e4", Name: "booking.charged"}))
	sub.failOn = ""
	require.NoError(t, box.Flush(ctx))
	assert.Equal(t, []string{"e1", "e2", "e3", "e4"}, sub.seen)
	assert.Empty(t, pendingIDs(box))
}
