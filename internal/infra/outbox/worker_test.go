package outbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	due    []*EventDocument
	sent   []string
	failed map[string]time.Time
}

func (q *fakeQueue) Claim(context.Context, string) (*EventDocument, error) {
	if len(q.due) == 0 {
		return nil, nil
	}
	doc := q.due[0]
	q.due = q.due[1:]
	return doc, nil
}

func (q *fakeQueue) MarkSent(_ context.Context, id string) error {
	q.sent = append(q.sent, id)
	return nil
}

func (q *fakeQueue) MarkFailed(_ context.Context, id string, next time.Time, _ string) error {
	if q.failed == nil {
		q.failed = map[string]time.Time{}
	}
	q.failed[id] = next
	return nil
}

type published struct {
	topic, key string
	payload    []byte
	headers    map[string]string
}

type fakeProducer struct {
	msgs []published
	err  error
}

func (p *fakeProducer) Publish(_ context.Context, topic, key string, payload []byte, headers map[string]string) error {
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, published{topic, key, payload, headers})
	return nil
}

var workerNow = time.Date(2023, 5, 1, 12, 0, 0, 0, time.UTC)

func newWorker(q Queue, p Producer) *Worker {
	return &Worker{
		Queue:       q,
		Producer:    p,
		Logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		TopicPrefix: "dev.",
		Backoff:     []time.Duration{time.Second, 5 * time.Second},
		Now:         func() time.Time { return workerNow },
	}
}

func Test_Worker_PublishesCloudEvents(t *testing.T) {
	q := &fakeQueue{due: []*EventDocument{{
		ID:         "ev1",
		Name:       "booking.charged",
		Payload:    []byte(`{"BookingID":"b1"}`),
		OccurredAt: workerNow,
		Aggregate:  "b1",
		Headers:    map[string]string{"traceparent": "00-abc-def-01"},
	}}}
	p := &fakeProducer{}

	sent, err := newWorker(q, p).Drain(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"ev1"}, q.sent)
	require.Len(t, p.msgs, 1)
	msg := p.msgs[0]
	assert.Equal(t, "dev.booking.events.v1", msg.topic)
	assert.Equal(t, "b1", msg.key)
	assert.Equal(t, CloudEventsContent, msg.headers["content-type"])

	rec, err := DecodeCloudEvent(msg.payload, nil)
	require.NoError(t, err)
	assert.Equal(t, "ev1", rec.ID)
	assert.Equal(t, "booking.charged", rec.Name)
	assert.Equal(t, "b1", rec.Aggregate)
	assert.Equal(t, "00-abc-def-01", rec.Headers["traceparent"])
	assert.JSONEq(t, `{"BookingID":"b1"}`, string(rec.Payload))
}

func Test_Worker_ReschedulesWithBackoff(t *testing.T) {
	q := &fakeQueue{due: []*EventDocument{
		{ID: "ev1", Name: "booking.charged", Payload: []byte(`{}`), Attempts: 0},
		{ID: "ev2", Name: "booking.charged", Payload: []byte(`{}`), Attempts: 7},
		{ID: "ev3", Name: "booking.charged", Payload: []byte(`not json`)},
	}}
	p := &fakeProducer{err: errors.New("broker down")}

	_, err := newWorker(q, p).Drain(context.Background())

	require.NoError(t, err)
	assert.Empty(t, q.sent)
	assert.Equal(t, workerNow.Add(time.Second), q.failed["ev1"])
	assert.Equal(t, workerNow.Add(5*time.Second), q.failed["ev2"])
	assert.Contains(t, q.failed, "ev3")
}

func Test_Worker_RequiresDependencies(t *testing.T) {
	assert.ErrorIs(t, (&Worker{}).Run(context.Background()), ErrWorkerNotConfigured)
}

func Test_DecodeCloudEvent_RejectsForeignMessages(t *testing.T) {
	_, err := DecodeCloudEvent([]byte(`{"hello":"world"}`), nil)
	assert.ErrorIs(t, err, ErrNotCloudEvent)
	_, err = DecodeCloudEvent([]byte(`garbage`), nil)
	assert.ErrorIs(t, err, ErrNotCloudEvent)
}

func Test_TopicFor(t *testing.T) {
	assert.Equal(t, "booking.events.v1", TopicFor("", "booking.confirmed"))
	assert.Equal(t, "p.listing.events.v1", TopicFor("p.", "listing"))
}
