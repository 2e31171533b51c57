package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"tinyhouse/internal/domain/shared/events"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type EventRecord struct {
	ID         string
	Name       string
	Payload    []byte
	OccurredAt time.Time
	Aggregate  string
	Headers    map[string]string
}

// Outbox stores records in the same write context as the aggregates they
// describe. Flush hands buffered records to delivery, where applicable.
type Outbox interface {
	Add(ctx context.Context, record EventRecord) error
	Flush(ctx context.Context) error
}

type EventEncoder interface {
	Encode(ev events.DomainEvent) (EventRecord, error)
}

// HeaderSource adds transport headers (trace context, request id) to records.
type HeaderSource func(ctx context.Context) map[string]string

type JSONEventEncoder struct {
	IDGenerator func() string
}

func (e JSONEventEncoder) Encode(ev events.DomainEvent) (EventRecord, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return EventRecord{}, err
	}
	idGen := e.IDGenerator
	if idGen == nil {
		idGen = uuid.NewString
	}
	return EventRecord{
		ID:         idGen(),
		Name:       ev.EventName(),
		Payload:    payload,
		OccurredAt: ev.OccurredAt().UTC(),
		Aggregate:  ev.AggregateID(),
		Headers:    map[string]string{},
	}, nil
}

// Recorder drains aggregate events into an outbox.
type Recorder struct {
	Outbox  Outbox
	Encoder EventEncoder
	Headers HeaderSource
}

// Record encodes and stores every event. A nil outbox drops events.
func (r Recorder) Record(ctx context.Context, evs []events.DomainEvent) error {
	if r.Outbox == nil || len(evs) == 0 {
		return nil
	}
	encoder := r.Encoder
	if encoder == nil {
		encoder = JSONEventEncoder{}
	}
	var extra map[string]string
	if r.Headers != nil {
		extra = r.Headers(ctx)
	}
	for _, ev := range evs {
		rec, err := encoder.Encode(ev)
		if err != nil {
			return err
		}
		if rec.Headers == nil {
			rec.Headers = map[string]string{}
		}
		for k, v := range extra {
			rec.Headers[k] = v
		}
		if err := r.Outbox.Add(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

// Drain records and clears the pending events of a recorder-backed aggregate.
func (r Recorder) Drain(ctx context.Context, source interface {
	PendingEvents() []events.DomainEvent
	ClearEvents()
}) error {
	evs := source.PendingEvents()
	if err := r.Record(ctx, evs); err != nil {
		return err
	}
	source.ClearEvents()
	return nil
}

// Inbox remembers consumed event ids. Seen records id and reports whether it
// was already recorded.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
}

// Subscriber reacts to published events.
type Subscriber interface {
	Name() string
	OnEvent(ctx context.Context, ev EventRecord) error
}
