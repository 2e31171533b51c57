package memory

import (
	"context"
	"sync"

	appoutbox "tinyhouse/internal/app/outbox"
)

// Outbox keeps events in memory until flushed. Flush hands them to the
// subscribers in insertion order, which stands in for the broker in dev mode.
// A record a subscriber failed on stays queued, with everything after it,
// for the next flush.
type Outbox struct {
	mu          sync.Mutex
	records     []appoutbox.EventRecord
	subscribers []appoutbox.Subscriber
}

func NewOutbox(subscribers ...appoutbox.Subscriber) *Outbox {
	return &Outbox{subscribers: subscribers}
}

// Subscribe adds a subscriber for later flushes.
func (o *Outbox) Subscribe(sub appoutbox.Subscriber) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subscribers = append(o.subscribers, sub)
}

func (o *Outbox) Add(ctx context.Context, record appoutbox.EventRecord) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, record)
	return nil
}

func (o *Outbox) Flush(ctx context.Context) error {
	o.mu.Lock()
	pending := o.records
	subscribers := o.subscribers
	o.records = nil
	o.mu.Unlock()
	for i, rec := range pending {
		for _, sub := range subscribers {
			if err := sub.OnEvent(ctx, rec); err != nil {
				o.requeue(pending[i:])
				return err
			}
		}
	}
	return nil
}

// requeue puts undelivered records back ahead of those added meanwhile.
func (o *Outbox) requeue(records []appoutbox.EventRecord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(append([]appoutbox.EventRecord(nil), records...), o.records...)
}

// Pending returns a copy of the records not flushed yet.
func (o *Outbox) Pending() []appoutbox.EventRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]appoutbox.EventRecord(nil), o.records...)
}

var _ appoutbox.Outbox = (*Outbox)(nil)
