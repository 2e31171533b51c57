package memory

import (
	"context"
	"sync"

	"tinyhouse/internal/app/policies"
)

// ListingLocker is an in-process keyed mutex. Waiters give up when their
// context ends.
type ListingLocker struct {
	mu    sync.Mutex
	slots map[string]*lockSlot
}

type lockSlot struct {
	ch      chan struct{}
	waiters int
}

func NewListingLocker() *ListingLocker {
	return &ListingLocker{slots: make(map[string]*lockSlot)}
}

func (l *ListingLocker) Lock(ctx context.Context, listingID string) (func(), error) {
	l.mu.Lock()
	slot, ok := l.slots[listingID]
	if !ok {
		slot = &lockSlot{ch: make(chan struct{}, 1)}
		l.slots[listingID] = slot
	}
	slot.waiters++
	l.mu.Unlock()

	select {
	case slot.ch <- struct{}{}:
	case <-ctx.Done():
		l.leave(listingID, slot)
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot.ch
			l.leave(listingID, slot)
		})
	}, nil
}

func (l *ListingLocker) leave(listingID string, slot *lockSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.waiters--
	if slot.waiters == 0 {
		delete(l.slots, listingID)
	}
}

var _ policies.ListingLocker = (*ListingLocker)(nil)
