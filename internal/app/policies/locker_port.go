package policies

import (
	"context"
	"errors"
)

var ErrLockTimeout = errors.New("lock: timed out acquiring lock")

// ListingLocker serialises reservation attempts per listing. It only reduces
// contention; the conditional listing write stays the source of truth.
type ListingLocker interface {
	// Lock blocks until the lock is held or ctx ends. The returned func
	// releases it and is safe to call once.
	Lock(ctx context.Context, listingID string) (func(), error)
}

// NoopLocker never blocks.
type NoopLocker struct{}

func (NoopLocker) Lock(context.Context, string) (func(), error) {
	return func() {}, nil
}
