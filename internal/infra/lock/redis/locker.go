package redis

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"tinyhouse/internal/app/policies"
)

// releaseScript deletes the key only while it still holds our token, so an
// expired lock taken over by another instance is left alone.
var releaseScript = goredis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// ListingLocker is a lease lock shared by every instance. The TTL bounds how
// long a crashed holder blocks a listing.
type ListingLocker struct {
	Client goredis.UniversalClient
	TTL    time.Duration
	Poll   time.Duration
	Prefix string
	Logger *slog.Logger
}

func NewListingLocker(client goredis.UniversalClient, ttl time.Duration, logger *slog.Logger) *ListingLocker {
	return &ListingLocker{Client: client, TTL: ttl, Poll: 25 * time.Millisecond, Prefix: "tinyhouse:lock:listing:", Logger: logger}
}

func (l *ListingLocker) Lock(ctx context.Context, listingID string) (func(), error) {
	key := l.Prefix + listingID
	token := uuid.NewString()
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	for {
		ok, err := l.Client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.poll()):
		}
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// the caller's ctx may already be done when releasing
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.Client, []string{key}, token).Err(); err != nil && l.Logger != nil {
				l.Logger.Warn("listing lock release failed", slog.String("listing_id", listingID), slog.Any("err", err))
			}
		})
	}, nil
}

func (l *ListingLocker) poll() time.Duration {
	if l.Poll <= 0 {
		return 25 * time.Millisecond
	}
	return l.Poll
}

// NewClient builds a client and pings it once.
func NewClient(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{Addr: addr, Password: password, DB: db})
	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

var _ policies.ListingLocker = (*ListingLocker)(nil)
