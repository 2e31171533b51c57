package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Collection names.
const (
	listingsCollection    = "listings"
	usersCollection       = "users"
	bookingsCollection    = "bookings"
	idempotencyCollection = "app_idempotency"
)

type Client struct {
	DB *mongo.Database
}

func New(ctx context.Context, uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}
	if err := m.Ping(ctx, nil); err != nil {
		_ = m.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, nil)
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories query by.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		listingsCollection: {
			{Keys: bson.D{{Key: "country", Value: 1}, {Key: "admin", Value: 1}, {Key: "city", Value: 1}, {Key: "price", Value: 1}}},
		},
		bookingsCollection: {
			{Keys: bson.D{{Key: "state", Value: 1}, {Key: "updated_at", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("mongo: indexes for %s: %w", name, err)
		}
	}
	return nil
}
