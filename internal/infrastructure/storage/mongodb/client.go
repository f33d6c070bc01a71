// Package mongodb is the MongoDB store: repositories over one collection
// per document type, multi-document transactions and change streams.
// Transactions and change streams need a replica set.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Config holds MongoDB connection configuration
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
	MinPoolSize    uint64
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017/?replicaSet=rs0",
		Database:       "batterystock",
		ConnectTimeout: 10 * time.Second,
		MaxPoolSize:    50,
		MinPoolSize:    2,
	}
}

// Client wraps the MongoDB client and database handle.
type Client struct {
	client   *mongo.Client
	database *mongo.Database
}

// NewClient connects and pings the primary.
func NewClient(ctx context.Context, cfg Config) (*Client, error) {
	clientOpts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(cfg.ConnectTimeout).
		SetMaxPoolSize(cfg.MaxPoolSize).
		SetMinPoolSize(cfg.MinPoolSize).
		SetRegistry(Registry())

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &Client{client: client, database: client.Database(cfg.Database)}, nil
}

// Database returns the database handle
func (c *Client) Database() *mongo.Database {
	return c.database
}

// Close disconnects the client
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// HealthCheck performs a health check on the MongoDB connection
func (c *Client) HealthCheck(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// EnsureIndexes creates the secondary indexes the repositories query by.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		collVariants: {
			{Keys: bson.D{{Key: "productId", Value: 1}}},
		},
		collMovements: {
			{Keys: bson.D{{Key: "variantId", Value: 1}, {Key: "warehouseId", Value: 1}, {Key: "createdAt", Value: 1}}},
			{Keys: bson.D{{Key: "reference", Value: 1}}},
		},
		collEntries: {
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
		},
		collBills: {
			{Keys: bson.D{{Key: "supplierId", Value: 1}}},
			{Keys: bson.D{{Key: "dueDate", Value: 1}}},
		},
	}
	for coll, models := range indexes {
		if _, err := c.database.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("create indexes on %s: %w", coll, err)
		}
	}
	return nil
}
