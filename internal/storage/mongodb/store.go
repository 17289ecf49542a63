// Package mongodb implements the exchange archive using MongoDB
package mongodb

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sirosfoundation/go-soapmep/internal/storage"
	"github.com/sirosfoundation/go-soapmep/pkg/exchange"
)

// Store implements storage.Store using MongoDB
type Store struct {
	client    *mongo.Client
	db        *mongo.Database
	exchanges *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

// Config holds MongoDB connection settings
type Config struct {
	URI        string
	Database   string
	Collection string
}

// NewStore creates a new MongoDB store
func NewStore(ctx context.Context, cfg *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connecting to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("pinging MongoDB: %w", err)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = "exchanges"
	}
	db := client.Database(cfg.Database)

	s := &Store{
		client:    client,
		db:        db,
		exchanges: db.Collection(collection),
	}

	if err := s.createIndexes(ctx); err != nil {
		return nil, fmt.Errorf("creating indexes: %w", err)
	}

	return s, nil
}

func (s *Store) createIndexes(ctx context.Context) error {
	_, err := s.exchanges.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "operation", Value: 1}, {Key: "state", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("creating exchange indexes: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping verifies database connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Archive upserts the record of an exchange
func (s *Store) Archive(ctx context.Context, record exchange.Record) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.exchanges.ReplaceOne(ctx, bson.M{"_id": record.ID}, record, opts)
	if err != nil {
		return fmt.Errorf("archiving exchange %s: %w", record.ID, err)
	}
	return nil
}

func (s *Store) GetExchange(ctx context.Context, id string) (*exchange.Record, error) {
	var r exchange.Record
	err := s.exchanges.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *Store) ListExchanges(ctx context.Context, filter *storage.ExchangeFilter) ([]*exchange.Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter != nil {
		if filter.Limit > 0 {
			opts.SetLimit(int64(filter.Limit))
		}
		if filter.Offset > 0 {
			opts.SetSkip(int64(filter.Offset))
		}
	}

	cursor, err := s.exchanges.Find(ctx, Query(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var records []*exchange.Record
	if err := cursor.All(ctx, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Store) CountExchanges(ctx context.Context, filter *storage.ExchangeFilter) (int64, error) {
	return s.exchanges.CountDocuments(ctx, Query(filter))
}

// Query builds the MongoDB filter document for filter
func Query(filter *storage.ExchangeFilter) bson.M {
	query := bson.M{}
	if filter == nil {
		return query
	}
	if filter.Operation != "" {
		query["operation"] = filter.Operation
	}
	if filter.State != "" {
		query["state"] = filter.State
	}
	if filter.Since != nil {
		query["created_at"] = bson.M{"$gte": *filter.Since}
	}
	return query
}
