package store

import (
	"context"
	"fmt"
	"time"

	"github.com/sweetpotato0/miniagent/memory"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoStore implements memory.Store using MongoDB
type MongoStore struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
}

// MongoConfig holds MongoDB connection configuration
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns default MongoDB configuration
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "miniagent",
		Collection: "memories",
	}
}

// mongoRecord is the internal representation for MongoDB. ObjectIDs are
// generated client-side and increase monotonically, so sorting by _id
// preserves append order.
type mongoRecord struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	Memory    string             `bson:"memory"`
	Embedding []float32          `bson:"embedding"`
	CreatedAt time.Time          `bson:"created_at"`
}

// NewMongoStore creates a new MongoDB-based memory store
func NewMongoStore(ctx context.Context, config *MongoConfig) (*MongoStore, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(config.Database)
	return &MongoStore{
		client:     client,
		db:         db,
		collection: db.Collection(config.Collection),
	}, nil
}

// Append inserts a new document.
func (s *MongoStore) Append(ctx context.Context, rec memory.Record) error {
	doc := mongoRecord{
		ID:        primitive.NewObjectID(),
		Memory:    rec.Memory,
		Embedding: rec.Embedding,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to add record to MongoDB: %w", err)
	}
	return nil
}

// Load returns all documents in insertion order.
func (s *MongoStore) Load(ctx context.Context) ([]memory.Record, error) {
	cursor, err := s.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoRecord
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode records: %w", err)
	}

	records := make([]memory.Record, len(docs))
	for i, d := range docs {
		records[i] = memory.Record{Memory: d.Memory, Embedding: d.Embedding}
	}
	return records, nil
}

// Clear removes all records from MongoDB
func (s *MongoStore) Clear(ctx context.Context) error {
	if _, err := s.collection.DeleteMany(ctx, bson.M{}); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

// Count returns the number of records in MongoDB
func (s *MongoStore) Count(ctx context.Context) (int, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return int(count), nil
}

// Close closes the MongoDB connection
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// Ping checks if MongoDB connection is alive
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}
