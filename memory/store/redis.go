package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sweetpotato0/miniagent/memory"
)

// RedisStore implements memory.Store as a Redis list, one JSON record per element.
type RedisStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string        // Redis server address (e.g., "localhost:6379")
	Password string        // Redis password (if any)
	DB       int           // Redis database number
	Prefix   string        // Key prefix for namespacing
	TTL      time.Duration // Time-to-live for the list (0 means no expiration)
}

// DefaultRedisConfig returns default Redis configuration
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "miniagent:memory:",
	}
}

// NewRedisStore creates a new Redis-based memory store
func NewRedisStore(config *RedisConfig) *RedisStore {
	if config == nil {
		config = DefaultRedisConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})

	return &RedisStore{
		client: client,
		key:    config.Prefix + "records",
		ttl:    config.TTL,
	}
}

// Append pushes the record to the tail of the list.
func (s *RedisStore) Append(ctx context.Context, rec memory.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, s.key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, s.key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store record in Redis: %w", err)
	}
	return nil
}

// Load reads the whole list in insertion order.
func (s *RedisStore) Load(ctx context.Context) ([]memory.Record, error) {
	values, err := s.client.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}

	records := make([]memory.Record, 0, len(values))
	for _, v := range values {
		var rec memory.Record
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Clear removes all records from Redis
func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}
	return nil
}

// Count returns the number of records in Redis
func (s *RedisStore) Count(ctx context.Context) (int, error) {
	count, err := s.client.LLen(ctx, s.key).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return int(count), nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis connection is alive
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
