package store

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sweetpotato0/miniagent/config"
	errorspkg "github.com/sweetpotato0/miniagent/errors"
	"github.com/sweetpotato0/miniagent/memory"
)

// Backend names accepted by Open.
const (
	BackendJSONL    = "jsonl"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
	BackendPostgres = "postgres"
)

// DefaultJSONLPath is the file used by the jsonl backend when no path is given.
const DefaultJSONLPath = "memory_store.jsonl"

// Open creates the store named by backend. Database backends read their
// connection settings from the environment. The returned close function is
// never nil.
func Open(ctx context.Context, backend, path string) (memory.Store, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendJSONL:
		if path == "" {
			path = DefaultJSONLPath
		}
		return NewJSONLStore(path), noop, nil
	case BackendMemory:
		return NewInMemoryStore(), noop, nil
	case BackendRedis:
		cfg := RedisConfigFromEnv()
		if err := config.ValidateRedisConfig(cfg.Addr, cfg.DB, cfg.Prefix); err != nil {
			return nil, noop, err
		}
		s := NewRedisStore(cfg)
		if err := s.Ping(ctx); err != nil {
			s.Close()
			return nil, noop, fmt.Errorf("failed to ping Redis: %w", err)
		}
		return s, s.Close, nil
	case BackendMongo:
		cfg := MongoConfigFromEnv()
		if err := config.ValidateMongoDBConfig(cfg.URI, cfg.Database, cfg.Collection); err != nil {
			return nil, noop, err
		}
		s, err := NewMongoStore(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return s, func() error { return s.Close(context.Background()) }, nil
	case BackendPostgres:
		cfg := PostgresConfigFromEnv()
		if err := config.ValidatePostgresConfig(cfg.Host, cfg.Port, cfg.User, cfg.DBName, cfg.SSLMode, cfg.Table); err != nil {
			return nil, noop, err
		}
		s, err := NewPostgresStore(ctx, cfg)
		if err != nil {
			return nil, noop, err
		}
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: unknown memory backend %q", errorspkg.ErrInvalidInput, backend)
	}
}

// PostgresConfigFromEnv loads PostgreSQL configuration from environment variables
func PostgresConfigFromEnv() *PostgresConfig {
	return &PostgresConfig{
		Host:     getEnv("POSTGRES_HOST", "localhost"),
		Port:     getEnvInt("POSTGRES_PORT", 5432),
		User:     getEnv("POSTGRES_USER", "postgres"),
		Password: getEnv("POSTGRES_PASSWORD", ""),
		DBName:   getEnv("POSTGRES_DB", "miniagent"),
		SSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		Table:    getEnv("POSTGRES_MEMORY_TABLE", "memory_records"),
	}
}

// RedisConfigFromEnv loads Redis configuration from environment variables
func RedisConfigFromEnv() *RedisConfig {
	return &RedisConfig{
		Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
		Prefix:   getEnv("REDIS_PREFIX", "miniagent:memory:"),
		TTL:      getEnvDuration("REDIS_TTL", 0),
	}
}

// MongoConfigFromEnv loads MongoDB configuration from environment variables
func MongoConfigFromEnv() *MongoConfig {
	return &MongoConfig{
		URI:        getEnv("MONGODB_URI", "mongodb://localhost:27017"),
		Database:   getEnv("MONGODB_DB", "miniagent"),
		Collection: getEnv("MONGODB_COLLECTION", "memories"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
