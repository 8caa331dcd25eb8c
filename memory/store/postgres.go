package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/sweetpotato0/miniagent/memory"
)

// PostgresStore implements memory.Store as an append-only table.
type PostgresStore struct {
	db    *sql.DB
	table string
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	Table    string
}

// DefaultPostgresConfig returns default PostgreSQL configuration
func DefaultPostgresConfig() *PostgresConfig {
	return &PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		DBName:   "miniagent",
		SSLMode:  "disable",
		Table:    "memory_records",
	}
}

// DSN returns the lib/pq connection string.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// NewPostgresStore creates a new PostgreSQL-based memory store
func NewPostgresStore(ctx context.Context, config *PostgresConfig) (*PostgresStore, error) {
	if config == nil {
		config = DefaultPostgresConfig()
	}
	table := config.Table
	if table == "" {
		table = "memory_records"
	}

	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	store := &PostgresStore{db: db, table: pq.QuoteIdentifier(table)}
	if err := store.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) createTable(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		memory TEXT NOT NULL,
		embedding DOUBLE PRECISION[] NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`, s.table)

	_, err := s.db.ExecContext(ctx, query)
	return err
}

// Append inserts one row.
func (s *PostgresStore) Append(ctx context.Context, rec memory.Record) error {
	embedding := make([]float64, len(rec.Embedding))
	for i, v := range rec.Embedding {
		embedding[i] = float64(v)
	}

	query := fmt.Sprintf(`INSERT INTO %s (memory, embedding) VALUES ($1, $2)`, s.table)
	if _, err := s.db.ExecContext(ctx, query, rec.Memory, pq.Array(embedding)); err != nil {
		return fmt.Errorf("failed to add record to PostgreSQL: %w", err)
	}
	return nil
}

// Load returns all rows ordered by insertion.
func (s *PostgresStore) Load(ctx context.Context) ([]memory.Record, error) {
	query := fmt.Sprintf(`SELECT memory, embedding FROM %s ORDER BY id`, s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to load records: %w", err)
	}
	defer rows.Close()

	records := make([]memory.Record, 0)
	for rows.Next() {
		var (
			text      string
			embedding []float64
		)
		if err := rows.Scan(&text, pq.Array(&embedding)); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		vec := make([]float32, len(embedding))
		for i, v := range embedding {
			vec[i] = float32(v)
		}
		records = append(records, memory.Record{Memory: text, Embedding: vec})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating records: %w", err)
	}
	return records, nil
}

// Clear removes all records from PostgreSQL
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.table)); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}

// Count returns the number of records in PostgreSQL
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// Close closes the PostgreSQL connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// Ping checks if PostgreSQL connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
