package memory

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	errorspkg "github.com/sweetpotato0/miniagent/errors"
	"github.com/sweetpotato0/miniagent/pkg/logging"
	"github.com/sweetpotato0/miniagent/vector"
)

// DefaultThreshold is the similarity a memory must exceed to be relevant.
const DefaultThreshold = 0.5

// Record is one stored memory together with its embedding.
type Record struct {
	Memory    string    `json:"memory" bson:"memory"`
	Embedding []float32 `json:"embedding" bson:"embedding"`
}

// Store is an append-only collection of records. Load returns records in
// the order they were appended; nothing is deduplicated or compacted.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Load(ctx context.Context) ([]Record, error)
}

// Manager saves and retrieves memories through an embedder and a store.
type Manager struct {
	embedder vector.Embedder
	store    Store
	logger   *slog.Logger
}

// NewManager creates a manager.
func NewManager(embedder vector.Embedder, store Store) *Manager {
	return &Manager{
		embedder: embedder,
		store:    store,
		logger:   logging.WithComponent("memory"),
	}
}

// Save trims text, embeds it and appends the record.
func (m *Manager) Save(ctx context.Context, text string) (Record, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Record{}, fmt.Errorf("%w: memory cannot be empty", errorspkg.ErrInvalidInput)
	}

	emb, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return Record{}, fmt.Errorf("embed memory: %w", err)
	}

	rec := Record{Memory: text, Embedding: emb}
	if err := m.store.Append(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("append memory: %w", err)
	}
	m.logger.Debug("memory saved", "length", len(text))
	return rec, nil
}

// Relevant returns, in store order, the memories whose cosine similarity to
// query is strictly greater than threshold.
func (m *Manager) Relevant(ctx context.Context, query string, threshold float64) ([]string, error) {
	q, err := m.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	records, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}

	var hits []string
	for _, rec := range records {
		if vector.CosineSimilarity(q, rec.Embedding) > threshold {
			hits = append(hits, rec.Memory)
		}
	}
	m.logger.Debug("relevant memories", "candidates", len(records), "hits", len(hits), "threshold", threshold)
	return hits, nil
}

// Query returns the memories containing substr, ignoring case.
func (m *Manager) Query(ctx context.Context, substr string) ([]string, error) {
	records, err := m.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load memories: %w", err)
	}

	needle := strings.ToLower(substr)
	var hits []string
	for _, rec := range records {
		if strings.Contains(strings.ToLower(rec.Memory), needle) {
			hits = append(hits, rec.Memory)
		}
	}
	return hits, nil
}
