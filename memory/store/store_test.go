package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	errorspkg "github.com/sweetpotato0/miniagent/errors"
	"github.com/sweetpotato0/miniagent/memory"
)

var sampleRecords = []memory.Record{
	{Memory: "likes tea", Embedding: []float32{1, 0}},
	{Memory: "owns a cat", Embedding: []float32{0, 1}},
	{Memory: "lives in Lisbon", Embedding: []float32{0.5, 0.25}},
}

// exerciseStore checks the append-only contract shared by every backend.
func exerciseStore(t *testing.T, s memory.Store) {
	t.Helper()
	ctx := context.Background()

	records, err := s.Load(ctx)
	if err != nil {
		t.Fatalf("Load on empty store: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty store, got %v", records)
	}

	for _, rec := range sampleRecords {
		if err := s.Append(ctx, rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	// Duplicates are kept.
	if err := s.Append(ctx, sampleRecords[0]); err != nil {
		t.Fatalf("Append duplicate: %v", err)
	}

	records, err = s.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := append(append([]memory.Record(nil), sampleRecords...), sampleRecords[0])
	if !reflect.DeepEqual(records, want) {
		t.Fatalf("expected %v, got %v", want, records)
	}
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	exerciseStore(t, s)
	if s.Count() != 4 {
		t.Errorf("expected 4 records, got %d", s.Count())
	}
	_ = s.Clear()
	if s.Count() != 0 {
		t.Errorf("expected empty store after Clear")
	}
}

func TestInMemoryStoreCopiesEmbedding(t *testing.T) {
	s := NewInMemoryStore()
	emb := []float32{1, 2}
	_ = s.Append(context.Background(), memory.Record{Memory: "x", Embedding: emb})
	emb[0] = 99

	records, _ := s.Load(context.Background())
	if records[0].Embedding[0] != 1 {
		t.Errorf("store must not alias caller slices")
	}
}

func TestJSONLStore(t *testing.T) {
	exerciseStore(t, NewJSONLStore(filepath.Join(t.TempDir(), "memory_store.jsonl")))
}

func TestJSONLStoreFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory_store.jsonl")
	s := NewJSONLStore(path)
	if err := s.Append(context.Background(), memory.Record{Memory: "likes tea", Embedding: []float32{1, 0}}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "{\"memory\":\"likes tea\",\"embedding\":[1,0]}\n" {
		t.Errorf("unexpected file content %q", data)
	}
}

func TestJSONLStoreSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory_store.jsonl")
	content := "\n{\"memory\":\"a\",\"embedding\":[1]}\n   \n\n{\"memory\":\"b\",\"embedding\":[0]}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	records, err := NewJSONLStore(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 2 || records[0].Memory != "a" || records[1].Memory != "b" {
		t.Errorf("unexpected records %v", records)
	}
}

func TestJSONLStoreMalformedLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "memory_store.jsonl")
	_ = os.WriteFile(path, []byte("{\"memory\":\"a\",\"embedding\":[1]}\nnot json\n"), 0o644)

	if _, err := NewJSONLStore(path).Load(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "m.jsonl")

	s, closeFn, err := Open(ctx, "jsonl", path)
	if err != nil {
		t.Fatalf("Open jsonl: %v", err)
	}
	defer closeFn()
	if js, ok := s.(*JSONLStore); !ok || js.Path() != path {
		t.Errorf("expected JSONL store at %s, got %T", path, s)
	}

	if s, _, err := Open(ctx, "", ""); err != nil || s.(*JSONLStore).Path() != DefaultJSONLPath {
		t.Errorf("expected default jsonl store, got %v, %v", s, err)
	}
	if s, _, err := Open(ctx, "MEMORY", ""); err != nil {
		t.Errorf("Open memory: %v", err)
	} else if _, ok := s.(*InMemoryStore); !ok {
		t.Errorf("expected in-memory store, got %T", s)
	}

	_, closeFn, err = Open(ctx, "cassandra", "")
	if !errors.Is(err, errorspkg.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
	if closeFn == nil || closeFn() != nil {
		t.Errorf("close function must be a no-op on error")
	}
}

func TestOpenValidatesDatabaseConfig(t *testing.T) {
	t.Setenv("REDIS_DB", "42")
	if _, _, err := Open(context.Background(), BackendRedis, ""); err == nil || !strings.Contains(err.Error(), `"db"`) {
		t.Fatalf("expected a db validation error, got %v", err)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis:6380")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("REDIS_TTL", "1h")
	t.Setenv("POSTGRES_PORT", "not-a-number")

	rc := RedisConfigFromEnv()
	if rc.Addr != "redis:6380" || rc.DB != 3 || rc.TTL != time.Hour {
		t.Errorf("unexpected redis config %+v", rc)
	}
	if pc := PostgresConfigFromEnv(); pc.Port != 5432 || pc.Table != "memory_records" {
		t.Errorf("expected defaults for invalid values, got %+v", pc)
	}
	if mc := MongoConfigFromEnv(); mc.Collection != "memories" {
		t.Errorf("unexpected mongo config %+v", mc)
	}
}

// The database tests need a running server; they are skipped unless the
// matching environment variable is set.

func TestRedisStore(t *testing.T) {
	if os.Getenv("REDIS_ADDR") == "" {
		t.Skip("REDIS_ADDR not set, skipping Redis store tests")
	}
	cfg := RedisConfigFromEnv()
	cfg.Prefix = "miniagent:test:" + t.Name() + ":"
	s := NewRedisStore(cfg)
	defer s.Close()

	ctx := context.Background()
	if err := s.Ping(ctx); err != nil {
		t.Skipf("Redis unavailable: %v", err)
	}
	_ = s.Clear(ctx)
	defer s.Clear(ctx)

	exerciseStore(t, s)
	if n, _ := s.Count(ctx); n != 4 {
		t.Errorf("expected 4 records, got %d", n)
	}
}

func TestMongoStore(t *testing.T) {
	if os.Getenv("MONGODB_URI") == "" {
		t.Skip("MONGODB_URI not set, skipping MongoDB store tests")
	}
	cfg := MongoConfigFromEnv()
	cfg.Database = "miniagent_test"
	cfg.Collection = "memories_test"

	ctx := context.Background()
	s, err := NewMongoStore(ctx, cfg)
	if err != nil {
		t.Skipf("Failed to connect to MongoDB: %v", err)
	}
	defer s.Close(ctx)
	_ = s.Clear(ctx)
	defer s.Clear(ctx)

	exerciseStore(t, s)
}

func TestPostgresStore(t *testing.T) {
	if os.Getenv("POSTGRES_HOST") == "" {
		t.Skip("POSTGRES_HOST not set, skipping PostgreSQL store tests")
	}
	cfg := PostgresConfigFromEnv()
	cfg.Table = "memory_records_test"

	ctx := context.Background()
	s, err := NewPostgresStore(ctx, cfg)
	if err != nil {
		t.Skipf("Failed to connect to PostgreSQL: %v", err)
	}
	defer s.Close()
	_ = s.Clear(ctx)
	defer s.Clear(ctx)

	exerciseStore(t, s)
	if n, _ := s.Count(ctx); n != 4 {
		t.Errorf("expected 4 records, got %d", n)
	}
}
