package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/sweetpotato0/miniagent/memory"
)

// JSONLStore keeps records as newline-delimited JSON in a single file.
type JSONLStore struct {
	path string
	mu   sync.Mutex
}

// NewJSONLStore creates a store backed by path. The file is created on the
// first Append.
func NewJSONLStore(path string) *JSONLStore {
	return &JSONLStore{path: path}
}

// Path returns the backing file.
func (s *JSONLStore) Path() string {
	return s.path
}

// Append writes rec as one line at the end of the file.
func (s *JSONLStore) Append(ctx context.Context, rec memory.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", s.path, err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", s.path, err)
	}
	return f.Close()
}

// Load reads the whole file. A missing file holds no records; blank lines
// are skipped.
func (s *JSONLStore) Load(ctx context.Context) ([]memory.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	data, err := os.ReadFile(s.path)
	s.mu.Unlock()
	if errors.Is(err, fs.ErrNotExist) {
		return []memory.Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", s.path, err)
	}

	records := make([]memory.Record, 0)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), len(data)+1)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec memory.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("%s:%d: failed to decode record: %w", s.path, lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", s.path, err)
	}
	return records, nil
}
