package talk

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// JSONLWriter appends records to a line-delimited JSON file. Appends are
// serialized with a mutex so concurrent workers never interleave lines.
type JSONLWriter struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

func OpenJSONL(path string) (*JSONLWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open output file: %w", err)
	}
	return &JSONLWriter{f: f, path: path}, nil
}

// Append writes one record as a single JSON line and flushes it to disk.
func (w *JSONLWriter) Append(rec Record) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.f.Write(line); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	return w.f.Sync()
}

func (w *JSONLWriter) Path() string { return w.path }

func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}
