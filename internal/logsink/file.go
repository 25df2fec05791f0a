package logsink

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileSink appends one JSON record per line to a file.
type FileSink struct {
	mu   sync.Mutex
	file *os.File
	now  func() time.Time
}

// OpenFile opens (creating if needed) the NDJSON log at path.
func OpenFile(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &FileSink{file: f, now: time.Now}, nil
}

type fileLine struct {
	ReceivedAt string          `json:"received_at"`
	Record     json.RawMessage `json:"record"`
}

// Append writes raw as one line and syncs it to disk. raw must be valid JSON.
func (s *FileSink) Append(raw json.RawMessage) error {
	if !json.Valid(raw) {
		return fmt.Errorf("record is not valid JSON")
	}
	line, err := json.Marshal(fileLine{
		ReceivedAt: s.now().UTC().Format(time.RFC3339Nano),
		Record:     raw,
	})
	if err != nil {
		return fmt.Errorf("encode log line: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write log line: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync log file: %w", err)
	}
	return nil
}

// Close closes the file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}
