package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

// FileSink keeps the log as a JSON array on disk. The whole file is loaded
// at start-up and rewritten atomically on every append.
type FileSink struct {
	mu      sync.Mutex
	path    string
	entries []Entry
}

// NewFileSink loads (or creates) the log at path.
func NewFileSink(path string) (*FileSink, error) {
	if path == "" {
		return nil, errors.New("audit log path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	s := &FileSink{path: path}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	case len(data) > 0:
		if err := json.Unmarshal(data, &s.entries); err != nil {
			return nil, fmt.Errorf("failed to parse audit log %s: %w", path, err)
		}
	}

	logging.Info("Audit", "Loaded %d audit entries from %s", len(s.entries), path)
	return s, nil
}

func (s *FileSink) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
	if err := s.flushLocked(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

func (s *FileSink) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tail(s.entries, limit, nil), nil
}

func (s *FileSink) ForUser(_ context.Context, userID string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tail(s.entries, limit, func(e Entry) bool { return e.UserID == userID }), nil
}

func (s *FileSink) Close() error {
	return nil
}

func (s *FileSink) flushLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".audit-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, s.path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

// MemorySink keeps entries in memory only.
type MemorySink struct {
	mu      sync.Mutex
	entries []Entry
}

func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Append(_ context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *MemorySink) Recent(_ context.Context, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tail(s.entries, limit, nil), nil
}

func (s *MemorySink) ForUser(_ context.Context, userID string, limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return tail(s.entries, limit, func(e Entry) bool { return e.UserID == userID }), nil
}

func (s *MemorySink) Close() error {
	return nil
}
