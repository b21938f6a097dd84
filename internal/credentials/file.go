package credentials

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

const (
	// DefaultFileName is the snapshot file name inside the storage directory.
	DefaultFileName = "credentials.json"

	dirPerm  = 0o700
	filePerm = 0o600
)

// FileStore keeps all records in memory and persists the whole set as a
// JSON snapshot on every mutation. Each snapshot is written to a temporary
// file, fsynced and renamed over the previous one, so a crash leaves either
// the old or the new snapshot on disk.
type FileStore struct {
	mu      sync.RWMutex
	path    string
	records map[string]Record
}

// NewFileStore opens (or creates) the snapshot at path and loads it.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("credential store path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create credential directory: %w", err)
	}

	s := &FileStore{path: path, records: make(map[string]Record)}
	if err := s.load(); err != nil {
		return nil, err
	}
	logging.Info("Credentials", "Loaded %d credential record(s) from %s", len(s.records), path)
	return s, nil
}

// Path returns the snapshot location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read credential file: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	var raw map[string]Record
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse credential file %s: %w", s.path, err)
	}
	for key, rec := range raw {
		if err := rec.validate(); err != nil {
			return fmt.Errorf("invalid credential %q in %s: %w", key, s.path, err)
		}
		s.records[rec.Key()] = rec
	}
	return nil
}

// Put stores rec, replacing any record with the same key, and returns once
// the snapshot is on stable storage.
func (s *FileStore) Put(_ context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := rec.Key()
	prev, hadPrev := s.records[key]
	s.records[key] = cloneRecord(rec)

	if err := s.flushLocked(); err != nil {
		if hadPrev {
			s.records[key] = prev
		} else {
			delete(s.records, key)
		}
		logging.Audit("Credentials", "credential_store_failed", "subject", rec.Subject, "service", rec.Service, "error", err.Error())
		return fmt.Errorf("failed to persist credential: %w", err)
	}

	logging.Audit("Credentials", "credential_stored",
		"subject", rec.Subject,
		"service", rec.Service,
		"replaced", hadPrev,
		"has_id_token", rec.IDToken != "",
	)
	return nil
}

func (s *FileStore) Get(_ context.Context, subject, service string) (*Record, bool, error) {
	if ValidateService(service) != nil {
		return nil, false, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[Key(subject, service)]
	if !ok {
		return nil, false, nil
	}
	out := cloneRecord(rec)
	return &out, true, nil
}

// Delete removes a record. Deleting a missing record is not an error.
func (s *FileStore) Delete(_ context.Context, subject, service string) error {
	if ValidateService(service) != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := Key(subject, service)
	prev, ok := s.records[key]
	if !ok {
		return nil
	}
	delete(s.records, key)
	if err := s.flushLocked(); err != nil {
		s.records[key] = prev
		return fmt.Errorf("failed to persist credential deletion: %w", err)
	}

	logging.Audit("Credentials", "credential_deleted", "subject", subject, "service", service)
	return nil
}

func (s *FileStore) List(_ context.Context, subject string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterRecords(s.records, subject), nil
}

// flushLocked writes the snapshot. Caller holds s.mu.
func (s *FileStore) flushLocked() error {
	data, err := json.MarshalIndent(s.records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		cleanup()
		return err
	}
	return syncDir(dir)
}

// syncDir makes the rename durable.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	if err := d.Sync(); err != nil && !errors.Is(err, os.ErrInvalid) {
		return err
	}
	return nil
}
