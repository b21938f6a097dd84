package credentials

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is a non-persistent Store.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	if err := rec.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Key()] = cloneRecord(rec)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, subject, service string) (*Record, bool, error) {
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

func (s *MemoryStore) Delete(_ context.Context, subject, service string) error {
	if ValidateService(service) != nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, Key(subject, service))
	return nil
}

func (s *MemoryStore) List(_ context.Context, subject string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return filterRecords(s.records, subject), nil
}

func cloneRecord(r Record) Record {
	if r.Scopes != nil {
		r.Scopes = append([]string(nil), r.Scopes...)
	}
	return r
}

// filterRecords returns the records for subject (all when empty), sorted by key.
func filterRecords(records map[string]Record, subject string) []Record {
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if subject == "" || r.Subject == subject {
			out = append(out, cloneRecord(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
