package stores

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryPolicyStore keeps policy documents in process memory for tests and
// one-shot runs
type MemoryPolicyStore struct {
	mu      sync.RWMutex
	records map[string]*PolicyRecord
}

func NewMemoryPolicyStore() *MemoryPolicyStore {
	return &MemoryPolicyStore{records: make(map[string]*PolicyRecord)}
}

func (s *MemoryPolicyStore) Save(ctx context.Context, rec *PolicyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	dup := *rec
	s.records[rec.Name] = &dup
	return nil
}

func (s *MemoryPolicyStore) Get(ctx context.Context, name string) (*PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[name]
	if !ok {
		return nil, ErrPolicyNotFound
	}
	dup := *rec
	return &dup, nil
}

func (s *MemoryPolicyStore) List(ctx context.Context, domain string) ([]*PolicyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*PolicyRecord, 0, len(s.records))
	for _, rec := range s.records {
		if domain != "" && rec.Domain != domain {
			continue
		}
		dup := *rec
		out = append(out, &dup)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *MemoryPolicyStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, name)
	return nil
}
