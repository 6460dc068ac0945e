package state

import (
	"context"
	"sort"
	"sync"

	"github.com/MrEthical07/goClone/permission"
)

// MemoryStore keeps records in process memory. Safe for concurrent use.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]*Record)}
}

func (s *MemoryStore) Create(_ context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.Address]; exists {
		return ErrExists
	}
	cp := rec.Clone()
	if cp.Slots == nil {
		cp.Slots = map[string][]byte{}
	}
	s.records[rec.Address] = cp
	return nil
}

func (s *MemoryStore) Load(_ context.Context, address string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[address]
	if !ok {
		return nil, ErrNotFound
	}
	return rec.Clone(), nil
}

func (s *MemoryStore) Commit(_ context.Context, address string, changes Changes) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[address]
	if !ok {
		return ErrNotFound
	}
	Apply(rec.Slots, changes)
	return nil
}

func (s *MemoryStore) SetMask(_ context.Context, address string, mask permission.Mask) error {
	if mask == nil {
		return errNilMask
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[address]
	if !ok {
		return ErrNotFound
	}
	rec.Mask = mask.Clone()
	return nil
}

func (s *MemoryStore) Addresses(context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.records))
	for addr := range s.records {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out, nil
}
