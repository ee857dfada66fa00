// Package corpus is the in-memory, append-only review store the aggregator
// reads snapshots from.
package corpus

import (
	"fmt"
	"slices"
	"sync"

	"review_insights/internal/domain"
)

type bucket struct {
	mu      sync.RWMutex
	records []domain.ReviewRecord
	ids     map[string]struct{}
	version uint64
}

// Store keeps one bucket per platform. Add and All on the same platform are
// mutually exclusive; different platforms never contend.
type Store struct {
	buckets map[domain.Platform]*bucket
}

func NewStore() *Store {
	s := &Store{buckets: make(map[domain.Platform]*bucket, len(domain.Platforms))}
	for _, p := range domain.Platforms {
		s.buckets[p] = &bucket{ids: map[string]struct{}{}}
	}
	return s
}

// Add validates r and appends it. A repeated (platform, id) returns
// *domain.DuplicateIDError and leaves the store unchanged.
func (s *Store) Add(r domain.ReviewRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}
	b := s.buckets[r.Platform]

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, dup := b.ids[r.ID]; dup {
		return &domain.DuplicateIDError{Platform: r.Platform, ID: r.ID}
	}
	b.ids[r.ID] = struct{}{}
	b.records = append(b.records, r)
	b.version++
	return nil
}

// Has reports whether (p, id) is already stored.
func (s *Store) Has(p domain.Platform, id string) bool {
	b, ok := s.buckets[p]
	if !ok {
		return false
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, found := b.ids[id]
	return found
}

// All returns a copy of the platform's records in insertion order. Later
// inserts never show up in a returned slice.
func (s *Store) All(p domain.Platform) ([]domain.ReviewRecord, error) {
	b, ok := s.buckets[p]
	if !ok {
		return nil, domain.NewValidationError("platform", fmt.Sprintf("unknown platform %q", p))
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.records), nil
}

// Snapshot is every platform's records, in domain.Platforms order.
func (s *Store) Snapshot() []domain.ReviewRecord {
	var out []domain.ReviewRecord
	for _, p := range domain.Platforms {
		b := s.buckets[p]
		b.mu.RLock()
		out = append(out, b.records...)
		b.mu.RUnlock()
	}
	return out
}

// Len is the number of records stored for p.
func (s *Store) Len(p domain.Platform) int {
	b, ok := s.buckets[p]
	if !ok {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.records)
}

// Version increases by one on every successful Add for p.
func (s *Store) Version(p domain.Platform) uint64 {
	b, ok := s.buckets[p]
	if !ok {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}
