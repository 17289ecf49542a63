package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirosfoundation/go-soapmep/pkg/exchange"
)

// MemoryStore keeps archived records in process. The oldest records are
// evicted once the capacity is reached.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]*exchange.Record
	order    []string
	capacity int
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates a store holding at most capacity records.
// A capacity of zero means unbounded.
func NewMemoryStore(capacity int) *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]*exchange.Record),
		capacity: capacity,
	}
}

// Archive implements Store
func (s *MemoryStore) Archive(ctx context.Context, record exchange.Record) error {
	if record.ID == "" {
		return fmt.Errorf("archive: record has no ID")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; !ok {
		s.order = append(s.order, record.ID)
	}
	s.records[record.ID] = cloneRecord(&record)

	for s.capacity > 0 && len(s.order) > s.capacity {
		delete(s.records, s.order[0])
		s.order = s.order[1:]
	}
	return nil
}

// GetExchange implements Store
func (s *MemoryStore) GetExchange(ctx context.Context, id string) (*exchange.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneRecord(r), nil
}

// ListExchanges implements Store
func (s *MemoryStore) ListExchanges(ctx context.Context, filter *ExchangeFilter) ([]*exchange.Record, error) {
	s.mu.RLock()
	var matched []*exchange.Record
	for _, r := range s.records {
		if filter.Matches(r) {
			matched = append(matched, cloneRecord(r))
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filter != nil {
		if filter.Offset > 0 {
			if filter.Offset >= len(matched) {
				return nil, nil
			}
			matched = matched[filter.Offset:]
		}
		if filter.Limit > 0 && len(matched) > filter.Limit {
			matched = matched[:filter.Limit]
		}
	}
	return matched, nil
}

// CountExchanges implements Store
func (s *MemoryStore) CountExchanges(ctx context.Context, filter *ExchangeFilter) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for _, r := range s.records {
		if filter.Matches(r) {
			n++
		}
	}
	return n, nil
}

// Close implements Store
func (s *MemoryStore) Close(ctx context.Context) error {
	return nil
}

// Ping implements Store
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}

func cloneRecord(r *exchange.Record) *exchange.Record {
	c := *r
	c.Messages = make(map[string]string, len(r.Messages))
	for k, v := range r.Messages {
		c.Messages[k] = v
	}
	return &c
}
