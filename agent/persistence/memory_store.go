package persistence

import (
	"context"
	"sync"
	"time"

	"github.com/BaSui01/mysteryshopper/agent/journey"
)

// MemoryStore is an in-memory implementation of Store.
// Suitable for development and testing. Data is lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	journeys map[string][]byte
	ttl      time.Duration
	now      func() time.Time
	closed   bool
}

// NewMemoryStore creates a memory store. ttl <= 0 keeps journeys forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		journeys: make(map[string][]byte),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Save stores a deep copy of j.
func (s *MemoryStore) Save(ctx context.Context, j *journey.Journey) error {
	if err := validate(j); err != nil {
		return err
	}
	data, err := encode(j)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.journeys[j.ID] = data
	return nil
}

// Get retrieves a journey by ID
func (s *MemoryStore) Get(ctx context.Context, id string) (*journey.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	data, ok := s.journeys[id]
	if !ok {
		return nil, ErrNotFound
	}
	j, err := decode(data)
	if err != nil {
		return nil, err
	}
	if expired(s.ttl, j.FinishedAt, s.now()) {
		return nil, ErrNotFound
	}
	return j, nil
}

// List retrieves journeys matching the filter criteria
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]*journey.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	now := s.now()
	result := make([]*journey.Journey, 0, len(s.journeys))
	for _, data := range s.journeys {
		j, err := decode(data)
		if err != nil {
			return nil, err
		}
		if expired(s.ttl, j.FinishedAt, now) {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		result = append(result, j)
	}
	sortJourneys(result)
	return page(result, filter), nil
}

// Delete removes a journey
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, ok := s.journeys[id]; !ok {
		return ErrNotFound
	}
	delete(s.journeys, id)
	return nil
}

// Ping checks if the store is healthy
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Close closes the store
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
