// Package store provides the persisted key-value option store the discount
// registry is built on. Values are opaque serialized blobs; the registry owns
// the encoding.
package store

import (
	"context"
	"sync"
)

// OptionStore is the persistence seam for registry data. Implementations must
// treat an absent key as (nil, false, nil), not an error.
type OptionStore interface {
	// Get returns the value stored under key, with found=false when the key
	// has never been set.
	Get(ctx context.Context, key string) (value []byte, found bool, err error)

	// Set stores value under key, overwriting any previous value.
	Set(ctx context.Context, key string, value []byte) error

	// Declare initializes key's slot if it does not exist yet. Idempotent.
	Declare(ctx context.Context, key string) error
}

// MemoryStore is an in-memory OptionStore used as the test double and as the
// STORE_BACKEND=memory option for local runs. Data does not survive restarts.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Get returns the value stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return v, true, nil
}

// Set stores value under key.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

// Declare reserves key's slot with a nil value if it is absent.
func (s *MemoryStore) Declare(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[key]; !ok {
		s.data[key] = nil
	}
	return nil
}
