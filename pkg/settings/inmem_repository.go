package settings

import (
	"context"
	"sync"
)

type InMemoryOptionStore struct {
	mu      sync.RWMutex
	options map[string][]byte
}

func NewInMemoryOptionStore() *InMemoryOptionStore {
	return &InMemoryOptionStore{options: make(map[string][]byte)}
}

func (s *InMemoryOptionStore) Get(ctx context.Context, name string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.options[name]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *InMemoryOptionStore) Put(ctx context.Context, name string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.options[name] = append([]byte(nil), value...)
	return nil
}
