package impersonate

import (
	"context"
	"sync"

	"github.com/tendant/simple-secure/pkg/principal"
)

type InMemoryRepository struct {
	mu      sync.Mutex
	records map[principal.ID]Record
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{records: make(map[principal.ID]Record)}
}

func (r *InMemoryRepository) Get(ctx context.Context, id principal.ID) (Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	return rec, ok, nil
}

func (r *InMemoryRepository) Begin(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.records[rec.PrincipalID]; exists {
		return ErrRecordExists
	}
	r.records[rec.PrincipalID] = rec
	return nil
}

func (r *InMemoryRepository) Clear(ctx context.Context, id principal.ID) (Record, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if ok {
		delete(r.records, id)
	}
	return rec, ok, nil
}
