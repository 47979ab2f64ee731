package principal

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository keeps principals in a map.
type InMemoryRepository struct {
	mu         sync.RWMutex
	principals map[ID]Principal
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{principals: make(map[ID]Principal)}
}

func (r *InMemoryRepository) GetByID(ctx context.Context, id ID) (Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.principals[id]
	if !ok {
		return Principal{}, ErrPrincipalNotFound
	}
	return clonePrincipal(p), nil
}

func (r *InMemoryRepository) List(ctx context.Context) ([]Principal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Principal, 0, len(r.principals))
	for _, p := range r.principals {
		out = append(out, clonePrincipal(p))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *InMemoryRepository) Save(ctx context.Context, p Principal) (Principal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	r.principals[p.ID] = clonePrincipal(p)
	return p, nil
}

// Delete removes a principal. Used to model accounts removed mid-session.
func (r *InMemoryRepository) Delete(ctx context.Context, id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.principals, id)
}

func clonePrincipal(p Principal) Principal {
	p.Roles = append([]string(nil), p.Roles...)
	return p
}
