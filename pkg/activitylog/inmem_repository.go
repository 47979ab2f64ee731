package activitylog

import (
	"context"
	"sort"
	"sync"
	"time"
)

// InMemoryRepository keeps entries in insertion order.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries []Entry
	nextID  int64
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{nextID: 1}
}

func (r *InMemoryRepository) Insert(ctx context.Context, e Entry) (Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e.ID = r.nextID
	r.nextID++
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *InMemoryRepository) Find(ctx context.Context, f Filter, limit, offset int) ([]Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []Entry{}
	skipped := 0
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := r.entries[i]
		if !f.matches(e) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *InMemoryRepository) Count(ctx context.Context, f Filter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, e := range r.entries {
		if f.matches(e) {
			n++
		}
	}
	return n, nil
}

func (r *InMemoryRepository) DistinctEvents(ctx context.Context, limit int) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, e := range r.entries {
		seen[e.Event] = struct{}{}
	}
	events := make([]string, 0, len(seen))
	for ev := range seen {
		events = append(events, ev)
	}
	sort.Strings(events)
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (r *InMemoryRepository) Truncate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
	return nil
}

func (r *InMemoryRepository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	var deleted int64
	for _, e := range r.entries {
		if e.CreatedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return deleted, nil
}

func (r *InMemoryRepository) snapshot() ([]Entry, int64) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry(nil), r.entries...), r.nextID
}

func (r *InMemoryRepository) restore(entries []Entry, nextID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = entries
	r.nextID = nextID
}
