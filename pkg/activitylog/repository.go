package activitylog

import (
	"context"
	"time"
)

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	Severity Severity
	Event    string
}

func (f Filter) matches(e Entry) bool {
	if f.Severity != "" && e.Severity != f.Severity {
		return false
	}
	if f.Event != "" && e.Event != f.Event {
		return false
	}
	return true
}

// Repository stores log entries. Find returns entries ordered by id descending.
type Repository interface {
	Insert(ctx context.Context, e Entry) (Entry, error)
	Find(ctx context.Context, f Filter, limit, offset int) ([]Entry, error)
	Count(ctx context.Context, f Filter) (int, error)
	DistinctEvents(ctx context.Context, limit int) ([]string, error)
	Truncate(ctx context.Context) error
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
