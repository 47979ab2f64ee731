package activitylog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-secure/pkg/authz"
	apperrors "github.com/tendant/simple-secure/pkg/errors"
	"github.com/tendant/simple-secure/pkg/principal"
)

const (
	PerPage            = 20
	MaxDistinctEvents  = 200
	DefaultRetention   = 30 * 24 * time.Hour
	EventLogsCleared   = "logs_cleared"
	logsClearedMessage = "Logs were cleared."
)

// Recorder is the write side used by other services.
type Recorder interface {
	Log(ctx context.Context, event, message string, fields map[string]interface{}, severity Severity, userID principal.ID) error
}

// Query selects a page of entries. Severity values other than info, warning
// and error are ignored.
type Query struct {
	Severity string
	Event    string
	Page     int
}

// Page is one page of a listing.
type Page struct {
	Entries    []Entry `json:"entries"`
	Page       int     `json:"page"`
	PerPage    int     `json:"per_page"`
	Total      int     `json:"total"`
	TotalPages int     `json:"total_pages"`
}

type Service struct {
	repo      Repository
	checker   authz.Checker
	now       func() time.Time
	retention time.Duration
	siteID    int64
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithSiteID tags every entry with a site id.
func WithSiteID(id int64) Option {
	return func(s *Service) { s.siteID = id }
}

func NewService(repo Repository, checker authz.Checker, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		checker:   checker,
		now:       time.Now,
		retention: DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Log writes one entry. The event is sanitized, tags are stripped from the
// message and unknown severities become info.
func (s *Service) Log(ctx context.Context, event, message string, fields map[string]interface{}, severity Severity, userID principal.ID) error {
	event = SanitizeEvent(event)
	if event == "" {
		return apperrors.InvalidInput("event", "must contain at least one of [a-z0-9_-]")
	}
	entry := Entry{
		CreatedAt: s.now().UTC(),
		Severity:  NormalizeSeverity(string(severity)),
		Event:     event,
		Message:   StripTags(message),
		Context:   fields,
		UserID:    userID,
		SiteID:    s.siteID,
	}
	if _, err := s.repo.Insert(ctx, entry); err != nil {
		slog.Error("Failed to write activity log", "event", event, "err", err)
		return apperrors.InternalWrap(err, "failed to write activity log")
	}
	return nil
}

// List returns the requested page, newest first.
func (s *Service) List(ctx context.Context, q Query) (Page, error) {
	filter := Filter{}
	if sev, ok := ParseSeverity(q.Severity); ok {
		filter.Severity = sev
	}
	if q.Event != "" {
		filter.Event = SanitizeEvent(q.Event)
	}
	page := q.Page
	if page < 1 {
		page = 1
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return Page{}, apperrors.InternalWrap(err, "failed to count activity logs")
	}
	entries, err := s.repo.Find(ctx, filter, PerPage, (page-1)*PerPage)
	if err != nil {
		return Page{}, apperrors.InternalWrap(err, "failed to list activity logs")
	}

	totalPages := (total + PerPage - 1) / PerPage
	if totalPages < 1 {
		totalPages = 1
	}
	return Page{
		Entries:    entries,
		Page:       page,
		PerPage:    PerPage,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// Events returns the distinct event names in ascending order.
func (s *Service) Events(ctx context.Context) ([]string, error) {
	events, err := s.repo.DistinctEvents(ctx, MaxDistinctEvents)
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to list events")
	}
	return events, nil
}

// Clear removes every entry and records that it happened.
func (s *Service) Clear(ctx context.Context, actor principal.Principal) error {
	if !s.checker.Can(actor, authz.Manage) {
		return apperrors.Forbidden("not allowed to clear logs")
	}
	if err := s.repo.Truncate(ctx); err != nil {
		return apperrors.InternalWrap(err, "failed to clear activity logs")
	}
	slog.Warn("Activity logs cleared", "actor_id", actor.ID)
	return s.Log(ctx, EventLogsCleared, logsClearedMessage, nil, SeverityWarning, actor.ID)
}

// Prune deletes entries older than the retention window.
func (s *Service) Prune(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.retention)
	n, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune activity logs: %w", err)
	}
	slog.Info("Pruned activity logs", "deleted", n, "cutoff", cutoff)
	return n, nil
}
