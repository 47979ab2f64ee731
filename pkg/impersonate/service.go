package impersonate

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tendant/simple-secure/pkg/activitylog"
	"github.com/tendant/simple-secure/pkg/authz"
	apperrors "github.com/tendant/simple-secure/pkg/errors"
	"github.com/tendant/simple-secure/pkg/principal"
	"github.com/tendant/simple-secure/pkg/settings"
)

const (
	EventUserSwitched       = "user_switched"
	EventUserSwitchedBack   = "user_switched_back"
	EventSwitchBackFallback = "user_switch_back_fallback"

	// DefaultRedirect is where the UI lands after a transition.
	DefaultRedirect = "/"
	// UsersRedirect is where a self-switch attempt is sent.
	UsersRedirect = "/users"

	fallbackOriginLabel = "admin"
)

// Directory resolves principals by id.
type Directory interface {
	Get(ctx context.Context, id principal.ID) (principal.Principal, error)
}

// SettingsReader returns the current feature flags.
type SettingsReader interface {
	Get(ctx context.Context) (settings.Settings, error)
}

// Observer is told about every transition attempt.
type Observer interface {
	ObserveImpersonation(transition, outcome string)
}

// EndOutcome describes how End finished.
type EndOutcome string

const (
	// EndNotImpersonating means the caller was Normal and nothing changed.
	EndNotImpersonating EndOutcome = "not_impersonating"
	// EndRestored means the session was switched back to the origin.
	EndRestored EndOutcome = "restored"
	// EndOriginMissing means the origin no longer exists and the session was logged out.
	EndOriginMissing EndOutcome = "origin_missing"
)

type StartResult struct {
	Target     principal.ID `json:"target_id"`
	Origin     principal.ID `json:"origin_id"`
	SwitchedAt time.Time    `json:"switched_at"`
	Redirect   string       `json:"redirect"`
}

type EndResult struct {
	Outcome  EndOutcome   `json:"outcome"`
	Origin   principal.ID `json:"origin_id,omitempty"`
	Redirect string       `json:"redirect"`
}

type Service struct {
	repo       Repository
	principals Directory
	checker    authz.Checker
	settings   SettingsReader
	logs       activitylog.Recorder
	observer   Observer
	now        func() time.Time
}

type Option func(*Service)

func WithActivityLog(logs activitylog.Recorder) Option {
	return func(s *Service) { s.logs = logs }
}

func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(repo Repository, principals Directory, checker authz.Checker, settings SettingsReader, opts ...Option) *Service {
	s := &Service{
		repo:       repo,
		principals: principals,
		checker:    checker,
		settings:   settings,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start switches the session's principal into target.
func (s *Service) Start(ctx context.Context, sess Session, target principal.ID) (StartResult, error) {
	res, err := s.start(ctx, sess, target)
	s.observe("start", outcomeOf(err, "ok"))
	return res, err
}

func (s *Service) start(ctx context.Context, sess Session, target principal.ID) (StartResult, error) {
	requesterID := sess.Current()
	requester, err := s.lookup(ctx, requesterID)
	if err != nil {
		return StartResult{}, err
	}
	if requester == nil || !s.checker.Can(*requester, authz.Administer) {
		return StartResult{}, apperrors.Forbidden("not allowed to switch users")
	}

	current, err := s.settings.Get(ctx)
	if err != nil {
		return StartResult{}, err
	}
	if !current.EnableUserSwitching {
		return StartResult{}, apperrors.Forbidden("user switching is disabled")
	}

	if target.IsNone() {
		return StartResult{}, apperrors.New(apperrors.ErrCodeInvalidTarget, "missing user id")
	}
	if target == requesterID {
		return StartResult{}, apperrors.New(apperrors.ErrCodeInvalidTarget, "cannot switch to yourself").
			WithDetail("redirect", UsersRedirect)
	}
	targetPrincipal, err := s.lookup(ctx, target)
	if err != nil {
		return StartResult{}, err
	}
	if targetPrincipal == nil {
		return StartResult{}, apperrors.Newf(apperrors.ErrCodeInvalidTarget, "user %s does not exist", target)
	}

	rec := Record{PrincipalID: target, SwitchedFromID: requesterID, SwitchedAt: s.now().UTC()}
	if err := s.repo.Begin(ctx, rec); err != nil {
		if errors.Is(err, ErrRecordExists) {
			return StartResult{}, apperrors.New(apperrors.ErrCodeAlreadyImpersonated, "That user is already in a switched session.")
		}
		slog.Error("Failed to begin impersonation", "requester_id", requesterID, "target_id", target, "err", err)
		return StartResult{}, apperrors.InternalWrap(err, "failed to begin impersonation")
	}

	if err := sess.SwitchTo(target, requesterID); err != nil {
		slog.Error("Failed to switch session, rolling back", "requester_id", requesterID, "target_id", target, "err", err)
		if _, _, clearErr := s.repo.Clear(ctx, target); clearErr != nil {
			slog.Error("Failed to roll back impersonation record", "target_id", target, "err", clearErr)
		}
		return StartResult{}, apperrors.InternalWrap(err, "failed to switch session")
	}

	slog.Info("User switched", "requester_id", requesterID, "target_id", target)
	s.record(ctx, EventUserSwitched, "Administrator switched into another user.",
		map[string]interface{}{"from_admin_id": int64(requesterID), "to_user_id": int64(target)},
		activitylog.SeverityWarning, requesterID)

	return StartResult{Target: target, Origin: requesterID, SwitchedAt: rec.SwitchedAt, Redirect: DefaultRedirect}, nil
}

// End switches an impersonated session back to its origin. Calling End from
// a Normal session, or from a session the origin did not switch, is a no-op.
func (s *Service) End(ctx context.Context, sess Session) (EndResult, error) {
	res, err := s.end(ctx, sess)
	s.observe("end", outcomeOf(err, string(res.Outcome)))
	return res, err
}

func (s *Service) end(ctx context.Context, sess Session) (EndResult, error) {
	currentID := sess.Current()
	if currentID.IsNone() {
		return EndResult{}, apperrors.Unauthorized("not logged in")
	}

	notImpersonating := EndResult{Outcome: EndNotImpersonating, Redirect: DefaultRedirect}

	// Only the session that started the switch may end it. The target's own
	// sessions see a no-op.
	pending, ok, err := s.repo.Get(ctx, currentID)
	if err != nil {
		return EndResult{}, apperrors.InternalWrap(err, "failed to read impersonation record")
	}
	if !ok {
		return notImpersonating, nil
	}
	if sess.Origin() != pending.SwitchedFromID {
		slog.Warn("Switch back requested by a session that did not start the switch",
			"principal_id", currentID, "session_origin_id", sess.Origin(), "origin_id", pending.SwitchedFromID)
		return notImpersonating, nil
	}

	rec, ok, err := s.repo.Clear(ctx, currentID)
	if err != nil {
		slog.Error("Failed to clear impersonation record", "principal_id", currentID, "err", err)
		return EndResult{}, apperrors.InternalWrap(err, "failed to end impersonation")
	}
	if !ok {
		return notImpersonating, nil
	}

	origin, err := s.lookup(ctx, rec.SwitchedFromID)
	if err != nil {
		s.restore(ctx, rec)
		return EndResult{}, err
	}

	if origin == nil {
		if err := sess.LogOut(); err != nil {
			slog.Error("Failed to log out after missing origin", "principal_id", currentID, "err", err)
			return EndResult{}, apperrors.InternalWrap(err, "failed to end session")
		}
		slog.Warn("Switch back origin no longer exists", "principal_id", currentID, "origin_id", rec.SwitchedFromID)
		s.record(ctx, EventSwitchBackFallback, "Original administrator no longer exists; session ended.",
			map[string]interface{}{"from_user_id": int64(currentID), "to_admin_id": int64(rec.SwitchedFromID)},
			activitylog.SeverityWarning, currentID)
		return EndResult{Outcome: EndOriginMissing, Origin: rec.SwitchedFromID, Redirect: DefaultRedirect}, nil
	}

	if err := sess.SwitchTo(origin.ID, principal.None); err != nil {
		slog.Error("Failed to switch session back", "principal_id", currentID, "origin_id", origin.ID, "err", err)
		s.restore(ctx, rec)
		return EndResult{}, apperrors.InternalWrap(err, "failed to switch session back")
	}

	slog.Info("User switched back", "principal_id", currentID, "origin_id", origin.ID)
	s.record(ctx, EventUserSwitchedBack, "Administrator switched back to original admin.",
		map[string]interface{}{"from_user_id": int64(currentID), "to_admin_id": int64(origin.ID)},
		activitylog.SeverityInfo, origin.ID)

	return EndResult{Outcome: EndRestored, Origin: origin.ID, Redirect: DefaultRedirect}, nil
}

// IsImpersonated reports whether id is currently an impersonation target.
func (s *Service) IsImpersonated(ctx context.Context, id principal.ID) (bool, error) {
	_, ok, err := s.OriginOf(ctx, id)
	return ok, err
}

// OriginOf returns the principal that switched into id.
func (s *Service) OriginOf(ctx context.Context, id principal.ID) (principal.ID, bool, error) {
	if id.IsNone() {
		return principal.None, false, nil
	}
	rec, ok, err := s.repo.Get(ctx, id)
	if err != nil {
		return principal.None, false, apperrors.InternalWrap(err, "failed to read impersonation record")
	}
	if !ok {
		return principal.None, false, nil
	}
	return rec.SwitchedFromID, true, nil
}

// CanOfferSwitch reports whether viewer should be offered a switch into target.
func (s *Service) CanOfferSwitch(ctx context.Context, viewer principal.Principal, target principal.ID) (bool, error) {
	if !s.checker.Can(viewer, authz.Administer) {
		return false, nil
	}
	current, err := s.settings.Get(ctx)
	if err != nil {
		return false, err
	}
	if !current.EnableUserSwitching {
		return false, nil
	}
	switched, err := s.IsImpersonated(ctx, viewer.ID)
	if err != nil || switched {
		return false, err
	}
	return !target.IsNone() && target != viewer.ID, nil
}

// Indicator returns the switch-back indicator for id, or nil when id is not impersonated.
func (s *Service) Indicator(ctx context.Context, id principal.ID) (*Indicator, error) {
	originID, ok, err := s.OriginOf(ctx, id)
	if err != nil || !ok {
		return nil, err
	}
	name := fallbackOriginLabel
	origin, err := s.lookup(ctx, originID)
	if err != nil {
		return nil, err
	}
	if origin != nil && origin.Username != "" {
		name = origin.Username
	}
	return newIndicator(originID, name), nil
}

// lookup returns nil without error when the principal does not exist.
func (s *Service) lookup(ctx context.Context, id principal.ID) (*principal.Principal, error) {
	if id.IsNone() {
		return nil, nil
	}
	p, err := s.principals.Get(ctx, id)
	if errors.Is(err, principal.ErrPrincipalNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.InternalWrap(err, "failed to load principal")
	}
	return &p, nil
}

// restore puts a cleared record back after a failed switch back.
func (s *Service) restore(ctx context.Context, rec Record) {
	if err := s.repo.Begin(ctx, rec); err != nil {
		slog.Error("Failed to restore impersonation record", "principal_id", rec.PrincipalID, "err", err)
	}
}

func (s *Service) record(ctx context.Context, event, message string, fields map[string]interface{}, severity activitylog.Severity, userID principal.ID) {
	if s.logs == nil {
		return
	}
	if err := s.logs.Log(ctx, event, message, fields, severity, userID); err != nil {
		slog.Warn("Failed to record impersonation event", "event", event, "err", err)
	}
}

func (s *Service) observe(transition, outcome string) {
	if s.observer != nil {
		s.observer.ObserveImpersonation(transition, outcome)
	}
}

func outcomeOf(err error, success string) string {
	if err != nil {
		return string(apperrors.GetCode(err))
	}
	return success
}
