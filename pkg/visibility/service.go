package visibility

import (
	"context"
	"log/slog"

	"github.com/tendant/simple-secure/pkg/activitylog"
	"github.com/tendant/simple-secure/pkg/impersonate"
	"github.com/tendant/simple-secure/pkg/principal"
	"github.com/tendant/simple-secure/pkg/settings"
)

const EventUpdateCoreBlocked = "update_core_blocked"

// Service evaluates the policy for a viewer from live settings and
// impersonation state.
type Service struct {
	settings    *settings.Service
	impersonate *impersonate.Service
	logs        activitylog.Recorder
}

func NewService(settings *settings.Service, impersonate *impersonate.Service, logs activitylog.Recorder) *Service {
	return &Service{settings: settings, impersonate: impersonate, logs: logs}
}

// For returns the policy that applies to viewer.
func (s *Service) For(ctx context.Context, viewer principal.Principal) (Policy, error) {
	current, err := s.settings.Get(ctx)
	if err != nil {
		return Policy{}, err
	}
	excluded := settings.IsExcluded(settings.ParseExcludedUsers(current.ExcludedUsers), viewer)
	indicator, err := s.impersonate.Indicator(ctx, viewer.ID)
	if err != nil {
		return Policy{}, err
	}
	return Evaluate(current, excluded, indicator), nil
}

// CheckPage returns the block message for page, recording blocked visits to
// the updates page.
func (s *Service) CheckPage(ctx context.Context, viewer principal.Principal, page string) (Policy, string, bool, error) {
	policy, err := s.For(ctx, viewer)
	if err != nil {
		return Policy{}, "", false, err
	}
	msg, blocked := policy.Blocked(page)
	if blocked && page == PageUpdateCore && s.logs != nil {
		if err := s.logs.Log(ctx, EventUpdateCoreBlocked, "Direct access to update-core.php was blocked.", nil, activitylog.SeverityWarning, viewer.ID); err != nil {
			slog.Warn("Failed to record blocked page", "page", page, "err", err)
		}
	}
	return policy, msg, blocked, nil
}
