package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/jinzhu/copier"

	"github.com/tendant/simple-secure/pkg/activitylog"
	"github.com/tendant/simple-secure/pkg/authz"
	apperrors "github.com/tendant/simple-secure/pkg/errors"
	"github.com/tendant/simple-secure/pkg/principal"
)

const EventSettingsChanged = "settings_changed"

// Form is a partial update. Nil fields keep their current value.
type Form struct {
	HideUpdates         *bool   `json:"hide_updates,omitempty"`
	HideUpdateNumbers   *bool   `json:"hide_update_numbers,omitempty"`
	HideEditor          *bool   `json:"hide_editor,omitempty"`
	EnableUserSwitching *bool   `json:"enable_user_switching,omitempty"`
	HidePluginMenu      *bool   `json:"hide_plugin_menu,omitempty"`
	ExcludedUsers       *string `json:"excluded_users,omitempty"`
}

type Service struct {
	store   OptionStore
	checker authz.Checker
	logs    activitylog.Recorder
}

func NewService(store OptionStore, checker authz.Checker, logs activitylog.Recorder) *Service {
	return &Service{store: store, checker: checker, logs: logs}
}

// Get returns the saved settings merged over Defaults.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	current := Defaults()
	raw, ok, err := s.store.Get(ctx, OptionName)
	if err != nil {
		return Settings{}, apperrors.InternalWrap(err, "failed to load settings")
	}
	if !ok {
		return current, nil
	}
	if err := json.Unmarshal(raw, &current); err != nil {
		slog.Warn("Stored settings are unreadable, using defaults", "option", OptionName, "err", err)
		return Defaults(), nil
	}
	return current, nil
}

// Save replaces the settings document. The actor needs the manage capability.
func (s *Service) Save(ctx context.Context, actor principal.Principal, next Settings) (Settings, error) {
	if !s.checker.Can(actor, authz.Manage) {
		return Settings{}, apperrors.Forbidden("not allowed to change settings")
	}

	raw, err := json.Marshal(next)
	if err != nil {
		return Settings{}, apperrors.InternalWrap(err, "failed to encode settings")
	}
	if err := s.store.Put(ctx, OptionName, raw); err != nil {
		return Settings{}, apperrors.InternalWrap(err, "failed to save settings")
	}

	slog.Info("Settings saved", "actor_id", actor.ID, "flags", next.Flags())
	if s.logs != nil {
		if err := s.logs.Log(ctx, EventSettingsChanged, "Update Control settings updated.", next.Flags(), activitylog.SeverityInfo, actor.ID); err != nil {
			slog.Warn("Failed to record settings change", "err", err)
		}
	}
	return next, nil
}

// Update applies a partial form over the current settings and saves the result.
func (s *Service) Update(ctx context.Context, actor principal.Principal, form Form) (Settings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return Settings{}, err
	}
	if err := copier.CopyWithOption(&current, &form, copier.Option{IgnoreEmpty: true}); err != nil {
		return Settings{}, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, fmt.Sprintf("invalid settings form: %v", err))
	}
	return s.Save(ctx, actor, current)
}

// ExcludedUsers returns the parsed excluded users list.
func (s *Service) ExcludedUsers(ctx context.Context) ([]string, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return nil, err
	}
	return ParseExcludedUsers(current.ExcludedUsers), nil
}

// IsExcluded reports whether p is on the excluded users list.
func (s *Service) IsExcluded(ctx context.Context, p principal.Principal) (bool, error) {
	list, err := s.ExcludedUsers(ctx)
	if err != nil {
		return false, err
	}
	return IsExcluded(list, p), nil
}
