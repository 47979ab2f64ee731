package settings

import (
	"strings"

	"github.com/tendant/simple-secure/pkg/principal"
)

// OptionName is the option store key holding the settings document.
const OptionName = "secure_settings_v1"

// Settings are the feature flags and the excluded users list.
type Settings struct {
	HideUpdates         bool   `json:"hide_updates"`
	HideUpdateNumbers   bool   `json:"hide_update_numbers"`
	HideEditor          bool   `json:"hide_editor"`
	EnableUserSwitching bool   `json:"enable_user_switching"`
	HidePluginMenu      bool   `json:"hide_plugin_menu"`
	ExcludedUsers       string `json:"excluded_users"`
}

// Defaults returns the settings used for keys that were never saved.
func Defaults() Settings {
	return Settings{
		HideUpdates:         true,
		HideUpdateNumbers:   true,
		HideEditor:          true,
		EnableUserSwitching: true,
		HidePluginMenu:      false,
		ExcludedUsers:       "ade, madeneat",
	}
}

// Flags returns the boolean settings keyed by their document names.
func (s Settings) Flags() map[string]interface{} {
	return map[string]interface{}{
		"hide_updates":          s.HideUpdates,
		"hide_update_numbers":   s.HideUpdateNumbers,
		"hide_editor":           s.HideEditor,
		"enable_user_switching": s.EnableUserSwitching,
		"hide_plugin_menu":      s.HidePluginMenu,
	}
}

// ParseExcludedUsers splits raw on newlines and commas, then trims,
// lowercases and dedupes the entries, keeping first-seen order.
func ParseExcludedUsers(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	raw = strings.ReplaceAll(raw, "\r", "\n")
	raw = strings.ReplaceAll(raw, ",", "\n")

	seen := make(map[string]struct{})
	out := []string{}
	for _, part := range strings.Split(raw, "\n") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		if _, dup := seen[part]; dup {
			continue
		}
		seen[part] = struct{}{}
		out = append(out, part)
	}
	return out
}

// IsExcluded reports whether p matches an entry by id, username or email.
// Anonymous principals are never excluded.
func IsExcluded(list []string, p principal.Principal) bool {
	if p.ID.IsNone() {
		return false
	}
	id := p.ID.String()
	username := strings.ToLower(p.Username)
	email := strings.ToLower(p.Email)
	for _, item := range list {
		if item == id || (username != "" && item == username) || (email != "" && item == email) {
			return true
		}
	}
	return false
}
