// Package visibility turns settings and the viewer's identity into a
// declarative Policy that the admin UI applies.
package visibility

import (
	"sort"

	"github.com/tendant/simple-secure/pkg/impersonate"
	"github.com/tendant/simple-secure/pkg/settings"
)

const (
	PageUpdateCore   = "update-core.php"
	PageThemeEditor  = "theme-editor.php"
	PagePluginEditor = "plugin-editor.php"
	PagePlugins      = "plugins.php"

	ToolbarUpdates = "updates"

	ElementUpdateBadge       = "update-badge"
	ElementPluginUpdateNotes = "plugin-update-banner"
	ElementThemeUpdateNotes  = "theme-update-banner"

	MessageUpdatesManaged  = "Updates are managed centrally for security reasons."
	MessageEditingDisabled = "File editing is disabled for security reasons."
)

// AutoUpdates lists which automatic update channels stay enabled.
type AutoUpdates struct {
	Core         bool `json:"core"`
	Plugins      bool `json:"plugins"`
	Themes       bool `json:"themes"`
	Translations bool `json:"translations"`
	CoreMinor    bool `json:"core_minor"`
	CoreMajor    bool `json:"core_major"`
	CoreDev      bool `json:"core_dev"`
}

func allAutoUpdates() AutoUpdates {
	return AutoUpdates{Core: true, Plugins: true, Themes: true, Translations: true, CoreMinor: true, CoreMajor: true, CoreDev: true}
}

// Policy is what the UI must apply for one viewer.
type Policy struct {
	Excluded            bool                   `json:"excluded"`
	AutoUpdates         AutoUpdates            `json:"auto_updates"`
	HideUpdateNags      bool                   `json:"hide_update_nags"`
	FileEditingDisabled bool                   `json:"file_editing_disabled"`
	RemovedMenus        []string               `json:"removed_menus"`
	RemovedToolbarNodes []string               `json:"removed_toolbar_nodes"`
	HiddenElements      []string               `json:"hidden_elements"`
	BlockedPages        map[string]string      `json:"blocked_pages"`
	SwitchBack          *impersonate.Indicator `json:"switch_back,omitempty"`
}

// Blocked reports whether page is blocked and the message to show.
func (p Policy) Blocked(page string) (string, bool) {
	msg, ok := p.BlockedPages[page]
	return msg, ok
}

// Evaluate builds the policy for one viewer. Update hiding applies to every
// viewer; excluded viewers skip the badge, editor and plugin menu rules.
func Evaluate(s settings.Settings, excluded bool, indicator *impersonate.Indicator) Policy {
	b := newBuilder()
	b.policy.Excluded = excluded
	b.policy.SwitchBack = indicator

	if s.HideUpdates {
		b.policy.AutoUpdates = AutoUpdates{}
		b.policy.HideUpdateNags = true
		b.menu(PageUpdateCore)
		b.block(PageUpdateCore, MessageUpdatesManaged)
		b.toolbar(ToolbarUpdates)
		b.hide(ElementPluginUpdateNotes, ElementThemeUpdateNotes)
	}

	if !excluded {
		if s.HideUpdateNumbers {
			b.hide(ElementUpdateBadge)
			b.toolbar(ToolbarUpdates)
		}
		if s.HideEditor {
			b.policy.FileEditingDisabled = true
			b.menu(PageThemeEditor, PagePluginEditor)
			b.block(PageThemeEditor, MessageEditingDisabled)
			b.block(PagePluginEditor, MessageEditingDisabled)
		}
		if s.HidePluginMenu {
			b.menu(PagePlugins)
		}
	}

	return b.build()
}

type builder struct {
	policy Policy
	menus  map[string]struct{}
	nodes  map[string]struct{}
	hidden map[string]struct{}
}

func newBuilder() *builder {
	return &builder{
		policy: Policy{AutoUpdates: allAutoUpdates(), BlockedPages: map[string]string{}},
		menus:  map[string]struct{}{},
		nodes:  map[string]struct{}{},
		hidden: map[string]struct{}{},
	}
}

func (b *builder) menu(pages ...string) {
	for _, p := range pages {
		b.menus[p] = struct{}{}
	}
}

func (b *builder) toolbar(nodes ...string) {
	for _, n := range nodes {
		b.nodes[n] = struct{}{}
	}
}

func (b *builder) hide(elements ...string) {
	for _, e := range elements {
		b.hidden[e] = struct{}{}
	}
}

func (b *builder) block(page, message string) {
	b.policy.BlockedPages[page] = message
}

func (b *builder) build() Policy {
	b.policy.RemovedMenus = sortedKeys(b.menus)
	b.policy.RemovedToolbarNodes = sortedKeys(b.nodes)
	b.policy.HiddenElements = sortedKeys(b.hidden)
	return b.policy
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
