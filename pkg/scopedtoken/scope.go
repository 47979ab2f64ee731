package scopedtoken

import "github.com/tendant/simple-secure/pkg/principal"

const (
	ScopeEndImpersonation = "impersonate.end"
	ScopeSaveSettings     = "settings.save"
	ScopeClearLogs        = "logs.clear"

	startScopePrefix = "impersonate.start:"
)

// StartScope is the scope for starting an impersonation of target.
func StartScope(target principal.ID) string {
	return startScopePrefix + target.String()
}
