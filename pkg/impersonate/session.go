package impersonate

import "github.com/tendant/simple-secure/pkg/principal"

// Session is the active identity of the current request.
type Session interface {
	// Current returns the signed-in principal, or principal.None.
	Current() principal.ID
	// Origin returns the principal that switched this session into Current,
	// or principal.None for a session that was signed in directly.
	Origin() principal.ID
	// SwitchTo makes id the active identity and records origin on the
	// session. A None origin clears it.
	SwitchTo(id, origin principal.ID) error
	// LogOut ends the session.
	LogOut() error
}
