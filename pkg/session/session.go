// Package session keeps the active identity of a browser in a signed cookie.
//
// The cookie holds an HS256 JWT whose sub claim is the principal id. A switched
// session also carries the origin principal in origin_id. Switching identity
// re-issues the cookie; logging out expires it.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/jwtauth/v5"

	"github.com/tendant/simple-secure/pkg/config"
	"github.com/tendant/simple-secure/pkg/principal"
)

// HeaderName is checked when a request carries no session cookie.
const HeaderName = "X-Session-Token"

const originClaim = "origin_id"

type Manager struct {
	auth       *jwtauth.JWTAuth
	cookieName string
	secure     bool
	ttl        time.Duration
	now        func() time.Time
}

func NewManager(cfg config.SessionConfig) *Manager {
	return &Manager{
		auth:       jwtauth.New("HS256", []byte(cfg.Secret), nil),
		cookieName: cfg.CookieName,
		secure:     cfg.CookieSecure,
		ttl:        cfg.TTL,
		now:        time.Now,
	}
}

// Verifier loads and verifies the session token into the request context.
// Requests without a valid token continue as anonymous.
func (m *Manager) Verifier() func(http.Handler) http.Handler {
	return jwtauth.Verify(m.auth, m.tokenFromCookie, jwtauth.TokenFromHeader, tokenFromSessionHeader)
}

func (m *Manager) tokenFromCookie(r *http.Request) string {
	cookie, err := r.Cookie(m.cookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func tokenFromSessionHeader(r *http.Request) string {
	return r.Header.Get(HeaderName)
}

// Encode signs a session token for id.
func (m *Manager) Encode(id principal.ID) (string, time.Time, error) {
	return m.encode(id, principal.None)
}

func (m *Manager) encode(id, origin principal.ID) (string, time.Time, error) {
	if id.IsNone() {
		return "", time.Time{}, fmt.Errorf("session requires a principal")
	}
	now := m.now()
	exp := now.Add(m.ttl)
	claims := map[string]interface{}{"sub": id.String()}
	if !origin.IsNone() {
		claims[originClaim] = origin.String()
	}
	jwtauth.SetIssuedAt(claims, now)
	jwtauth.SetExpiry(claims, exp)
	_, token, err := m.auth.Encode(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, exp, nil
}

// Issue sets a session cookie for id on w.
func (m *Manager) Issue(w http.ResponseWriter, id principal.ID) error {
	return m.issue(w, id, principal.None)
}

func (m *Manager) issue(w http.ResponseWriter, id, origin principal.ID) error {
	token, exp, err := m.encode(id, origin)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		Expires:  exp,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// IDFromContext returns the principal id of a verified session, or None.
func IDFromContext(ctx context.Context) principal.ID {
	return claimFromContext(ctx, "sub")
}

// OriginFromContext returns the origin of a switched session, or None.
func OriginFromContext(ctx context.Context) principal.ID {
	return claimFromContext(ctx, originClaim)
}

func claimFromContext(ctx context.Context, name string) principal.ID {
	token, claims, err := jwtauth.FromContext(ctx)
	if err != nil || token == nil {
		return principal.None
	}
	raw, ok := claims[name].(string)
	if !ok {
		return principal.None
	}
	id, err := principal.ParseID(raw)
	if err != nil {
		slog.Debug("Session token has an unusable claim", "claim", name, "value", raw, "err", err)
		return principal.None
	}
	return id
}

// Session is the per-request view of the active identity. It satisfies
// impersonate.Session.
type Session struct {
	m       *Manager
	w       http.ResponseWriter
	current principal.ID
	origin  principal.ID
}

// For binds a Session to one request and its response writer.
func (m *Manager) For(w http.ResponseWriter, r *http.Request) *Session {
	ctx := r.Context()
	return &Session{m: m, w: w, current: IDFromContext(ctx), origin: OriginFromContext(ctx)}
}

func (s *Session) Current() principal.ID {
	return s.current
}

func (s *Session) Origin() principal.ID {
	return s.origin
}

func (s *Session) SwitchTo(id, origin principal.ID) error {
	if err := s.m.issue(s.w, id, origin); err != nil {
		return err
	}
	s.current = id
	s.origin = origin
	return nil
}

func (s *Session) LogOut() error {
	s.m.Clear(s.w)
	s.current = principal.None
	s.origin = principal.None
	return nil
}
