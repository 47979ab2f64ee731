package client

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tendant/simple-secure/pkg/principal"
	"github.com/tendant/simple-secure/pkg/session"
)

// contextKey is a value for use with context.WithValue. It's used as
// a pointer so it fits in an interface{} without allocation.
type contextKey struct {
	name string
}

func (k *contextKey) String() string {
	return "secure context value " + k.name
}

var (
	AuthPrincipalKey = &contextKey{"AuthPrincipal"}
)

// Directory resolves the principal behind a session.
type Directory interface {
	Get(ctx context.Context, id principal.ID) (principal.Principal, error)
}

// AuthContext is what the middleware learned about the caller.
type AuthContext struct {
	Principal       principal.Principal
	IsAuthenticated bool
}

// AuthPrincipalMiddleware resolves the verified session subject into a
// principal. Must be used after session.Manager.Verifier. A missing or
// unknown subject leaves the request anonymous.
func AuthPrincipalMiddleware(dir Directory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			authCtx := AuthContext{}

			if id := session.IDFromContext(ctx); !id.IsNone() {
				p, err := dir.Get(ctx, id)
				switch {
				case err == nil:
					authCtx = AuthContext{Principal: p, IsAuthenticated: true}
					slog.Debug("authenticated principal", "principal_id", p.ID, "roles", p.Roles)
				case errors.Is(err, principal.ErrPrincipalNotFound):
					slog.Warn("Session refers to a missing principal", "principal_id", id)
				default:
					slog.Error("Failed to load session principal", "principal_id", id, "err", err)
					writeError(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load session")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithAuthContext(ctx, authCtx)))
		})
	}
}

// WithAuthContext stores authCtx on ctx.
func WithAuthContext(ctx context.Context, authCtx AuthContext) context.Context {
	return context.WithValue(ctx, AuthPrincipalKey, authCtx)
}

// GetAuthContext returns the caller's auth context; anonymous when absent.
func GetAuthContext(r *http.Request) AuthContext {
	return AuthContextFrom(r.Context())
}

func AuthContextFrom(ctx context.Context) AuthContext {
	authCtx, _ := ctx.Value(AuthPrincipalKey).(AuthContext)
	return authCtx
}

// GetPrincipal returns the authenticated principal, or the anonymous zero value.
func GetPrincipal(r *http.Request) principal.Principal {
	return GetAuthContext(r).Principal
}
