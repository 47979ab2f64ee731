package client

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"github.com/tendant/simple-secure/pkg/authz"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	render.Status(r, status)
	render.JSON(w, r, errorBody{Error: message, Code: code})
}

// RequireAuth returns 401 Unauthorized if the request is not authenticated.
// Must be used after AuthPrincipalMiddleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetAuthContext(r).IsAuthenticated {
			slog.Debug("Unauthenticated request to protected resource", "path", r.URL.Path)
			writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireCapability returns 401 if not authenticated and 403 if the caller
// lacks capability. Must be used after AuthPrincipalMiddleware.
func RequireCapability(checker authz.Checker, capability authz.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if !authCtx.IsAuthenticated {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
				return
			}
			if !checker.Can(authCtx.Principal, capability) {
				slog.Warn("Principal lacks required capability",
					"principal_id", authCtx.Principal.ID,
					"roles", authCtx.Principal.Roles,
					"capability", capability)
				writeError(w, r, http.StatusForbidden, "FORBIDDEN", "insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
