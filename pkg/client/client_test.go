package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-secure/pkg/authz"
	"github.com/tendant/simple-secure/pkg/config"
	"github.com/tendant/simple-secure/pkg/principal"
	"github.com/tendant/simple-secure/pkg/session"
)

type testEnv struct {
	sessions *session.Manager
	dir      *principal.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dir := principal.NewInMemoryRepository()
	_, err := dir.Save(context.Background(), principal.Principal{ID: 1, Username: "root", Roles: []string{"admin"}})
	require.NoError(t, err)
	_, err = dir.Save(context.Background(), principal.Principal{ID: 2, Username: "reader", Roles: []string{"subscriber"}})
	require.NoError(t, err)
	return &testEnv{
		sessions: session.NewManager(config.SessionConfig{Secret: "client-test-secret-value", CookieName: "secure_session", TTL: time.Hour}),
		dir:      principal.NewService(dir),
	}
}

func (e *testEnv) handler(dir Directory, inner http.Handler, mw ...func(http.Handler) http.Handler) http.Handler {
	h := inner
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	return e.sessions.Verifier()(AuthPrincipalMiddleware(dir)(h))
}

func (e *testEnv) request(t *testing.T, id principal.ID) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if !id.IsNone() {
		token, _, err := e.sessions.Encode(id)
		require.NoError(t, err)
		req.Header.Set(session.HeaderName, token)
	}
	return req
}

var whoami = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	authCtx := GetAuthContext(r)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"authenticated": authCtx.IsAuthenticated,
		"username":      authCtx.Principal.Username,
	})
})

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuthPrincipalMiddleware(t *testing.T) {
	e := newTestEnv(t)
	h := e.handler(e.dir, whoami)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, e.request(t, 1))
	body := decode(t, rec)
	assert.Equal(t, true, body["authenticated"])
	assert.Equal(t, "root", body["username"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, e.request(t, principal.None))
	assert.Equal(t, false, decode(t, rec)["authenticated"])
}

func TestAuthPrincipalMiddlewareMissingPrincipal(t *testing.T) {
	e := newTestEnv(t)
	rec := httptest.NewRecorder()
	e.handler(e.dir, whoami).ServeHTTP(rec, e.request(t, 99))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode(t, rec)["authenticated"])
}

type brokenDirectory struct{}

func (brokenDirectory) Get(ctx context.Context, id principal.ID) (principal.Principal, error) {
	return principal.Principal{}, errors.New("connection refused")
}

func TestAuthPrincipalMiddlewareStoreFailure(t *testing.T) {
	e := newTestEnv(t)
	rec := httptest.NewRecorder()
	e.handler(brokenDirectory{}, whoami).ServeHTTP(rec, e.request(t, 1))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL_ERROR", decode(t, rec)["code"])
}

func TestRequireAuth(t *testing.T) {
	e := newTestEnv(t)
	h := e.handler(e.dir, whoami, RequireAuth)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, e.request(t, principal.None))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode(t, rec)["code"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, e.request(t, 2))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireCapability(t *testing.T) {
	e := newTestEnv(t)
	checker := authz.NewRoleChecker([]string{"admin"}, nil)
	h := e.handler(e.dir, whoami, RequireCapability(checker, authz.Manage))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, e.request(t, 2))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decode(t, rec)["code"])

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, e.request(t, principal.None))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, e.request(t, 1))
	assert.Equal(t, http.StatusOK, rec.Code)
}
