package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-secure/pkg/activitylog"
	"github.com/tendant/simple-secure/pkg/authz"
	"github.com/tendant/simple-secure/pkg/client"
	"github.com/tendant/simple-secure/pkg/command"
	"github.com/tendant/simple-secure/pkg/config"
	"github.com/tendant/simple-secure/pkg/impersonate"
	"github.com/tendant/simple-secure/pkg/principal"
	"github.com/tendant/simple-secure/pkg/scopedtoken"
	"github.com/tendant/simple-secure/pkg/session"
	"github.com/tendant/simple-secure/pkg/settings"
	"github.com/tendant/simple-secure/pkg/sitehealth"
	"github.com/tendant/simple-secure/pkg/visibility"
)

const cookieName = "secure_session"

type server struct {
	router   http.Handler
	sessions *session.Manager
	logs     *activitylog.Service
}

func newServer(t *testing.T) *server {
	t.Helper()
	return newServerAt(t, "")
}

// newServerAt mounts the routes under prefix, as router.SetupRoutes does.
func newServerAt(t *testing.T, prefix string) *server {
	t.Helper()
	ctx := context.Background()

	checker := authz.NewRoleChecker([]string{"admin"}, []string{"manager"})
	logs := activitylog.NewService(activitylog.NewInMemoryRepository(), checker)
	settingsSvc := settings.NewService(settings.NewInMemoryOptionStore(), checker, logs)

	dir := principal.NewService(principal.NewInMemoryRepository())
	require.NoError(t, dir.Seed(ctx, []principal.Principal{
		{ID: 1, Username: "root", Roles: []string{"admin"}},
		{ID: 2, Username: "other", Roles: []string{"admin"}},
		{ID: 42, Username: "customer", Roles: []string{"subscriber"}},
	}))

	imp := impersonate.NewService(impersonate.NewInMemoryRepository(), dir, checker, settingsSvc,
		impersonate.WithActivityLog(logs))
	dispatcher := command.NewDispatcher(scopedtoken.New("api-test-scoped-secret", time.Minute))
	command.RegisterDefaults(dispatcher, command.Services{Impersonate: imp, Settings: settingsSvc, Logs: logs})

	sessions := session.NewManager(config.SessionConfig{Secret: "api-test-session-secret", CookieName: cookieName, TTL: time.Hour})
	h := NewHandle(Deps{
		Dispatcher:  dispatcher,
		Sessions:    sessions,
		Checker:     checker,
		Impersonate: imp,
		Settings:    settingsSvc,
		Visibility:  visibility.NewService(settingsSvc, imp, logs),
		Logs:        logs,
		Health: sitehealth.NewService(sitehealth.StaticProvider{
			Plugins:     []sitehealth.Component{{Slug: "akismet", Name: "Akismet", Active: true, UpdateAvailable: true}},
			CoreVersion: "6.4.2",
		}, checker),
	}, WithBasePath(prefix))

	api := chi.NewRouter()
	api.Use(sessions.Verifier(), client.AuthPrincipalMiddleware(dir))
	api.Group(h.Routes)
	if prefix == "" {
		return &server{router: api, sessions: sessions, logs: logs}
	}
	r := chi.NewRouter()
	r.Mount(prefix, api)
	return &server{router: r, sessions: sessions, logs: logs}
}

func (s *server) cookie(t *testing.T, id principal.ID) *http.Cookie {
	t.Helper()
	token, _, err := s.sessions.Encode(id)
	require.NoError(t, err)
	return &http.Cookie{Name: cookieName, Value: token}
}

func (s *server) do(t *testing.T, method, target string, cookie *http.Cookie, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == cookieName {
			return c
		}
	}
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestRequiresAuthentication(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodGet, "/impersonate/status", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[ErrorResponse](t, rec).Code)
}

func TestImpersonationRoundTrip(t *testing.T) {
	s := newServer(t)
	root := s.cookie(t, 1)

	rec := s.do(t, http.MethodGet, "/users/42/actions", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	actions := decode[UserActionsResponse](t, rec)
	require.NotNil(t, actions.SwitchTo)
	assert.Equal(t, http.MethodPost, actions.SwitchTo.Method)

	rec = s.do(t, http.MethodPost, actions.SwitchTo.Href, root, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	assert.Equal(t, "/", rec.Header().Get("Location"))
	customer := sessionCookie(rec)
	require.NotNil(t, customer)

	rec = s.do(t, http.MethodGet, "/impersonate/status", customer, nil)
	status := decode[StatusResponse](t, rec)
	assert.True(t, status.Impersonating)
	assert.Equal(t, principal.ID(1), status.OriginID)
	require.NotNil(t, status.Indicator)
	assert.Equal(t, "Switch back to root", status.Indicator.Label)

	rec = s.do(t, http.MethodGet, "/actions", customer, nil)
	own := decode[ActionsResponse](t, rec)
	require.NotNil(t, own.SwitchBack)
	assert.Nil(t, own.SaveSettings)

	rec = s.do(t, http.MethodPost, own.SwitchBack.Href, customer, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	back := sessionCookie(rec)
	require.NotNil(t, back)

	rec = s.do(t, http.MethodGet, "/impersonate/status", back, nil)
	assert.False(t, decode[StatusResponse](t, rec).Impersonating)

	page, err := s.logs.List(context.Background(), activitylog.Query{})
	require.NoError(t, err)
	events := []string{}
	for _, e := range page.Entries {
		events = append(events, e.Event)
	}
	assert.Equal(t, []string{impersonate.EventUserSwitchedBack, impersonate.EventUserSwitched}, events)
}

func TestLinksCarryMountPrefix(t *testing.T) {
	assert.Equal(t, "/secure", NewHandle(Deps{}, WithBasePath("/secure/")).basePath)

	s := newServerAt(t, "/secure")
	root := s.cookie(t, 1)

	rec := s.do(t, http.MethodGet, "/secure/users/42/actions", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	actions := decode[UserActionsResponse](t, rec)
	require.NotNil(t, actions.SwitchTo)
	assert.True(t, strings.HasPrefix(actions.SwitchTo.Href, "/secure/impersonate/42?_token="), actions.SwitchTo.Href)

	rec = s.do(t, http.MethodPost, actions.SwitchTo.Href, root, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	customer := sessionCookie(rec)
	require.NotNil(t, customer)

	own := decode[ActionsResponse](t, s.do(t, http.MethodGet, "/secure/actions", customer, nil))
	require.NotNil(t, own.SwitchBack)
	assert.True(t, strings.HasPrefix(own.SwitchBack.Href, "/secure/impersonate/back?"), own.SwitchBack.Href)
	assert.Equal(t, http.StatusSeeOther, s.do(t, http.MethodPost, own.SwitchBack.Href, customer, nil).Code)

	mine := decode[ActionsResponse](t, s.do(t, http.MethodGet, "/secure/actions", root, nil))
	require.NotNil(t, mine.SaveSettings)
	assert.True(t, strings.HasPrefix(mine.SaveSettings.Href, "/secure/settings?"))
	require.NotNil(t, mine.ClearLogs)
	assert.Equal(t, http.StatusNoContent, s.do(t, http.MethodDelete, mine.ClearLogs.Href, root, nil).Code)
}

func TestTargetsOwnSessionCannotSwitchBack(t *testing.T) {
	s := newServer(t)
	root := s.cookie(t, 1)

	actions := decode[UserActionsResponse](t, s.do(t, http.MethodGet, "/users/42/actions", root, nil))
	require.NotNil(t, actions.SwitchTo)
	rec := s.do(t, http.MethodPost, actions.SwitchTo.Href, root, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	switched := sessionCookie(rec)

	direct := s.cookie(t, 42)
	assert.Nil(t, decode[ActionsResponse](t, s.do(t, http.MethodGet, "/actions", direct, nil)).SwitchBack)

	token, _, err := scopedtoken.New("api-test-scoped-secret", time.Minute).Issue(42, scopedtoken.ScopeEndImpersonation)
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/impersonate/back?_token="+token, direct, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Nil(t, sessionCookie(rec))

	status := decode[StatusResponse](t, s.do(t, http.MethodGet, "/impersonate/status", switched, nil))
	assert.True(t, status.Impersonating)
	assert.Equal(t, principal.ID(1), status.OriginID)
}

func TestStartWithoutTokenIsRejected(t *testing.T) {
	s := newServer(t)
	rec := s.do(t, http.MethodPost, "/impersonate/42", s.cookie(t, 1), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "TOKEN_INVALID", decode[ErrorResponse](t, rec).Code)
	assert.Nil(t, sessionCookie(rec))
}

func TestStartSelfIsInvalidTarget(t *testing.T) {
	s := newServer(t)
	root := s.cookie(t, 1)

	rec := s.do(t, http.MethodGet, "/users/1/actions", root, nil)
	assert.Nil(t, decode[UserActionsResponse](t, rec).SwitchTo)

	token, _, err := scopedtoken.New("api-test-scoped-secret", time.Minute).Issue(1, scopedtoken.StartScope(1))
	require.NoError(t, err)
	rec = s.do(t, http.MethodPost, "/impersonate/1?_token="+token, root, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "INVALID_TARGET", body.Code)
	assert.Equal(t, impersonate.UsersRedirect, body.Details["redirect"])
}

func TestConcurrentTargetConflict(t *testing.T) {
	s := newServer(t)
	root, other := s.cookie(t, 1), s.cookie(t, 2)

	start := func(c *http.Cookie) *httptest.ResponseRecorder {
		rec := s.do(t, http.MethodGet, "/users/42/actions", c, nil)
		actions := decode[UserActionsResponse](t, rec)
		require.NotNil(t, actions.SwitchTo)
		return s.do(t, http.MethodPost, actions.SwitchTo.Href, c, nil)
	}

	assert.Equal(t, http.StatusSeeOther, start(root).Code)
	rec := start(other)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_IMPERSONATED", decode[ErrorResponse](t, rec).Code)
}

func TestSettings(t *testing.T) {
	s := newServer(t)
	root := s.cookie(t, 1)

	rec := s.do(t, http.MethodGet, "/settings", s.cookie(t, 42), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/settings", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	current := decode[SettingsResponse](t, rec)
	assert.Equal(t, settings.Defaults(), current.Settings)
	assert.Equal(t, []string{"ade", "madeneat"}, current.ExcludedUsers)

	actions := decode[ActionsResponse](t, s.do(t, http.MethodGet, "/actions", root, nil))
	require.NotNil(t, actions.SaveSettings)

	body := map[string]interface{}{"_token": actions.SaveSettings.Token, "hide_editor": false, "excluded_users": "Ops, ROOT"}
	rec = s.do(t, http.MethodPost, "/settings", root, body)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	saved := decode[SettingsResponse](t, rec)
	assert.False(t, saved.Settings.HideEditor)
	assert.True(t, saved.Settings.HideUpdates)
	assert.Equal(t, []string{"ops", "root"}, saved.ExcludedUsers)

	rec = s.do(t, http.MethodPost, "/settings", root, body)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "TOKEN_INVALID", decode[ErrorResponse](t, rec).Code)
}

func TestPolicy(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/policy?page=update-core.php", s.cookie(t, 2), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[PolicyResponse](t, rec)
	assert.True(t, resp.Blocked)
	assert.Equal(t, visibility.MessageUpdatesManaged, resp.Message)
	assert.True(t, resp.Policy.FileEditingDisabled)

	rec = s.do(t, http.MethodGet, "/policy", s.cookie(t, 2), nil)
	resp = decode[PolicyResponse](t, rec)
	assert.False(t, resp.Blocked)

	page, err := s.logs.List(context.Background(), activitylog.Query{Event: visibility.EventUpdateCoreBlocked})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
}

func TestLogs(t *testing.T) {
	s := newServer(t)
	root := s.cookie(t, 1)
	ctx := context.Background()
	require.NoError(t, s.logs.Log(ctx, "sync", "<b>hello</b>", nil, activitylog.SeverityError, 1))

	rec := s.do(t, http.MethodGet, "/logs?severity=error", root, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[activitylog.Page](t, rec)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "hello", page.Entries[0].Message)

	rec = s.do(t, http.MethodGet, "/logs/events", root, nil)
	assert.Equal(t, map[string][]string{"events": {"sync"}}, decode[map[string][]string](t, rec))

	rec = s.do(t, http.MethodDelete, "/logs", root, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	actions := decode[ActionsResponse](t, s.do(t, http.MethodGet, "/actions", root, nil))
	require.NotNil(t, actions.ClearLogs)
	rec = s.do(t, http.MethodDelete, actions.ClearLogs.Href, root, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	page = decode[activitylog.Page](t, s.do(t, http.MethodGet, "/logs", root, nil))
	require.Len(t, page.Entries, 1)
	assert.Equal(t, activitylog.EventLogsCleared, page.Entries[0].Event)
}

func TestSiteHealth(t *testing.T) {
	s := newServer(t)

	rec := s.do(t, http.MethodGet, "/site-health", s.cookie(t, 42), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, "/site-health", s.cookie(t, 1), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decode[sitehealth.Report](t, rec)
	assert.Equal(t, 1, report.Plugins.Counts.UpdateAvailable)
	assert.Equal(t, "6.4.2", report.Core.CurrentVersion)
}
