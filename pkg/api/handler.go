// Package api exposes the impersonation, settings, policy, activity log and
// site health operations over HTTP.
package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-secure/pkg/activitylog"
	"github.com/tendant/simple-secure/pkg/authz"
	"github.com/tendant/simple-secure/pkg/client"
	"github.com/tendant/simple-secure/pkg/command"
	apperrors "github.com/tendant/simple-secure/pkg/errors"
	"github.com/tendant/simple-secure/pkg/impersonate"
	"github.com/tendant/simple-secure/pkg/principal"
	"github.com/tendant/simple-secure/pkg/session"
	"github.com/tendant/simple-secure/pkg/settings"
	"github.com/tendant/simple-secure/pkg/sitehealth"
	"github.com/tendant/simple-secure/pkg/visibility"
)

const (
	// TokenParam carries the scoped token in query strings and JSON bodies.
	TokenParam = "_token"
	// TokenHeader is accepted when the query string has no token.
	TokenHeader = "X-Scoped-Token"
)

// Handle holds the services behind the HTTP surface.
type Handle struct {
	dispatcher  *command.Dispatcher
	sessions    *session.Manager
	checker     authz.Checker
	impersonate *impersonate.Service
	settings    *settings.Service
	visibility  *visibility.Service
	logs        *activitylog.Service
	health      *sitehealth.Service
	throttle    func(http.Handler) http.Handler
	basePath    string
}

type Option func(*Handle)

// WithThrottle wraps every state-changing route in mw.
func WithThrottle(mw func(http.Handler) http.Handler) Option {
	return func(h *Handle) { h.throttle = mw }
}

// WithBasePath prefixes every href handed to the UI. Use the path the
// routes are mounted under.
func WithBasePath(prefix string) Option {
	return func(h *Handle) { h.basePath = strings.TrimRight(prefix, "/") }
}

type Deps struct {
	Dispatcher  *command.Dispatcher
	Sessions    *session.Manager
	Checker     authz.Checker
	Impersonate *impersonate.Service
	Settings    *settings.Service
	Visibility  *visibility.Service
	Logs        *activitylog.Service
	Health      *sitehealth.Service
}

func NewHandle(deps Deps, opts ...Option) *Handle {
	h := &Handle{
		dispatcher:  deps.Dispatcher,
		sessions:    deps.Sessions,
		checker:     deps.Checker,
		impersonate: deps.Impersonate,
		settings:    deps.Settings,
		visibility:  deps.Visibility,
		logs:        deps.Logs,
		health:      deps.Health,
		throttle:    func(next http.Handler) http.Handler { return next },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes registers the API on r. Callers mount it behind the session
// verifier and client.AuthPrincipalMiddleware.
func (h *Handle) Routes(r chi.Router) {
	r.Use(client.RequireAuth)

	manage := client.RequireCapability(h.checker, authz.Manage)

	r.With(h.throttle).Post("/impersonate/back", h.EndImpersonation)
	r.With(h.throttle).Post("/impersonate/{userID}", h.StartImpersonation)
	r.Get("/impersonate/status", h.ImpersonationStatus)
	r.Get("/users/{userID}/actions", h.UserActions)

	r.With(manage).Get("/settings", h.GetSettings)
	r.With(h.throttle).Post("/settings", h.SaveSettings)

	r.Get("/policy", h.GetPolicy)

	r.With(manage).Get("/logs", h.ListLogs)
	r.With(manage).Get("/logs/events", h.ListLogEvents)
	r.With(h.throttle).Delete("/logs", h.ClearLogs)

	r.Get("/site-health", h.SiteHealth)
	r.Get("/actions", h.Actions)
}

func tokenFrom(r *http.Request) string {
	if t := r.URL.Query().Get(TokenParam); t != "" {
		return t
	}
	return r.Header.Get(TokenHeader)
}

func (h *Handle) request(w http.ResponseWriter, r *http.Request) command.Request {
	return command.Request{
		Actor:   client.GetPrincipal(r),
		Session: h.sessions.For(w, r),
		Token:   tokenFrom(r),
	}
}

// StartImpersonation handles POST /impersonate/{userID}.
func (h *Handle) StartImpersonation(w http.ResponseWriter, r *http.Request) {
	req := h.request(w, r)
	target, err := principal.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		// A malformed id reaches the service as a missing target.
		target = principal.None
	}
	req.Target = target

	res, err := h.dispatcher.Dispatch(r.Context(), command.StartImpersonation, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
}

// EndImpersonation handles POST /impersonate/back.
func (h *Handle) EndImpersonation(w http.ResponseWriter, r *http.Request) {
	res, err := h.dispatcher.Dispatch(r.Context(), command.EndImpersonation, h.request(w, r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.Redirect(w, r, res.Redirect, http.StatusSeeOther)
}

type StatusResponse struct {
	Impersonating bool                   `json:"impersonating"`
	OriginID      principal.ID           `json:"origin_id,omitempty"`
	Indicator     *impersonate.Indicator `json:"indicator,omitempty"`
}

// ImpersonationStatus handles GET /impersonate/status.
func (h *Handle) ImpersonationStatus(w http.ResponseWriter, r *http.Request) {
	me := client.GetPrincipal(r)
	indicator, err := h.impersonate.Indicator(r.Context(), me.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := StatusResponse{Impersonating: indicator != nil, Indicator: indicator}
	if indicator != nil {
		resp.OriginID = indicator.OriginID
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// Link is a ready-to-submit action for the UI.
type Link struct {
	Method    string    `json:"method"`
	Href      string    `json:"href"`
	Label     string    `json:"label,omitempty"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (h *Handle) link(method, path, label string, tok command.Token) *Link {
	q := url.Values{}
	q.Set(TokenParam, tok.Value)
	return &Link{Method: method, Href: h.basePath + path + "?" + q.Encode(), Label: label, Token: tok.Value, ExpiresAt: tok.ExpiresAt}
}

type UserActionsResponse struct {
	SwitchTo *Link `json:"switch_to,omitempty"`
}

// UserActions handles GET /users/{userID}/actions.
func (h *Handle) UserActions(w http.ResponseWriter, r *http.Request) {
	me := client.GetPrincipal(r)
	target, err := principal.ParseID(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, r, apperrors.InvalidInput("userID", err.Error()))
		return
	}

	offer, err := h.impersonate.CanOfferSwitch(r.Context(), me, target)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := UserActionsResponse{}
	if offer {
		tok, err := h.dispatcher.Mint(command.StartImpersonation, me.ID, command.Request{Target: target})
		if err != nil {
			writeError(w, r, err)
			return
		}
		resp.SwitchTo = h.link(http.MethodPost, "/impersonate/"+target.String(), "Switch To", tok)
	}
	writeJSON(w, r, http.StatusOK, resp)
}

type SettingsResponse struct {
	Settings      settings.Settings `json:"settings"`
	ExcludedUsers []string          `json:"excluded_users_list"`
}

// GetSettings handles GET /settings.
func (h *Handle) GetSettings(w http.ResponseWriter, r *http.Request) {
	current, err := h.settings.Get(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, SettingsResponse{
		Settings:      current,
		ExcludedUsers: settings.ParseExcludedUsers(current.ExcludedUsers),
	})
}

type saveSettingsRequest struct {
	Token string `json:"_token"`
	settings.Form
}

// SaveSettings handles POST /settings. The token may come in the body.
func (h *Handle) SaveSettings(w http.ResponseWriter, r *http.Request) {
	var body saveSettingsRequest
	if err := render.DecodeJSON(r.Body, &body); err != nil {
		writeError(w, r, apperrors.InvalidInput("body", err.Error()))
		return
	}

	req := h.request(w, r)
	if body.Token != "" {
		req.Token = body.Token
	}
	req.Settings = body.Form

	res, err := h.dispatcher.Dispatch(r.Context(), command.SaveSettings, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	saved, _ := res.Data.(settings.Settings)
	writeJSON(w, r, http.StatusOK, SettingsResponse{
		Settings:      saved,
		ExcludedUsers: settings.ParseExcludedUsers(saved.ExcludedUsers),
	})
}

type PolicyResponse struct {
	Policy  visibility.Policy `json:"policy"`
	Page    string            `json:"page,omitempty"`
	Blocked bool              `json:"blocked"`
	Message string            `json:"message,omitempty"`
}

// GetPolicy handles GET /policy?page=.
func (h *Handle) GetPolicy(w http.ResponseWriter, r *http.Request) {
	me := client.GetPrincipal(r)
	page := r.URL.Query().Get("page")

	if page == "" {
		policy, err := h.visibility.For(r.Context(), me)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, PolicyResponse{Policy: policy})
		return
	}

	policy, msg, blocked, err := h.visibility.CheckPage(r.Context(), me, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, PolicyResponse{Policy: policy, Page: page, Blocked: blocked, Message: msg})
}

// ListLogs handles GET /logs?severity=&event=&paged=.
func (h *Handle) ListLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("paged"))
	result, err := h.logs.List(r.Context(), activitylog.Query{
		Severity: q.Get("severity"),
		Event:    q.Get("event"),
		Page:     page,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ListLogEvents handles GET /logs/events.
func (h *Handle) ListLogEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.logs.Events(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string][]string{"events": events})
}

// ClearLogs handles DELETE /logs.
func (h *Handle) ClearLogs(w http.ResponseWriter, r *http.Request) {
	if _, err := h.dispatcher.Dispatch(r.Context(), command.ClearLogs, h.request(w, r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SiteHealth handles GET /site-health.
func (h *Handle) SiteHealth(w http.ResponseWriter, r *http.Request) {
	report, err := h.health.Report(r.Context(), client.GetPrincipal(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

type ActionsResponse struct {
	SaveSettings *Link `json:"save_settings,omitempty"`
	ClearLogs    *Link `json:"clear_logs,omitempty"`
	SwitchBack   *Link `json:"switch_back,omitempty"`
}

// Actions handles GET /actions: tokens for the caller's own commands.
func (h *Handle) Actions(w http.ResponseWriter, r *http.Request) {
	me := client.GetPrincipal(r)
	resp := ActionsResponse{}

	mint := func(name, method, path, label string) (*Link, error) {
		tok, err := h.dispatcher.Mint(name, me.ID, command.Request{})
		if err != nil {
			return nil, err
		}
		return h.link(method, path, label, tok), nil
	}

	var err error
	if h.checker.Can(me, authz.Manage) {
		if resp.SaveSettings, err = mint(command.SaveSettings, http.MethodPost, "/settings", "Save Changes"); err != nil {
			writeError(w, r, err)
			return
		}
		if resp.ClearLogs, err = mint(command.ClearLogs, http.MethodDelete, "/logs", "Clear Logs"); err != nil {
			writeError(w, r, err)
			return
		}
	}

	indicator, err := h.impersonate.Indicator(r.Context(), me.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// The target's own sessions cannot switch back.
	if indicator != nil && h.sessions.For(w, r).Origin() == indicator.OriginID {
		if resp.SwitchBack, err = mint(command.EndImpersonation, http.MethodPost, "/impersonate/back", indicator.Label); err != nil {
			writeError(w, r, err)
			return
		}
	}
	writeJSON(w, r, http.StatusOK, resp)
}
