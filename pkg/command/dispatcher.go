// Package command routes named state-changing operations through a single
// dispatcher that verifies a scoped token before any handler runs.
package command

import (
	"context"
	"log/slog"
	"sort"
	"time"

	apperrors "github.com/tendant/simple-secure/pkg/errors"
	"github.com/tendant/simple-secure/pkg/impersonate"
	"github.com/tendant/simple-secure/pkg/principal"
	"github.com/tendant/simple-secure/pkg/settings"
)

// Request carries everything a command handler may need.
type Request struct {
	Actor    principal.Principal
	Session  impersonate.Session
	Token    string
	Target   principal.ID
	Settings settings.Form
}

// Result is what a handler hands back to the transport.
type Result struct {
	Command  string      `json:"command"`
	Redirect string      `json:"redirect,omitempty"`
	Data     interface{} `json:"data,omitempty"`
}

type Handler func(ctx context.Context, req Request) (Result, error)

// Command binds a name to the token scope it requires and its handler.
type Command struct {
	Name   string
	Scope  func(req Request) string
	Handle Handler
}

// TokenService issues and verifies scoped tokens.
type TokenService interface {
	Issue(subject principal.ID, scope string) (string, time.Time, error)
	Verify(token string, subject principal.ID, scope string) error
}

// Observer is told the outcome of every dispatch.
type Observer interface {
	ObserveCommand(command, outcome string)
}

// Token is a minted scoped token for one command.
type Token struct {
	Command   string    `json:"command"`
	Scope     string    `json:"scope"`
	Value     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Dispatcher struct {
	tokens   TokenService
	observer Observer
	commands map[string]Command
}

type Option func(*Dispatcher)

func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

func NewDispatcher(tokens TokenService, opts ...Option) *Dispatcher {
	d := &Dispatcher{tokens: tokens, commands: make(map[string]Command)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register adds c, replacing any command with the same name.
func (d *Dispatcher) Register(c Command) {
	d.commands[c.Name] = c
}

// Names lists the registered commands in ascending order.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.commands))
	for name := range d.commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch resolves name, verifies req.Token against the command's scope and
// runs the handler. Nothing runs unless the token verifies.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, req Request) (Result, error) {
	res, err := d.dispatch(ctx, name, req)
	if d.observer != nil {
		outcome := "ok"
		if err != nil {
			outcome = string(apperrors.GetCode(err))
		}
		d.observer.ObserveCommand(name, outcome)
	}
	return res, err
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, req Request) (Result, error) {
	c, ok := d.commands[name]
	if !ok {
		return Result{}, apperrors.NotFound("command", name)
	}
	if req.Actor.ID.IsNone() {
		return Result{}, apperrors.Unauthorized("authentication required")
	}
	if err := d.tokens.Verify(req.Token, req.Actor.ID, c.Scope(req)); err != nil {
		slog.Warn("Rejected command token", "command", name, "actor_id", req.Actor.ID, "err", err)
		return Result{}, err
	}
	res, err := c.Handle(ctx, req)
	if err != nil {
		return Result{}, err
	}
	res.Command = name
	return res, nil
}

// Mint issues the token the actor needs to dispatch name with req.
func (d *Dispatcher) Mint(name string, actor principal.ID, req Request) (Token, error) {
	c, ok := d.commands[name]
	if !ok {
		return Token{}, apperrors.NotFound("command", name)
	}
	if actor.IsNone() {
		return Token{}, apperrors.Unauthorized("authentication required")
	}
	scope := c.Scope(req)
	value, exp, err := d.tokens.Issue(actor, scope)
	if err != nil {
		return Token{}, apperrors.InternalWrap(err, "failed to issue token")
	}
	return Token{Command: name, Scope: scope, Value: value, ExpiresAt: exp}, nil
}
