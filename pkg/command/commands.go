package command

import (
	"context"

	"github.com/tendant/simple-secure/pkg/activitylog"
	"github.com/tendant/simple-secure/pkg/impersonate"
	"github.com/tendant/simple-secure/pkg/scopedtoken"
	"github.com/tendant/simple-secure/pkg/settings"
)

const (
	StartImpersonation = "start_impersonation"
	EndImpersonation   = "end_impersonation"
	SaveSettings       = "save_settings"
	ClearLogs          = "clear_logs"
)

func fixedScope(scope string) func(Request) string {
	return func(Request) string { return scope }
}

// Services are the domain services the built-in commands call.
type Services struct {
	Impersonate *impersonate.Service
	Settings    *settings.Service
	Logs        *activitylog.Service
}

// RegisterDefaults wires the built-in commands to svc.
func RegisterDefaults(d *Dispatcher, svc Services) {
	d.Register(Command{
		Name:  StartImpersonation,
		Scope: func(req Request) string { return scopedtoken.StartScope(req.Target) },
		Handle: func(ctx context.Context, req Request) (Result, error) {
			res, err := svc.Impersonate.Start(ctx, req.Session, req.Target)
			if err != nil {
				return Result{}, err
			}
			return Result{Redirect: res.Redirect, Data: res}, nil
		},
	})
	d.Register(Command{
		Name:  EndImpersonation,
		Scope: fixedScope(scopedtoken.ScopeEndImpersonation),
		Handle: func(ctx context.Context, req Request) (Result, error) {
			res, err := svc.Impersonate.End(ctx, req.Session)
			if err != nil {
				return Result{}, err
			}
			return Result{Redirect: res.Redirect, Data: res}, nil
		},
	})
	d.Register(Command{
		Name:  SaveSettings,
		Scope: fixedScope(scopedtoken.ScopeSaveSettings),
		Handle: func(ctx context.Context, req Request) (Result, error) {
			saved, err := svc.Settings.Update(ctx, req.Actor, req.Settings)
			if err != nil {
				return Result{}, err
			}
			return Result{Data: saved}, nil
		},
	})
	d.Register(Command{
		Name:  ClearLogs,
		Scope: fixedScope(scopedtoken.ScopeClearLogs),
		Handle: func(ctx context.Context, req Request) (Result, error) {
			if err := svc.Logs.Clear(ctx, req.Actor); err != nil {
				return Result{}, err
			}
			return Result{}, nil
		},
	})
}
