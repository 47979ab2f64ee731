package main

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tendant/chi-demo/app"

	"github.com/tendant/simple-secure/pkg/activitylog"
	"github.com/tendant/simple-secure/pkg/router"
)

func newServeCmd() *cobra.Command {
	var skipMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), skipMigrate)
		},
	}
	cmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply pending migrations on startup (postgres only)")
	return cmd
}

func runServe(ctx context.Context, skipMigrate bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	svc, err := buildServices(ctx, cfg, !skipMigrate)
	if err != nil {
		return err
	}
	defer svc.close()

	scheduler := activitylog.NewScheduler(svc.logs, cfg.LogPruneSchedule, slog.Default())
	scheduler.OnPrune(svc.metrics.ObservePruned)
	if err := scheduler.Start(); err != nil {
		return err
	}
	defer scheduler.Stop()

	go svc.limiter.Run(ctx)

	server := app.NewApp(app.WithAppConfig(app.AppConfig{Server: app.Server{Port: cfg.HTTPPort()}}))
	app.RoutesHealthz(server.R)
	router.SetupRoutes(server.R, cfg.APIPrefix, svc.routerConfig())

	slog.Info(strings.Repeat("=", 60))
	slog.Info("Secure service ready",
		"port", cfg.HTTPPort(),
		"prefix", cfg.APIPrefix,
		"persistence", cfg.PersistenceType,
		"rate_limit", cfg.RateLimit.Enabled)
	slog.Info(strings.Repeat("=", 60))

	server.Run()
	return nil
}
