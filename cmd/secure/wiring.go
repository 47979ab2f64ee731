package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/tendant/simple-secure/pkg/activitylog"
	"github.com/tendant/simple-secure/pkg/api"
	"github.com/tendant/simple-secure/pkg/authz"
	"github.com/tendant/simple-secure/pkg/command"
	"github.com/tendant/simple-secure/pkg/config"
	"github.com/tendant/simple-secure/pkg/impersonate"
	"github.com/tendant/simple-secure/pkg/metrics"
	"github.com/tendant/simple-secure/pkg/migrations"
	"github.com/tendant/simple-secure/pkg/principal"
	"github.com/tendant/simple-secure/pkg/ratelimit"
	"github.com/tendant/simple-secure/pkg/router"
	"github.com/tendant/simple-secure/pkg/scopedtoken"
	"github.com/tendant/simple-secure/pkg/session"
	"github.com/tendant/simple-secure/pkg/settings"
	"github.com/tendant/simple-secure/pkg/sitehealth"
	"github.com/tendant/simple-secure/pkg/visibility"
)

type services struct {
	cfg  config.Config
	pool *pgxpool.Pool

	principals  *principal.Service
	checker     *authz.RoleChecker
	sessions    *session.Manager
	logs        *activitylog.Service
	settings    *settings.Service
	impersonate *impersonate.Service
	visibility  *visibility.Service
	health      *sitehealth.Service
	dispatcher  *command.Dispatcher
	metrics     *metrics.Metrics
	limiter     *ratelimit.Middleware
}

func openPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	pool, err := dbutils.NewDbPool(ctx, cfg.ToDbConfig())
	if err != nil {
		return nil, fmt.Errorf("connect to database %s@%s:%d/%s: %w", cfg.User, cfg.Host, cfg.Port, cfg.Database, err)
	}
	return pool, nil
}

// buildServices wires every service for cfg. On Postgres, migrate applies
// pending migrations before anything touches the schema. Call close when done.
func buildServices(ctx context.Context, cfg config.Config, migrate bool) (*services, error) {
	s := &services{cfg: cfg, metrics: metrics.New()}

	if cfg.PersistenceType == config.PersistencePostgres {
		pool, err := openPool(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		s.pool = pool
		slog.Info("Database connected", "host", cfg.Database.Host, "database", cfg.Database.Database)

		if migrate {
			if err := migrations.UpPool(ctx, pool); err != nil {
				s.close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			slog.Info("Migrations applied")
		}
	}

	if err := s.wire(ctx); err != nil {
		s.close()
		return nil, err
	}
	return s, nil
}

func (s *services) wire(ctx context.Context) error {
	cfg := s.cfg

	principalRepo, err := principal.NewRepository(cfg.PersistenceType, principal.RepositoryConfig{DB: s.db()})
	if err != nil {
		return fmt.Errorf("principal repository: %w", err)
	}
	s.principals = principal.NewService(principalRepo)
	if cfg.PrincipalsSeedFile != "" {
		seed, err := principal.LoadSeedFile(cfg.PrincipalsSeedFile)
		if err != nil {
			return err
		}
		if err := s.principals.Seed(ctx, seed); err != nil {
			return err
		}
		slog.Info("Seeded principals", "count", len(seed), "file", cfg.PrincipalsSeedFile)
	}

	s.checker = authz.NewRoleCheckerFromConfig(cfg.Roles)
	s.sessions = session.NewManager(cfg.Session)

	logRepo, err := activitylog.NewRepository(cfg.PersistenceType, activitylog.RepositoryConfig{DB: s.db(), DataDir: cfg.DataDir})
	if err != nil {
		return fmt.Errorf("activity log repository: %w", err)
	}
	s.logs = activitylog.NewService(logRepo, s.checker, activitylog.WithRetention(cfg.LogRetention()))

	store, err := settings.NewOptionStore(cfg.PersistenceType, settings.RepositoryConfig{DB: s.db(), DataDir: cfg.DataDir})
	if err != nil {
		return fmt.Errorf("settings store: %w", err)
	}
	s.settings = settings.NewService(store, s.checker, s.logs)

	impRepo, err := impersonate.NewRepository(cfg.PersistenceType, impersonate.RepositoryConfig{DB: s.db(), DataDir: cfg.DataDir})
	if err != nil {
		return fmt.Errorf("impersonation repository: %w", err)
	}
	s.impersonate = impersonate.NewService(impRepo, s.principals, s.checker, s.settings,
		impersonate.WithActivityLog(s.logs),
		impersonate.WithObserver(s.metrics),
	)

	s.visibility = visibility.NewService(s.settings, s.impersonate, s.logs)
	s.health = sitehealth.NewService(sitehealth.NewFileProvider(cfg.InventoryFile), s.checker)

	tokens := scopedtoken.New(cfg.ScopedToken.Secret, cfg.ScopedToken.TTL)
	s.dispatcher = command.NewDispatcher(tokens, command.WithObserver(s.metrics))
	command.RegisterDefaults(s.dispatcher, command.Services{
		Impersonate: s.impersonate,
		Settings:    s.settings,
		Logs:        s.logs,
	})

	s.limiter = ratelimit.NewMiddleware(cfg.RateLimit)
	return nil
}

// db returns the pool. Factories only read it for the postgres backend.
func (s *services) db() *pgxpool.Pool {
	return s.pool
}

func (s *services) routerConfig() router.Config {
	handle := api.NewHandle(api.Deps{
		Dispatcher:  s.dispatcher,
		Sessions:    s.sessions,
		Checker:     s.checker,
		Impersonate: s.impersonate,
		Settings:    s.settings,
		Visibility:  s.visibility,
		Logs:        s.logs,
		Health:      s.health,
	}, api.WithThrottle(s.limiter.Handler), api.WithBasePath(s.cfg.APIPrefix))

	return router.Config{
		API:         handle,
		Sessions:    s.sessions,
		Directory:   s.principals,
		Metrics:     s.metrics,
		CORSOrigins: s.cfg.AllowedOrigins(),
		Ready:       s.ready,
	}
}

func (s *services) ready(ctx context.Context) error {
	if s.pool != nil {
		if err := s.pool.Ping(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if _, err := s.settings.Get(ctx); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	return nil
}

func (s *services) close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
