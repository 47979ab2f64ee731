package config

import (
	"strconv"
	"time"
)

// Persistence backends understood by the repository factories.
const (
	PersistenceMemory   = "memory"
	PersistenceFile     = "file"
	PersistencePostgres = "postgres"
)

// Config is the full service configuration, read once by the binary with cleanenv.
type Config struct {
	Port      string `env:"SECURE_PORT" env-default:"4000"`
	LogFormat string `env:"LOG_FORMAT" env-default:"text"`
	LogLevel  string `env:"LOG_LEVEL" env-default:"info"`

	APIPrefix   string `env:"SECURE_API_PREFIX" env-default:"/secure"`
	CORSOrigins string `env:"SECURE_CORS_ORIGINS" env-default:""`

	PersistenceType string `env:"SECURE_PERSISTENCE_TYPE" env-default:"memory"`
	DataDir         string `env:"SECURE_DATA_DIR" env-default:"./data"`

	PrincipalsSeedFile string `env:"SECURE_PRINCIPALS_FILE" env-default:""`
	InventoryFile      string `env:"SECURE_INVENTORY_FILE" env-default:"./inventory.yaml"`

	LogRetentionDays int    `env:"LOG_RETENTION_DAYS" env-default:"30"`
	LogPruneSchedule string `env:"LOG_PRUNE_SCHEDULE" env-default:"@daily"`

	Database    DatabaseConfig
	Session     SessionConfig
	ScopedToken ScopedTokenConfig
	Roles       RolesConfig
	RateLimit   RateLimitConfig
}

// LogRetention returns the activity log retention window.
func (c Config) LogRetention() time.Duration {
	return time.Duration(c.LogRetentionDays) * 24 * time.Hour
}

// HTTPPort returns Port as a number. Call Validate first.
func (c Config) HTTPPort() int {
	port, _ := strconv.Atoi(c.Port)
	return port
}

// AllowedOrigins returns the configured CORS origins.
func (c Config) AllowedOrigins() []string {
	return SplitList(c.CORSOrigins)
}

// Validate checks the configuration for values the service cannot start with.
func (c Config) Validate() error {
	return Validate(
		func() ValidationErrors {
			return CollectErrors(
				RequireNonEmpty("SECURE_PORT", c.Port),
				RequirePortString("SECURE_PORT", c.Port),
				RequirePrefix("SECURE_API_PREFIX", c.APIPrefix),
				RequireOneOf("LOG_FORMAT", c.LogFormat, []string{"text", "json"}),
				RequireOneOf("SECURE_PERSISTENCE_TYPE", c.PersistenceType,
					[]string{PersistenceMemory, PersistenceFile, PersistencePostgres}),
				RequirePositive("LOG_RETENTION_DAYS", c.LogRetentionDays),
				RequireNonEmpty("LOG_PRUNE_SCHEDULE", c.LogPruneSchedule),
			)
		},
		func() ValidationErrors {
			return CollectErrors(
				RequireMinLength("SESSION_SECRET", c.Session.Secret, 16),
				RequireNonEmpty("SESSION_COOKIE_NAME", c.Session.CookieName),
				RequirePositiveDuration("SESSION_TTL", c.Session.TTL),
				RequireMinLength("SCOPED_TOKEN_SECRET", c.ScopedToken.Secret, 16),
				RequirePositiveDuration("SCOPED_TOKEN_TTL", c.ScopedToken.TTL),
			)
		},
		func() ValidationErrors {
			if c.PersistenceType == PersistenceFile {
				return CollectErrors(RequireNonEmpty("SECURE_DATA_DIR", c.DataDir))
			}
			if c.PersistenceType != PersistencePostgres {
				return nil
			}
			return CollectErrors(
				RequireNonEmpty("SECURE_PG_HOST", c.Database.Host),
				RequireValidPort("SECURE_PG_PORT", c.Database.Port),
				RequireNonEmpty("SECURE_PG_DATABASE", c.Database.Database),
				RequireNonEmpty("SECURE_PG_USER", c.Database.User),
			)
		},
		func() ValidationErrors {
			if !c.RateLimit.Enabled {
				return nil
			}
			return CollectErrors(
				RequirePositive("RATELIMIT_PER_IP_CAPACITY", c.RateLimit.PerIPCapacity),
				RequirePositive("RATELIMIT_PER_USER_CAPACITY", c.RateLimit.PerUserCapacity),
			)
		},
	)
}
