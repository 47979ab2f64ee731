package config

import "time"

// SessionConfig controls the signed cookie that carries the active identity.
type SessionConfig struct {
	Secret       string        `env:"SESSION_SECRET" env-default:"very-secure-session-secret"`
	CookieName   string        `env:"SESSION_COOKIE_NAME" env-default:"secure_session"`
	CookieSecure bool          `env:"SESSION_COOKIE_SECURE" env-default:"false"`
	TTL          time.Duration `env:"SESSION_TTL" env-default:"12h"`
}

// ScopedTokenConfig controls anti-forgery tokens.
type ScopedTokenConfig struct {
	Secret string        `env:"SCOPED_TOKEN_SECRET" env-default:"very-secure-token-secret"`
	TTL    time.Duration `env:"SCOPED_TOKEN_TTL" env-default:"15m"`
}
