package config

// RateLimitConfig contains throttling settings for state-changing routes.
type RateLimitConfig struct {
	Enabled bool `env:"RATELIMIT_ENABLED" env-default:"true"`

	// Per-IP rate limiting
	PerIPCapacity   int     `env:"RATELIMIT_PER_IP_CAPACITY" env-default:"60"`
	PerIPRefillRate float64 `env:"RATELIMIT_PER_IP_REFILL_RATE" env-default:"1"` // tokens per second

	// Per-principal rate limiting (for authenticated requests)
	PerUserCapacity   int     `env:"RATELIMIT_PER_USER_CAPACITY" env-default:"30"`
	PerUserRefillRate float64 `env:"RATELIMIT_PER_USER_REFILL_RATE" env-default:"0.5"`

	// IncludeHeaders controls whether rate limit headers are included in responses
	IncludeHeaders bool `env:"RATELIMIT_INCLUDE_HEADERS" env-default:"true"`

	// TrustProxy keys per-IP buckets on X-Forwarded-For / X-Real-IP. Enable
	// only behind a proxy that overwrites those headers.
	TrustProxy bool `env:"RATELIMIT_TRUST_PROXY" env-default:"false"`
}
