// Package config provides the configuration structs and helpers for simple-secure.
//
// The binary reads Config once with cleanenv; every field carries `env` and
// `env-default` tags so the service starts with sensible development defaults.
//
//	var cfg config.Config
//	if err := cleanenv.ReadEnv(&cfg); err != nil {
//		...
//	}
//	if err := cfg.Validate(); err != nil {
//		...
//	}
//
// Validation helpers return *ValidationError values that CollectErrors folds
// into a single ValidationErrors error.
package config
