// Package principal is the identity store: accounts that can sign in, be
// impersonated, or appear in the activity log.
//
// The in-memory repository is seeded from a YAML file; the Postgres repository
// reads the principals table created by pkg/migrations.
package principal
