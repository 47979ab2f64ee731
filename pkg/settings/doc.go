// Package settings stores the feature flags and the excluded users list as a
// single JSON document in an option store.
//
// Keys missing from the saved document fall back to Defaults, so older
// documents keep working when new flags are added.
package settings
