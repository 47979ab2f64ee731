package settings

import "context"

// OptionStore persists named JSON documents.
type OptionStore interface {
	// Get returns the stored document and whether it exists.
	Get(ctx context.Context, name string) ([]byte, bool, error)
	Put(ctx context.Context, name string, value []byte) error
}
