package impersonate

import (
	"context"
	"errors"
	"time"

	"github.com/tendant/simple-secure/pkg/principal"
)

// ErrRecordExists is returned by Begin when the principal already has a record.
var ErrRecordExists = errors.New("impersonation record already exists")

// Record marks PrincipalID as impersonated by SwitchedFromID since SwitchedAt.
type Record struct {
	PrincipalID    principal.ID `json:"principal_id"`
	SwitchedFromID principal.ID `json:"switched_from_id"`
	SwitchedAt     time.Time    `json:"switched_at"`
}

// Repository stores impersonation records.
type Repository interface {
	// Get returns the record for id and whether it exists.
	Get(ctx context.Context, id principal.ID) (Record, bool, error)
	// Begin stores rec unless a record for rec.PrincipalID exists.
	Begin(ctx context.Context, rec Record) error
	// Clear deletes the record for id and returns what was deleted.
	Clear(ctx context.Context, id principal.ID) (Record, bool, error)
}
