package activitylog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-secure/pkg/migrations/pgtest"
)

func TestPostgresRepository(t *testing.T) {
	pool := pgtest.Setup(t)
	ctx := context.Background()
	repo := NewPostgresRepository(pool)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	_, err := repo.Insert(ctx, Entry{CreatedAt: now.Add(-40 * 24 * time.Hour), Severity: SeverityInfo, Event: "old"})
	require.NoError(t, err)
	saved, err := repo.Insert(ctx, Entry{
		CreatedAt: now,
		Severity:  SeverityWarning,
		Event:     "user_switched",
		Message:   "switched",
		Context:   map[string]interface{}{"to_user_id": 42},
		UserID:    1,
	})
	require.NoError(t, err)
	assert.NotZero(t, saved.ID)

	entries, err := repo.Find(ctx, Filter{Severity: SeverityWarning}, 20, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, float64(42), entries[0].Context["to_user_id"])
	assert.EqualValues(t, 1, entries[0].UserID)
	assert.Zero(t, entries[0].SiteID)

	n, err := repo.Count(ctx, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	events, err := repo.DistinctEvents(ctx, 200)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "user_switched"}, events)

	deleted, err := repo.DeleteBefore(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	require.NoError(t, repo.Truncate(ctx))
	n, err = repo.Count(ctx, Filter{})
	require.NoError(t, err)
	assert.Zero(t, n)
}
