package settings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-secure/pkg/activitylog"
	"github.com/tendant/simple-secure/pkg/authz"
	apperrors "github.com/tendant/simple-secure/pkg/errors"
	"github.com/tendant/simple-secure/pkg/principal"
)

var (
	admin  = principal.Principal{ID: 1, Username: "admin", Email: "admin@example.com", Roles: []string{"admin"}}
	viewer = principal.Principal{ID: 2, Username: "viewer", Roles: []string{"viewer"}}
)

func newTestService(store OptionStore) (*Service, *activitylog.Service) {
	checker := authz.NewRoleChecker([]string{"admin"}, nil)
	logs := activitylog.NewService(activitylog.NewInMemoryRepository(), checker)
	return NewService(store, checker, logs), logs
}

func boolPtr(b bool) *bool { return &b }

func TestParseExcludedUsers(t *testing.T) {
	assert.Equal(t, []string{"ade", "madeneat"}, ParseExcludedUsers("Ade, madeneat"))
	assert.Equal(t, []string{"a", "b@x.io", "42"}, ParseExcludedUsers(" A \r\nB@X.io\r, a ,\n\n42"))
	assert.Empty(t, ParseExcludedUsers(" , \n "))
}

func TestIsExcluded(t *testing.T) {
	list := ParseExcludedUsers("Ade, madeneat, ops@example.com, 7")

	assert.True(t, IsExcluded(list, principal.Principal{ID: 3, Username: "ADE"}))
	assert.True(t, IsExcluded(list, principal.Principal{ID: 4, Username: "x", Email: "Ops@Example.com"}))
	assert.True(t, IsExcluded(list, principal.Principal{ID: 7, Username: "someone"}))
	assert.False(t, IsExcluded(list, principal.Principal{ID: 8, Username: "bob"}))
	assert.False(t, IsExcluded(list, principal.Principal{Username: "ade"}))
}

func TestGetReturnsDefaultsWhenUnsaved(t *testing.T) {
	svc, _ := newTestService(NewInMemoryOptionStore())
	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Defaults(), got)
}

func TestGetMergesOverDefaults(t *testing.T) {
	store := NewInMemoryOptionStore()
	require.NoError(t, store.Put(context.Background(), OptionName, []byte(`{"hide_editor": false}`)))
	svc, _ := newTestService(store)

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, got.HideEditor)
	assert.True(t, got.HideUpdates)
	assert.Equal(t, "ade, madeneat", got.ExcludedUsers)
}

func TestSaveRequiresManage(t *testing.T) {
	svc, _ := newTestService(NewInMemoryOptionStore())
	_, err := svc.Save(context.Background(), viewer, Defaults())
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeForbidden))
}

func TestUpdateAppliesPartialFormAndLogs(t *testing.T) {
	ctx := context.Background()
	svc, logs := newTestService(NewInMemoryOptionStore())

	excluded := "ops"
	saved, err := svc.Update(ctx, admin, Form{HideUpdates: boolPtr(false), ExcludedUsers: &excluded})
	require.NoError(t, err)
	assert.False(t, saved.HideUpdates)
	assert.True(t, saved.HideEditor)
	assert.Equal(t, "ops", saved.ExcludedUsers)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved, got)

	ok, err := svc.IsExcluded(ctx, principal.Principal{ID: 9, Username: "OPS"})
	require.NoError(t, err)
	assert.True(t, ok)

	page, err := logs.List(ctx, activitylog.Query{})
	require.NoError(t, err)
	require.Len(t, page.Entries, 1)
	assert.Equal(t, EventSettingsChanged, page.Entries[0].Event)
	assert.Equal(t, false, page.Entries[0].Context["hide_updates"])
}

func TestFileOptionStorePersists(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewFileOptionStore(dir)
	require.NoError(t, err)
	svc, _ := newTestService(store)
	next := Defaults()
	next.HidePluginMenu = true
	_, err = svc.Save(ctx, admin, next)
	require.NoError(t, err)

	reopened, err := NewFileOptionStore(dir)
	require.NoError(t, err)
	svc2, _ := newTestService(reopened)
	got, err := svc2.Get(ctx)
	require.NoError(t, err)
	assert.True(t, got.HidePluginMenu)

	assert.Error(t, reopened.Put(ctx, "broken", []byte("{")))
}
