package principal

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID(t *testing.T) {
	id, err := ParseID(" 42 ")
	require.NoError(t, err)
	assert.Equal(t, ID(42), id)

	for _, bad := range []string{"", "0", "-3", "abc"} {
		_, err := ParseID(bad)
		assert.Error(t, err, bad)
	}
}

func TestServiceGet(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	svc := NewService(repo)
	require.NoError(t, svc.Seed(ctx, []Principal{{ID: 1, Username: "admin", Roles: []string{"admin"}}}))

	p, err := svc.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Username)

	_, err = svc.Get(ctx, 2)
	assert.ErrorIs(t, err, ErrPrincipalNotFound)

	_, err = svc.Get(ctx, None)
	assert.ErrorIs(t, err, ErrPrincipalNotFound)

	repo.Delete(ctx, 1)
	_, err = svc.Get(ctx, 1)
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestSeedRejectsIncompletePrincipal(t *testing.T) {
	svc := NewService(NewInMemoryRepository())
	assert.Error(t, svc.Seed(context.Background(), []Principal{{ID: 3}}))
}

func TestInMemoryRepositoryReturnsCopies(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemoryRepository()
	_, err := repo.Save(ctx, Principal{ID: 5, Username: "bob", Roles: []string{"editor"}})
	require.NoError(t, err)

	p, err := repo.GetByID(ctx, 5)
	require.NoError(t, err)
	p.Roles[0] = "admin"

	again, err := repo.GetByID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"editor"}, again.Roles)
	assert.False(t, again.CreatedAt.IsZero())
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "principals.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
principals:
  - id: 1
    username: admin
    email: admin@example.com
    roles: [admin]
  - id: 42
    username: ade
    display_name: Ade
`), 0o644))

	principals, err := LoadSeedFile(path)
	require.NoError(t, err)
	require.Len(t, principals, 2)
	assert.Equal(t, ID(42), principals[1].ID)
	assert.Equal(t, "Ade", principals[1].DisplayName)
	assert.Equal(t, "admin", principals[0].Username)
}

func TestNewRepository(t *testing.T) {
	_, err := NewRepository("postgres", RepositoryConfig{})
	assert.Error(t, err)

	repo, err := NewRepository("memory", RepositoryConfig{})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryRepository{}, repo)

	_, err = NewRepository("redis", RepositoryConfig{})
	assert.Error(t, err)
}
