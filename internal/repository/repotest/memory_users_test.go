package repotest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-gateway/internal/domain"
	"github.com/spec-kit/auth-gateway/internal/repository"
)

func TestMemoryUsersPersistCredentials(t *testing.T) {
	users := NewMemoryUsers(&domain.User{ID: "u1", Username: "alice"})
	ctx := context.Background()

	affected, err := users.PersistCredentials(ctx, "u1", domain.CredentialUpdate{})
	require.NoError(t, err)
	assert.Zero(t, affected)

	affected, err = users.PersistCredentials(ctx, "u1", domain.CredentialUpdate{AccessToken: "a"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	stored, ok := users.Get("u1")
	require.True(t, ok)
	require.NotNil(t, stored.AccessToken)
	assert.Equal(t, "a", *stored.AccessToken)
	assert.Nil(t, stored.RefreshToken)
	assert.Equal(t, 1, users.Persists())

	affected, err = users.PersistCredentials(ctx, "ghost", domain.CredentialUpdate{AccessToken: "a"})
	require.NoError(t, err)
	assert.Zero(t, affected)
}

func TestMemoryUsersCreateRejectsDuplicate(t *testing.T) {
	users := NewMemoryUsers(&domain.User{ID: "u1", Username: "alice"})

	err := users.Create(context.Background(), &domain.User{ID: "u2", Username: "alice"})
	assert.ErrorIs(t, err, repository.ErrUsernameTaken)

	taken, err := users.UsernameExists(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, taken)
}
