package auth_test

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apimeter/apimeter/modules/auth"
	"github.com/apimeter/apimeter/pkg/jwt"
)

func newAuthService(t *testing.T) (*auth.Service, *auth.MemoryStorage) {
	t.Helper()

	storage := auth.NewMemoryStorage()
	tokens, err := jwt.New([]byte("test-signing-key-32-bytes-long!!"), "apimeter-test")
	require.NoError(t, err)
	return auth.NewService(storage, tokens, nil), storage
}

func TestService_Register(t *testing.T) {
	t.Parallel()

	t.Run("creates a user without an organization", func(t *testing.T) {
		t.Parallel()

		svc, _ := newAuthService(t)
		user, err := svc.Register(context.Background(), "Dev@Example.com", "correct-horse", "Dev")
		require.NoError(t, err)

		assert.Equal(t, "dev@example.com", user.Email, "email is normalized")
		assert.Equal(t, auth.RoleUser, user.Role)
		assert.Equal(t, uuid.Nil, user.OrganizationID)
		assert.NotEqual(t, "correct-horse", user.PasswordHash)
	})

	t.Run("rejects duplicate emails", func(t *testing.T) {
		t.Parallel()

		svc, _ := newAuthService(t)
		ctx := context.Background()

		_, err := svc.Register(ctx, "dev@example.com", "correct-horse", "")
		require.NoError(t, err)

		_, err = svc.Register(ctx, "DEV@example.com", "other-password", "")
		assert.ErrorIs(t, err, auth.ErrEmailTaken)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		t.Parallel()

		svc, _ := newAuthService(t)
		ctx := context.Background()

		_, err := svc.Register(ctx, "not-an-email", "correct-horse", "")
		assert.ErrorIs(t, err, auth.ErrInvalidEmail)

		_, err = svc.Register(ctx, "dev@example.com", "short", "")
		assert.ErrorIs(t, err, auth.ErrWeakPassword)
	})
}

func TestService_Authenticate(t *testing.T) {
	t.Parallel()

	svc, _ := newAuthService(t)
	ctx := context.Background()
	_, err := svc.Register(ctx, "dev@example.com", "correct-horse", "")
	require.NoError(t, err)

	t.Run("issues a token for valid credentials", func(t *testing.T) {
		t.Parallel()

		user, token, err := svc.Authenticate(ctx, "dev@example.com", "correct-horse")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, "dev@example.com", user.Email)
	})

	t.Run("wrong password and unknown email return the same error", func(t *testing.T) {
		t.Parallel()

		_, _, errWrongPassword := svc.Authenticate(ctx, "dev@example.com", "wrong")
		_, _, errUnknownEmail := svc.Authenticate(ctx, "ghost@example.com", "correct-horse")

		assert.ErrorIs(t, errWrongPassword, auth.ErrInvalidCredentials)
		assert.ErrorIs(t, errUnknownEmail, auth.ErrInvalidCredentials)
		assert.Equal(t, errWrongPassword.Error(), errUnknownEmail.Error())
	})
}

func TestService_APIKeys(t *testing.T) {
	t.Parallel()

	register := func(t *testing.T, svc *auth.Service, storage *auth.MemoryStorage, withOrg bool) auth.User {
		t.Helper()
		user, err := svc.Register(context.Background(), "dev@example.com", "correct-horse", "")
		require.NoError(t, err)
		if withOrg {
			require.NoError(t, storage.AssignOrganization(context.Background(), user.ID, uuid.New()))
			user, err = storage.UserByID(context.Background(), user.ID)
			require.NoError(t, err)
		}
		return user
	}

	t.Run("requires an organization", func(t *testing.T) {
		t.Parallel()

		svc, storage := newAuthService(t)
		user := register(t, svc, storage, false)

		_, err := svc.GenerateAPIKey(context.Background(), user.ID, "ci")
		assert.ErrorIs(t, err, auth.ErrOrganizationMissing)
	})

	t.Run("generated key has the expected shape", func(t *testing.T) {
		t.Parallel()

		svc, storage := newAuthService(t)
		user := register(t, svc, storage, true)

		key, err := svc.GenerateAPIKey(context.Background(), user.ID, "ci")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(key.Value, "sk_"))
		assert.Len(t, key.Value, 3+64)
		assert.Equal(t, user.OrganizationID, key.OrganizationID)
		assert.True(t, key.Active)
		assert.True(t, strings.HasPrefix(key.Value, strings.TrimSuffix(key.Hint, "...")))
	})

	t.Run("list blanks the secret value", func(t *testing.T) {
		t.Parallel()

		svc, storage := newAuthService(t)
		user := register(t, svc, storage, true)
		_, err := svc.GenerateAPIKey(context.Background(), user.ID, "ci")
		require.NoError(t, err)

		keys, err := svc.ListAPIKeys(context.Background(), user.ID)
		require.NoError(t, err)
		require.Len(t, keys, 1)
		assert.Empty(t, keys[0].Value)
		assert.NotEmpty(t, keys[0].Hint)
	})

	t.Run("revoked key is indistinguishable from a nonexistent one", func(t *testing.T) {
		t.Parallel()

		svc, storage := newAuthService(t)
		ctx := context.Background()
		user := register(t, svc, storage, true)

		key, err := svc.GenerateAPIKey(ctx, user.ID, "ci")
		require.NoError(t, err)
		require.NoError(t, svc.RevokeAPIKey(ctx, user.ID, key.ID))

		_, errRevoked := storage.APIKeyByValue(ctx, key.Value)
		_, errMissing := storage.APIKeyByValue(ctx, "sk_"+strings.Repeat("0", 64))
		assert.ErrorIs(t, errRevoked, auth.ErrAPIKeyNotFound)
		assert.ErrorIs(t, errMissing, auth.ErrAPIKeyNotFound)
		assert.Equal(t, errRevoked, errMissing)
	})

	t.Run("cannot revoke another user's key", func(t *testing.T) {
		t.Parallel()

		svc, storage := newAuthService(t)
		ctx := context.Background()
		user := register(t, svc, storage, true)

		key, err := svc.GenerateAPIKey(ctx, user.ID, "ci")
		require.NoError(t, err)

		err = svc.RevokeAPIKey(ctx, uuid.New(), key.ID)
		assert.ErrorIs(t, err, auth.ErrAPIKeyNotFound)

		_, err = storage.APIKeyByValue(ctx, key.Value)
		assert.NoError(t, err, "key must remain active")
	})
}
