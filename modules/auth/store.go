package auth

import (
	"context"

	"github.com/google/uuid"
)

// Storage persists users and API keys.
type Storage interface {
	// CreateUser inserts a user. A duplicate email fails with
	// ErrEmailTaken.
	CreateUser(ctx context.Context, user User) error

	// UserByEmail returns the user or ErrUserNotFound.
	UserByEmail(ctx context.Context, email string) (User, error)

	// UserByID returns the user or ErrUserNotFound.
	UserByID(ctx context.Context, id uuid.UUID) (User, error)

	// AssignOrganization binds the user to an organization and promotes
	// them to OWNER.
	AssignOrganization(ctx context.Context, userID, orgID uuid.UUID) error

	// UsersByOrganization lists the organization's members.
	UsersByOrganization(ctx context.Context, orgID uuid.UUID) ([]User, error)

	// CreateAPIKey inserts an API key.
	CreateAPIKey(ctx context.Context, key APIKey) error

	// APIKeyByValue returns the active key with the given secret value.
	// A revoked key and a key that never existed both return
	// ErrAPIKeyNotFound; the two cases are indistinguishable to callers.
	APIKeyByValue(ctx context.Context, value string) (APIKey, error)

	// APIKeysByUser lists the user's keys, newest first.
	APIKeysByUser(ctx context.Context, userID uuid.UUID) ([]APIKey, error)

	// DeactivateAPIKey revokes the key if it belongs to the user.
	DeactivateAPIKey(ctx context.Context, userID, keyID uuid.UUID) error

	// TouchAPIKey records a use of the key. Best effort.
	TouchAPIKey(ctx context.Context, keyID uuid.UUID) error
}
