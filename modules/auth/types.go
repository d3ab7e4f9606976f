package auth

import (
	"time"

	"github.com/google/uuid"
)

// Role is the user's role inside their organization.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
	RoleOwner Role = "OWNER"
)

// User is an account holder. OrganizationID is uuid.Nil until the user
// creates or joins an organization.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	PasswordHash   string    `json:"-"`
	Name           string    `json:"name"`
	Role           Role      `json:"role"`
	OrganizationID uuid.UUID `json:"organization_id,omitzero"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// APIKey is a long-lived machine credential scoped to an organization.
// The secret value is returned exactly once at creation; afterwards only
// the prefix hint is shown.
type APIKey struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Name           string     `json:"name"`
	Value          string     `json:"-"`
	Hint           string     `json:"hint"`
	Active         bool       `json:"active"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// CredentialKind says which credential path authenticated a request.
type CredentialKind string

const (
	CredentialToken  CredentialKind = "token"
	CredentialAPIKey CredentialKind = "api_key"
)
