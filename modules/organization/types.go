package organization

import (
	"time"

	"github.com/google/uuid"
)

// Organization is the tenant boundary. Subscriptions, API keys, and
// entitlements all hang off an organization, never off a user.
type Organization struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	BillingEmail string    `json:"billing_email"`
	OwnerID      uuid.UUID `json:"owner_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
