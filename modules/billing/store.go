package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SubscriptionPatch carries absolute field values for a partial update.
// Nil fields are left untouched. Patches carry no deltas, so applying
// the same patch twice leaves the row unchanged.
type SubscriptionPatch struct {
	Plan               *Plan
	Status             *Status
	MonthlyQuota       *int64
	RateLimit          *int64
	ExternalID         *string
	CustomerID         *string
	PriceID            *string
	CancelAtPeriodEnd  *bool
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
}

// Store persists subscriptions.
type Store interface {
	// Create inserts a subscription. Inserting a second ACTIVE row for the
	// same organization fails with ErrActiveExists.
	Create(ctx context.Context, sub Subscription) error

	// ActiveByOrganization returns the most recently created ACTIVE
	// subscription for the organization, or ErrSubscriptionNotFound.
	ActiveByOrganization(ctx context.Context, orgID uuid.UUID) (Subscription, error)

	// ByOrganization returns all subscriptions for the organization,
	// newest first.
	ByOrganization(ctx context.Context, orgID uuid.UUID) ([]Subscription, error)

	// UpdateActiveByOrganization patches the organization's ACTIVE
	// subscription. Returns ErrSubscriptionNotFound when there is none.
	UpdateActiveByOrganization(ctx context.Context, orgID uuid.UUID, patch SubscriptionPatch) (Subscription, error)

	// UpdateByExternalID patches every subscription carrying the given
	// provider ID, but only rows whose UpdatedAt is not after occurredAt;
	// a fully stale match is reported via applied=false with a nil error.
	// force skips the staleness check so terminal transitions apply
	// regardless of delivery order. A missing external ID returns
	// ErrSubscriptionNotFound.
	UpdateByExternalID(ctx context.Context, externalID string, patch SubscriptionPatch, occurredAt time.Time, force bool) (applied bool, err error)
}
