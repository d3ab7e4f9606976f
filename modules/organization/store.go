package organization

import (
	"context"

	"github.com/google/uuid"

	"github.com/apimeter/apimeter/modules/billing"
)

// Store persists organizations.
type Store interface {
	// Create inserts the organization and its starting FREE subscription
	// in one atomic step. A duplicate slug fails with ErrSlugTaken and
	// must leave no subscription behind.
	Create(ctx context.Context, org Organization, freeSub billing.Subscription) error

	// ByID returns the organization or ErrNotFound.
	ByID(ctx context.Context, id uuid.UUID) (Organization, error)

	// BySlug returns the organization or ErrNotFound.
	BySlug(ctx context.Context, slug string) (Organization, error)

	// Update persists name and billing email changes.
	Update(ctx context.Context, org Organization) error
}
