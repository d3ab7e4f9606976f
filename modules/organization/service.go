package organization

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/apimeter/apimeter/modules/billing"
	"github.com/apimeter/apimeter/pkg/logger"
	"github.com/apimeter/apimeter/pkg/slug"
)

const (
	maxSlugLength  = 48
	slugRetries    = 3
	slugSuffixSize = 6
)

// OwnerAssigner binds a newly created organization to its owning user.
// The auth module provides the implementation.
type OwnerAssigner func(ctx context.Context, userID, orgID uuid.UUID) error

// Service owns organization lifecycle.
type Service struct {
	store       Store
	assignOwner OwnerAssigner
	log         *slog.Logger
}

// NewService wires an organization Service.
func NewService(store Store, assignOwner OwnerAssigner, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:       store,
		assignOwner: assignOwner,
		log:         log.With(logger.Component("organization")),
	}
}

// Create provisions an organization for a user: a unique slug, the
// starting FREE subscription, and the owner binding. Every organization
// leaves this function with exactly one ACTIVE subscription.
func (s *Service) Create(ctx context.Context, name, billingEmail string, ownerID uuid.UUID) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 120 {
		return Organization{}, ErrInvalidName
	}

	org := Organization{
		ID:           uuid.New(),
		Name:         name,
		Slug:         slug.Make(name, slug.MaxLength(maxSlugLength)),
		BillingEmail: billingEmail,
		OwnerID:      ownerID,
	}
	if org.Slug == "" {
		return Organization{}, ErrInvalidName
	}

	err := s.store.Create(ctx, org, billing.NewFreeSubscription(org.ID))
	for retry := 0; errors.Is(err, ErrSlugTaken) && retry < slugRetries; retry++ {
		org.Slug = slug.Make(name, slug.MaxLength(maxSlugLength), slug.WithSuffix(slugSuffixSize))
		err = s.store.Create(ctx, org, billing.NewFreeSubscription(org.ID))
	}
	if err != nil {
		return Organization{}, fmt.Errorf("create organization: %w", err)
	}

	if s.assignOwner != nil {
		if err := s.assignOwner(ctx, ownerID, org.ID); err != nil {
			return Organization{}, fmt.Errorf("assign owner: %w", err)
		}
	}

	s.log.InfoContext(ctx, "organization created",
		logger.OrgID(org.ID.String()),
		logger.UserID(ownerID.String()),
		slog.String("slug", org.Slug))
	return org, nil
}

// Get returns the organization by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (Organization, error) {
	return s.store.ByID(ctx, id)
}

// GetBySlug returns the organization by slug.
func (s *Service) GetBySlug(ctx context.Context, slugValue string) (Organization, error) {
	return s.store.BySlug(ctx, slugValue)
}

// Rename updates the display name and billing email. The slug is stable
// for life so external references never break.
func (s *Service) Rename(ctx context.Context, id uuid.UUID, name, billingEmail string) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > 120 {
		return Organization{}, ErrInvalidName
	}

	org, err := s.store.ByID(ctx, id)
	if err != nil {
		return Organization{}, err
	}

	org.Name = name
	if billingEmail != "" {
		org.BillingEmail = billingEmail
	}
	if err := s.store.Update(ctx, org); err != nil {
		return Organization{}, fmt.Errorf("update organization: %w", err)
	}
	return org, nil
}

// Directory adapts the service to the billing module's lookup contract.
func (s *Service) Directory() func(ctx context.Context, orgID uuid.UUID) (string, string, error) {
	return func(ctx context.Context, orgID uuid.UUID) (string, string, error) {
		org, err := s.store.ByID(ctx, orgID)
		if err != nil {
			return "", "", err
		}
		return org.Name, org.BillingEmail, nil
	}
}
