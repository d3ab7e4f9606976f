package organization

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apimeter/apimeter/modules/billing"
	"github.com/apimeter/apimeter/pkg/pg"
)

// PGStore is the Postgres-backed Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Create implements Store. The organization and its FREE subscription
// are inserted in one transaction so a failure on either side leaves
// nothing behind.
func (s *PGStore) Create(ctx context.Context, org Organization, freeSub billing.Subscription) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	_, err = tx.Exec(ctx, `
		INSERT INTO organizations (id, name, slug, billing_email, owner_id)
		VALUES ($1, $2, $3, $4, $5)`,
		org.ID, org.Name, org.Slug, org.BillingEmail, org.OwnerID)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrSlugTaken
		}
		return fmt.Errorf("insert organization: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO subscriptions (id, organization_id, plan, status, monthly_quota, rate_limit)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		freeSub.ID, freeSub.OrganizationID, freeSub.Plan, freeSub.Status,
		freeSub.MonthlyQuota, freeSub.RateLimit)
	if err != nil {
		return fmt.Errorf("insert free subscription: %w", err)
	}

	return tx.Commit(ctx)
}

// ByID implements Store.
func (s *PGStore) ByID(ctx context.Context, id uuid.UUID) (Organization, error) {
	return s.scanOne(s.pool.QueryRow(ctx, `
		SELECT id, name, slug, billing_email, owner_id, created_at, updated_at
		FROM organizations WHERE id = $1`, id))
}

// BySlug implements Store.
func (s *PGStore) BySlug(ctx context.Context, slug string) (Organization, error) {
	return s.scanOne(s.pool.QueryRow(ctx, `
		SELECT id, name, slug, billing_email, owner_id, created_at, updated_at
		FROM organizations WHERE slug = $1`, slug))
}

// Update implements Store.
func (s *PGStore) Update(ctx context.Context, org Organization) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE organizations
		SET name = $2, billing_email = $3, updated_at = now()
		WHERE id = $1`,
		org.ID, org.Name, org.BillingEmail)
	if err != nil {
		return fmt.Errorf("update organization: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) scanOne(row pgx.Row) (Organization, error) {
	var org Organization
	err := row.Scan(&org.ID, &org.Name, &org.Slug, &org.BillingEmail,
		&org.OwnerID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Organization{}, ErrNotFound
		}
		return Organization{}, fmt.Errorf("scan organization: %w", err)
	}
	return org, nil
}
