package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apimeter/apimeter/pkg/pg"
)

// PGStore is the Postgres-backed Store. A partial unique index on
// (organization_id) WHERE status = 'ACTIVE' enforces the single-active
// invariant at write time.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by the given pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const subscriptionColumns = `id, organization_id, plan, status, monthly_quota, rate_limit,
	external_id, customer_id, price_id, cancel_at_period_end,
	current_period_start, current_period_end, created_at, updated_at`

// Create implements Store.
func (s *PGStore) Create(ctx context.Context, sub Subscription) error {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (
			id, organization_id, plan, status, monthly_quota, rate_limit,
			external_id, customer_id, price_id, cancel_at_period_end,
			current_period_start, current_period_end
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		sub.ID, sub.OrganizationID, sub.Plan, sub.Status, sub.MonthlyQuota, sub.RateLimit,
		sub.ExternalID, sub.CustomerID, sub.PriceID, sub.CancelAtPeriodEnd,
		nullableTime(sub.CurrentPeriodStart), nullableTime(sub.CurrentPeriodEnd),
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return ErrActiveExists
		}
		return fmt.Errorf("insert subscription: %w", err)
	}
	return nil
}

// ActiveByOrganization implements Store.
func (s *PGStore) ActiveByOrganization(ctx context.Context, orgID uuid.UUID) (Subscription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE organization_id = $1 AND status = 'ACTIVE'
		ORDER BY created_at DESC
		LIMIT 1`, orgID)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, ErrSubscriptionNotFound
		}
		return Subscription{}, fmt.Errorf("query active subscription: %w", err)
	}
	return sub, nil
}

// ByOrganization implements Store.
func (s *PGStore) ByOrganization(ctx context.Context, orgID uuid.UUID) ([]Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE organization_id = $1
		ORDER BY created_at DESC`, orgID)
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var out []Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

// UpdateActiveByOrganization implements Store.
func (s *PGStore) UpdateActiveByOrganization(ctx context.Context, orgID uuid.UUID, patch SubscriptionPatch) (Subscription, error) {
	set, args := buildPatch(patch, 2)
	row := s.pool.QueryRow(ctx, `
		UPDATE subscriptions SET `+set+`
		WHERE id = (
			SELECT id FROM subscriptions
			WHERE organization_id = $1 AND status = 'ACTIVE'
			ORDER BY created_at DESC
			LIMIT 1
		)
		RETURNING `+subscriptionColumns,
		append([]any{orgID}, args...)...)

	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Subscription{}, ErrSubscriptionNotFound
		}
		return Subscription{}, fmt.Errorf("update active subscription: %w", err)
	}
	return sub, nil
}

// UpdateByExternalID implements Store. The updated_at comparison makes
// stale out-of-order events a no-op without a read-modify-write cycle;
// force drops the comparison for transitions that must always apply.
func (s *PGStore) UpdateByExternalID(ctx context.Context, externalID string, patch SubscriptionPatch, occurredAt time.Time, force bool) (bool, error) {
	if externalID == "" {
		return false, ErrSubscriptionNotFound
	}

	set, args := buildPatch(patch, 4)
	tag, err := s.pool.Exec(ctx, `
		UPDATE subscriptions SET `+set+`
		WHERE external_id = $1 AND ($2 OR updated_at <= $3)`,
		append([]any{externalID, force, occurredAt}, args...)...)
	if err != nil {
		return false, fmt.Errorf("update subscription by external id: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Distinguish a stale event from a subscription we have never seen.
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE external_id = $1)`,
		externalID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check subscription existence: %w", err)
	}
	if !exists {
		return false, ErrSubscriptionNotFound
	}
	return false, nil
}

func buildPatch(patch SubscriptionPatch, startArg int) (string, []any) {
	set := "updated_at = now()"
	var args []any
	add := func(column string, v any) {
		args = append(args, v)
		set += fmt.Sprintf(", %s = $%d", column, startArg+len(args)-1)
	}

	if patch.Plan != nil {
		add("plan", *patch.Plan)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.MonthlyQuota != nil {
		add("monthly_quota", *patch.MonthlyQuota)
	}
	if patch.RateLimit != nil {
		add("rate_limit", *patch.RateLimit)
	}
	if patch.ExternalID != nil {
		add("external_id", *patch.ExternalID)
	}
	if patch.CustomerID != nil {
		add("customer_id", *patch.CustomerID)
	}
	if patch.PriceID != nil {
		add("price_id", *patch.PriceID)
	}
	if patch.CancelAtPeriodEnd != nil {
		add("cancel_at_period_end", *patch.CancelAtPeriodEnd)
	}
	if patch.CurrentPeriodStart != nil {
		add("current_period_start", *patch.CurrentPeriodStart)
	}
	if patch.CurrentPeriodEnd != nil {
		add("current_period_end", *patch.CurrentPeriodEnd)
	}
	return set, args
}

func scanSubscription(row pgx.Row) (Subscription, error) {
	var sub Subscription
	var periodStart, periodEnd *time.Time
	err := row.Scan(
		&sub.ID, &sub.OrganizationID, &sub.Plan, &sub.Status, &sub.MonthlyQuota, &sub.RateLimit,
		&sub.ExternalID, &sub.CustomerID, &sub.PriceID, &sub.CancelAtPeriodEnd,
		&periodStart, &periodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return Subscription{}, err
	}
	if periodStart != nil {
		sub.CurrentPeriodStart = *periodStart
	}
	if periodEnd != nil {
		sub.CurrentPeriodEnd = *periodEnd
	}
	return sub, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
