package billing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apimeter/apimeter/modules/billing"
)

func TestMemoryStore_Create(t *testing.T) {
	t.Parallel()

	t.Run("rejects a second active subscription", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		ctx := context.Background()
		orgID := uuid.New()

		require.NoError(t, store.Create(ctx, billing.NewFreeSubscription(orgID)))

		err := store.Create(ctx, billing.Subscription{
			OrganizationID: orgID,
			Plan:           billing.PlanStarter,
			Status:         billing.StatusActive,
		})
		assert.ErrorIs(t, err, billing.ErrActiveExists)
	})

	t.Run("allows a new active row after the old one is canceled", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		ctx := context.Background()
		orgID := uuid.New()

		require.NoError(t, store.Create(ctx, billing.Subscription{
			OrganizationID: orgID,
			Plan:           billing.PlanStarter,
			Status:         billing.StatusCanceled,
		}))
		assert.NoError(t, store.Create(ctx, billing.NewFreeSubscription(orgID)))
	})
}

func TestMemoryStore_ActiveByOrganization(t *testing.T) {
	t.Parallel()

	store := billing.NewMemoryStore()
	ctx := context.Background()
	orgID := uuid.New()

	_, err := store.ActiveByOrganization(ctx, orgID)
	assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)

	old := billing.Subscription{
		OrganizationID: orgID,
		Plan:           billing.PlanStarter,
		Status:         billing.StatusCanceled,
		CreatedAt:      time.Now().Add(-time.Hour),
	}
	current := billing.Subscription{
		OrganizationID: orgID,
		Plan:           billing.PlanProfessional,
		Status:         billing.StatusActive,
		CreatedAt:      time.Now(),
	}
	require.NoError(t, store.Create(ctx, old))
	require.NoError(t, store.Create(ctx, current))

	got, err := store.ActiveByOrganization(ctx, orgID)
	require.NoError(t, err)
	assert.Equal(t, billing.PlanProfessional, got.Plan)
}

func TestMemoryStore_UpdateByExternalID(t *testing.T) {
	t.Parallel()

	t.Run("applies fresh patches and bumps updated_at", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		ctx := context.Background()
		orgID := uuid.New()
		require.NoError(t, store.Create(ctx, billing.Subscription{
			OrganizationID: orgID,
			Plan:           billing.PlanStarter,
			Status:         billing.StatusActive,
			ExternalID:     "sub_1",
			UpdatedAt:      time.Now().Add(-time.Hour),
		}))

		status := billing.StatusPastDue
		applied, err := store.UpdateByExternalID(ctx, "sub_1", billing.SubscriptionPatch{Status: &status}, time.Now(), false)
		require.NoError(t, err)
		assert.True(t, applied)

		subs, err := store.ByOrganization(ctx, orgID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusPastDue, subs[0].Status)
	})

	t.Run("reports stale events without error", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, billing.Subscription{
			OrganizationID: uuid.New(),
			Plan:           billing.PlanStarter,
			Status:         billing.StatusActive,
			ExternalID:     "sub_1",
			UpdatedAt:      time.Now(),
		}))

		status := billing.StatusCanceled
		applied, err := store.UpdateByExternalID(ctx, "sub_1", billing.SubscriptionPatch{Status: &status}, time.Now().Add(-time.Hour), false)
		require.NoError(t, err)
		assert.False(t, applied)
	})

	t.Run("force bypasses the staleness check", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		ctx := context.Background()
		orgID := uuid.New()
		require.NoError(t, store.Create(ctx, billing.Subscription{
			OrganizationID: orgID,
			Plan:           billing.PlanStarter,
			Status:         billing.StatusActive,
			ExternalID:     "sub_1",
			UpdatedAt:      time.Now(),
		}))

		status := billing.StatusCanceled
		applied, err := store.UpdateByExternalID(ctx, "sub_1", billing.SubscriptionPatch{Status: &status}, time.Now().Add(-time.Hour), true)
		require.NoError(t, err)
		assert.True(t, applied)

		subs, err := store.ByOrganization(ctx, orgID)
		require.NoError(t, err)
		assert.Equal(t, billing.StatusCanceled, subs[0].Status)
	})

	t.Run("patches every row carrying the external id", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		ctx := context.Background()
		firstOrg := uuid.New()
		secondOrg := uuid.New()
		for _, orgID := range []uuid.UUID{firstOrg, secondOrg} {
			require.NoError(t, store.Create(ctx, billing.Subscription{
				OrganizationID: orgID,
				Plan:           billing.PlanStarter,
				Status:         billing.StatusActive,
				ExternalID:     "sub_shared",
				UpdatedAt:      time.Now().Add(-time.Hour),
			}))
		}

		status := billing.StatusPastDue
		applied, err := store.UpdateByExternalID(ctx, "sub_shared", billing.SubscriptionPatch{Status: &status}, time.Now(), false)
		require.NoError(t, err)
		assert.True(t, applied)

		for _, orgID := range []uuid.UUID{firstOrg, secondOrg} {
			subs, err := store.ByOrganization(ctx, orgID)
			require.NoError(t, err)
			require.Len(t, subs, 1)
			assert.Equal(t, billing.StatusPastDue, subs[0].Status)
		}
	})

	t.Run("unknown external id", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		_, err := store.UpdateByExternalID(context.Background(), "sub_missing", billing.SubscriptionPatch{}, time.Now(), false)
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
	})

	t.Run("empty external id never matches", func(t *testing.T) {
		t.Parallel()

		store := billing.NewMemoryStore()
		ctx := context.Background()
		require.NoError(t, store.Create(ctx, billing.NewFreeSubscription(uuid.New())))

		_, err := store.UpdateByExternalID(ctx, "", billing.SubscriptionPatch{}, time.Now(), false)
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
	})
}
