package organization_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apimeter/apimeter/modules/billing"
	"github.com/apimeter/apimeter/modules/organization"
)

func newService(t *testing.T) (*organization.Service, *billing.MemoryStore) {
	t.Helper()

	subs := billing.NewMemoryStore()
	store := organization.NewMemoryStore(subs)
	svc := organization.NewService(store, nil, nil)
	return svc, subs
}

func TestService_Create(t *testing.T) {
	t.Parallel()

	t.Run("provisions the free subscription", func(t *testing.T) {
		t.Parallel()

		svc, subs := newService(t)
		ctx := context.Background()

		org, err := svc.Create(ctx, "Acme Corp", "billing@acme.test", uuid.New())
		require.NoError(t, err)
		assert.Equal(t, "acme-corp", org.Slug)

		all, err := subs.ByOrganization(ctx, org.ID)
		require.NoError(t, err)
		require.Len(t, all, 1, "exactly one subscription row")

		sub := all[0]
		assert.Equal(t, billing.PlanFree, sub.Plan)
		assert.Equal(t, billing.StatusActive, sub.Status)
		assert.Equal(t, int64(1000), sub.MonthlyQuota)
		assert.Equal(t, int64(10), sub.RateLimit)
	})

	t.Run("slug collision gets a suffix", func(t *testing.T) {
		t.Parallel()

		svc, _ := newService(t)
		ctx := context.Background()

		first, err := svc.Create(ctx, "Acme", "a@acme.test", uuid.New())
		require.NoError(t, err)

		second, err := svc.Create(ctx, "Acme", "b@acme.test", uuid.New())
		require.NoError(t, err)

		assert.NotEqual(t, first.Slug, second.Slug)
		assert.Contains(t, second.Slug, "acme-")
	})

	t.Run("accented names fold to ascii slugs", func(t *testing.T) {
		t.Parallel()

		svc, _ := newService(t)
		org, err := svc.Create(context.Background(), "Café Müller GmbH", "", uuid.New())
		require.NoError(t, err)
		assert.Equal(t, "cafe-muller-gmbh", org.Slug)
	})

	t.Run("rejects empty and oversized names", func(t *testing.T) {
		t.Parallel()

		svc, _ := newService(t)
		ctx := context.Background()

		_, err := svc.Create(ctx, "   ", "", uuid.New())
		assert.ErrorIs(t, err, organization.ErrInvalidName)

		long := make([]byte, 121)
		for i := range long {
			long[i] = 'a'
		}
		_, err = svc.Create(ctx, string(long), "", uuid.New())
		assert.ErrorIs(t, err, organization.ErrInvalidName)
	})

	t.Run("calls the owner assigner", func(t *testing.T) {
		t.Parallel()

		subs := billing.NewMemoryStore()
		store := organization.NewMemoryStore(subs)

		var gotUser, gotOrg uuid.UUID
		svc := organization.NewService(store, func(_ context.Context, userID, orgID uuid.UUID) error {
			gotUser, gotOrg = userID, orgID
			return nil
		}, nil)

		ownerID := uuid.New()
		org, err := svc.Create(context.Background(), "Acme", "", ownerID)
		require.NoError(t, err)
		assert.Equal(t, ownerID, gotUser)
		assert.Equal(t, org.ID, gotOrg)
	})
}

func TestService_Rename(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t)
	ctx := context.Background()

	org, err := svc.Create(ctx, "Acme", "", uuid.New())
	require.NoError(t, err)

	renamed, err := svc.Rename(ctx, org.ID, "Acme International", "ops@acme.test")
	require.NoError(t, err)
	assert.Equal(t, "Acme International", renamed.Name)
	assert.Equal(t, "ops@acme.test", renamed.BillingEmail)
	assert.Equal(t, org.Slug, renamed.Slug, "slug must not change on rename")

	_, err = svc.Rename(ctx, uuid.New(), "Ghost", "")
	assert.ErrorIs(t, err, organization.ErrNotFound)
}
