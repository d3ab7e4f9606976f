package billing_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/apimeter/apimeter/modules/billing"
)

// stubGateway is a Gateway that parses unsigned JSON events and records
// provider calls.
type stubGateway struct {
	customers     int
	cancelled     []string
	checkoutCalls []billing.CheckoutParams
	canonical     map[string]*billing.ProviderSubscription
	parseErr      error
}

func (g *stubGateway) CreateCustomer(_ context.Context, _, _ string) (string, error) {
	g.customers++
	return "ctm_test", nil
}

func (g *stubGateway) CreateCheckout(_ context.Context, params billing.CheckoutParams) (*billing.Checkout, error) {
	g.checkoutCalls = append(g.checkoutCalls, params)
	return &billing.Checkout{URL: "https://pay.example/session", SessionID: "txn_1"}, nil
}

func (g *stubGateway) RetrieveSubscription(_ context.Context, externalID string) (*billing.ProviderSubscription, error) {
	if sub, ok := g.canonical[externalID]; ok {
		return sub, nil
	}
	return nil, billing.ErrSubscriptionNotFound
}

func (g *stubGateway) CancelAtPeriodEnd(_ context.Context, externalID string) error {
	g.cancelled = append(g.cancelled, externalID)
	return nil
}

func (g *stubGateway) ParseWebhook(_ context.Context, payload []byte, _ string) (*billing.Event, error) {
	if g.parseErr != nil {
		return nil, g.parseErr
	}
	var event billing.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, billing.ErrInvalidWebhook
	}
	return &event, nil
}

func newService(t *testing.T) (*billing.Service, *billing.MemoryStore, *stubGateway) {
	t.Helper()

	store := billing.NewMemoryStore()
	gateway := &stubGateway{}
	orgs := func(_ context.Context, _ uuid.UUID) (string, string, error) {
		return "Acme", "owner@acme.test", nil
	}
	svc := billing.NewService(store, gateway, billing.DefaultCatalog(), orgs, nil)
	return svc, store, gateway
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return raw
}

func TestService_Snapshot(t *testing.T) {
	t.Parallel()

	t.Run("falls back to free tier with no subscription", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newService(t)
		orgID := uuid.New()

		ent, err := svc.Snapshot(context.Background(), orgID)
		require.NoError(t, err)
		assert.Equal(t, billing.PlanFree, ent.Plan)
		assert.Equal(t, int64(1000), ent.MonthlyQuota)
		assert.Equal(t, int64(10), ent.RateLimit)
	})

	t.Run("reflects the active subscription", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newService(t)
		orgID := uuid.New()
		require.NoError(t, store.Create(context.Background(), billing.Subscription{
			OrganizationID: orgID,
			Plan:           billing.PlanProfessional,
			Status:         billing.StatusActive,
			MonthlyQuota:   100000,
			RateLimit:      200,
		}))

		ent, err := svc.Snapshot(context.Background(), orgID)
		require.NoError(t, err)
		assert.Equal(t, billing.PlanProfessional, ent.Plan)
		assert.Equal(t, int64(100000), ent.MonthlyQuota)
		assert.Equal(t, int64(200), ent.RateLimit)
	})
}

func TestService_HandleWebhook_CheckoutCompleted(t *testing.T) {
	t.Parallel()

	newCheckoutEvent := func(orgID uuid.UUID) []byte {
		return []byte(`{
			"Kind": "checkout_completed",
			"OccurredAt": "2026-08-01T10:00:00Z",
			"SubscriptionID": "sub_123",
			"CustomerID": "ctm_123",
			"OrganizationID": "` + orgID.String() + `",
			"PriceID": "price_starter",
			"PeriodStart": "2026-08-01T00:00:00Z",
			"PeriodEnd": "2026-09-01T00:00:00Z"
		}`)
	}

	t.Run("promotes the free subscription to the purchased plan", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newService(t)
		ctx := context.Background()
		orgID := uuid.New()
		require.NoError(t, store.Create(ctx, billing.NewFreeSubscription(orgID)))

		require.NoError(t, svc.HandleWebhook(ctx, newCheckoutEvent(orgID), "sig"))

		sub, err := store.ActiveByOrganization(ctx, orgID)
		require.NoError(t, err)
		assert.Equal(t, billing.PlanStarter, sub.Plan)
		assert.Equal(t, billing.StatusActive, sub.Status)
		assert.Equal(t, int64(10000), sub.MonthlyQuota)
		assert.Equal(t, int64(50), sub.RateLimit)
		assert.Equal(t, "sub_123", sub.ExternalID)
		assert.Equal(t, "ctm_123", sub.CustomerID)
	})

	t.Run("redelivery converges to the same state", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newService(t)
		ctx := context.Background()
		orgID := uuid.New()
		require.NoError(t, store.Create(ctx, billing.NewFreeSubscription(orgID)))
		payload := newCheckoutEvent(orgID)

		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))
		first, err := store.ActiveByOrganization(ctx, orgID)
		require.NoError(t, err)

		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))
		second, err := store.ActiveByOrganization(ctx, orgID)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, first.Plan, second.Plan)
		assert.Equal(t, first.MonthlyQuota, second.MonthlyQuota)
		assert.Equal(t, first.RateLimit, second.RateLimit)
		assert.Equal(t, first.ExternalID, second.ExternalID)

		subs, err := store.ByOrganization(ctx, orgID)
		require.NoError(t, err)
		assert.Len(t, subs, 1)
	})

	t.Run("creates a subscription when no active row exists", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newService(t)
		ctx := context.Background()
		orgID := uuid.New()

		require.NoError(t, svc.HandleWebhook(ctx, newCheckoutEvent(orgID), "sig"))

		sub, err := store.ActiveByOrganization(ctx, orgID)
		require.NoError(t, err)
		assert.Equal(t, billing.PlanStarter, sub.Plan)
	})

	t.Run("missing fields are backfilled from the canonical object", func(t *testing.T) {
		t.Parallel()

		svc, store, gateway := newService(t)
		ctx := context.Background()
		orgID := uuid.New()
		require.NoError(t, store.Create(ctx, billing.NewFreeSubscription(orgID)))

		periodEnd := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
		gateway.canonical = map[string]*billing.ProviderSubscription{
			"sub_42": {
				ExternalID: "sub_42",
				CustomerID: "ctm_42",
				PriceID:    "price_professional",
				Status:     billing.StatusActive,
				PeriodEnd:  periodEnd,
			},
		}

		payload := mustJSON(t, map[string]any{
			"Kind":           "checkout_completed",
			"OccurredAt":     time.Now(),
			"SubscriptionID": "sub_42",
			"OrganizationID": orgID,
		})
		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))

		sub, err := store.ActiveByOrganization(ctx, orgID)
		require.NoError(t, err)
		assert.Equal(t, billing.PlanProfessional, sub.Plan)
		assert.Equal(t, "ctm_42", sub.CustomerID)
		assert.True(t, periodEnd.Equal(sub.CurrentPeriodEnd))
	})

	t.Run("unknown price falls back to free limits", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newService(t)
		ctx := context.Background()
		orgID := uuid.New()
		require.NoError(t, store.Create(ctx, billing.NewFreeSubscription(orgID)))

		payload := mustJSON(t, map[string]any{
			"Kind":           "checkout_completed",
			"OccurredAt":     time.Now(),
			"SubscriptionID": "sub_999",
			"OrganizationID": orgID,
			"PriceID":        "price_unlisted",
		})
		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))

		sub, err := store.ActiveByOrganization(ctx, orgID)
		require.NoError(t, err)
		assert.Equal(t, billing.PlanFree, sub.Plan)
		assert.Equal(t, int64(1000), sub.MonthlyQuota)
	})
}

func TestService_HandleWebhook_SubscriptionUpdated(t *testing.T) {
	t.Parallel()

	seed := func(t *testing.T, store *billing.MemoryStore, orgID uuid.UUID) {
		t.Helper()
		require.NoError(t, store.Create(context.Background(), billing.Subscription{
			OrganizationID: orgID,
			Plan:           billing.PlanStarter,
			Status:         billing.StatusActive,
			MonthlyQuota:   10000,
			RateLimit:      50,
			ExternalID:     "sub_123",
			UpdatedAt:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
			CreatedAt:      time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		}))
	}

	t.Run("applies plan change with fresh event", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newService(t)
		ctx := context.Background()
		orgID := uuid.New()
		seed(t, store, orgID)

		payload := mustJSON(t, map[string]any{
			"Kind":           "subscription_updated",
			"OccurredAt":     time.Now(),
			"SubscriptionID": "sub_123",
			"PriceID":        "price_professional",
			"Status":         "ACTIVE",
		})
		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))

		sub, err := store.ActiveByOrganization(ctx, orgID)
		require.NoError(t, err)
		assert.Equal(t, billing.PlanProfessional, sub.Plan)
		assert.Equal(t, int64(100000), sub.MonthlyQuota)
		assert.Equal(t, int64(200), sub.RateLimit)
	})

	t.Run("discards events older than the row", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newService(t)
		ctx := context.Background()
		orgID := uuid.New()
		seed(t, store, orgID)

		payload := mustJSON(t, map[string]any{
			"Kind":           "subscription_updated",
			"OccurredAt":     time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			"SubscriptionID": "sub_123",
			"PriceID":        "price_enterprise",
		})
		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))

		sub, err := store.ActiveByOrganization(ctx, orgID)
		require.NoError(t, err)
		assert.Equal(t, billing.PlanStarter, sub.Plan, "stale event must not change the plan")
	})

	t.Run("update for unknown subscription is a no-op", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newService(t)
		payload := mustJSON(t, map[string]any{
			"Kind":           "subscription_updated",
			"OccurredAt":     time.Now(),
			"SubscriptionID": "sub_never_seen",
			"PriceID":        "price_starter",
		})
		assert.NoError(t, svc.HandleWebhook(context.Background(), payload, "sig"))
	})
}

func TestService_HandleWebhook_TerminalEvents(t *testing.T) {
	t.Parallel()

	t.Run("deletion cancels the subscription", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newService(t)
		ctx := context.Background()
		orgID := uuid.New()
		require.NoError(t, store.Create(ctx, billing.Subscription{
			OrganizationID: orgID,
			Plan:           billing.PlanStarter,
			Status:         billing.StatusActive,
			MonthlyQuota:   10000,
			RateLimit:      50,
			ExternalID:     "sub_123",
		}))

		payload := mustJSON(t, map[string]any{
			"Kind":           "subscription_deleted",
			"OccurredAt":     time.Now().Add(-30 * time.Second),
			"SubscriptionID": "sub_123",
		})
		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))

		_, err := store.ActiveByOrganization(ctx, orgID)
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)

		subs, err := store.ByOrganization(ctx, orgID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, billing.StatusCanceled, subs[0].Status)
	})

	t.Run("deletion with no matching subscription is a no-op", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newService(t)
		payload := mustJSON(t, map[string]any{
			"Kind":           "subscription_deleted",
			"OccurredAt":     time.Now(),
			"SubscriptionID": "sub_never_seen",
		})
		assert.NoError(t, svc.HandleWebhook(context.Background(), payload, "sig"))
	})

	t.Run("payment failure marks the subscription past due", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newService(t)
		ctx := context.Background()
		orgID := uuid.New()
		require.NoError(t, store.Create(ctx, billing.Subscription{
			OrganizationID: orgID,
			Plan:           billing.PlanStarter,
			Status:         billing.StatusActive,
			MonthlyQuota:   10000,
			RateLimit:      50,
			ExternalID:     "sub_123",
		}))

		payload := mustJSON(t, map[string]any{
			"Kind":           "payment_failed",
			"OccurredAt":     time.Now(),
			"SubscriptionID": "sub_123",
		})
		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))

		subs, err := store.ByOrganization(ctx, orgID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, billing.StatusPastDue, subs[0].Status)
	})

	t.Run("payment failure applies even when the event timestamp trails the row", func(t *testing.T) {
		t.Parallel()

		svc, store, _ := newService(t)
		ctx := context.Background()
		orgID := uuid.New()
		require.NoError(t, store.Create(ctx, billing.Subscription{
			OrganizationID: orgID,
			Plan:           billing.PlanStarter,
			Status:         billing.StatusActive,
			MonthlyQuota:   10000,
			RateLimit:      50,
			ExternalID:     "sub_123",
		}))

		// The row's updated_at is stamped with local time on every write,
		// so the provider's occurred_at can legitimately be earlier. The
		// dunning transition must still go through.
		payload := mustJSON(t, map[string]any{
			"Kind":           "payment_failed",
			"OccurredAt":     time.Now().Add(-30 * time.Second),
			"SubscriptionID": "sub_123",
		})
		require.NoError(t, svc.HandleWebhook(ctx, payload, "sig"))

		subs, err := store.ByOrganization(ctx, orgID)
		require.NoError(t, err)
		require.Len(t, subs, 1)
		assert.Equal(t, billing.StatusPastDue, subs[0].Status)
	})

	t.Run("unhandled event kinds are acknowledged", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newService(t)
		payload := mustJSON(t, map[string]any{
			"Kind":       "customer.updated",
			"OccurredAt": time.Now(),
		})
		assert.NoError(t, svc.HandleWebhook(context.Background(), payload, "sig"))
	})
}

func TestService_Cancel(t *testing.T) {
	t.Parallel()

	t.Run("schedules cancellation and keeps the row active", func(t *testing.T) {
		t.Parallel()

		svc, store, gateway := newService(t)
		ctx := context.Background()
		orgID := uuid.New()
		require.NoError(t, store.Create(ctx, billing.Subscription{
			OrganizationID: orgID,
			Plan:           billing.PlanStarter,
			Status:         billing.StatusActive,
			MonthlyQuota:   10000,
			RateLimit:      50,
			ExternalID:     "sub_123",
		}))

		sub, err := svc.Cancel(ctx, orgID)
		require.NoError(t, err)
		assert.True(t, sub.CancelAtPeriodEnd)
		assert.Equal(t, billing.StatusActive, sub.Status)
		assert.Equal(t, []string{"sub_123"}, gateway.cancelled)
	})

	t.Run("free subscription cannot be cancelled", func(t *testing.T) {
		t.Parallel()

		svc, store, gateway := newService(t)
		ctx := context.Background()
		orgID := uuid.New()
		require.NoError(t, store.Create(ctx, billing.NewFreeSubscription(orgID)))

		_, err := svc.Cancel(ctx, orgID)
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
		assert.Empty(t, gateway.cancelled)
	})

	t.Run("no subscription at all", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newService(t)
		_, err := svc.Cancel(context.Background(), uuid.New())
		assert.ErrorIs(t, err, billing.ErrSubscriptionNotFound)
	})
}

func TestService_CreateCheckout(t *testing.T) {
	t.Parallel()

	t.Run("creates a customer once and passes org metadata", func(t *testing.T) {
		t.Parallel()

		svc, store, gateway := newService(t)
		ctx := context.Background()
		orgID := uuid.New()
		require.NoError(t, store.Create(ctx, billing.NewFreeSubscription(orgID)))

		checkout, err := svc.CreateCheckout(ctx, orgID, "price_starter", "https://app.example/done")
		require.NoError(t, err)
		assert.NotEmpty(t, checkout.URL)
		assert.Equal(t, 1, gateway.customers)

		require.Len(t, gateway.checkoutCalls, 1)
		assert.Equal(t, orgID.String(), gateway.checkoutCalls[0].OrganizationID)

		// Second checkout reuses the stored customer.
		_, err = svc.CreateCheckout(ctx, orgID, "price_professional", "")
		require.NoError(t, err)
		assert.Equal(t, 1, gateway.customers)
	})

	t.Run("rejects prices not in the catalog", func(t *testing.T) {
		t.Parallel()

		svc, _, _ := newService(t)
		_, err := svc.CreateCheckout(context.Background(), uuid.New(), "price_bogus", "")
		assert.ErrorIs(t, err, billing.ErrUnknownPrice)
	})
}
