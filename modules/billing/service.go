package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/apimeter/apimeter/pkg/logger"
)

// OrganizationDirectory is the narrow lookup the billing service needs
// from the organization module.
type OrganizationDirectory func(ctx context.Context, orgID uuid.UUID) (name, billingEmail string, err error)

// Service owns checkout, cancellation, entitlement resolution, and the
// webhook reconciler.
type Service struct {
	store   Store
	gateway Gateway
	catalog *Catalog
	orgs    OrganizationDirectory
	log     *slog.Logger
}

// NewService wires a billing Service.
func NewService(store Store, gateway Gateway, catalog *Catalog, orgs OrganizationDirectory, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store:   store,
		gateway: gateway,
		catalog: catalog,
		orgs:    orgs,
		log:     log.With(logger.Component("billing")),
	}
}

// Snapshot resolves the organization's effective entitlement from its
// most recent ACTIVE subscription. An organization with no active
// subscription resolves to the FREE tier rather than an error.
func (s *Service) Snapshot(ctx context.Context, orgID uuid.UUID) (Entitlement, error) {
	sub, err := s.store.ActiveByOrganization(ctx, orgID)
	if err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			return FreeEntitlement(orgID), nil
		}
		return Entitlement{}, fmt.Errorf("resolve entitlement: %w", err)
	}
	return Entitlement{
		OrganizationID: orgID,
		Plan:           sub.Plan,
		MonthlyQuota:   sub.MonthlyQuota,
		RateLimit:      sub.RateLimit,
		Status:         sub.Status,
	}, nil
}

// CreateCheckout starts a hosted checkout for the given price. A billing
// customer is created lazily on the first checkout and reused afterward.
func (s *Service) CreateCheckout(ctx context.Context, orgID uuid.UUID, priceID, successURL string) (*Checkout, error) {
	if _, known := s.catalog.Resolve(priceID); !known {
		return nil, ErrUnknownPrice
	}

	customerID, err := s.ensureCustomer(ctx, orgID)
	if err != nil {
		return nil, err
	}

	checkout, err := s.gateway.CreateCheckout(ctx, CheckoutParams{
		PriceID:        priceID,
		CustomerID:     customerID,
		OrganizationID: orgID.String(),
		SuccessURL:     successURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create checkout: %w", err)
	}

	s.log.InfoContext(ctx, "checkout session created",
		logger.OrgID(orgID.String()),
		slog.String("price_id", priceID),
		slog.String("session_id", checkout.SessionID))
	return checkout, nil
}

func (s *Service) ensureCustomer(ctx context.Context, orgID uuid.UUID) (string, error) {
	sub, err := s.store.ActiveByOrganization(ctx, orgID)
	if err == nil && sub.CustomerID != "" {
		return sub.CustomerID, nil
	}
	if err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return "", fmt.Errorf("lookup subscription: %w", err)
	}

	name, email, err := s.orgs(ctx, orgID)
	if err != nil {
		return "", fmt.Errorf("lookup organization: %w", err)
	}

	customerID, err := s.gateway.CreateCustomer(ctx, email, name)
	if err != nil {
		return "", fmt.Errorf("create billing customer: %w", err)
	}

	if _, err := s.store.UpdateActiveByOrganization(ctx, orgID, SubscriptionPatch{
		CustomerID: &customerID,
	}); err != nil && !errors.Is(err, ErrSubscriptionNotFound) {
		return "", fmt.Errorf("store customer id: %w", err)
	}
	return customerID, nil
}

// Cancel schedules the organization's paid subscription to end at the
// close of the current period. The row stays ACTIVE with
// cancel_at_period_end set; the provider's deletion webhook flips the
// status when the period actually ends.
func (s *Service) Cancel(ctx context.Context, orgID uuid.UUID) (Subscription, error) {
	sub, err := s.store.ActiveByOrganization(ctx, orgID)
	if err != nil {
		return Subscription{}, err
	}
	if sub.ExternalID == "" {
		// The FREE subscription has nothing to cancel at the provider.
		return Subscription{}, ErrSubscriptionNotFound
	}

	if err := s.gateway.CancelAtPeriodEnd(ctx, sub.ExternalID); err != nil {
		return Subscription{}, fmt.Errorf("schedule cancellation: %w", err)
	}

	cancel := true
	updated, err := s.store.UpdateActiveByOrganization(ctx, orgID, SubscriptionPatch{
		CancelAtPeriodEnd: &cancel,
	})
	if err != nil {
		return Subscription{}, fmt.Errorf("record cancellation: %w", err)
	}

	s.log.InfoContext(ctx, "subscription cancellation scheduled",
		logger.OrgID(orgID.String()),
		slog.String("external_id", sub.ExternalID))
	return updated, nil
}

// HandleWebhook verifies and reconciles one provider event. Events that
// match nothing in the store are acknowledged as no-ops so the provider
// stops retrying; only transient failures return an error.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.gateway.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return err
	}

	log := s.log.With(
		logger.Event(string(event.Kind)),
		slog.String("subscription_id", event.SubscriptionID),
		slog.Time("occurred_at", event.OccurredAt))

	switch event.Kind {
	case EventCheckoutCompleted:
		err = s.reconcileCheckoutCompleted(ctx, log, event)
	case EventSubscriptionUpdated:
		err = s.reconcileSubscriptionUpdated(ctx, log, event)
	case EventSubscriptionDeleted:
		err = s.reconcileStatusChange(ctx, log, event, StatusCanceled)
	case EventPaymentFailed:
		err = s.reconcileStatusChange(ctx, log, event, StatusPastDue)
	default:
		log.InfoContext(ctx, "ignoring unhandled event kind")
		return nil
	}
	return err
}

// reconcileCheckoutCompleted promotes the organization onto the paid
// plan. Replays patch the same absolute values onto the already-promoted
// row, so redelivery converges to the same state.
func (s *Service) reconcileCheckoutCompleted(ctx context.Context, log *slog.Logger, event *Event) error {
	if event.OrganizationID == uuid.Nil {
		log.WarnContext(ctx, "checkout event without organization metadata, skipping")
		return nil
	}

	// Transaction events do not always carry the billing period or price;
	// fill the gaps from the provider's canonical object.
	if event.SubscriptionID != "" && (event.PeriodEnd.IsZero() || event.PriceID == "") {
		if canonical, err := s.gateway.RetrieveSubscription(ctx, event.SubscriptionID); err != nil {
			log.WarnContext(ctx, "failed to fetch canonical subscription", logger.Error(err))
		} else {
			if event.PriceID == "" {
				event.PriceID = canonical.PriceID
			}
			if event.CustomerID == "" {
				event.CustomerID = canonical.CustomerID
			}
			if event.PeriodStart.IsZero() {
				event.PeriodStart = canonical.PeriodStart
			}
			if event.PeriodEnd.IsZero() {
				event.PeriodEnd = canonical.PeriodEnd
			}
		}
	}

	limits, known := s.catalog.Resolve(event.PriceID)
	if !known {
		log.WarnContext(ctx, "unknown price id, applying free tier limits",
			slog.String("price_id", event.PriceID))
	}

	status := StatusActive
	cancel := false
	patch := SubscriptionPatch{
		Plan:              &limits.Plan,
		Status:            &status,
		MonthlyQuota:      &limits.MonthlyQuota,
		RateLimit:         &limits.RateLimit,
		CancelAtPeriodEnd: &cancel,
	}
	if event.SubscriptionID != "" {
		patch.ExternalID = &event.SubscriptionID
	}
	if event.CustomerID != "" {
		patch.CustomerID = &event.CustomerID
	}
	if event.PriceID != "" {
		patch.PriceID = &event.PriceID
	}
	if !event.PeriodStart.IsZero() {
		patch.CurrentPeriodStart = &event.PeriodStart
	}
	if !event.PeriodEnd.IsZero() {
		patch.CurrentPeriodEnd = &event.PeriodEnd
	}

	_, err := s.store.UpdateActiveByOrganization(ctx, event.OrganizationID, patch)
	if errors.Is(err, ErrSubscriptionNotFound) {
		// No active row to promote (e.g. the free row was canceled out of
		// band); create one from the event instead.
		sub := Subscription{
			ID:                 uuid.New(),
			OrganizationID:     event.OrganizationID,
			Plan:               limits.Plan,
			Status:             StatusActive,
			MonthlyQuota:       limits.MonthlyQuota,
			RateLimit:          limits.RateLimit,
			ExternalID:         event.SubscriptionID,
			CustomerID:         event.CustomerID,
			PriceID:            event.PriceID,
			CurrentPeriodStart: event.PeriodStart,
			CurrentPeriodEnd:   event.PeriodEnd,
		}
		if err := s.store.Create(ctx, sub); err != nil {
			return fmt.Errorf("create subscription from checkout: %w", err)
		}
		log.InfoContext(ctx, "subscription created from checkout",
			logger.OrgID(event.OrganizationID.String()),
			slog.String("plan", string(limits.Plan)))
		return nil
	}
	if err != nil {
		return fmt.Errorf("promote subscription: %w", err)
	}

	log.InfoContext(ctx, "subscription promoted",
		logger.OrgID(event.OrganizationID.String()),
		slog.String("plan", string(limits.Plan)))
	return nil
}

// reconcileSubscriptionUpdated applies provider-side changes (plan
// switches, period rolls, status transitions) to the matching row.
// Events older than the row's last update are discarded, which keeps
// out-of-order delivery from rolling state backward.
func (s *Service) reconcileSubscriptionUpdated(ctx context.Context, log *slog.Logger, event *Event) error {
	patch := SubscriptionPatch{}
	if event.Status != "" {
		patch.Status = &event.Status
	}
	if event.PriceID != "" {
		limits, known := s.catalog.Resolve(event.PriceID)
		if known {
			patch.Plan = &limits.Plan
			patch.MonthlyQuota = &limits.MonthlyQuota
			patch.RateLimit = &limits.RateLimit
			patch.PriceID = &event.PriceID
		} else {
			log.WarnContext(ctx, "unknown price id on update, keeping current limits",
				slog.String("price_id", event.PriceID))
		}
	}
	if !event.PeriodStart.IsZero() {
		patch.CurrentPeriodStart = &event.PeriodStart
	}
	if !event.PeriodEnd.IsZero() {
		patch.CurrentPeriodEnd = &event.PeriodEnd
	}

	applied, err := s.store.UpdateByExternalID(ctx, event.SubscriptionID, patch, event.OccurredAt, false)
	if errors.Is(err, ErrSubscriptionNotFound) {
		log.InfoContext(ctx, "update for unknown subscription, ignoring")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply subscription update: %w", err)
	}
	if !applied {
		log.InfoContext(ctx, "discarding stale subscription update")
		return nil
	}

	log.InfoContext(ctx, "subscription updated")
	return nil
}

// reconcileStatusChange handles terminal and dunning transitions coming
// from the provider (deletion, failed payment). These transitions always
// win regardless of delivery order: the row's updated_at is stamped with
// local time on every write, so an honest provider timestamp can trail
// it and must not cause the event to be dropped.
func (s *Service) reconcileStatusChange(ctx context.Context, log *slog.Logger, event *Event, status Status) error {
	patch := SubscriptionPatch{Status: &status}

	_, err := s.store.UpdateByExternalID(ctx, event.SubscriptionID, patch, event.OccurredAt, true)
	if errors.Is(err, ErrSubscriptionNotFound) {
		log.InfoContext(ctx, "event for unknown subscription, ignoring")
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply status change: %w", err)
	}

	log.InfoContext(ctx, "subscription status changed", slog.String("status", string(status)))
	return nil
}

// Subscriptions lists the organization's billing history, newest first.
func (s *Service) Subscriptions(ctx context.Context, orgID uuid.UUID) ([]Subscription, error) {
	return s.store.ByOrganization(ctx, orgID)
}
