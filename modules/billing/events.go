package billing

import (
	"time"

	"github.com/google/uuid"
)

// EventKind is the normalized billing event type. Gateway implementations
// map provider-specific event names onto these.
type EventKind string

const (
	EventCheckoutCompleted   EventKind = "checkout_completed"
	EventSubscriptionUpdated EventKind = "subscription_updated"
	EventSubscriptionDeleted EventKind = "subscription_deleted"
	EventPaymentFailed       EventKind = "payment_failed"
)

// Event is a normalized webhook event. Fields the provider did not send
// are zero; the reconciler only applies what is present.
type Event struct {
	Kind EventKind
	// OccurredAt is the provider's event timestamp, used to discard stale
	// out-of-order updates.
	OccurredAt time.Time
	// SubscriptionID is the provider's subscription ID.
	SubscriptionID string
	// CustomerID is the provider's customer ID.
	CustomerID string
	// OrganizationID is recovered from checkout metadata when present.
	OrganizationID uuid.UUID
	PriceID        string
	Status         Status
	PeriodStart    time.Time
	PeriodEnd      time.Time
	// Raw is the full provider payload, kept for logging.
	Raw map[string]any
}
