package billing

import (
	"context"
	"time"
)

// CheckoutParams describes a hosted checkout session to create.
type CheckoutParams struct {
	PriceID        string
	CustomerID     string
	OrganizationID string
	SuccessURL     string
}

// Checkout is a created hosted checkout session.
type Checkout struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
}

// ProviderSubscription is the provider's canonical view of a
// subscription, fetched when a webhook payload is missing fields the
// reconciler needs.
type ProviderSubscription struct {
	ExternalID  string
	CustomerID  string
	PriceID     string
	Status      Status
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Gateway abstracts the billing provider. All provider SDK use lives
// behind this interface so the reconciler and stores stay provider-free.
type Gateway interface {
	// CreateCustomer creates a billing customer and returns its provider ID.
	CreateCustomer(ctx context.Context, email, name string) (string, error)

	// CreateCheckout creates a hosted checkout session for a price.
	CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error)

	// RetrieveSubscription fetches the provider's canonical subscription
	// object.
	RetrieveSubscription(ctx context.Context, externalID string) (*ProviderSubscription, error)

	// CancelAtPeriodEnd schedules the provider subscription to end at the
	// close of the current billing period.
	CancelAtPeriodEnd(ctx context.Context, externalID string) error

	// ParseWebhook verifies the signature and normalizes the payload into
	// an Event. Invalid signatures return ErrInvalidWebhook.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error)
}
