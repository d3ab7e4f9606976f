package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
	"github.com/google/uuid"
)

// PaddleConfig holds Paddle credentials.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleGateway implements Gateway against the Paddle Billing API.
type PaddleGateway struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
}

// NewPaddleGateway returns a gateway for the configured Paddle environment.
func NewPaddleGateway(cfg PaddleConfig) (*PaddleGateway, error) {
	if cfg.APIKey == "" || cfg.WebhookSecret == "" {
		return nil, ErrGatewayMisconfigured
	}

	var client *paddle.SDK
	var err error
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: unknown environment %q", ErrGatewayMisconfigured, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("create paddle client: %w", err)
	}

	return &PaddleGateway{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
	}, nil
}

// CreateCustomer implements Gateway.
func (g *PaddleGateway) CreateCustomer(ctx context.Context, email, name string) (string, error) {
	customer, err := g.client.CustomersClient.CreateCustomer(ctx, &paddle.CreateCustomerRequest{
		Email: email,
		Name:  paddle.PtrTo(name),
	})
	if err != nil {
		return "", fmt.Errorf("create paddle customer: %w", err)
	}
	return customer.ID, nil
}

// CreateCheckout implements Gateway. The organization ID rides along as
// custom data so checkout webhooks can be routed back to the right row.
func (g *PaddleGateway) CreateCheckout(ctx context.Context, params CheckoutParams) (*Checkout, error) {
	if params.PriceID == "" || params.CustomerID == "" {
		return nil, ErrInvalidCheckout
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  params.PriceID,
		Quantity: 1,
	})

	req := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomerID: paddle.PtrTo(params.CustomerID),
		CustomData: paddle.CustomData{
			"organization_id": params.OrganizationID,
		},
	}
	if params.SuccessURL != "" {
		req.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(params.SuccessURL)}
	}

	txn, err := g.client.TransactionsClient.CreateTransaction(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create paddle transaction: %w", err)
	}
	if txn.Checkout == nil || txn.Checkout.URL == nil {
		return nil, errors.New("paddle returned no checkout url")
	}

	return &Checkout{URL: *txn.Checkout.URL, SessionID: txn.ID}, nil
}

// RetrieveSubscription implements Gateway.
func (g *PaddleGateway) RetrieveSubscription(ctx context.Context, externalID string) (*ProviderSubscription, error) {
	if externalID == "" {
		return nil, ErrSubscriptionNotFound
	}
	sub, err := g.client.SubscriptionsClient.GetSubscription(ctx, &paddle.GetSubscriptionRequest{
		SubscriptionID: externalID,
	})
	if err != nil {
		return nil, fmt.Errorf("get paddle subscription: %w", err)
	}

	out := &ProviderSubscription{
		ExternalID: sub.ID,
		CustomerID: sub.CustomerID,
		Status:     mapPaddleStatus(string(sub.Status)),
	}
	if len(sub.Items) > 0 {
		out.PriceID = sub.Items[0].Price.ID
	}
	if sub.CurrentBillingPeriod != nil {
		out.PeriodStart = parseTime(sub.CurrentBillingPeriod.StartsAt)
		out.PeriodEnd = parseTime(sub.CurrentBillingPeriod.EndsAt)
	}
	return out, nil
}

// CancelAtPeriodEnd implements Gateway.
func (g *PaddleGateway) CancelAtPeriodEnd(ctx context.Context, externalID string) error {
	if externalID == "" {
		return ErrSubscriptionNotFound
	}
	_, err := g.client.SubscriptionsClient.CancelSubscription(ctx, &paddle.CancelSubscriptionRequest{
		SubscriptionID: externalID,
		EffectiveFrom:  paddle.PtrTo(paddle.EffectiveFromNextBillingPeriod),
	})
	if err != nil {
		return fmt.Errorf("cancel paddle subscription: %w", err)
	}
	return nil
}

// ParseWebhook implements Gateway. The payload is parsed loosely as a
// map so new provider fields never break verification.
func (g *PaddleGateway) ParseWebhook(ctx context.Context, payload []byte, signature string) (*Event, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := g.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}
	if !valid {
		return nil, ErrInvalidWebhook
	}

	var raw struct {
		EventType  string         `json:"event_type"`
		OccurredAt time.Time      `json:"occurred_at"`
		Data       map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errors.Join(ErrInvalidWebhook, err)
	}

	event := &Event{
		Kind:       mapPaddleEvent(raw.EventType),
		OccurredAt: raw.OccurredAt,
		Raw:        raw.Data,
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	data := raw.Data
	if strings.HasPrefix(raw.EventType, "subscription.") {
		event.SubscriptionID, _ = data["id"].(string)
	} else {
		event.SubscriptionID, _ = data["subscription_id"].(string)
	}
	event.CustomerID, _ = data["customer_id"].(string)
	if status, ok := data["status"].(string); ok {
		event.Status = mapPaddleStatus(status)
	}
	event.PriceID = extractPriceID(data)
	event.OrganizationID = extractOrganizationID(data)
	event.PeriodStart, event.PeriodEnd = extractBillingPeriod(data)

	return event, nil
}

func mapPaddleEvent(eventType string) EventKind {
	switch eventType {
	case "transaction.completed":
		return EventCheckoutCompleted
	case "subscription.updated":
		return EventSubscriptionUpdated
	case "subscription.canceled":
		return EventSubscriptionDeleted
	case "transaction.payment_failed":
		return EventPaymentFailed
	default:
		return EventKind(eventType)
	}
}

func mapPaddleStatus(status string) Status {
	switch strings.ToLower(status) {
	case "active", "completed":
		return StatusActive
	case "trialing":
		return StatusTrialing
	case "past_due":
		return StatusPastDue
	case "unpaid":
		return StatusUnpaid
	case "canceled", "cancelled":
		return StatusCanceled
	default:
		return Status(strings.ToUpper(status))
	}
}

func extractPriceID(data map[string]any) string {
	items, ok := data["items"].([]any)
	if !ok || len(items) == 0 {
		return ""
	}
	item, ok := items[0].(map[string]any)
	if !ok {
		return ""
	}
	if priceID, ok := item["price_id"].(string); ok {
		return priceID
	}
	if price, ok := item["price"].(map[string]any); ok {
		if priceID, ok := price["id"].(string); ok {
			return priceID
		}
	}
	return ""
}

func extractOrganizationID(data map[string]any) uuid.UUID {
	custom, ok := data["custom_data"].(map[string]any)
	if !ok {
		return uuid.Nil
	}
	raw, ok := custom["organization_id"].(string)
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func extractBillingPeriod(data map[string]any) (time.Time, time.Time) {
	period, ok := data["current_billing_period"].(map[string]any)
	if !ok {
		return time.Time{}, time.Time{}
	}
	return parseTime(period["starts_at"]), parseTime(period["ends_at"])
}

func parseTime(v any) time.Time {
	s, ok := v.(string)
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
