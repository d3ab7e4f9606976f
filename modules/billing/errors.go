package billing

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrActiveExists         = errors.New("organization already has an active subscription")
	ErrInvalidWebhook       = errors.New("webhook signature verification failed")
	ErrInvalidCheckout      = errors.New("checkout request is incomplete")
	ErrUnknownPrice         = errors.New("price is not in the plan catalog")
	ErrGatewayMisconfigured = errors.New("billing gateway is misconfigured")
)
