// Package billing owns plans, subscriptions, and the webhook reconciler.
//
// The reconciler treats provider webhooks as hints, not commands: every
// patch writes absolute values, redelivered events converge to the same
// row state, and updates older than the row's last write are discarded.
// Events that match no stored subscription are acknowledged as no-ops so
// the provider stops retrying them.
package billing
