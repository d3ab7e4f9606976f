// Package auth owns accounts, credentials, and principal resolution.
//
// Two credential kinds exist: short-lived session tokens for humans and
// long-lived API keys for machines. The resolver normalizes both into
// the same Principal, and collapses every failure into a single
// unauthenticated error so responses cannot be used to probe for valid
// accounts or keys.
package auth
