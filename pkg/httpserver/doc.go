// Package httpserver is a lightweight wrapper around net/http adding
// configurable timeouts and graceful shutdown on OS signals.
package httpserver
