// Package logger provides a small factory over log/slog plus attribute
// helpers used throughout the platform.
//
// Services receive a *slog.Logger at construction and never create their
// own; tests pass a logger writing to io.Discard.
package logger
