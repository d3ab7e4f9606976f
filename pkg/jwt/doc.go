// Package jwt implements the access-token codec: HMAC-SHA256 signed
// tokens carrying a subject id and expiry.
//
// Only HS256 is supported. The signing key is process-wide configuration
// loaded once at startup; constructing a new Service is the rotation
// mechanism. Verification uses constant-time signature comparison and
// checks the signature before decoding any claims.
package jwt
