// Package response holds the JSON response and error envelope shared by
// all HTTP handlers.
package response
