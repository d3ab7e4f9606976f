package response

import (
	"errors"
	"net/http"
)

// HTTPError is an error carrying an HTTP status and a stable machine code.
type HTTPError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *HTTPError) Error() string { return e.Message }

// NewHTTPError returns an HTTPError with the given status, code, and message.
func NewHTTPError(status int, code, message string) *HTTPError {
	return &HTTPError{Status: status, Code: code, Message: message}
}

var (
	ErrBadRequest   = NewHTTPError(http.StatusBadRequest, "bad_request", "The request is malformed or invalid.")
	ErrUnauthorized = NewHTTPError(http.StatusUnauthorized, "unauthorized", "Authentication is required.")
	ErrForbidden    = NewHTTPError(http.StatusForbidden, "forbidden", "You do not have access to this resource.")
	ErrNotFound     = NewHTTPError(http.StatusNotFound, "not_found", "The requested resource was not found.")
	ErrConflict     = NewHTTPError(http.StatusConflict, "conflict", "The request conflicts with the current state.")
	ErrTooMany      = NewHTTPError(http.StatusTooManyRequests, "rate_limited", "Too many requests. Slow down.")
	ErrInternal     = NewHTTPError(http.StatusInternalServerError, "internal_error", "Something went wrong on our side.")
)

// Error writes err as a JSON error response. Known HTTPErrors keep their
// status and code; anything else becomes a 500 without leaking details.
func Error(w http.ResponseWriter, err error) {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		httpErr = ErrInternal
	}
	JSON(w, httpErr.Status, httpErr)
}

// WithMessage returns a copy of e with a more specific message.
func (e *HTTPError) WithMessage(message string) *HTTPError {
	return &HTTPError{Status: e.Status, Code: e.Code, Message: message}
}
