package auth

import "errors"

var (
	// ErrUnauthenticated is the single error every credential failure
	// maps to. Callers never learn whether the email, password, token, or
	// key was the part that failed.
	ErrUnauthenticated = errors.New("unauthenticated")

	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrEmailTaken          = errors.New("email is already registered")
	ErrUserNotFound        = errors.New("user not found")
	ErrAPIKeyNotFound      = errors.New("api key not found")
	ErrOrganizationMissing = errors.New("user has no organization")
	ErrWeakPassword        = errors.New("password does not meet requirements")
	ErrInvalidEmail        = errors.New("email address is invalid")
)
