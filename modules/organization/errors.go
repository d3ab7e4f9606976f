package organization

import "errors"

var (
	ErrNotFound     = errors.New("organization not found")
	ErrSlugTaken    = errors.New("organization slug is already taken")
	ErrInvalidName  = errors.New("organization name is invalid")
	ErrAlreadyOwner = errors.New("user already owns an organization")
)
