package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrLockHeld           = errors.New("lock held")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrMalformedRelation  = errors.New("malformed relation")
)
