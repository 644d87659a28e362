package domain

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrDuplicateEmail   = errors.New("email already registered")
	ErrInvalidInput     = errors.New("invalid input")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrModelRefused     = errors.New("model refused")
	ErrRateLimited      = errors.New("rate limited")
	ErrMalformedOutput  = errors.New("malformed model output")
	ErrInvalidSchema    = errors.New("model output failed schema validation")
	ErrGenerationFailed = errors.New("generation failed")
)
