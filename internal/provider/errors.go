package provider

import "errors"

// Typed errors adapters return so RequestRouter can distinguish retryable
// failures from terminal ones without parsing error strings.
var (
	ErrRateLimited         = errors.New("provider: rate limited")
	ErrNotFound            = errors.New("provider: subject not found")
	ErrProviderUnavailable = errors.New("provider: unavailable")
	ErrUnsupportedCheck    = errors.New("provider: check type not supported")
)
