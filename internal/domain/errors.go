package domain

import "errors"

// Domain error kinds. Handlers never see ErrUpstreamUnavailable or
// ErrStorageUnavailable for cart reads: those are absorbed by fallbacks.
var (
	ErrUpstreamUnavailable    = errors.New("catalog upstream unavailable")
	ErrStorageUnavailable     = errors.New("storage unavailable")
	ErrInvalidCheckoutRequest = errors.New("invalid checkout request")
	ErrOrderPersistFailure    = errors.New("order persist failure")
	ErrDuplicateOrderID       = errors.New("duplicate order id")
)
