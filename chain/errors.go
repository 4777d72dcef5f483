package chain

import "errors"

var (
	// ErrNotFound is returned when the upstream API reports 404 for a
	// tx/block/address that does not exist. Distinct from transient
	// network failures per spec.md §4.1.
	ErrNotFound = errors.New("chain: resource not found")

	// ErrTransient is returned for retryable network/server failures
	// (timeouts, 5xx, rate limiting exhausted after retries).
	ErrTransient = errors.New("chain: transient failure")

	// ErrInvalidResponse is returned when the upstream API returns a
	// response this client cannot parse.
	ErrInvalidResponse = errors.New("chain: invalid response")
)
