package redemption

import "errors"

var (
	// ErrDuplicateNonce is returned when registering a request whose
	// nonce has already been used, guarding against replayed withdrawal
	// requests.
	ErrDuplicateNonce = errors.New("redemption: nonce already used")

	// ErrNotFound is returned when a request id doesn't exist.
	ErrNotFound = errors.New("redemption: request not found")

	// ErrInsufficientPoolFunds is returned when the pool UTXO set can't
	// cover a requested amount plus fees.
	ErrInsufficientPoolFunds = errors.New("redemption: pool has insufficient funds")
)
