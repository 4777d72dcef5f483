package deposit

import (
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
)

// Config holds the parameters of the deposit lifecycle engine, per
// spec.md §4.9.
type Config struct {
	// RequiredConfirmations is K: the deposit-tx confirmation depth
	// required to reach Confirmed. Default 3.
	RequiredConfirmations uint32

	// RequiredSweepConfirmations is S: the sweep-tx confirmation depth
	// required to reach Verifying. Default 2.
	RequiredSweepConfirmations uint32

	// PollInterval is the per-tick driver's cadence.
	PollInterval time.Duration

	// RetryDelay is the minimum time a Failed record must sit before
	// it's eligible for retry again.
	RetryDelay time.Duration

	// MaxRetries bounds retry_count; records at or above this are
	// excluded from GetFailedForRetry.
	MaxRetries int

	// MinDepositSats / MaxDepositSats bound accepted deposit amounts.
	MinDepositSats int64
	MaxDepositSats int64

	// FeeConfTarget is the confirmation target (in blocks) used to
	// estimate the sweep transaction's fee rate.
	FeeConfTarget uint32

	Network     *chaincfg.Params
	PoolPubKey  *btcec.PublicKey
	PoolAddress string
}

// DefaultConfig returns the spec's documented defaults for everything
// except the pool key/address and network, which the caller must set.
func DefaultConfig() Config {
	return Config{
		RequiredConfirmations:      3,
		RequiredSweepConfirmations: 2,
		PollInterval:               30 * time.Second,
		RetryDelay:                 5 * time.Minute,
		MaxRetries:                 5,
		MinDepositSats:             10_000,
		MaxDepositSats:             1_000_000_000,
		FeeConfTarget:              3,
		Network:                    &chaincfg.MainNetParams,
	}
}
