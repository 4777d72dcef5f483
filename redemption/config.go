package redemption

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg"
)

// Config holds the parameters of the redemption engine, mirroring
// deposit.Config per spec.md §4.10.
type Config struct {
	RequiredConfirmations uint32
	PollInterval          time.Duration
	FeeConfTarget         uint32

	Network *chaincfg.Params
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		RequiredConfirmations: 3,
		PollInterval:          30 * time.Second,
		FeeConfTarget:         3,
		Network:               &chaincfg.MainNetParams,
	}
}
