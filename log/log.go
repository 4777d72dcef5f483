// Package log provides the subsystem loggers shared across the bridge.
package log

import "github.com/btcsuite/btclog"

// Subsystem tags, one per package that logs.
const (
	SubsystemChain       = "CHNA"
	SubsystemStore       = "STOR"
	SubsystemFrost       = "FRST"
	SubsystemTaproot     = "TAPR"
	SubsystemSPV         = "SPVV"
	SubsystemCommitTree  = "CTRE"
	SubsystemNullifier   = "NULL"
	SubsystemDeposit     = "DEPO"
	SubsystemRedemption  = "REDM"
)

// Disabled is a no-op logger used as the default for every subsystem until
// the embedding application wires up a real backend.
var Disabled = btclog.Disabled

// NewSubsystem returns btclog.Disabled for every tag; the tag is not used
// and no named logger is created. Library code never configures its own
// backend, so output appears only where a caller injects its own
// btclog.Logger (the Logger fields of the packages' config structs).
func NewSubsystem(tag string) btclog.Logger {
	return btclog.Disabled
}
