// Package redemption implements the withdrawal-side mirror of the
// deposit engine: building, signing, broadcasting, and confirming
// Solana→BTC redemption transactions, per spec.md §4.10.
package redemption

import "time"

// Status is the lifecycle state of a RedemptionRequest.
type Status string

const (
	StatusPending      Status = "Pending"
	StatusBuilding     Status = "Building"
	StatusSigning      Status = "Signing"
	StatusBroadcasting Status = "Broadcasting"
	StatusConfirming   Status = "Confirming"
	StatusComplete     Status = "Complete"
	StatusFailed       Status = "Failed"
)

// Terminal reports whether s ends this cycle's processing.
func (s Status) Terminal() bool {
	switch s {
	case StatusComplete, StatusFailed:
		return true
	default:
		return false
	}
}

// Request is one tracked withdrawal, per spec.md §3's RedemptionRequest.
type Request struct {
	ID                 string
	RequesterID        string
	AmountSats         int64
	DestinationAddress string
	Nonce              string
	Status             Status

	BTCTxID       string
	Confirmations uint32

	CreatedAt time.Time
	UpdatedAt time.Time
	Error     string
}
