package taproot

import (
	"context"
	"fmt"

	"github.com/btcshield/bridge/frost"
)

// ThresholdSigner runs the configured FROST coordinator against a
// sighash and optional tweak, implementing spec.md §4.5's
// sign_with_threshold.
type ThresholdSigner struct {
	coordinator *frost.Coordinator
}

// NewThresholdSigner wraps coordinator for use by the sweep/redemption
// builders.
func NewThresholdSigner(coordinator *frost.Coordinator) *ThresholdSigner {
	return &ThresholdSigner{coordinator: coordinator}
}

// SignWithThreshold runs the coordinator's round1/round2/aggregate
// protocol over sighash and returns the 64-byte Schnorr signature.
func (s *ThresholdSigner) SignWithThreshold(ctx context.Context, sighash [32]byte, tweak *[32]byte) ([64]byte, error) {
	sig, err := s.coordinator.Sign(ctx, sighash, tweak)
	if err != nil {
		return [64]byte{}, fmt.Errorf("taproot: threshold signing failed: %w", err)
	}
	return sig, nil
}
