package taproot

import (
	"context"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
)

// SingleKeySigner signs with a single in-process private key instead of
// a FROST signer set. It satisfies the same interface as
// ThresholdSigner and exists for development/test deployments only, per
// spec.md §4.4's {SingleKeySigner, ThresholdSigner} tagged union.
type SingleKeySigner struct {
	priv *btcec.PrivateKey
}

// NewSingleKeySigner wraps priv for key-path Taproot signing.
func NewSingleKeySigner(priv *btcec.PrivateKey) *SingleKeySigner {
	return &SingleKeySigner{priv: priv}
}

// PublicKey returns the untweaked public key this signer signs for.
func (s *SingleKeySigner) PublicKey() *btcec.PublicKey {
	return s.priv.PubKey()
}

// SignWithThreshold tweaks the private key per BIP-341 (tweak == the
// 32-byte commitment or merkle root, matching GenerateDepositAddress's
// "pure commitment tweak" convention) and produces a BIP-340 Schnorr
// signature over sighash. The name matches taproot.ThresholdSigner so
// callers can use either implementation interchangeably.
func (s *SingleKeySigner) SignWithThreshold(_ context.Context, sighash [32]byte, tweak *[32]byte) ([64]byte, error) {
	var tweakBytes []byte
	if tweak != nil {
		tweakBytes = tweak[:]
	}

	tweakedKey := txscript.TweakTaprootPrivKey(*s.priv, tweakBytes)

	sig, err := schnorr.Sign(tweakedKey, sighash[:])
	if err != nil {
		return [64]byte{}, fmt.Errorf("taproot: single-key signing failed: %w", err)
	}

	var out [64]byte
	copy(out[:], sig.Serialize())
	return out, nil
}
