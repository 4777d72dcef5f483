package taproot

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
)

// GenerateDepositAddress derives the Taproot key-path deposit address for
// one commitment, per spec.md §4.5: the output key is
// pool_pubkey + H_TapTweak(pool_pubkey ‖ commitment) · G, i.e. the
// standard BIP-341 tweak with the 32-byte commitment standing in for the
// script-tree merkle root (the "pure commitment tweak" convention chosen
// for this address family, see spec.md §4.4's tweak-policy Open
// Question).
func GenerateDepositAddress(poolPubKey *btcec.PublicKey, commitment [32]byte, net *chaincfg.Params) (btcutil.Address, error) {
	outputKey := txscript.ComputeTaprootOutputKey(poolPubKey, commitment[:])

	addr, err := btcutil.NewAddressTaproot(
		schnorrSerialize(outputKey), net,
	)
	if err != nil {
		return nil, fmt.Errorf("taproot: building address: %w", err)
	}
	return addr, nil
}

// OutputKeyForCommitment returns the tweaked output public key for
// poolPubKey and commitment without building an address string; used by
// the SPV verifier and sweep-tx sighash recomputation to check that a
// signed transaction's witness matches the expected key.
func OutputKeyForCommitment(poolPubKey *btcec.PublicKey, commitment [32]byte) *btcec.PublicKey {
	return txscript.ComputeTaprootOutputKey(poolPubKey, commitment[:])
}

// schnorrSerialize returns the 32-byte x-only serialization of pub, as
// used in Taproot witness programs and BIP-340 signatures.
func schnorrSerialize(pub *btcec.PublicKey) []byte {
	b := pub.SerializeCompressed()
	return b[1:]
}
