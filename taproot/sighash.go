package taproot

import (
	"fmt"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// ComputeSighash computes the BIP-341 Taproot key-path sighash for
// input index 0 of utx.Tx, SIGHASH_DEFAULT, with all prevouts committed,
// per spec.md §4.5.
func ComputeSighash(utx *UnsignedTx) ([32]byte, error) {
	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(
		utx.PrevOutputs[0].PkScript, utx.PrevOutputs[0].Value,
	)

	sigHashes := txscript.NewTxSigHashes(utx.Tx, prevOutFetcher)

	hash, err := txscript.CalcTaprootSignatureHash(
		sigHashes, txscript.SigHashDefault, utx.Tx, 0, prevOutFetcher,
	)
	if err != nil {
		return [32]byte{}, fmt.Errorf("taproot: computing sighash: %w", err)
	}

	var out [32]byte
	copy(out[:], hash)
	return out, nil
}

// AttachWitness sets tx's input-0 witness to the single 64-byte Schnorr
// signature sig, per spec.md §4.5.
func AttachWitness(tx *wire.MsgTx, sig [64]byte) {
	tx.TxIn[0].Witness = wire.TxWitness{sig[:]}
}
