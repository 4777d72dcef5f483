package taproot

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// DustLimit is the minimum standard output value, per spec.md §4.5.
const DustLimit = 546

// EnableRBFNoLocktime is the input sequence number used for sweep and
// redemption transactions: RBF-signaling, no relative-locktime
// constraint, per BIP-125's "MAX_BIP125_RBF_SEQUENCE".
const EnableRBFNoLocktime = 0xfffffffd

var ErrDustOutput = errors.New("taproot: sweep output is below dust limit")

// SweepUTXO is the single input a sweep or redemption transaction spends.
type SweepUTXO struct {
	TxID      chainhash.Hash
	Vout      uint32
	ValueSats int64
	PkScript  []byte
}

// UnsignedTx is an unsigned transaction plus the data needed to compute
// its Taproot key-path sighash later.
type UnsignedTx struct {
	Tx          *wire.MsgTx
	PrevOutputs []*wire.TxOut // parallel to Tx.TxIn, for sighash's "all prevouts" commitment
	FeeSats     int64
}

// estimateVsize returns the approximate virtual size, in vbytes, of a
// single-input-single-output Taproot key-path-spend transaction: 4 (version)
// + segwit marker/flag + 1 input (outpoint 36 + empty script 1 + sequence 4)
// + 1 output (8 + P2TR script ~35) + 4 (locktime) + witness (1 stack item,
// 1 + 64 bytes), weighted per BIP-141.
func estimateVsize() int64 {
	const nonWitnessBytes = 4 + 1 + (36 + 1 + 4) + 1 + (8 + 35) + 4
	const witnessBytes = 1 + 1 + 64
	weight := nonWitnessBytes*4 + witnessBytes
	return (int64(weight) + 3) / 4
}

// BuildSweepTx builds the unsigned sweep transaction described in
// spec.md §4.5: version 2, locktime 0, single input spending utxo with
// sequence EnableRBFNoLocktime, single output paying (value - fee) to
// destAddr where fee = vsize * feeRate.
func BuildSweepTx(utxo SweepUTXO, destAddr btcutil.Address, feeRateSatPerVByte int64) (*UnsignedTx, error) {
	destScript, err := txscript.PayToAddrScript(destAddr)
	if err != nil {
		return nil, fmt.Errorf("taproot: building destination script: %w", err)
	}

	fee := estimateVsize() * feeRateSatPerVByte
	outputValue := utxo.ValueSats - fee
	if outputValue < DustLimit {
		return nil, fmt.Errorf("%w: value=%d fee=%d", ErrDustOutput, outputValue, fee)
	}

	tx := wire.NewMsgTx(2)
	tx.LockTime = 0

	prevOut := wire.OutPoint{Hash: utxo.TxID, Index: utxo.Vout}
	txIn := wire.NewTxIn(&prevOut, nil, nil)
	txIn.Sequence = EnableRBFNoLocktime
	tx.AddTxIn(txIn)

	tx.AddTxOut(wire.NewTxOut(outputValue, destScript))

	return &UnsignedTx{
		Tx:          tx,
		PrevOutputs: []*wire.TxOut{{Value: utxo.ValueSats, PkScript: utxo.PkScript}},
		FeeSats:     fee,
	}, nil
}
