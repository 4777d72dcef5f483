package spv

import "errors"

// Failure sentinels for SPV proof verification, per spec.md §4.6 — each
// distinct so callers can distinguish retryable from terminal failures.
var (
	ErrHeaderMissing          = errors.New("spv: block header not found in light client")
	ErrInsufficientConfs      = errors.New("spv: block has insufficient confirmations")
	ErrBlockHeightMismatch    = errors.New("spv: merkle proof block height does not match")
	ErrTxIDMismatch           = errors.New("spv: merkle proof txid does not match")
	ErrTxHashMismatch         = errors.New("spv: computed txid does not match expected txid")
	ErrBadMerkleProof         = errors.New("spv: merkle path does not resolve to the block's merkle root")
	ErrAmountOutOfRange       = errors.New("spv: deposit output value outside allowed range")
	ErrCommitmentNotFound     = errors.New("spv: no OP_RETURN commitment found in transaction")
	ErrDuplicateProof         = errors.New("spv: proof already submitted for this sweep txid")
	ErrMalformedTransaction   = errors.New("spv: malformed raw transaction")
	ErrNoDepositOutput        = errors.New("spv: no non-OP_RETURN output with positive value found")
)
