package spv

import "fmt"

// CommitmentInserter abstracts the commitment tree's leaf-insertion
// operation so this package does not need to import it directly.
type CommitmentInserter interface {
	InsertLeaf(commitment [32]byte) (leafIndex int64, err error)
}

// DuplicateTracker abstracts tracking which sweep transactions have
// already had a proof verified for them, guarding against a second proof
// being accepted for the same sweep.
type DuplicateTracker interface {
	// Seen reports whether sweepTxID has already had a proof verified.
	Seen(sweepTxID string) bool
	// Mark records sweepTxID as verified.
	Mark(sweepTxID string)
}

// memoryDuplicateTracker is a simple in-process DuplicateTracker,
// suitable for single-node deployments or tests.
type memoryDuplicateTracker struct {
	seen map[string]struct{}
}

// NewMemoryDuplicateTracker constructs an in-memory DuplicateTracker.
func NewMemoryDuplicateTracker() DuplicateTracker {
	return &memoryDuplicateTracker{seen: make(map[string]struct{})}
}

func (t *memoryDuplicateTracker) Seen(sweepTxID string) bool {
	_, ok := t.seen[sweepTxID]
	return ok
}

func (t *memoryDuplicateTracker) Mark(sweepTxID string) {
	t.seen[sweepTxID] = struct{}{}
}

// VerifierConfig wires a Verifier's dependencies.
type VerifierConfig struct {
	LightClient    *LightClient
	CommitmentTree CommitmentInserter
	Duplicates     DuplicateTracker
	MinDepositSats int64
	MaxDepositSats int64
}

// Verifier checks SPV proofs for sweep transactions and, on success,
// records the transaction's commitment into the commitment tree, per
// spec.md §4.6.
type Verifier struct {
	cfg VerifierConfig
}

// NewVerifier constructs a Verifier. CommitmentTree must be non-nil; a
// nil Duplicates is replaced by an in-memory tracker.
func NewVerifier(cfg VerifierConfig) *Verifier {
	if cfg.Duplicates == nil {
		cfg.Duplicates = NewMemoryDuplicateTracker()
	}
	return &Verifier{cfg: cfg}
}

// ProofInput is everything required to verify one sweep transaction's
// inclusion in the chain and extract its commitment.
type ProofInput struct {
	SweepTxID            string
	RawTx                []byte
	BlockHeight          int64
	Proof                *MerkleProof
	ExpectedOutputValue  int64
}

// VerifiedDeposit is the result of a successfully verified proof.
type VerifiedDeposit struct {
	Commitment [32]byte
	LeafIndex  int64
	AmountSats int64
}

// VerifyProof runs the full 9-step SPV verification sequence from
// spec.md §4.6:
//  1. look up the containing block header and confirm sufficient depth
//  2. check the proof's block height matches the claimed height
//  3. recompute the txid from raw_tx and compare against the proof's txid
//  4. walk the Merkle path and check it resolves to the header's root
//  5. parse the raw transaction
//  6. locate the deposit output and validate its amount range
//  7. extract the OP_RETURN commitment
//  8. reject a proof already submitted for this sweep txid (checked
//     before step 1; the txid is marked as seen only after step 9)
//  9. insert the commitment into the tree and return its leaf index
func (v *Verifier) VerifyProof(input ProofInput) (*VerifiedDeposit, error) {
	if v.cfg.Duplicates.Seen(input.SweepTxID) {
		return nil, ErrDuplicateProof
	}

	header, err := v.cfg.LightClient.RequireConfirmed(input.BlockHeight)
	if err != nil {
		return nil, err
	}

	if input.Proof.BlockHeight != input.BlockHeight {
		return nil, ErrBlockHeightMismatch
	}

	computedTxID, err := ComputeTxID(input.RawTx)
	if err != nil {
		return nil, err
	}
	if computedTxID != input.Proof.TxID {
		return nil, fmt.Errorf("%w", ErrTxIDMismatch)
	}

	if !VerifyPath(input.Proof, header.MerkleRoot) {
		return nil, ErrBadMerkleProof
	}

	parsed, err := ParseTransaction(input.RawTx)
	if err != nil {
		return nil, err
	}

	depositOutput, err := parsed.FindDepositOutput()
	if err != nil {
		return nil, err
	}
	if input.ExpectedOutputValue != 0 && depositOutput.ValueSats != input.ExpectedOutputValue {
		return nil, fmt.Errorf("%w: got %d want %d", ErrAmountOutOfRange, depositOutput.ValueSats, input.ExpectedOutputValue)
	}
	if depositOutput.ValueSats < v.cfg.MinDepositSats || depositOutput.ValueSats > v.cfg.MaxDepositSats {
		return nil, ErrAmountOutOfRange
	}

	commitment, err := parsed.ExtractCommitment()
	if err != nil {
		return nil, err
	}

	leafIndex, err := v.cfg.CommitmentTree.InsertLeaf(commitment)
	if err != nil {
		return nil, err
	}

	v.cfg.Duplicates.Mark(input.SweepTxID)

	return &VerifiedDeposit{
		Commitment: commitment,
		LeafIndex:  leafIndex,
		AmountSats: depositOutput.ValueSats,
	}, nil
}
