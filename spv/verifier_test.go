package spv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeCommitmentTree struct {
	next int64
}

func (f *fakeCommitmentTree) InsertLeaf(commitment [32]byte) (int64, error) {
	idx := f.next
	f.next++
	return idx, nil
}

// buildVerifiableFixture constructs a raw transaction, its Merkle proof,
// and a light client header such that VerifyProof succeeds, returning
// all the pieces so individual fields can be tampered with per-test.
func buildVerifiableFixture(t *testing.T) (*LightClient, ProofInput, []byte) {
	t.Helper()

	commitment := make([]byte, 32)
	commitment[0] = 0x7

	raw := newTxBuilder().
		version(2).
		varInt(1).input().
		varInt(2).
		output(100000, p2wpkhScript()).
		output(0, opReturnScript(commitment)).
		locktime(0)

	txid, err := ComputeTxID(raw)
	require.NoError(t, err)

	// Single-leaf tree: root is the txid itself, empty sibling path.
	root := txid

	var zero [32]byte
	header, err := ParseBlockHeader(buildHeaderBytes(t, 1, zero, root, 0, 0, 0))
	require.NoError(t, err)

	lc := NewLightClient(6)
	lc.AddHeader(100, header)
	for height := int64(101); height <= 106; height++ {
		h2, err := ParseBlockHeader(buildHeaderBytes(t, 1, zero, zero, 0, 0, uint32(height)))
		require.NoError(t, err)
		lc.AddHeader(height, h2)
	}

	proof := &MerkleProof{
		TxID:        txid,
		BlockHeight: 100,
		Siblings:    nil,
		PathBits:    nil,
	}

	input := ProofInput{
		SweepTxID:   "sweep-1",
		RawTx:       raw,
		BlockHeight: 100,
		Proof:       proof,
	}

	return lc, input, commitment
}

func newTestVerifier(lc *LightClient) (*Verifier, *fakeCommitmentTree) {
	tree := &fakeCommitmentTree{}
	v := NewVerifier(VerifierConfig{
		LightClient:    lc,
		CommitmentTree: tree,
		MinDepositSats: 1000,
		MaxDepositSats: 10_000_000,
	})
	return v, tree
}

func TestVerifyProof_Success(t *testing.T) {
	lc, input, commitment := buildVerifiableFixture(t)
	v, tree := newTestVerifier(lc)

	result, err := v.VerifyProof(input)
	require.NoError(t, err)
	require.Equal(t, commitment, result.Commitment[:])
	require.Equal(t, int64(100000), result.AmountSats)
	require.Equal(t, int64(0), result.LeafIndex)
	require.Equal(t, 1, tree.next)
}

func TestVerifyProof_RejectsDuplicateSweep(t *testing.T) {
	lc, input, _ := buildVerifiableFixture(t)
	v, _ := newTestVerifier(lc)

	_, err := v.VerifyProof(input)
	require.NoError(t, err)

	_, err = v.VerifyProof(input)
	require.ErrorIs(t, err, ErrDuplicateProof)
}

func TestVerifyProof_RejectsInsufficientConfirmations(t *testing.T) {
	lc, input, _ := buildVerifiableFixture(t)
	v, _ := newTestVerifier(lc)
	input.BlockHeight = 106
	input.Proof.BlockHeight = 106

	_, err := v.VerifyProof(input)
	require.ErrorIs(t, err, ErrInsufficientConfs)
}

func TestVerifyProof_RejectsBlockHeightMismatch(t *testing.T) {
	lc, input, _ := buildVerifiableFixture(t)
	v, _ := newTestVerifier(lc)
	input.Proof.BlockHeight = 99

	_, err := v.VerifyProof(input)
	require.ErrorIs(t, err, ErrBlockHeightMismatch)
}

func TestVerifyProof_RejectsTxIDMismatch(t *testing.T) {
	lc, input, _ := buildVerifiableFixture(t)
	v, _ := newTestVerifier(lc)
	input.Proof.TxID[0] ^= 0xff

	_, err := v.VerifyProof(input)
	require.ErrorIs(t, err, ErrTxIDMismatch)
}

func TestVerifyProof_RejectsBadMerklePath(t *testing.T) {
	lc, input, _ := buildVerifiableFixture(t)
	v, _ := newTestVerifier(lc)
	input.Proof.Siblings = [][32]byte{{0x01}}
	input.Proof.PathBits = []bool{false}

	_, err := v.VerifyProof(input)
	require.ErrorIs(t, err, ErrBadMerkleProof)
}

func TestVerifyProof_RejectsAmountOutOfRange(t *testing.T) {
	commitment := make([]byte, 32)

	raw := newTxBuilder().
		version(2).
		varInt(1).input().
		varInt(2).
		output(1, p2wpkhScript()).
		output(0, opReturnScript(commitment)).
		locktime(0)

	txid, err := ComputeTxID(raw)
	require.NoError(t, err)

	var zero [32]byte
	header, err := ParseBlockHeader(buildHeaderBytes(t, 1, zero, txid, 0, 0, 0))
	require.NoError(t, err)

	lc := NewLightClient(1)
	lc.AddHeader(10, header)

	v, _ := newTestVerifier(lc)

	input := ProofInput{
		SweepTxID:   "sweep-low",
		RawTx:       raw,
		BlockHeight: 10,
		Proof: &MerkleProof{
			TxID:        txid,
			BlockHeight: 10,
		},
	}

	_, err = v.VerifyProof(input)
	require.ErrorIs(t, err, ErrAmountOutOfRange)
}
