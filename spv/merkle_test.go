package spv

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildMerkleTree computes the root of a 4-leaf tree using Bitcoin's
// pairwise double-SHA256 convention, and returns the proof path for
// leaf index 1 for use as a known-answer test fixture.
func buildMerkleTree(leaves [4][32]byte) (root [32]byte, siblings [][32]byte, pathBits []bool) {
	level01 := doubleSHA256(append(append([]byte{}, leaves[0][:]...), leaves[1][:]...))
	level23 := doubleSHA256(append(append([]byte{}, leaves[2][:]...), leaves[3][:]...))
	root = doubleSHA256(append(append([]byte{}, level01[:]...), level23[:]...))

	// Proof for leaf index 1: sibling at level 0 is leaf 0 (leaf1 is the
	// right child), sibling at level 1 is level23 (level01 is the left
	// child).
	siblings = [][32]byte{leaves[0], level23}
	pathBits = []bool{true, false}
	return
}

func TestVerifyPath_KnownAnswer(t *testing.T) {
	var leaves [4][32]byte
	for i := range leaves {
		leaves[i][0] = byte(i + 1)
	}

	root, siblings, pathBits := buildMerkleTree(leaves)

	proof := &MerkleProof{
		TxID:        leaves[1],
		BlockHeight: 42,
		Siblings:    siblings,
		PathBits:    pathBits,
	}

	require.True(t, VerifyPath(proof, root))
}

func TestVerifyPath_RejectsTamperedRoot(t *testing.T) {
	var leaves [4][32]byte
	for i := range leaves {
		leaves[i][0] = byte(i + 1)
	}

	root, siblings, pathBits := buildMerkleTree(leaves)
	root[0] ^= 0xff

	proof := &MerkleProof{
		TxID:        leaves[1],
		BlockHeight: 42,
		Siblings:    siblings,
		PathBits:    pathBits,
	}

	require.False(t, VerifyPath(proof, root))
}

func TestToInternalMerkleProof_ReversesByteOrder(t *testing.T) {
	txidDisplay := strings.Repeat("00", 31) + "0f"
	siblingDisplay := strings.Repeat("00", 31) + "10"

	proof, err := ToInternalMerkleProof(txidDisplay, 10, []string{siblingDisplay}, 0b1)
	require.NoError(t, err)

	expectedTxID, err := hex.DecodeString(txidDisplay)
	require.NoError(t, err)
	require.Equal(t, reverseBytes(expectedTxID), proof.TxID[:])
	require.True(t, proof.PathBits[0])
}

func TestToInternalMerkleProof_RejectsBadHex(t *testing.T) {
	_, err := ToInternalMerkleProof("not-hex", 10, nil, 0)
	require.Error(t, err)
}
