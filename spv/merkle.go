package spv

import "encoding/hex"

// MerkleProof is the internal-byte-order proof shape used for
// verification, per spec.md §3 TxMerkleProof: txid, an ordered list of
// sibling hashes from leaf to root, a position bitstring (bit i: whether
// this node is the right child at level i), and the containing block's
// height.
type MerkleProof struct {
	TxID        [32]byte
	BlockHeight int64
	Siblings    [][32]byte
	// PathBits[i] is true if the node is the right child at level i,
	// i.e. the sibling is combined as DSHA256(sibling || cur) rather
	// than DSHA256(cur || sibling).
	PathBits []bool
}

// ToInternalMerkleProof converts a chain-adapter MerkleProof (display
// byte order siblings, position as a packed integer) into the internal
// byte-order shape used by VerifyPath, per spec.md §4.6's byte-order
// contract: "siblings and txid used in Merkle verification are always in
// internal order".
func ToInternalMerkleProof(txidDisplay string, blockHeight int64, siblingsDisplay []string, pos uint32) (*MerkleProof, error) {
	txidBytes, err := hex.DecodeString(txidDisplay)
	if err != nil {
		return nil, err
	}
	var txid [32]byte
	copy(txid[:], reverseBytes(txidBytes))

	siblings := make([][32]byte, len(siblingsDisplay))
	pathBits := make([]bool, len(siblingsDisplay))
	for i, s := range siblingsDisplay {
		b, err := hex.DecodeString(s)
		if err != nil {
			return nil, err
		}
		copy(siblings[i][:], reverseBytes(b))
		pathBits[i] = (pos>>uint(i))&1 == 1
	}

	return &MerkleProof{
		TxID:        txid,
		BlockHeight: blockHeight,
		Siblings:    siblings,
		PathBits:    pathBits,
	}, nil
}

// VerifyPath walks the Merkle path per spec.md §4.6 step 4 and returns
// whether it resolves to merkleRoot.
func VerifyPath(proof *MerkleProof, merkleRoot [32]byte) bool {
	cur := proof.TxID
	for i, sibling := range proof.Siblings {
		if proof.PathBits[i] {
			// This node is the right child: combine sibling||cur.
			cur = doubleSHA256(append(append([]byte{}, sibling[:]...), cur[:]...))
		} else {
			cur = doubleSHA256(append(append([]byte{}, cur[:]...), sibling[:]...))
		}
	}
	return cur == merkleRoot
}
