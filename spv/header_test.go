package spv

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildHeaderBytes(t *testing.T, version int32, prevHash, merkleRoot [32]byte, timestamp, bits, nonce uint32) []byte {
	t.Helper()
	raw := make([]byte, 80)
	binary.LittleEndian.PutUint32(raw[0:4], uint32(version))
	copy(raw[4:36], prevHash[:])
	copy(raw[36:68], merkleRoot[:])
	binary.LittleEndian.PutUint32(raw[68:72], timestamp)
	binary.LittleEndian.PutUint32(raw[72:76], bits)
	binary.LittleEndian.PutUint32(raw[76:80], nonce)
	return raw
}

func TestParseBlockHeader_RoundTrip(t *testing.T) {
	var prevHash, merkleRoot [32]byte
	prevHash[0] = 0xab
	merkleRoot[31] = 0xcd

	raw := buildHeaderBytes(t, 536870912, prevHash, merkleRoot, 1700000000, 0x1d00ffff, 12345)

	h, err := ParseBlockHeader(raw)
	require.NoError(t, err)
	require.Equal(t, int32(536870912), h.Version)
	require.Equal(t, prevHash, h.PrevHash)
	require.Equal(t, merkleRoot, h.MerkleRoot)
	require.Equal(t, uint32(1700000000), h.Timestamp)
	require.Equal(t, uint32(0x1d00ffff), h.Bits)
	require.Equal(t, uint32(12345), h.Nonce)

	hash1 := h.Hash()
	hash2 := h.Hash()
	require.Equal(t, hash1, hash2, "hashing is deterministic")

	mutated := *h
	mutated.Nonce++
	require.NotEqual(t, hash1, mutated.Hash(), "changing the nonce changes the hash")
}

func TestParseBlockHeader_RejectsWrongLength(t *testing.T) {
	_, err := ParseBlockHeader(make([]byte, 79))
	require.ErrorIs(t, err, ErrMalformedTransaction)
}

func TestLightClient_ConfirmationsAndGating(t *testing.T) {
	lc := NewLightClient(6)

	var zero [32]byte
	h, err := ParseBlockHeader(buildHeaderBytes(t, 1, zero, zero, 0, 0, 0))
	require.NoError(t, err)
	lc.AddHeader(100, h)

	_, err = lc.RequireConfirmed(100)
	require.ErrorIs(t, err, ErrInsufficientConfs)

	for height := int64(101); height <= 105; height++ {
		h2, err := ParseBlockHeader(buildHeaderBytes(t, 1, zero, zero, 0, 0, uint32(height)))
		require.NoError(t, err)
		lc.AddHeader(height, h2)
	}

	require.Equal(t, uint32(6), lc.Confirmations(100))
	got, err := lc.RequireConfirmed(100)
	require.NoError(t, err)
	require.NotNil(t, got)

	_, err = lc.HeaderAt(999)
	require.ErrorIs(t, err, ErrHeaderMissing)
}
