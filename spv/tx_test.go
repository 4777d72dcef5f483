package spv

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

// txBuilder assembles a raw Bitcoin transaction byte-by-byte for tests,
// avoiding hand-written hex blobs.
type txBuilder struct {
	buf bytes.Buffer
}

func newTxBuilder() *txBuilder { return &txBuilder{} }

func (b *txBuilder) version(v uint32) *txBuilder {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
	return b
}

func (b *txBuilder) segwitMarker() *txBuilder {
	b.buf.Write([]byte{0x00, 0x01})
	return b
}

func (b *txBuilder) varInt(v uint64) *txBuilder {
	writeVarInt(&b.buf, v)
	return b
}

func (b *txBuilder) input() *txBuilder {
	b.buf.Write(make([]byte, 32)) // prev txid
	b.buf.Write(make([]byte, 4))  // prev vout
	b.varInt(0)                   // empty scriptSig
	b.buf.Write([]byte{0xff, 0xff, 0xff, 0xff})
	return b
}

func (b *txBuilder) output(value int64, script []byte) *txBuilder {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(value))
	b.buf.Write(tmp[:])
	b.varInt(uint64(len(script)))
	b.buf.Write(script)
	return b
}

func (b *txBuilder) witness(stacks [][][]byte) *txBuilder {
	for _, stack := range stacks {
		b.varInt(uint64(len(stack)))
		for _, item := range stack {
			b.varInt(uint64(len(item)))
			b.buf.Write(item)
		}
	}
	return b
}

func (b *txBuilder) locktime(v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	b.buf.Write(tmp[:])
	return b.buf.Bytes()
}

func p2wpkhScript() []byte {
	script := make([]byte, 22)
	script[0] = 0x00
	script[1] = 0x14
	return script
}

func opReturnScript(pushdata []byte) []byte {
	var out []byte
	out = append(out, opReturnOpcode)
	switch {
	case len(pushdata) <= 75:
		out = append(out, byte(len(pushdata)))
	case len(pushdata) <= 255:
		out = append(out, 0x4c, byte(len(pushdata)))
	default:
		lenBytes := make([]byte, 2)
		binary.LittleEndian.PutUint16(lenBytes, uint16(len(pushdata)))
		out = append(out, 0x4d)
		out = append(out, lenBytes...)
	}
	out = append(out, pushdata...)
	return out
}

func TestParseTransaction_NonSegwit(t *testing.T) {
	commitment := make([]byte, 32)
	commitment[0] = 0xab

	raw := newTxBuilder().
		version(2).
		varInt(1).
		input().
		varInt(2).
		output(50000, p2wpkhScript()).
		output(0, opReturnScript(commitment)).
		locktime(0)

	parsed, err := ParseTransaction(raw)
	require.NoError(t, err)
	require.False(t, parsed.IsSegwit)
	require.Len(t, parsed.Outputs, 2)

	deposit, err := parsed.FindDepositOutput()
	require.NoError(t, err)
	require.Equal(t, int64(50000), deposit.ValueSats)

	c, err := parsed.ExtractCommitment()
	require.NoError(t, err)
	require.Equal(t, commitment, c[:])
}

func TestParseTransaction_Segwit(t *testing.T) {
	commitment := make([]byte, 32)
	commitment[0] = 0xcd

	b := newTxBuilder()
	b.version(2).segwitMarker().
		varInt(1).input().
		varInt(2).
		output(75000, p2wpkhScript()).
		output(0, opReturnScript(commitment))
	b.witness([][][]byte{{{0x01, 0x02}, {0x03}}})
	raw := b.locktime(0)

	parsed, err := ParseTransaction(raw)
	require.NoError(t, err)
	require.True(t, parsed.IsSegwit)
	require.Len(t, parsed.Outputs, 2)

	deposit, err := parsed.FindDepositOutput()
	require.NoError(t, err)
	require.Equal(t, int64(75000), deposit.ValueSats)
}

func TestComputeTxID_StripsWitnessData(t *testing.T) {
	commitment := make([]byte, 32)

	legacyBuilder := newTxBuilder()
	legacyBuilder.version(2).
		varInt(1).input().
		varInt(1).output(1000, p2wpkhScript())
	legacyRaw := legacyBuilder.locktime(0)
	legacyTxID := doubleSHA256(legacyRaw)

	segwitBuilder := newTxBuilder()
	segwitBuilder.version(2).segwitMarker().
		varInt(1).input().
		varInt(1).output(1000, p2wpkhScript())
	segwitBuilder.witness([][][]byte{{{0xaa, 0xbb}}})
	segwitRaw := segwitBuilder.locktime(0)

	computed, err := ComputeTxID(segwitRaw)
	require.NoError(t, err)
	require.Equal(t, legacyTxID, computed, "witness data must not affect the legacy txid")
	_ = commitment
}

func TestExtractCommitment_StealthVariant(t *testing.T) {
	viewPub := make([]byte, 32)
	spendPub := make([]byte, 33)
	commitment := make([]byte, 32)
	commitment[31] = 0x42

	payload := append([]byte{stealthOpReturnMagic, 0x02}, viewPub...)
	payload = append(payload, spendPub...)
	payload = append(payload, commitment...)
	require.Len(t, payload, 99)

	raw := newTxBuilder().
		version(1).
		varInt(1).input().
		varInt(1).output(0, opReturnScript(payload)).
		locktime(0)

	parsed, err := ParseTransaction(raw)
	require.NoError(t, err)

	c, err := parsed.ExtractCommitment()
	require.NoError(t, err)
	require.Equal(t, commitment, c[:])
}

func TestExtractCommitment_LegacyV1Variant(t *testing.T) {
	payload := make([]byte, 142)
	commitment := payload[110:142]
	commitment[0] = 0x99

	raw := newTxBuilder().
		version(1).
		varInt(1).input().
		varInt(1).output(0, opReturnScript(payload)).
		locktime(0)

	parsed, err := ParseTransaction(raw)
	require.NoError(t, err)

	c, err := parsed.ExtractCommitment()
	require.NoError(t, err)
	require.Equal(t, payload[110:142], c[:])
}

func TestExtractCommitment_NoneFound(t *testing.T) {
	raw := newTxBuilder().
		version(1).
		varInt(1).input().
		varInt(1).output(1000, p2wpkhScript()).
		locktime(0)

	parsed, err := ParseTransaction(raw)
	require.NoError(t, err)

	_, err = parsed.ExtractCommitment()
	require.ErrorIs(t, err, ErrCommitmentNotFound)
}

func TestFindDepositOutput_NoneFound(t *testing.T) {
	raw := newTxBuilder().
		version(1).
		varInt(1).input().
		varInt(1).output(0, opReturnScript(make([]byte, 32))).
		locktime(0)

	parsed, err := ParseTransaction(raw)
	require.NoError(t, err)

	_, err = parsed.FindDepositOutput()
	require.ErrorIs(t, err, ErrNoDepositOutput)
}
