package spv

import (
	"encoding/binary"
	"fmt"
)

// BlockHeader is the 80-byte Bitcoin block header decoded per spec.md §3,
// plus the light client's own annotations (height, cumulative chainwork).
type BlockHeader struct {
	Version    int32
	PrevHash   [32]byte
	MerkleRoot [32]byte
	Timestamp  uint32
	Bits       uint32
	Nonce      uint32

	Height          int64
	CumulativeWork  *uint64 // optional; nil if not tracked
}

// ParseBlockHeader decodes 80 raw header bytes.
func ParseBlockHeader(raw []byte) (*BlockHeader, error) {
	if len(raw) != 80 {
		return nil, fmt.Errorf("%w: header must be 80 bytes, got %d", ErrMalformedTransaction, len(raw))
	}

	h := &BlockHeader{
		Version:   int32(binary.LittleEndian.Uint32(raw[0:4])),
		Timestamp: binary.LittleEndian.Uint32(raw[68:72]),
		Bits:      binary.LittleEndian.Uint32(raw[72:76]),
		Nonce:     binary.LittleEndian.Uint32(raw[76:80]),
	}
	copy(h.PrevHash[:], raw[4:36])
	copy(h.MerkleRoot[:], raw[36:68])

	return h, nil
}

// Hash computes the block hash (double-SHA256 of the 80-byte header) in
// internal byte order.
func (h *BlockHeader) Hash() [32]byte {
	raw := make([]byte, 80)
	binary.LittleEndian.PutUint32(raw[0:4], uint32(h.Version))
	copy(raw[4:36], h.PrevHash[:])
	copy(raw[36:68], h.MerkleRoot[:])
	binary.LittleEndian.PutUint32(raw[68:72], h.Timestamp)
	binary.LittleEndian.PutUint32(raw[72:76], h.Bits)
	binary.LittleEndian.PutUint32(raw[76:80], h.Nonce)
	return doubleSHA256(raw)
}

// LightClient is a minimal store of confirmed block headers keyed by
// height, backing the SPV verifier's "required confirmations" and
// "header missing" checks, per spec.md §4.6 step 1.
type LightClient struct {
	headers      map[int64]*BlockHeader
	tipHeight    int64
	requiredConf uint32
}

// NewLightClient constructs a LightClient requiring requiredConf
// confirmations (default 6, per spec.md §4.6).
func NewLightClient(requiredConf uint32) *LightClient {
	return &LightClient{
		headers:      make(map[int64]*BlockHeader),
		requiredConf: requiredConf,
	}
}

// AddHeader records header as the header for height, advancing the tip
// if height is the new highest seen.
func (lc *LightClient) AddHeader(height int64, header *BlockHeader) {
	header.Height = height
	lc.headers[height] = header
	if height > lc.tipHeight {
		lc.tipHeight = height
	}
}

// HeaderAt returns the header stored for height, or ErrHeaderMissing.
func (lc *LightClient) HeaderAt(height int64) (*BlockHeader, error) {
	h, ok := lc.headers[height]
	if !ok {
		return nil, ErrHeaderMissing
	}
	return h, nil
}

// Confirmations returns the confirmation count for height against the
// client's current tip: max(0, tip - height + 1).
func (lc *LightClient) Confirmations(height int64) uint32 {
	if height <= 0 || height > lc.tipHeight {
		return 0
	}
	return uint32(lc.tipHeight - height + 1)
}

// RequireConfirmed returns ErrHeaderMissing if no header is known for
// height, or ErrInsufficientConfs if it has fewer than the configured
// required confirmations.
func (lc *LightClient) RequireConfirmed(height int64) (*BlockHeader, error) {
	header, err := lc.HeaderAt(height)
	if err != nil {
		return nil, err
	}
	if lc.Confirmations(height) < lc.requiredConf {
		return nil, ErrInsufficientConfs
	}
	return header, nil
}
