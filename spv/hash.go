package spv

import "crypto/sha256"

// doubleSHA256 implements Bitcoin's double-hash convention, per spec.md
// §4.6 numeric semantics: SHA256(SHA256(x)).
func doubleSHA256(data []byte) [32]byte {
	first := sha256.Sum256(data)
	return sha256.Sum256(first[:])
}

// reverseBytes returns a new slice with b's bytes in reverse order, used
// to convert between internal byte order (used throughout Merkle/hash
// computation) and the display byte order returned by chain APIs.
func reverseBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, v := range b {
		out[len(b)-1-i] = v
	}
	return out
}
