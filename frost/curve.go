package frost

import (
	"crypto/sha256"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
)

// curve is the secp256k1 group FROST operates over, matching the curve
// used for BIP-340 Schnorr signatures and Taproot key-path spends.
var curve = btcec.S256()

// order is the group order N.
var order = curve.N

// scalar is a value mod N, represented as a big.Int reduced into [0, N).
type scalar struct {
	v *big.Int
}

func newScalar(v *big.Int) scalar {
	return scalar{v: new(big.Int).Mod(v, order)}
}

func scalarFromBytes(b []byte) scalar {
	return newScalar(new(big.Int).SetBytes(b))
}

func (s scalar) bytes() []byte {
	b := make([]byte, 32)
	s.v.FillBytes(b)
	return b
}

func (s scalar) add(o scalar) scalar {
	return newScalar(new(big.Int).Add(s.v, o.v))
}

func (s scalar) mul(o scalar) scalar {
	return newScalar(new(big.Int).Mul(s.v, o.v))
}

func (s scalar) sub(o scalar) scalar {
	return newScalar(new(big.Int).Sub(s.v, o.v))
}

func (s scalar) inverse() scalar {
	return newScalar(new(big.Int).ModInverse(s.v, order))
}

func (s scalar) isZero() bool {
	return s.v.Sign() == 0
}

func (s scalar) negate() scalar {
	return newScalar(new(big.Int).Neg(s.v))
}

// point is an affine secp256k1 curve point.
type point struct {
	x, y *big.Int
}

func (p point) isInfinity() bool {
	return p.x == nil || p.y == nil || (p.x.Sign() == 0 && p.y.Sign() == 0)
}

func scalarBaseMult(s scalar) point {
	x, y := curve.ScalarBaseMult(s.bytes())
	return point{x: x, y: y}
}

func scalarMult(p point, s scalar) point {
	x, y := curve.ScalarMult(p.x, p.y, s.bytes())
	return point{x: x, y: y}
}

func pointAdd(a, b point) point {
	if a.isInfinity() {
		return b
	}
	if b.isInfinity() {
		return a
	}
	x, y := curve.Add(a.x, a.y, b.x, b.y)
	return point{x: x, y: y}
}

// xOnlyBytes returns the 32-byte X coordinate used in BIP-340 encodings.
func (p point) xOnlyBytes() []byte {
	b := make([]byte, 32)
	p.x.FillBytes(b)
	return b
}

// hasEvenY reports whether p's Y coordinate is even, per BIP-340 lifting
// rules.
func (p point) hasEvenY() bool {
	return p.y.Bit(0) == 0
}

// liftEvenY negates p if needed so it has an even Y coordinate, mirroring
// BIP-340's implicit choice of the "lifted" point for an x-only key.
func (p point) liftEvenY() point {
	if p.hasEvenY() {
		return p
	}
	return point{x: p.x, y: new(big.Int).Sub(curve.P, p.y)}
}

func pubKeyToPoint(pub *btcec.PublicKey) point {
	return point{x: pub.X(), y: pub.Y()}
}

// taggedHash implements the BIP-340 tagged hash construction:
// SHA256(SHA256(tag) || SHA256(tag) || msg...).
func taggedHash(tag string, msgs ...[]byte) []byte {
	tagHash := sha256.Sum256([]byte(tag))

	h := sha256.New()
	h.Write(tagHash[:])
	h.Write(tagHash[:])
	for _, m := range msgs {
		h.Write(m)
	}
	return h.Sum(nil)
}

// hashToScalar reduces a tagged hash output mod N.
func hashToScalar(tag string, msgs ...[]byte) scalar {
	return scalarFromBytes(taggedHash(tag, msgs...))
}

// lagrangeCoefficient computes λ_i for participant i over the set of
// identifiers `all`, evaluated at x=0 (standard Shamir reconstruction
// coefficient).
func lagrangeCoefficient(i Identifier, all []Identifier) scalar {
	num := newScalar(big.NewInt(1))
	den := newScalar(big.NewInt(1))

	xi := newScalar(big.NewInt(int64(i)))

	for _, j := range all {
		if j == i {
			continue
		}
		xj := newScalar(big.NewInt(int64(j)))

		num = num.mul(xj)
		den = den.mul(xj.sub(xi))
	}

	return num.mul(den.inverse())
}
