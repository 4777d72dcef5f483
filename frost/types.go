package frost

import "time"

// Identifier is a FROST participant index, 1-based (0 is never valid).
type Identifier uint16

// Commitment is a signer's round-1 nonce commitment pair (D, E), sent to
// the coordinator ahead of round 2.
type Commitment struct {
	D point
	E point
}

// Bytes serializes the commitment as 64 bytes: 32-byte X of D, 32-byte X
// of E. Only X coordinates travel the wire; Y parity is reconstructed
// with liftEvenY when the commitment is used, matching BIP-340 x-only
// conventions elsewhere in the bridge.
func (c Commitment) Bytes() []byte {
	out := make([]byte, 64)
	copy(out[:32], c.D.xOnlyBytes())
	copy(out[32:], c.E.xOnlyBytes())
	return out
}

// KeyPackage is a signer's share of the group secret key, produced by DKG.
type KeyPackage struct {
	Identifier     Identifier
	SecretShare    scalar
	GroupPublicKey point
	// VerificationShares maps each participant's identifier to their
	// public verification share, used by the coordinator (or an
	// auditor) to check a signer's partial signature independently.
	VerificationShares map[Identifier]point
	Threshold          int
	TotalParticipants  int
}

// signingSession is the server-side state for one in-flight signing
// ceremony, per spec.md §3 "Signing session (on a signer)".
type signingSession struct {
	sessionID       string
	sighash         [32]byte
	tweak           *[32]byte
	nonceD, nonceE  scalar
	commitment      Commitment
	round2Completed bool
	createdAt       time.Time
}

// dkgCeremony is the server-side state for one in-flight DKG ceremony.
type dkgCeremony struct {
	ceremonyID  string
	threshold   int
	total       int
	self        Identifier
	coeffs      []scalar // this signer's secret polynomial coefficients
	commitments []point  // g^coeff_i, broadcast in round 1
	// round2Shares holds the (f_i(j)) shares this signer computed for
	// every other participant j, sent out in round 2.
	round2Shares map[Identifier]scalar
	createdAt    time.Time
}

const (
	// SessionTTL is how long an idle signing session lives before GC,
	// per spec.md §4.3.
	SessionTTL = 5 * time.Minute

	// CeremonyTTL is how long an idle DKG ceremony lives before GC.
	CeremonyTTL = time.Hour
)
