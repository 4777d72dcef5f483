package frost

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/btcsuite/btclog"
)

// SignerConfig configures a Signer node.
type SignerConfig struct {
	SignerID string

	// KeystorePath is where the encrypted key share is persisted /
	// loaded from. If empty, the signer never auto-loads or persists a
	// key (useful for tests that inject a KeyPackage directly).
	KeystorePath string
	Password     string

	// Clock allows tests to control time for TTL/GC behavior. Defaults
	// to time.Now.
	Clock func() time.Time

	Logger btclog.Logger
}

// Signer is a single FROST threshold-signer node. It holds at most one
// key share and serves DKG and signing-session operations, per spec.md
// §4.3. It is safe for concurrent use.
type Signer struct {
	cfg SignerConfig
	log btclog.Logger

	mu         sync.RWMutex
	key        *KeyPackage
	sessions   map[string]*signingSession
	ceremonies map[string]*dkgCeremony

	clock func() time.Time
}

// NewSigner constructs a Signer, attempting to load an existing keystore
// file if cfg.KeystorePath is set and exists. Absent a keystore, the
// signer starts in the "no_key" state and only serves DKG endpoints.
func NewSigner(cfg SignerConfig) (*Signer, error) {
	if cfg.Logger == nil {
		cfg.Logger = btclog.Disabled
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	n := &Signer{
		cfg:        cfg,
		log:        cfg.Logger,
		sessions:   make(map[string]*signingSession),
		ceremonies: make(map[string]*dkgCeremony),
		clock:      cfg.Clock,
	}

	if cfg.KeystorePath != "" && KeystoreExists(cfg.KeystorePath) {
		kp, err := LoadKeystore(cfg.KeystorePath, cfg.Password)
		if err != nil {
			return nil, err
		}
		n.key = kp
		n.log.Infof("loaded key share for signer %d (group %x)", kp.Identifier, kp.GroupPublicKey.xOnlyBytes())
	}

	return n, nil
}

// HasKey reports whether a key share is loaded.
func (n *Signer) HasKey() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.key != nil
}

// Identifier returns this signer's FROST identifier. Only valid once a
// key is loaded.
func (n *Signer) Identifier() Identifier {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.key == nil {
		return 0
	}
	return n.key.Identifier
}

// GroupPublicKey returns the group's x-only public key. Only valid once a
// key is loaded.
func (n *Signer) GroupPublicKey() []byte {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.key == nil {
		return nil
	}
	return n.key.GroupPublicKey.xOnlyBytes()
}

// DKGRound1 generates a fresh polynomial for ceremonyID and returns the
// Feldman commitments to broadcast. See spec.md §4.3 dkg/round1.
func (n *Signer) DKGRound1(ceremonyID string, self Identifier, threshold, total int) (*DKGRound1Package, error) {
	return n.dkgRound1(ceremonyID, self, threshold, total)
}

// DKGRound2 evaluates this signer's polynomial at every other
// participant, per spec.md §4.3 dkg/round2.
func (n *Signer) DKGRound2(ceremonyID string, allRound1 []DKGRound1Package) ([]DKGRound2Package, error) {
	return n.dkgRound2(ceremonyID, allRound1)
}

// DKGFinalize combines received shares into a persisted KeyPackage, per
// spec.md §4.3 dkg/finalize.
func (n *Signer) DKGFinalize(ceremonyID string, allRound1 []DKGRound1Package, received []DKGRound2Package) (*KeyPackage, error) {
	return n.dkgFinalize(ceremonyID, allRound1, received)
}

// SignRound1 begins a new single-use signing session bound to sighash
// (and optional tweak), returning this signer's nonce commitment. See
// spec.md §4.3 sign/round1.
func (n *Signer) SignRound1(sessionID string, sighash [32]byte, tweak *[32]byte) (Commitment, Identifier, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.key == nil {
		return Commitment{}, 0, ErrNoKey
	}
	if _, exists := n.sessions[sessionID]; exists {
		return Commitment{}, 0, ErrSessionExists
	}

	d, err := randomScalar()
	if err != nil {
		return Commitment{}, 0, fmt.Errorf("frost: generating nonce d: %w", err)
	}
	e, err := randomScalar()
	if err != nil {
		return Commitment{}, 0, fmt.Errorf("frost: generating nonce e: %w", err)
	}

	commitment := Commitment{D: scalarBaseMult(d), E: scalarBaseMult(e)}

	n.sessions[sessionID] = &signingSession{
		sessionID:  sessionID,
		sighash:    sighash,
		tweak:      tweak,
		nonceD:     d,
		nonceE:     e,
		commitment: commitment,
		createdAt:  n.clock(),
	}

	return commitment, n.key.Identifier, nil
}

// SignRound2 computes this signer's signature share for sessionID, given
// every participant's round-1 commitment. Enforces single-use (a session
// that already completed round2 is rejected) and sighash/tweak
// consistency with round1, per spec.md §4.3.
func (n *Signer) SignRound2(
	sessionID string,
	sighash [32]byte,
	tweak *[32]byte,
	commitments map[Identifier]Commitment,
	identifiers []Identifier,
) (scalar, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.key == nil {
		return scalar{}, ErrNoKey
	}

	session, ok := n.sessions[sessionID]
	if !ok {
		return scalar{}, ErrSessionNotFound
	}
	if session.round2Completed {
		return scalar{}, ErrSessionUsed
	}
	if session.sighash != sighash || !tweakEqual(session.tweak, tweak) {
		return scalar{}, ErrSighashMismatch
	}

	self := n.key.Identifier
	groupCommitment, bindingFactors := computeGroupCommitment(commitments, identifiers, sighash[:])

	effectivePubKey, _, shareParity, _ := applyTweak(n.key.GroupPublicKey, tweak)

	challenge := schnorrChallenge(groupCommitment, effectivePubKey, sighash[:])
	lambda := lagrangeCoefficient(self, identifiers)

	rho := bindingFactors[self]
	nonceTerm := session.nonceD.add(session.nonceE.mul(rho))
	if !groupCommitment.hasEvenY() {
		nonceTerm = nonceTerm.negate()
	}

	sigTerm := challenge.mul(lambda).mul(n.key.SecretShare)
	if shareParity < 0 {
		sigTerm = sigTerm.negate()
	}

	share := nonceTerm.add(sigTerm)

	session.round2Completed = true

	return share, nil
}

// AggregateInput bundles everything the aggregate operation needs. Any
// signer holding the session's public state can perform aggregation; it
// requires no secret material beyond what's already public to the
// coordinator.
type AggregateInput struct {
	Commitments map[Identifier]Commitment
	Identifiers []Identifier
	Shares      map[Identifier]scalar
	Sighash     [32]byte
	Tweak       *[32]byte
	GroupPubKey point
}

// Aggregate combines per-signer signature shares into a 64-byte BIP-340
// Schnorr signature, per spec.md §4.3 aggregate. The per-signer shares only
// cover the secret-key term of the signature; the public tweak term e·t is
// untouched by any individual signer (t is public, not secret-shared) and
// is added once here, with the same X-parity correction SignRound2 applies
// to each share's secret-key term.
func Aggregate(in AggregateInput) ([64]byte, error) {
	groupCommitment, _ := computeGroupCommitment(in.Commitments, in.Identifiers, in.Sighash[:])

	effectivePubKey, tweakScalar, _, tweakParity := applyTweak(in.GroupPubKey, in.Tweak)
	challenge := schnorrChallenge(groupCommitment, effectivePubKey, in.Sighash[:])

	s := newScalar(big.NewInt(0))
	for _, id := range in.Identifiers {
		share, ok := in.Shares[id]
		if !ok {
			return [64]byte{}, fmt.Errorf("%w: missing share from signer %d", ErrIncompleteResponses, id)
		}
		s = s.add(share)
	}

	tweakTerm := challenge.mul(tweakScalar)
	if tweakParity < 0 {
		tweakTerm = tweakTerm.negate()
	}
	s = s.add(tweakTerm)

	var sig [64]byte
	copy(sig[:32], groupCommitment.xOnlyBytes())
	copy(sig[32:], s.bytes())
	return sig, nil
}

// GC removes signing sessions older than SessionTTL and DKG ceremonies
// older than CeremonyTTL. It never removes a session mid-request because
// it only inspects createdAt timestamps under the same lock every other
// operation uses. See spec.md §4.3 "Cleanup".
func (n *Signer) GC() (sessionsRemoved, ceremoniesRemoved int) {
	n.mu.Lock()
	defer n.mu.Unlock()

	now := n.clock()

	for id, s := range n.sessions {
		if now.Sub(s.createdAt) > SessionTTL {
			delete(n.sessions, id)
			sessionsRemoved++
		}
	}
	for id, c := range n.ceremonies {
		if now.Sub(c.createdAt) > CeremonyTTL {
			delete(n.ceremonies, id)
			ceremoniesRemoved++
		}
	}
	return sessionsRemoved, ceremoniesRemoved
}

// RunGCLoop runs GC on interval until ctx-like stop channel closes. It is
// intended to be launched as its own goroutine by the owning process.
func (n *Signer) RunGCLoop(interval time.Duration, quit <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed, ceremonies := n.GC()
			if removed > 0 || ceremonies > 0 {
				n.log.Debugf("gc: removed %d sessions, %d ceremonies", removed, ceremonies)
			}
		case <-quit:
			return
		}
	}
}

func tweakEqual(a, b *[32]byte) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// randomSessionID returns a UUID-shaped random session identifier. Real
// callers are expected to supply their own (typically a google/uuid
// value); this helper exists for tests and single-process convenience.
func randomSessionID() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", b), nil
}
