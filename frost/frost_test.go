package frost

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/txscript"
	"github.com/stretchr/testify/require"
)

// runDKG performs a full 3-round DKG ceremony among n in-process signers
// and returns their finalized KeyPackages.
func runDKG(t *testing.T, signers []*Signer, threshold, total int) []*KeyPackage {
	t.Helper()

	ceremonyID := "ceremony-1"

	round1 := make([]DKGRound1Package, 0, total)
	for i, s := range signers {
		pkg, err := s.DKGRound1(ceremonyID, Identifier(i+1), threshold, total)
		require.NoError(t, err)
		round1 = append(round1, *pkg)
	}

	// Every signer computes round2 shares for every other signer.
	allRound2 := make([]DKGRound2Package, 0)
	for _, s := range signers {
		shares, err := s.DKGRound2(ceremonyID, round1)
		require.NoError(t, err)
		allRound2 = append(allRound2, shares...)
	}

	keys := make([]*KeyPackage, 0, total)
	for _, s := range signers {
		kp, err := s.DKGFinalize(ceremonyID, round1, allRound2)
		require.NoError(t, err)
		keys = append(keys, kp)
	}

	return keys
}

func TestDKG_AllSignersAgreeOnGroupKey(t *testing.T) {
	t.Parallel()

	signers := []*Signer{
		mustNewSigner(t),
		mustNewSigner(t),
		mustNewSigner(t),
	}

	keys := runDKG(t, signers, 2, 3)

	for i := 1; i < len(keys); i++ {
		require.Equal(t, keys[0].GroupPublicKey.xOnlyBytes(), keys[i].GroupPublicKey.xOnlyBytes())
	}
}

func TestSigning_TwoOfThreeProducesValidSchnorrSignature(t *testing.T) {
	t.Parallel()

	signers := []*Signer{
		mustNewSigner(t),
		mustNewSigner(t),
		mustNewSigner(t),
	}

	keys := runDKG(t, signers, 2, 3)
	for i, s := range signers {
		s.mu.Lock()
		s.key = keys[i]
		s.mu.Unlock()
	}

	var sighash [32]byte
	copy(sighash[:], []byte("0123456789abcdef0123456789abcdef"))

	sessionID := "session-1"
	chosen := signers[:2] // 2-of-3

	commitments := make(map[Identifier]Commitment)
	identifiers := make([]Identifier, 0, 2)
	for _, s := range chosen {
		c, id, err := s.SignRound1(sessionID, sighash, nil)
		require.NoError(t, err)
		commitments[id] = c
		identifiers = append(identifiers, id)
	}

	shares := make(map[Identifier]scalar)
	for _, s := range chosen {
		share, err := s.SignRound2(sessionID, sighash, nil, commitments, identifiers)
		require.NoError(t, err)
		shares[s.Identifier()] = share
	}

	groupPub := keys[0].GroupPublicKey

	sig, err := Aggregate(AggregateInput{
		Commitments: commitments,
		Identifiers: identifiers,
		Shares:      shares,
		Sighash:     sighash,
		GroupPubKey: groupPub,
	})
	require.NoError(t, err)

	parsedSig, err := schnorr.ParseSignature(sig[:])
	require.NoError(t, err)

	internalKey, err := schnorr.ParsePubKey(groupPub.xOnlyBytes())
	require.NoError(t, err)
	// Aggregate always applies the BIP-341 tweak, even with a nil
	// AggregateInput.Tweak (an empty script root), matching
	// txscript.ComputeTaprootOutputKey(pub, nil) -- never the raw group key.
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, nil)

	require.True(t, parsedSig.Verify(sighash[:], outputKey))
}

// TestSigning_TweakedAggregateVerifiesUnderTaprootOutputKey exercises the
// production sweep path: a non-nil commitment tweak, matching what
// deposit.Engine passes as ThresholdSigner's tweak. The aggregated
// signature must verify under the exact output key
// taproot.GenerateDepositAddress/OutputKeyForCommitment compute via
// txscript.ComputeTaprootOutputKey, not under the raw, untweaked group key.
func TestSigning_TweakedAggregateVerifiesUnderTaprootOutputKey(t *testing.T) {
	t.Parallel()

	signers := []*Signer{
		mustNewSigner(t),
		mustNewSigner(t),
		mustNewSigner(t),
	}

	keys := runDKG(t, signers, 2, 3)
	for i, s := range signers {
		s.mu.Lock()
		s.key = keys[i]
		s.mu.Unlock()
	}

	var sighash [32]byte
	copy(sighash[:], []byte("tweaked-sighash-0123456789abcde"))

	var tweak [32]byte
	copy(tweak[:], []byte("deposit-commitment-32-bytes-long"))

	sessionID := "session-tweaked"
	chosen := signers[:2] // 2-of-3

	commitments := make(map[Identifier]Commitment)
	identifiers := make([]Identifier, 0, 2)
	for _, s := range chosen {
		c, id, err := s.SignRound1(sessionID, sighash, &tweak)
		require.NoError(t, err)
		commitments[id] = c
		identifiers = append(identifiers, id)
	}

	shares := make(map[Identifier]scalar)
	for _, s := range chosen {
		share, err := s.SignRound2(sessionID, sighash, &tweak, commitments, identifiers)
		require.NoError(t, err)
		shares[s.Identifier()] = share
	}

	groupPub := keys[0].GroupPublicKey

	sig, err := Aggregate(AggregateInput{
		Commitments: commitments,
		Identifiers: identifiers,
		Shares:      shares,
		Sighash:     sighash,
		Tweak:       &tweak,
		GroupPubKey: groupPub,
	})
	require.NoError(t, err)

	parsedSig, err := schnorr.ParseSignature(sig[:])
	require.NoError(t, err)

	internalKey, err := schnorr.ParsePubKey(groupPub.xOnlyBytes())
	require.NoError(t, err)
	outputKey := txscript.ComputeTaprootOutputKey(internalKey, tweak[:])

	require.True(t, parsedSig.Verify(sighash[:], outputKey))

	// Sanity check: verifying against the untweaked group key must fail,
	// proving the aggregated signature is genuinely bound to the tweaked
	// Taproot output key and not the raw group key.
	require.False(t, parsedSig.Verify(sighash[:], internalKey))
}

func TestSigning_Round2RejectsReuse(t *testing.T) {
	t.Parallel()

	signers := []*Signer{mustNewSigner(t), mustNewSigner(t), mustNewSigner(t)}
	keys := runDKG(t, signers, 2, 3)
	for i, s := range signers {
		s.mu.Lock()
		s.key = keys[i]
		s.mu.Unlock()
	}

	var sighash [32]byte
	copy(sighash[:], []byte("sighash-for-reuse-test-1234567890"))

	sessionID := "session-reuse"
	chosen := signers[:2]

	commitments := make(map[Identifier]Commitment)
	identifiers := make([]Identifier, 0, 2)
	for _, s := range chosen {
		c, id, err := s.SignRound1(sessionID, sighash, nil)
		require.NoError(t, err)
		commitments[id] = c
		identifiers = append(identifiers, id)
	}

	_, err := chosen[0].SignRound2(sessionID, sighash, nil, commitments, identifiers)
	require.NoError(t, err)

	_, err = chosen[0].SignRound2(sessionID, sighash, nil, commitments, identifiers)
	require.ErrorIs(t, err, ErrSessionUsed)
}

func TestSigning_Round2RejectsSighashMismatch(t *testing.T) {
	t.Parallel()

	signers := []*Signer{mustNewSigner(t), mustNewSigner(t), mustNewSigner(t)}
	keys := runDKG(t, signers, 2, 3)
	for i, s := range signers {
		s.mu.Lock()
		s.key = keys[i]
		s.mu.Unlock()
	}

	var sighash, other [32]byte
	copy(sighash[:], []byte("sighash-aaaaaaaaaaaaaaaaaaaaaaaaa"))
	copy(other[:], []byte("sighash-bbbbbbbbbbbbbbbbbbbbbbbbb"))

	sessionID := "session-mismatch"
	chosen := signers[:2]

	commitments := make(map[Identifier]Commitment)
	identifiers := make([]Identifier, 0, 2)
	for _, s := range chosen {
		c, id, err := s.SignRound1(sessionID, sighash, nil)
		require.NoError(t, err)
		commitments[id] = c
		identifiers = append(identifiers, id)
	}

	_, err := chosen[0].SignRound2(sessionID, other, nil, commitments, identifiers)
	require.ErrorIs(t, err, ErrSighashMismatch)
}

func TestSigner_GC(t *testing.T) {
	t.Parallel()

	s := mustNewSigner(t)
	keys := runDKG(t, []*Signer{s, mustNewSigner(t), mustNewSigner(t)}, 2, 3)
	s.mu.Lock()
	s.key = keys[0]
	s.mu.Unlock()

	var sighash [32]byte
	copy(sighash[:], []byte("gc-test-sighash-aaaaaaaaaaaaaaaa"))
	_, _, err := s.SignRound1("gc-session", sighash, nil)
	require.NoError(t, err)

	// Force the session to look expired without waiting SessionTTL.
	s.mu.Lock()
	s.sessions["gc-session"].createdAt = s.sessions["gc-session"].createdAt.Add(-SessionTTL - time.Minute)
	s.mu.Unlock()

	removed, _ := s.GC()
	require.Equal(t, 1, removed)

	s.mu.RLock()
	_, stillThere := s.sessions["gc-session"]
	s.mu.RUnlock()
	require.False(t, stillThere)
}

func mustNewSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(SignerConfig{})
	require.NoError(t, err)
	return s
}
