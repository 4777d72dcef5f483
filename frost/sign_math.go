package frost

import "sort"

// computeGroupCommitment derives the binding factor rho_i for every
// participant from the full commitment set and the message, then returns
// R = sum(D_i + rho_i * E_i) along with the per-participant rho map. This
// mirrors the standard FROST binding-factor construction (commitments are
// domain-separated into the hash so a malicious coordinator cannot reuse
// one signer's round-1 nonce across a different commitment set).
func computeGroupCommitment(
	commitments map[Identifier]Commitment,
	identifiers []Identifier,
	message []byte,
) (point, map[Identifier]scalar) {
	sorted := append([]Identifier(nil), identifiers...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var transcript []byte
	transcript = append(transcript, message...)
	for _, id := range sorted {
		c := commitments[id]
		transcript = append(transcript, byte(id>>8), byte(id))
		transcript = append(transcript, c.Bytes()...)
	}

	rhos := make(map[Identifier]scalar, len(sorted))
	groupCommitment := point{}
	for _, id := range sorted {
		idBytes := []byte{byte(id >> 8), byte(id)}
		rho := hashToScalar("FROST/bindingfactor", idBytes, transcript)
		rhos[id] = rho

		c := commitments[id]
		term := pointAdd(c.D, scalarMult(c.E, rho))
		groupCommitment = pointAdd(groupCommitment, term)
	}

	return groupCommitment, rhos
}

// applyTweak computes the BIP-341 Taproot tweak of groupPub, matching
// txscript.ComputeTaprootOutputKey/TweakTaprootPrivKey exactly: the group
// key is first lifted to even-Y (the "internal key"), then tweaked by
// t = H_TapTweak(internalX ‖ scriptRoot), where scriptRoot is tweak[:] if
// non-nil or empty if nil (a nil tweak still BIP-341-tweaks with an empty
// script root, never using the raw internal key directly — see
// SingleKeySigner, which gets the same behavior for free from
// txscript.TweakTaprootPrivKey).
//
// It returns:
//   - effective: the tweaked output key, lifted to even-Y (what
//     taproot.GenerateDepositAddress/OutputKeyForCommitment compute)
//   - t: the tweak scalar, needed by Aggregate to add the untouched
//     public e·t term to the combined signature
//   - shareParity: +1/-1, multiplied into each signer's secret-share
//     contribution (covers both the internal key's own Y parity and the
//     tweaked output key's Y parity)
//   - tweakParity: +1/-1, multiplied into Aggregate's e·t term (the
//     tweaked output key's Y parity alone, since t itself carries no
//     signer-share component)
func applyTweak(groupPub point, tweak *[32]byte) (effective point, t scalar, shareParity, tweakParity int) {
	internal := groupPub
	internalParity := 1
	if !internal.hasEvenY() {
		internal = internal.liftEvenY()
		internalParity = -1
	}

	var scriptRoot []byte
	if tweak != nil {
		scriptRoot = tweak[:]
	}
	t = hashToScalar("TapTweak", internal.xOnlyBytes(), scriptRoot)

	q := pointAdd(internal, scalarBaseMult(t))
	tweakParity = 1
	if !q.hasEvenY() {
		q = q.liftEvenY()
		tweakParity = -1
	}

	return q, t, internalParity * tweakParity, tweakParity
}

// schnorrChallenge computes the BIP-340 challenge e = H(R.x || P.x || m).
func schnorrChallenge(r, p point, message []byte) scalar {
	return hashToScalar("BIP0340/challenge", r.xOnlyBytes(), p.xOnlyBytes(), message)
}
