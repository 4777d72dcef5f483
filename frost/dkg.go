package frost

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DKGRound1Package is broadcast to every other participant: the sender's
// feldman commitments to their secret polynomial's coefficients.
type DKGRound1Package struct {
	Identifier  Identifier
	Commitments []point // length t; Commitments[0] is g^secret
}

// DKGRound2Package is the scalar share this signer computed for one
// specific recipient, f_i(recipient).
type DKGRound2Package struct {
	Sender    Identifier
	Recipient Identifier
	Share     scalar
}

// dkgRound1 generates this signer's secret polynomial of degree t-1 and
// returns its Feldman commitments, per spec.md §4.3 dkg/round1.
func (n *Signer) dkgRound1(ceremonyID string, self Identifier, threshold, total int) (*DKGRound1Package, error) {
	if threshold < 2 || threshold > total {
		return nil, ErrInvalidThreshold
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.ceremonies[ceremonyID]; exists {
		return nil, ErrCeremonyExists
	}

	coeffs := make([]scalar, threshold)
	commitments := make([]point, threshold)
	for i := 0; i < threshold; i++ {
		c, err := randomScalar()
		if err != nil {
			return nil, fmt.Errorf("frost: generating polynomial coefficient: %w", err)
		}
		coeffs[i] = c
		commitments[i] = scalarBaseMult(c)
	}

	n.ceremonies[ceremonyID] = &dkgCeremony{
		ceremonyID:  ceremonyID,
		threshold:   threshold,
		total:       total,
		self:        self,
		coeffs:      coeffs,
		commitments: commitments,
		createdAt:   n.clock(),
	}

	return &DKGRound1Package{Identifier: self, Commitments: commitments}, nil
}

// dkgRound2 evaluates this signer's secret polynomial at every other
// participant's identifier and returns the per-recipient shares, per
// spec.md §4.3 dkg/round2. allRound1 includes every participant's round1
// package (including this signer's own, which is ignored).
func (n *Signer) dkgRound2(ceremonyID string, allRound1 []DKGRound1Package) ([]DKGRound2Package, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	cer, ok := n.ceremonies[ceremonyID]
	if !ok {
		return nil, ErrCeremonyNotFound
	}

	var shares []DKGRound2Package
	for _, pkg := range allRound1 {
		if pkg.Identifier == cer.self {
			continue
		}
		share := evalPolynomial(cer.coeffs, pkg.Identifier)
		if cer.round2Shares == nil {
			cer.round2Shares = make(map[Identifier]scalar)
		}
		cer.round2Shares[pkg.Identifier] = share
		shares = append(shares, DKGRound2Package{
			Sender:    cer.self,
			Recipient: pkg.Identifier,
			Share:     share,
		})
	}

	return shares, nil
}

// dkgFinalize combines the shares this signer received from every other
// participant (plus its own self-share) into a final secret share, derives
// the group public key from every participant's constant-term commitment,
// and persists the resulting KeyPackage to the keystore.
func (n *Signer) dkgFinalize(
	ceremonyID string,
	allRound1 []DKGRound1Package,
	receivedRound2 []DKGRound2Package,
) (*KeyPackage, error) {
	n.mu.Lock()
	cer, ok := n.ceremonies[ceremonyID]
	if !ok {
		n.mu.Unlock()
		return nil, ErrCeremonyNotFound
	}

	// Own contribution: f_self(self).
	secretShare := evalPolynomial(cer.coeffs, cer.self)
	for _, r2 := range receivedRound2 {
		if r2.Recipient != cer.self {
			continue
		}
		secretShare = secretShare.add(r2.Share)
	}

	// Group public key is the sum of every participant's constant-term
	// commitment (g^{secret_i}).
	groupPub := point{}
	verificationShares := make(map[Identifier]point, len(allRound1))
	for _, pkg := range allRound1 {
		if len(pkg.Commitments) == 0 {
			continue
		}
		groupPub = pointAdd(groupPub, pkg.Commitments[0])
	}

	// Each participant's verification share is the sum, across every
	// other participant's commitment vector, of the Feldman evaluation
	// at that participant's identifier: VSS_j(i) for all j.
	for _, target := range allRound1 {
		vshare := point{}
		for _, pkg := range allRound1 {
			vshare = pointAdd(vshare, evalCommitments(pkg.Commitments, target.Identifier))
		}
		verificationShares[target.Identifier] = vshare
	}

	kp := &KeyPackage{
		Identifier:         cer.self,
		SecretShare:        secretShare,
		GroupPublicKey:     groupPub.liftEvenY(),
		VerificationShares: verificationShares,
		Threshold:          cer.threshold,
		TotalParticipants:  cer.total,
	}

	delete(n.ceremonies, ceremonyID)
	n.mu.Unlock()

	n.mu.Lock()
	n.key = kp
	n.mu.Unlock()

	if n.cfg.KeystorePath != "" {
		if err := SaveKeystore(n.cfg.KeystorePath, n.cfg.SignerID, n.cfg.Password, kp); err != nil {
			return nil, fmt.Errorf("frost: persisting keystore: %w", err)
		}
	}

	return kp, nil
}

// evalPolynomial computes f(x) = sum(coeffs[i] * x^i) mod N.
func evalPolynomial(coeffs []scalar, x Identifier) scalar {
	xs := newScalar(big.NewInt(int64(x)))

	result := newScalar(big.NewInt(0))
	power := newScalar(big.NewInt(1))
	for _, c := range coeffs {
		result = result.add(c.mul(power))
		power = power.mul(xs)
	}
	return result
}

// evalCommitments computes g^f(x) from Feldman commitments without
// knowing f's coefficients, i.e. sum(commitments[i] * x^i).
func evalCommitments(commitments []point, x Identifier) point {
	xs := newScalar(big.NewInt(int64(x)))

	result := point{}
	power := newScalar(big.NewInt(1))
	for _, c := range commitments {
		result = pointAdd(result, scalarMult(c, power))
		power = power.mul(xs)
	}
	return result
}

func randomScalar() (scalar, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return scalar{}, err
	}
	return scalarFromBytes(b), nil
}
