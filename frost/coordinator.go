package frost

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SignerClient is the coordinator's view of one remote (or in-process)
// signer node, per spec.md §4.4. A real deployment implements this over
// the threshold signer HTTP API described in spec.md §6; tests and
// single-process demos can implement it directly against a *Signer.
type SignerClient interface {
	ID() Identifier
	Healthy(ctx context.Context) bool
	SignRound1(ctx context.Context, sessionID string, sighash [32]byte, tweak *[32]byte) (Commitment, Identifier, error)
	SignRound2(ctx context.Context, sessionID string, sighash [32]byte, tweak *[32]byte, commitments map[Identifier]Commitment, identifiers []Identifier) (scalar, error)
}

// CoordinatorConfig configures a Coordinator.
type CoordinatorConfig struct {
	Signers   []SignerClient
	Threshold int
}

// Coordinator drives the two-round FROST signing protocol against a set
// of signer clients, per spec.md §4.4.
type Coordinator struct {
	cfg CoordinatorConfig
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{cfg: cfg}
}

// Sign runs the full coordinator protocol for sighash h and optional
// tweak τ and returns the aggregated 64-byte Schnorr signature, per
// spec.md §4.4 steps 1-6.
func (c *Coordinator) Sign(ctx context.Context, sighash [32]byte, tweak *[32]byte) ([64]byte, error) {
	// Step 1: select the first t signers that respond healthy.
	chosen := c.selectHealthySigners(ctx)
	if len(chosen) < c.cfg.Threshold {
		return [64]byte{}, fmt.Errorf("%w: only %d/%d signers healthy", ErrIncompleteResponses, len(chosen), c.cfg.Threshold)
	}
	chosen = chosen[:c.cfg.Threshold]

	// Step 2: fresh session id.
	sessionID := uuid.NewString()

	// Step 3: round 1, fanned out in parallel.
	commitments := make(map[Identifier]Commitment, len(chosen))
	identifiers := make([]Identifier, 0, len(chosen))

	type round1Result struct {
		id         Identifier
		commitment Commitment
		err        error
	}
	results := make(chan round1Result, len(chosen))

	var wg sync.WaitGroup
	for _, signer := range chosen {
		signer := signer
		wg.Add(1)
		go func() {
			defer wg.Done()
			commitment, id, err := signer.SignRound1(ctx, sessionID, sighash, tweak)
			results <- round1Result{id: id, commitment: commitment, err: err}
		}()
	}
	wg.Wait()
	close(results)

	for r := range results {
		if r.err != nil {
			return [64]byte{}, fmt.Errorf("round1 failed: %w", r.err)
		}
		commitments[r.id] = r.commitment
		identifiers = append(identifiers, r.id)
	}

	if len(identifiers) < c.cfg.Threshold {
		return [64]byte{}, ErrIncompleteResponses
	}

	// Step 4: round 2, fanned out in parallel, joining on all responses.
	type round2Result struct {
		id    Identifier
		share scalar
		err   error
	}
	r2Results := make(chan round2Result, len(chosen))

	var wg2 sync.WaitGroup
	for _, signer := range chosen {
		signer := signer
		wg2.Add(1)
		go func() {
			defer wg2.Done()
			share, err := signer.SignRound2(ctx, sessionID, sighash, tweak, commitments, identifiers)
			r2Results <- round2Result{id: signer.ID(), share: share, err: err}
		}()
	}
	wg2.Wait()
	close(r2Results)

	shares := make(map[Identifier]scalar, len(chosen))
	for r := range r2Results {
		if r.err != nil {
			// Step 4 note: if any signer fails, fail the whole
			// session rather than proceeding with t-1 shares.
			return [64]byte{}, fmt.Errorf("round2 failed for signer %d: %w", r.id, r.err)
		}
		shares[r.id] = r.share
	}

	// Step 5 & 6: aggregate and return.
	groupPub, _ := c.groupPublicKey()
	return Aggregate(AggregateInput{
		Commitments: commitments,
		Identifiers: identifiers,
		Shares:      shares,
		Sighash:     sighash,
		Tweak:       tweak,
		GroupPubKey: groupPub,
	})
}

func (c *Coordinator) selectHealthySigners(ctx context.Context) []SignerClient {
	var healthy []SignerClient
	for _, s := range c.cfg.Signers {
		if s.Healthy(ctx) {
			healthy = append(healthy, s)
		}
	}
	return healthy
}

func (c *Coordinator) groupPublicKey() (point, bool) {
	// The group public key is not needed by Aggregate beyond
	// bookkeeping (it is recomputed from the commitments and challenge
	// internally); callers that need it for address derivation should
	// fetch it from any signer's /info endpoint instead.
	return point{}, false
}
