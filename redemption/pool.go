package redemption

import (
	"sync"

	"github.com/btcshield/bridge/taproot"
)

// Pool tracks the custodial UTXO set the redemption engine spends from,
// per spec.md §5: "the pool-UTXO set is mutable only by the redemption
// engine's own task", backed by a readers-writer lock matching the
// signer/coordinator caches' concurrency model.
type Pool struct {
	mu    sync.RWMutex
	utxos []taproot.SweepUTXO
}

// NewPool constructs an empty Pool.
func NewPool() *Pool {
	return &Pool{}
}

// Add records utxo as spendable.
func (p *Pool) Add(utxo taproot.SweepUTXO) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.utxos = append(p.utxos, utxo)
}

// Balance returns the total value of tracked UTXOs.
func (p *Pool) Balance() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var total int64
	for _, u := range p.utxos {
		total += u.ValueSats
	}
	return total
}

// Select picks the smallest single UTXO whose value covers at least
// targetSats (first-fit by ascending value), removing it from the
// pool. Redemption transactions are single-input, matching the sweep
// transaction shape built by taproot.BuildSweepTx, so selection never
// needs to combine multiple UTXOs. It returns ErrInsufficientPoolFunds
// without mutating the pool if no single UTXO suffices.
func (p *Pool) Select(targetSats int64) (taproot.SweepUTXO, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	bestIdx := -1
	for i, u := range p.utxos {
		if u.ValueSats < targetSats {
			continue
		}
		if bestIdx == -1 || u.ValueSats < p.utxos[bestIdx].ValueSats {
			bestIdx = i
		}
	}

	if bestIdx == -1 {
		return taproot.SweepUTXO{}, ErrInsufficientPoolFunds
	}

	selected := p.utxos[bestIdx]
	p.utxos = append(p.utxos[:bestIdx], p.utxos[bestIdx+1:]...)
	return selected, nil
}

// Return puts utxo back into the pool, used when a build attempt is
// abandoned after selection (e.g. the resulting transaction fails
// construction) so the UTXO remains spendable.
func (p *Pool) Return(utxo taproot.SweepUTXO) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.utxos = append(p.utxos, utxo)
}
