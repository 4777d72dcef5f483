// Package nullifier implements the bridge's sole double-spend barrier:
// deriving a fixed-tag address from a 32-byte nullifier hash and
// guaranteeing that address can be created exactly once.
package nullifier

import (
	"crypto/sha256"
	"errors"
	"sync"
	"time"
)

// ErrAlreadySpent is returned when a nullifier address has already been
// created — the record's existence alone is the replay-prevention
// invariant.
var ErrAlreadySpent = errors.New("nullifier: address already created for this nullifier")

// Tag namespaces nullifier address derivation by operation type, so
// deposits, redemptions, and any future shielded operation each get
// disjoint address spaces even if their nullifier hashes collided.
type Tag string

const (
	TagDeposit    Tag = "bridge-nullifier-deposit-v1"
	TagRedemption Tag = "bridge-nullifier-redemption-v1"
)

// DeriveAddress computes the address a nullifier maps to: a fixed tag
// concatenated with the 32-byte nullifier hash, then SHA-256'd. This
// mirrors the on-chain program's PDA-style derivation so the off-chain
// node can predict the same address it will observe on-chain.
func DeriveAddress(tag Tag, nullifier [32]byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(tag))
	h.Write(nullifier[:])
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// Record is what gets written alongside a nullifier address the moment
// it is created: the existence of the record is the invariant; these
// fields exist for audit/debugging only.
type Record struct {
	Address     [32]byte
	Nullifier   [32]byte
	Tag         Tag
	SpenderID   string
	SpentAt     time.Time
}

// Gate creates nullifier addresses exactly once. Implementations MUST
// make CreateIfAbsent atomic: concurrent callers racing on the same
// nullifier must have exactly one succeed.
type Gate interface {
	// CreateIfAbsent derives the address for (tag, nullifier) and
	// attempts to create it. It returns the record and a nil error if
	// this call won the race (or the address didn't exist before), and
	// ErrAlreadySpent if a record already exists.
	CreateIfAbsent(tag Tag, nullifier [32]byte, spenderID string) (*Record, error)
	// Exists reports whether a record already exists for (tag, nullifier).
	Exists(tag Tag, nullifier [32]byte) bool
}

// MemoryGate is an in-process Gate backed by a mutex-guarded map, used
// for single-node deployments and tests. Production deployments should
// back the gate with the on-chain verifier program instead (the engine
// only reads its projections via RPC, per the ownership model), but a
// local gate remains useful to short-circuit known-spent nullifiers
// before the network round-trip.
type MemoryGate struct {
	mu      sync.Mutex
	records map[[32]byte]*Record
	clock   func() time.Time
}

// NewMemoryGate constructs an empty MemoryGate.
func NewMemoryGate() *MemoryGate {
	return &MemoryGate{
		records: make(map[[32]byte]*Record),
		clock:   time.Now,
	}
}

var _ Gate = (*MemoryGate)(nil)

func (g *MemoryGate) CreateIfAbsent(tag Tag, nullifier [32]byte, spenderID string) (*Record, error) {
	address := DeriveAddress(tag, nullifier)

	g.mu.Lock()
	defer g.mu.Unlock()

	if existing, ok := g.records[address]; ok {
		_ = existing
		return nil, ErrAlreadySpent
	}

	record := &Record{
		Address:   address,
		Nullifier: nullifier,
		Tag:       tag,
		SpenderID: spenderID,
		SpentAt:   g.clock(),
	}
	g.records[address] = record
	return record, nil
}

func (g *MemoryGate) Exists(tag Tag, nullifier [32]byte) bool {
	address := DeriveAddress(tag, nullifier)

	g.mu.Lock()
	defer g.mu.Unlock()

	_, ok := g.records[address]
	return ok
}
