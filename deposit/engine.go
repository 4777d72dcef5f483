// Package deposit implements the deposit lifecycle engine described in
// spec.md §4.9: a per-tick driver that walks active deposit records
// through detection, confirmation, sweeping, and SPV verification.
package deposit

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btclog"
	"github.com/google/uuid"

	"github.com/btcshield/bridge/chain"
	"github.com/btcshield/bridge/spv"
	"github.com/btcshield/bridge/store"
	"github.com/btcshield/bridge/taproot"
)

// ChainReader is the subset of the chain adapter the engine depends on.
type ChainReader interface {
	CheckAddress(ctx context.Context, addr string) (*chain.AddressStatus, error)
	GetTxConfirmations(ctx context.Context, txid string) (*chain.TxConfirmationStatus, error)
	GetTxHex(ctx context.Context, txid string) (string, error)
	GetMerkleProof(ctx context.Context, txid string) (*chain.MerkleProof, error)
	BroadcastTx(ctx context.Context, rawHex string) (string, error)
	EstimateFeeRate(ctx context.Context, confTarget uint32) (int64, error)
}

// ThresholdSigner is the subset of taproot.ThresholdSigner the engine
// depends on.
type ThresholdSigner interface {
	SignWithThreshold(ctx context.Context, sighash [32]byte, tweak *[32]byte) ([64]byte, error)
}

// ProofVerifier is the subset of spv.Verifier the engine depends on.
type ProofVerifier interface {
	VerifyProof(input spv.ProofInput) (*spv.VerifiedDeposit, error)
}

// Engine drives deposit records through the lifecycle state machine in
// spec.md §4.9.
type Engine struct {
	cfg      Config
	store    store.Store
	chain    ChainReader
	signer   ThresholdSigner
	verifier ProofVerifier
	log      btclog.Logger
	clock    func() time.Time
}

// EngineConfig wires an Engine's dependencies.
type EngineConfig struct {
	Config   Config
	Store    store.Store
	Chain    ChainReader
	Signer   ThresholdSigner
	Verifier ProofVerifier
	Logger   btclog.Logger
	Clock    func() time.Time
}

// NewEngine constructs an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Logger == nil {
		cfg.Logger = btclog.Disabled
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Engine{
		cfg:      cfg.Config,
		store:    cfg.Store,
		chain:    cfg.Chain,
		signer:   cfg.Signer,
		verifier: cfg.Verifier,
		log:      cfg.Logger,
		clock:    cfg.Clock,
	}
}

// RegisterDeposit creates a new Pending deposit record for address,
// rejecting a duplicate address and a malformed commitment, per spec.md
// §4.9's "Duplication rule".
func (e *Engine) RegisterDeposit(ctx context.Context, address, commitment string) (*store.DepositRecord, error) {
	if err := validateCommitment(commitment); err != nil {
		return nil, err
	}

	if _, err := e.store.GetByAddress(ctx, address); err == nil {
		return nil, ErrDuplicateAddress
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("deposit: checking for existing address: %w", err)
	}

	now := e.clock()
	record := &store.DepositRecord{
		ID:             uuid.NewString(),
		TaprootAddress: address,
		Commitment:     commitment,
		Status:         store.StatusPending,
		LeafIndex:      -1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := e.store.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("deposit: registering record: %w", err)
	}
	return record, nil
}

func validateCommitment(commitment string) error {
	if len(commitment) != 64 {
		return ErrInvalidCommitment
	}
	if _, err := hex.DecodeString(commitment); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCommitment, err)
	}
	return nil
}

// Tick runs one pass of the per-tick driver over every active record,
// per spec.md §4.9's numbered steps. Per-record failures are logged and
// do not abort the rest of the pass.
func (e *Engine) Tick(ctx context.Context) error {
	active, err := e.store.GetActive(ctx)
	if err != nil {
		return fmt.Errorf("deposit: loading active records: %w", err)
	}

	for _, record := range active {
		if err := e.processRecord(ctx, record); err != nil {
			e.log.Errorf("deposit: tick failed for %s: %v", record.ID, err)
		}
	}
	return nil
}

func (e *Engine) processRecord(ctx context.Context, record *store.DepositRecord) error {
	switch record.Status {
	case store.StatusPending, store.StatusDetected, store.StatusConfirming:
		return e.handleDetection(ctx, record)
	case store.StatusConfirmed:
		return e.handleSweep(ctx, record)
	case store.StatusSweepConfirming:
		return e.handleSweepConfirmation(ctx, record)
	case store.StatusVerifying:
		return e.handleVerification(ctx, record)
	default:
		return nil // Ready/Claimed/Failed: terminal for this cycle.
	}
}

// handleDetection covers Pending/Detected/Confirming: it queries the
// deposit address and advances the record toward Confirmed once the
// observed UTXO has crossed RequiredConfirmations.
func (e *Engine) handleDetection(ctx context.Context, record *store.DepositRecord) error {
	status, err := e.chain.CheckAddress(ctx, record.TaprootAddress)
	if err != nil {
		return fmt.Errorf("checking address: %w", err)
	}
	if len(status.UTXOs) == 0 {
		return nil
	}

	utxo := status.UTXOs[0]
	record.DepositTxID = utxo.TxID
	record.DepositVout = utxo.Vout
	record.DepositBlockHeight = utxo.BlockHeight
	record.Confirmations = utxo.Confirmations
	record.AmountSats = utxo.ValueSats // on-chain truth wins

	switch {
	case record.Confirmations >= e.cfg.RequiredConfirmations:
		record.Status = store.StatusConfirmed
	case record.Confirmations >= 1:
		record.Status = store.StatusConfirming
	default:
		record.Status = store.StatusDetected
	}

	return e.persist(ctx, record)
}

// handleSweep builds, signs, and broadcasts the sweep transaction for a
// Confirmed deposit.
func (e *Engine) handleSweep(ctx context.Context, record *store.DepositRecord) error {
	record.Status = store.StatusSweeping
	if err := e.persist(ctx, record); err != nil {
		return err
	}

	txid, err := e.sweep(ctx, record)
	if err != nil {
		return e.fail(ctx, record, fmt.Errorf("sweeping: %w", err))
	}

	record.SweepTxID = txid
	record.PoolAddress = e.cfg.PoolAddress
	record.Status = store.StatusSweepConfirming
	return e.persist(ctx, record)
}

func (e *Engine) sweep(ctx context.Context, record *store.DepositRecord) (string, error) {
	depositAddr, err := btcutil.DecodeAddress(record.TaprootAddress, e.cfg.Network)
	if err != nil {
		return "", fmt.Errorf("decoding deposit address: %w", err)
	}
	pkScript, err := pkScriptForAddress(depositAddr)
	if err != nil {
		return "", err
	}

	txidHash, err := chainhash.NewHashFromStr(record.DepositTxID)
	if err != nil {
		return "", fmt.Errorf("parsing deposit txid: %w", err)
	}

	utxo := taproot.SweepUTXO{
		TxID:      *txidHash,
		Vout:      record.DepositVout,
		ValueSats: record.AmountSats,
		PkScript:  pkScript,
	}

	feeRate, err := e.chain.EstimateFeeRate(ctx, e.cfg.FeeConfTarget)
	if err != nil {
		return "", fmt.Errorf("estimating fee rate: %w", err)
	}

	poolAddr, err := btcutil.DecodeAddress(e.cfg.PoolAddress, e.cfg.Network)
	if err != nil {
		return "", fmt.Errorf("decoding pool address: %w", err)
	}

	unsignedTx, err := taproot.BuildSweepTx(utxo, poolAddr, feeRate)
	if err != nil {
		return "", fmt.Errorf("building sweep tx: %w", err)
	}

	sighash, err := taproot.ComputeSighash(unsignedTx)
	if err != nil {
		return "", fmt.Errorf("computing sighash: %w", err)
	}

	tweak, err := commitmentTweak(record.Commitment)
	if err != nil {
		return "", err
	}

	sig, err := e.signer.SignWithThreshold(ctx, sighash, tweak)
	if err != nil {
		return "", fmt.Errorf("signing: %w", err)
	}
	taproot.AttachWitness(unsignedTx.Tx, sig)

	rawHex, err := serializeTx(unsignedTx)
	if err != nil {
		return "", fmt.Errorf("serializing sweep tx: %w", err)
	}

	txid, err := e.chain.BroadcastTx(ctx, rawHex)
	if err != nil {
		return "", fmt.Errorf("broadcasting: %w", err)
	}
	return txid, nil
}

// handleSweepConfirmation polls the sweep transaction's confirmation
// count and advances to Verifying once it has crossed
// RequiredSweepConfirmations.
func (e *Engine) handleSweepConfirmation(ctx context.Context, record *store.DepositRecord) error {
	status, err := e.chain.GetTxConfirmations(ctx, record.SweepTxID)
	if err != nil {
		e.log.Warnf("deposit: polling sweep confirmations for %s: %v", record.ID, err)
		return nil // transient network failure; retry next tick
	}
	if !status.Confirmed {
		return nil
	}

	record.SweepConfirmations = status.Confirmations
	record.SweepBlockHeight = status.BlockHeight

	if record.SweepConfirmations < e.cfg.RequiredSweepConfirmations {
		return e.persist(ctx, record)
	}

	record.Status = store.StatusVerifying
	return e.persist(ctx, record)
}

// handleVerification submits the SPV proof for the sweep transaction and
// marks the record Ready on success.
func (e *Engine) handleVerification(ctx context.Context, record *store.DepositRecord) error {
	rawHex, err := e.chain.GetTxHex(ctx, record.SweepTxID)
	if err != nil {
		return fmt.Errorf("fetching raw sweep tx: %w", err)
	}
	rawTx, err := hex.DecodeString(rawHex)
	if err != nil {
		return fmt.Errorf("decoding raw sweep tx: %w", err)
	}

	chainProof, err := e.chain.GetMerkleProof(ctx, record.SweepTxID)
	if err != nil {
		return fmt.Errorf("fetching merkle proof: %w", err)
	}

	proof, err := spv.ToInternalMerkleProof(record.SweepTxID, chainProof.BlockHeight, chainProof.Siblings, chainProof.Pos)
	if err != nil {
		return fmt.Errorf("converting merkle proof: %w", err)
	}

	verified, err := e.verifier.VerifyProof(spv.ProofInput{
		SweepTxID:   record.SweepTxID,
		RawTx:       rawTx,
		BlockHeight: record.SweepBlockHeight,
		Proof:       proof,
	})

	switch {
	case err == nil:
		record.Status = store.StatusReady
		record.LeafIndex = verified.LeafIndex
		return e.persist(ctx, record)

	case errors.Is(err, spv.ErrHeaderMissing), errors.Is(err, spv.ErrInsufficientConfs):
		// Idempotent wait: the light client hasn't caught up yet.
		return nil

	case errors.Is(err, spv.ErrDuplicateProof):
		// A proof for this sweep txid was already accepted; treat as
		// success. The specific leaf index isn't recoverable through
		// this interface, so LeafIndex is left at its prior value.
		record.Status = store.StatusReady
		return e.persist(ctx, record)

	default:
		return e.fail(ctx, record, fmt.Errorf("verifying proof: %w", err))
	}
}

// RecoverInProgressDeposits resets any record found in a mid-operation
// state to the appropriate prior state, per spec.md §4.9's
// crash-consistency rules. Call once at startup before the first Tick.
func (e *Engine) RecoverInProgressDeposits(ctx context.Context) error {
	sweeping, err := e.store.GetByStatus(ctx, store.StatusSweeping)
	if err != nil {
		return fmt.Errorf("deposit: loading sweeping records: %w", err)
	}
	for _, record := range sweeping {
		if record.HasSweepTx() {
			record.Status = store.StatusSweepConfirming
		} else {
			record.Status = store.StatusConfirmed
		}
		if err := e.persist(ctx, record); err != nil {
			return err
		}
	}

	verifying, err := e.store.GetByStatus(ctx, store.StatusVerifying)
	if err != nil {
		return fmt.Errorf("deposit: loading verifying records: %w", err)
	}
	for _, record := range verifying {
		record.Status = store.StatusSweepConfirming
		if err := e.persist(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// RetryTick resumes Failed records whose retry delay has elapsed, per
// spec.md §4.9's retry loop.
func (e *Engine) RetryTick(ctx context.Context) error {
	failed, err := e.store.GetFailedForRetry(ctx, e.cfg.MaxRetries)
	if err != nil {
		return fmt.Errorf("deposit: loading failed records: %w", err)
	}

	now := e.clock()
	for _, record := range failed {
		if record.LastRetryAt != nil && now.Sub(*record.LastRetryAt) < e.cfg.RetryDelay {
			continue
		}

		record.Status = resumeState(record, e.cfg.RequiredConfirmations)
		record.Error = ""
		record.RetryCount++
		record.LastRetryAt = &now

		if err := e.persist(ctx, record); err != nil {
			e.log.Errorf("deposit: retrying %s: %v", record.ID, err)
		}
	}
	return nil
}

// resumeState determines the correct resume state from progress flags,
// per spec.md §4.9: sweep_txid present ⇒ SweepConfirming; else
// deposit_txid present with enough confirmations ⇒ Confirmed; else
// deposit_txid present ⇒ Detected; else Pending.
func resumeState(record *store.DepositRecord, requiredConfirmations uint32) store.Status {
	switch {
	case record.HasSweepTx():
		return store.StatusSweepConfirming
	case record.HasDepositTx() && record.Confirmations >= requiredConfirmations:
		return store.StatusConfirmed
	case record.HasDepositTx():
		return store.StatusDetected
	default:
		return store.StatusPending
	}
}

func (e *Engine) persist(ctx context.Context, record *store.DepositRecord) error {
	record.UpdatedAt = e.clock()
	if err := e.store.Update(ctx, record); err != nil {
		return fmt.Errorf("persisting record %s: %w", record.ID, err)
	}
	return nil
}

func (e *Engine) fail(ctx context.Context, record *store.DepositRecord, cause error) error {
	record.Status = store.StatusFailed
	record.Error = cause.Error()
	if err := e.persist(ctx, record); err != nil {
		return err
	}
	return cause
}

// commitmentTweak decodes a deposit's hex commitment into the raw 32-byte
// value passed as ThresholdSigner's tweak parameter. Both SingleKeySigner
// (via txscript.TweakTaprootPrivKey) and ThresholdSigner (via frost's
// applyTweak) treat this as the BIP-341 tweak input verbatim, matching
// taproot.GenerateDepositAddress's txscript.ComputeTaprootOutputKey call —
// the two signer implementations must keep agreeing on this convention.
func commitmentTweak(commitment string) (*[32]byte, error) {
	b, err := hex.DecodeString(commitment)
	if err != nil || len(b) != 32 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCommitment, err)
	}
	var tweak [32]byte
	copy(tweak[:], b)
	return &tweak, nil
}
