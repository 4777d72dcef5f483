package redemption

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btclog"
	"github.com/google/uuid"

	"github.com/btcshield/bridge/chain"
	"github.com/btcshield/bridge/taproot"
)

// ChainReader is the subset of the chain adapter the engine depends on,
// mirroring deposit.ChainReader.
type ChainReader interface {
	GetTxConfirmations(ctx context.Context, txid string) (*chain.TxConfirmationStatus, error)
	BroadcastTx(ctx context.Context, rawHex string) (string, error)
	EstimateFeeRate(ctx context.Context, confTarget uint32) (int64, error)
}

// ThresholdSigner is the subset of taproot.ThresholdSigner the engine
// depends on.
type ThresholdSigner interface {
	SignWithThreshold(ctx context.Context, sighash [32]byte, tweak *[32]byte) ([64]byte, error)
}

// EngineConfig wires an Engine's dependencies.
type EngineConfig struct {
	Config Config
	Store  RequestStore
	Pool   *Pool
	Chain  ChainReader
	Signer ThresholdSigner
	Logger btclog.Logger
	Clock  func() time.Time
}

// Engine drives RedemptionRequests through the withdrawal lifecycle
// state machine in spec.md §4.10.
type Engine struct {
	cfg    Config
	store  RequestStore
	pool   *Pool
	chain  ChainReader
	signer ThresholdSigner
	log    btclog.Logger
	clock  func() time.Time
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
		cfg:    cfg.Config,
		store:  cfg.Store,
		pool:   cfg.Pool,
		chain:  cfg.Chain,
		signer: cfg.Signer,
		log:    cfg.Logger,
		clock:  cfg.Clock,
	}
}

// RequestRedemption registers a new Pending withdrawal request,
// rejecting a reused nonce.
func (e *Engine) RequestRedemption(requesterID string, amountSats int64, destAddr, nonce string) (*Request, error) {
	now := e.clock()
	req := &Request{
		ID:                 uuid.NewString(),
		RequesterID:        requesterID,
		AmountSats:         amountSats,
		DestinationAddress: destAddr,
		Nonce:              nonce,
		Status:             StatusPending,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := e.store.Insert(req); err != nil {
		return nil, err
	}
	return req, nil
}

// Tick runs one pass of the per-tick driver over every active request.
func (e *Engine) Tick(ctx context.Context) error {
	active, err := e.store.GetActive()
	if err != nil {
		return fmt.Errorf("redemption: loading active requests: %w", err)
	}

	for _, req := range active {
		if err := e.processRequest(ctx, req); err != nil {
			e.log.Errorf("redemption: tick failed for %s: %v", req.ID, err)
		}
	}
	return nil
}

func (e *Engine) processRequest(ctx context.Context, req *Request) error {
	switch req.Status {
	case StatusPending:
		return e.buildSignAndBroadcast(ctx, req)
	case StatusConfirming:
		return e.pollConfirmations(ctx, req)
	default:
		return nil
	}
}

// buildSignAndBroadcast drives a Pending request through Building,
// Signing, and Broadcasting in one pass, persisting at each boundary so
// the record reflects progress if a later step fails.
func (e *Engine) buildSignAndBroadcast(ctx context.Context, req *Request) error {
	req.Status = StatusBuilding
	if err := e.persist(req); err != nil {
		return err
	}

	utxo, err := e.pool.Select(req.AmountSats)
	if err != nil {
		return e.fail(req, fmt.Errorf("selecting pool utxo: %w", err))
	}

	destAddr, err := btcutil.DecodeAddress(req.DestinationAddress, e.cfg.Network)
	if err != nil {
		e.pool.Return(utxo)
		return e.fail(req, fmt.Errorf("decoding destination address: %w", err))
	}

	feeRate, err := e.chain.EstimateFeeRate(ctx, e.cfg.FeeConfTarget)
	if err != nil {
		e.pool.Return(utxo)
		return e.fail(req, fmt.Errorf("estimating fee rate: %w", err))
	}

	unsignedTx, err := taproot.BuildSweepTx(utxo, destAddr, feeRate)
	if err != nil {
		e.pool.Return(utxo)
		return e.fail(req, fmt.Errorf("building redemption tx: %w", err))
	}

	sighash, err := taproot.ComputeSighash(unsignedTx)
	if err != nil {
		e.pool.Return(utxo)
		return e.fail(req, fmt.Errorf("computing sighash: %w", err))
	}

	req.Status = StatusSigning
	if err := e.persist(req); err != nil {
		return err
	}

	sig, err := e.signer.SignWithThreshold(ctx, sighash, nil)
	if err != nil {
		e.pool.Return(utxo)
		return e.fail(req, fmt.Errorf("signing: %w", err))
	}
	taproot.AttachWitness(unsignedTx.Tx, sig)

	req.Status = StatusBroadcasting
	if err := e.persist(req); err != nil {
		return err
	}

	rawHex, err := serializeTx(unsignedTx)
	if err != nil {
		e.pool.Return(utxo)
		return e.fail(req, fmt.Errorf("serializing tx: %w", err))
	}

	txid, err := e.chain.BroadcastTx(ctx, rawHex)
	if err != nil {
		// The broadcast may or may not have landed server-side; a
		// rejected/timed-out broadcast is treated as not landed so the
		// UTXO remains spendable for a future attempt.
		e.pool.Return(utxo)
		return e.fail(req, fmt.Errorf("broadcasting: %w", err))
	}

	req.BTCTxID = txid
	req.Status = StatusConfirming
	return e.persist(req)
}

func (e *Engine) pollConfirmations(ctx context.Context, req *Request) error {
	status, err := e.chain.GetTxConfirmations(ctx, req.BTCTxID)
	if err != nil {
		e.log.Warnf("redemption: polling confirmations for %s: %v", req.ID, err)
		return nil
	}
	if !status.Confirmed {
		return nil
	}

	req.Confirmations = status.Confirmations
	if req.Confirmations < e.cfg.RequiredConfirmations {
		return e.persist(req)
	}

	req.Status = StatusComplete
	return e.persist(req)
}

func (e *Engine) persist(req *Request) error {
	req.UpdatedAt = e.clock()
	if err := e.store.Update(req); err != nil {
		return fmt.Errorf("persisting request %s: %w", req.ID, err)
	}
	return nil
}

func (e *Engine) fail(req *Request, cause error) error {
	req.Status = StatusFailed
	req.Error = cause.Error()
	if err := e.persist(req); err != nil {
		return err
	}
	return cause
}

// serializeTx hex-encodes utx's wire-format transaction bytes for
// broadcast.
func serializeTx(utx *taproot.UnsignedTx) (string, error) {
	var buf bytes.Buffer
	if err := utx.Tx.Serialize(&buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf.Bytes()), nil
}
