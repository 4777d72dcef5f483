// Package bridge wires together the chain adapter, deposit store,
// threshold/single-key signer, SPV verifier, commitment tree, nullifier
// gate, and the deposit/redemption lifecycle engines into one running
// node, per spec.md's top-level architecture diagram.
package bridge

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/btcshield/bridge/chain"
	"github.com/btcshield/bridge/committree"
	"github.com/btcshield/bridge/config"
	"github.com/btcshield/bridge/deposit"
	"github.com/btcshield/bridge/frost"
	"github.com/btcshield/bridge/log"
	"github.com/btcshield/bridge/metrics"
	"github.com/btcshield/bridge/nullifier"
	"github.com/btcshield/bridge/redemption"
	"github.com/btcshield/bridge/spv"
	"github.com/btcshield/bridge/store"
	"github.com/btcshield/bridge/taproot"
)

// ThresholdSigner is the common sign_with_threshold interface shared by
// taproot.ThresholdSigner and taproot.SingleKeySigner, per spec.md
// §4.4's {SingleKeySigner, ThresholdSigner} tagged union.
type ThresholdSigner interface {
	SignWithThreshold(ctx context.Context, sighash [32]byte, tweak *[32]byte) ([64]byte, error)
}

// NodeConfig wires a Node's dependencies. Config carries every
// environment-sourced parameter; SignerEndpoints and Clock are supplied
// by the embedding process (they have no BRIDGE_* env var counterpart).
type NodeConfig struct {
	Config config.Config

	// SignerEndpoints is the ordered list of threshold signer node base
	// URLs (identifier i is SignerEndpoints[i-1]), used when
	// Config.SigningMode is threshold.
	SignerEndpoints []string

	// PoolPublicKeyHex is the group/pool public key (33-byte compressed,
	// hex-encoded), required in threshold mode since the group key is
	// only known after DKG completes out-of-band. Ignored in single
	// mode, where the key file's own public key is used instead.
	PoolPublicKeyHex string

	// Clock provides the node's notion of time, injected so tests can
	// control it. Defaults to clock.NewDefaultClock().
	Clock clock.Clock

	// Metrics receives lifecycle counters and gauges. Defaults to
	// metrics.Noop(), which records but never exposes them.
	Metrics *metrics.Registry
}

// Node is one running instance of the bridge: it owns the chain
// connection, durable store, commitment tree, nullifier gate, and the
// deposit and redemption lifecycle engines.
type Node struct {
	cfg   config.Config
	clock clock.Clock

	chainAdapter *chain.Adapter
	depositStore store.Store
	commitTree   *committree.Tree
	nullifiers   nullifier.Gate
	lightClient  *spv.LightClient
	verifier     *spv.Verifier
	headerSyncer *HeaderSyncer
	metrics      *metrics.Registry

	signer ThresholdSigner

	depositEngine    *deposit.Engine
	redemptionEngine *redemption.Engine
	redemptionPool   *redemption.Pool
}

// NewNode constructs a Node from cfg, wiring up every component in the
// order their dependencies require: chain adapter, store, commitment
// tree, nullifier gate, signer, SPV verifier, then the two lifecycle
// engines.
func NewNode(cfg NodeConfig) (*Node, error) {
	if err := cfg.Config.Validate(); err != nil {
		return nil, fmt.Errorf("bridge: invalid config: %w", err)
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Noop()
	}

	netParams, err := cfg.Config.Network.Params()
	if err != nil {
		return nil, err
	}

	client := chain.NewClient(chain.DefaultClientConfig(cfg.Config.ChainAPIURL))
	adapterCfg := chain.DefaultAdapterConfig(client)
	adapterCfg.Logger = log.NewSubsystem(log.SubsystemChain)
	chainAdapter := chain.NewAdapter(adapterCfg)

	depositStore, err := store.Open(store.DefaultConfig(cfg.Config.DBPath))
	if err != nil {
		return nil, fmt.Errorf("bridge: opening store: %w", err)
	}

	commitTree := committree.New()
	nullifierGate := nullifier.NewMemoryGate()

	signer, poolPubKey, err := buildSigner(cfg)
	if err != nil {
		return nil, err
	}

	lightClient := spv.NewLightClient(cfg.Config.RequiredConfirmations)
	verifier := spv.NewVerifier(spv.VerifierConfig{
		LightClient:    lightClient,
		CommitmentTree: commitTree,
		MinDepositSats: cfg.Config.MinDepositSats,
		MaxDepositSats: cfg.Config.MaxDepositSats,
	})

	headerSyncer := NewHeaderSyncer(chainAdapter, lightClient, 0, log.NewSubsystem(log.SubsystemSPV))

	depositCfg := deposit.DefaultConfig()
	depositCfg.RequiredConfirmations = cfg.Config.RequiredConfirmations
	depositCfg.RequiredSweepConfirmations = cfg.Config.RequiredSweepConfirmations
	depositCfg.PollInterval = time.Duration(cfg.Config.PollIntervalSecs) * time.Second
	depositCfg.RetryDelay = time.Duration(cfg.Config.RetryDelaySecs) * time.Second
	depositCfg.MaxRetries = cfg.Config.MaxRetries
	depositCfg.MinDepositSats = cfg.Config.MinDepositSats
	depositCfg.MaxDepositSats = cfg.Config.MaxDepositSats
	depositCfg.Network = netParams
	depositCfg.PoolPubKey = poolPubKey

	depositEngine := deposit.NewEngine(deposit.EngineConfig{
		Config:   depositCfg,
		Store:    depositStore,
		Chain:    chainAdapter,
		Signer:   signer,
		Verifier: verifier,
		Logger:   log.NewSubsystem(log.SubsystemDeposit),
		Clock:    cfg.Clock.Now,
	})

	redemptionPool := redemption.NewPool()
	redemptionCfg := redemption.DefaultConfig()
	redemptionCfg.RequiredConfirmations = cfg.Config.RequiredConfirmations
	redemptionCfg.PollInterval = time.Duration(cfg.Config.PollIntervalSecs) * time.Second
	redemptionCfg.Network = netParams

	redemptionEngine := redemption.NewEngine(redemption.EngineConfig{
		Config: redemptionCfg,
		Store:  redemption.NewMemoryStore(),
		Pool:   redemptionPool,
		Chain:  chainAdapter,
		Signer: signer,
		Logger: log.NewSubsystem(log.SubsystemRedemption),
		Clock:  cfg.Clock.Now,
	})

	return &Node{
		cfg:              cfg.Config,
		clock:            cfg.Clock,
		chainAdapter:     chainAdapter,
		depositStore:     depositStore,
		commitTree:       commitTree,
		nullifiers:       nullifierGate,
		lightClient:      lightClient,
		verifier:         verifier,
		headerSyncer:     headerSyncer,
		metrics:          cfg.Metrics,
		signer:           signer,
		depositEngine:    depositEngine,
		redemptionEngine: redemptionEngine,
		redemptionPool:   redemptionPool,
	}, nil
}

// buildSigner constructs the configured signing backend: a single
// in-process key for SigningModeSingle, or a FROST coordinator fanning
// out to cfg.SignerEndpoints for SigningModeThreshold.
func buildSigner(cfg NodeConfig) (ThresholdSigner, *btcec.PublicKey, error) {
	switch cfg.Config.SigningMode {
	case config.SigningModeSingle:
		priv, err := taproot.LoadSingleKey(cfg.Config.KeyFile, cfg.Config.KeyPassword)
		if err != nil {
			return nil, nil, fmt.Errorf("bridge: loading single key: %w", err)
		}
		signer := taproot.NewSingleKeySigner(priv)
		return signer, signer.PublicKey(), nil

	case config.SigningModeThreshold:
		if len(cfg.SignerEndpoints) == 0 {
			return nil, nil, fmt.Errorf("bridge: threshold signing mode requires at least one signer endpoint")
		}
		if cfg.PoolPublicKeyHex == "" {
			return nil, nil, fmt.Errorf("bridge: threshold signing mode requires the pool's group public key")
		}

		pubKeyBytes, err := hex.DecodeString(cfg.PoolPublicKeyHex)
		if err != nil {
			return nil, nil, fmt.Errorf("bridge: decoding pool public key: %w", err)
		}
		poolPubKey, err := btcec.ParsePubKey(pubKeyBytes)
		if err != nil {
			return nil, nil, fmt.Errorf("bridge: parsing pool public key: %w", err)
		}

		clients := make([]frost.SignerClient, len(cfg.SignerEndpoints))
		for i, endpoint := range cfg.SignerEndpoints {
			clients[i] = frost.NewHTTPSignerClient(frost.HTTPSignerClientConfig{
				BaseURL:  endpoint,
				SignerID: frost.Identifier(i + 1),
				Logger:   log.NewSubsystem(log.SubsystemFrost),
			})
		}

		coordinator := frost.NewCoordinator(frost.CoordinatorConfig{
			Signers:   clients,
			Threshold: cfg.Config.FrostThreshold,
		})

		return taproot.NewThresholdSigner(coordinator), poolPubKey, nil

	default:
		return nil, nil, fmt.Errorf("bridge: unknown signing mode %q", cfg.Config.SigningMode)
	}
}

// RegisterDeposit registers a freshly-generated commitment/address pair
// with the deposit engine, returning the new record.
func (n *Node) RegisterDeposit(ctx context.Context, address string, commitment [32]byte) (*store.DepositRecord, error) {
	rec, err := n.depositEngine.RegisterDeposit(ctx, address, hex.EncodeToString(commitment[:]))
	if err == nil {
		n.metrics.DepositsRegistered.Inc()
		n.metrics.PendingDeposits.Inc()
	}
	return rec, err
}

// RequestRedemption burns commitmentNullifier (the one-shot proof of
// spend authority a verified ZK proof would have revealed, per spec.md
// §4.8) and, if this is its first use, registers a new withdrawal
// request with the redemption engine. A reused nullifier is rejected
// with nullifier.ErrAlreadySpent before any BTC-side state changes.
func (n *Node) RequestRedemption(requesterID string, amountSats int64, destAddr, nonce string, commitmentNullifier [32]byte) (*redemption.Request, error) {
	addr := nullifier.DeriveAddress(nullifier.TagRedemption, commitmentNullifier)
	if _, err := n.nullifiers.CreateIfAbsent(nullifier.TagRedemption, commitmentNullifier, requesterID); err != nil {
		n.metrics.NullifiersRejected.Inc()
		return nil, fmt.Errorf("bridge: redemption nullifier %x: %w", addr, err)
	}
	req, err := n.redemptionEngine.RequestRedemption(requesterID, amountSats, destAddr, nonce)
	if err == nil {
		n.metrics.RedemptionsRequested.Inc()
		n.metrics.PendingRedemptions.Inc()
	}
	return req, err
}

// AddRedemptionFunds adds a pool-owned UTXO to the redemption pool's
// spendable set; the pool is populated out-of-band by whatever process
// tracks the custodial pool's own swept UTXOs.
func (n *Node) AddRedemptionFunds(utxo taproot.SweepUTXO) {
	n.redemptionPool.Add(utxo)
}

// Run starts the node's per-tick driver loop: header sync, deposit
// engine tick, redemption engine tick, repeated every PollInterval
// until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	if err := n.depositEngine.RecoverInProgressDeposits(ctx); err != nil {
		return fmt.Errorf("bridge: recovering in-progress deposits: %w", err)
	}

	interval := time.Duration(n.cfg.PollIntervalSecs) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n.tickOnce(ctx)
		}
	}
}

func (n *Node) tickOnce(ctx context.Context) {
	n.timedStage("header_sync", func() error { return n.headerSyncer.Sync(ctx) })
	n.timedStage("deposit_tick", func() error { return n.depositEngine.Tick(ctx) })
	n.timedStage("deposit_retry_tick", func() error { return n.depositEngine.RetryTick(ctx) })
	n.timedStage("redemption_tick", func() error { return n.redemptionEngine.Tick(ctx) })
}

func (n *Node) timedStage(stage string, fn func() error) {
	start := n.clock.Now()
	err := fn()
	n.metrics.TickDuration.WithLabelValues(stage).Observe(n.clock.Now().Sub(start).Seconds())
	if err != nil {
		n.logTickError(stage, err)
	}
}

func (n *Node) logTickError(stage string, err error) {
	log.NewSubsystem("NODE").Errorf("%s failed: %v", stage, err)
}

// Close releases the node's durable resources.
func (n *Node) Close() error {
	return n.depositStore.Close()
}
