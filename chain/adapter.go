package chain

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btclog"
)

// AdapterConfig holds configuration for the Adapter.
type AdapterConfig struct {
	Client *Client

	// CacheTTL bounds how long the tip height and block headers are
	// cached. Default: 60s.
	CacheTTL time.Duration

	Logger btclog.Logger
}

// DefaultAdapterConfig returns a default configuration wrapping client.
func DefaultAdapterConfig(client *Client) *AdapterConfig {
	return &AdapterConfig{
		Client:   client,
		CacheTTL: 60 * time.Second,
		Logger:   btclog.Disabled,
	}
}

// Adapter is the Bitcoin chain adapter described in spec.md §4.1: it wraps
// the raw REST Client with the confirmations-math and byte-order contracts
// the rest of the bridge depends on.
type Adapter struct {
	cfg   *AdapterConfig
	cache *cache
	log   btclog.Logger
}

// NewAdapter creates a new chain Adapter.
func NewAdapter(cfg *AdapterConfig) *Adapter {
	if cfg == nil {
		panic("chain: adapter config is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = btclog.Disabled
	}

	return &Adapter{
		cfg:   cfg,
		cache: newCache(cfg.CacheTTL),
		log:   cfg.Logger,
	}
}

// GetTipHeight returns the current chain tip height.
func (a *Adapter) GetTipHeight(ctx context.Context) (uint64, error) {
	if height, ok := a.cache.getHeight(); ok {
		return height, nil
	}

	height, err := a.cfg.Client.GetTipHeight(ctx)
	if err != nil {
		return 0, err
	}

	a.cache.setHeight(height)
	return height, nil
}

// confirmations implements the contract in spec.md §4.1:
// max(0, tip_height - tx_block_height + 1) when confirmed, else 0.
func confirmations(tip uint64, blockHeight int64) uint32 {
	if blockHeight <= 0 {
		return 0
	}
	if uint64(blockHeight) > tip {
		return 0
	}
	diff := tip - uint64(blockHeight) + 1
	return uint32(diff)
}

// CheckAddress returns the funded/spent status and UTXO set of addr.
func (a *Adapter) CheckAddress(ctx context.Context, addr string) (*AddressStatus, error) {
	utxos, err := a.cfg.Client.GetAddressUTXOs(ctx, addr)
	if err != nil {
		return nil, err
	}

	tip, err := a.GetTipHeight(ctx)
	if err != nil {
		return nil, err
	}

	status := &AddressStatus{TxCount: len(utxos)}
	for _, u := range utxos {
		var blockHeight int64
		if u.Status.Confirmed {
			blockHeight = u.Status.BlockHeight
		}

		status.UTXOs = append(status.UTXOs, UTXO{
			TxID:          u.TxID,
			Vout:          u.Vout,
			ValueSats:     u.Value,
			BlockHeight:   blockHeight,
			Confirmations: confirmations(tip, blockHeight),
		})
		status.FundedSats += u.Value
	}

	return status, nil
}

// GetTxConfirmations returns the confirmation status of txid.
func (a *Adapter) GetTxConfirmations(ctx context.Context, txid string) (*TxConfirmationStatus, error) {
	status, err := a.cfg.Client.GetTxStatus(ctx, txid)
	if err != nil {
		return nil, err
	}

	result := &TxConfirmationStatus{
		Confirmed:   status.Confirmed,
		BlockHeight: status.BlockHeight,
		BlockHash:   status.BlockHash,
	}

	if status.Confirmed {
		tip, err := a.GetTipHeight(ctx)
		if err != nil {
			return nil, err
		}
		result.Confirmations = confirmations(tip, status.BlockHeight)
	}

	return result, nil
}

// GetTxHex returns the raw transaction hex for txid.
func (a *Adapter) GetTxHex(ctx context.Context, txid string) (string, error) {
	return a.cfg.Client.GetTxHex(ctx, txid)
}

// GetBlockHeader returns the raw 80-byte header for the block at height,
// caching results since confirmed headers never change.
func (a *Adapter) GetBlockHeader(ctx context.Context, height int64) (*BlockHeaderInfo, error) {
	if header, ok := a.cache.getHeader(height); ok {
		return &header, nil
	}

	hash, err := a.cfg.Client.GetBlockHashAtHeight(ctx, height)
	if err != nil {
		return nil, err
	}

	rawHex, err := a.cfg.Client.GetBlockHeaderHex(ctx, hash)
	if err != nil {
		return nil, err
	}

	header := BlockHeaderInfo{Height: height, Hash: hash, RawHex: rawHex}
	a.cache.setHeader(height, header)

	return &header, nil
}

// GetMerkleProof returns the Merkle inclusion proof for txid, in the wire
// shape described by the upstream API (display byte order, position as a
// single integer); the spv package is responsible for converting this to
// internal byte order and a per-level bit path.
func (a *Adapter) GetMerkleProof(ctx context.Context, txid string) (*MerkleProof, error) {
	resp, err := a.cfg.Client.GetMerkleProof(ctx, txid)
	if err != nil {
		return nil, err
	}

	return &MerkleProof{
		BlockHeight: resp.BlockHeight,
		Siblings:    resp.Merkle,
		Pos:         resp.Pos,
	}, nil
}

// BroadcastTx submits rawHex to the network and returns the resulting txid.
func (a *Adapter) BroadcastTx(ctx context.Context, rawHex string) (string, error) {
	txid, err := a.cfg.Client.BroadcastTx(ctx, rawHex)
	if err != nil {
		return "", fmt.Errorf("broadcast failed: %w", err)
	}
	return txid, nil
}

// EstimateFeeRate maps a confirmation target (in blocks) to a sat/vB fee
// rate, mirroring the bucket boundaries used by the upstream API's
// recommended-fee endpoint.
func (a *Adapter) EstimateFeeRate(ctx context.Context, confTarget uint32) (int64, error) {
	fees, err := a.cfg.Client.GetFeeEstimates(ctx)
	if err != nil {
		return 0, err
	}

	switch {
	case confTarget <= 1:
		return fees.FastestFee, nil
	case confTarget <= 3:
		return fees.HalfHourFee, nil
	case confTarget <= 6:
		return fees.HourFee, nil
	case confTarget <= 12:
		return fees.EconomyFee, nil
	default:
		return fees.MinimumFee, nil
	}
}
