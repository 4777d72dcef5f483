package bridge

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btclog"

	"github.com/btcshield/bridge/chain"
	"github.com/btcshield/bridge/spv"
)

// headerSource is the subset of the chain adapter the header syncer
// depends on.
type headerSource interface {
	GetTipHeight(ctx context.Context) (uint64, error)
	GetBlockHeader(ctx context.Context, height int64) (*chain.BlockHeaderInfo, error)
}

// HeaderSyncer feeds the SPV light client with newly confirmed block
// headers, so VerifyProof's confirmation-depth and header-lookup checks
// have up-to-date data, per spec.md §4.6 step 1.
type HeaderSyncer struct {
	chain  headerSource
	client *spv.LightClient
	log    btclog.Logger

	lastSynced int64
}

// NewHeaderSyncer constructs a HeaderSyncer starting from startHeight
// (exclusive; the first sync pulls startHeight+1 onward).
func NewHeaderSyncer(chainSource headerSource, client *spv.LightClient, startHeight int64, logger btclog.Logger) *HeaderSyncer {
	if logger == nil {
		logger = btclog.Disabled
	}
	return &HeaderSyncer{
		chain:      chainSource,
		client:     client,
		log:        logger,
		lastSynced: startHeight,
	}
}

// Sync pulls every header between the last synced height and the
// current chain tip, feeding each into the light client in order.
func (s *HeaderSyncer) Sync(ctx context.Context) error {
	tip, err := s.chain.GetTipHeight(ctx)
	if err != nil {
		return fmt.Errorf("headersync: fetching tip height: %w", err)
	}

	for height := s.lastSynced + 1; height <= int64(tip); height++ {
		info, err := s.chain.GetBlockHeader(ctx, height)
		if err != nil {
			return fmt.Errorf("headersync: fetching header at %d: %w", height, err)
		}

		raw, err := hex.DecodeString(info.RawHex)
		if err != nil {
			return fmt.Errorf("headersync: decoding header at %d: %w", height, err)
		}

		header, err := spv.ParseBlockHeader(raw)
		if err != nil {
			return fmt.Errorf("headersync: parsing header at %d: %w", height, err)
		}

		s.client.AddHeader(height, header)
		s.lastSynced = height
	}

	if s.lastSynced > 0 {
		s.log.Debugf("headersync: synced through height %d", s.lastSynced)
	}
	return nil
}
