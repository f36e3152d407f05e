// Package indexer implements the Indexer worker: tails the emitter
// contract's logs, decodes and normalizes each PositionIncrease /
// PositionDecrease event, and upserts it keyed by transaction hash.
package indexer

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tourmii/gmxperp"
	"github.com/tourmii/gmxperp/internal/abidecode"
	"github.com/tourmii/gmxperp/internal/metadata"
	"github.com/tourmii/gmxperp/internal/normalize"
	"github.com/tourmii/gmxperp/internal/store"
	"github.com/tourmii/gmxperp/pkg/chain"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Config tunes the adaptive window-sizing policy.
type Config struct {
	RealtimeThreshold uint64
	RealtimeWindow    uint64
	CatchupWindow     uint64
	RealtimeWait      time.Duration
	CatchupWait       time.Duration
}

// DefaultConfig returns the windowing defaults tuned for an L2 with
// sub-second blocks.
func DefaultConfig() Config {
	return Config{
		RealtimeThreshold: 100,
		RealtimeWindow:    10,
		CatchupWindow:     10_000,
		RealtimeWait:      10 * time.Second,
		CatchupWait:       1 * time.Second,
	}
}

// Indexer ties the chain client, emitter ABI, metadata cache, and
// event/cursor stores together.
type Indexer struct {
	cfg      Config
	chain    *chain.Client
	abi      abi.ABI
	emitter  common.Address
	metadata *metadata.Cache
	markets  *store.MarketStore
	events   *store.EventStore
	cursors  *store.CursorStore
}

func New(cfg Config, chainClient *chain.Client, emitterABI abi.ABI, emitter common.Address, metadataCache *metadata.Cache, markets *store.MarketStore, events *store.EventStore, cursors *store.CursorStore) *Indexer {
	return &Indexer{
		cfg:      cfg,
		chain:    chainClient,
		abi:      emitterABI,
		emitter:  emitter,
		metadata: metadataCache,
		markets:  markets,
		events:   events,
		cursors:  cursors,
	}
}

// Run loops until ctx is cancelled, observing the shutdown signal
// between ticks (never mid-tick; a tick's cursor advance only
// happens after every event in its window is upserted).
func (idx *Indexer) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		wait, err := idx.tick(ctx)
		if err != nil {
			log.Printf("indexer: tick failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

// tick processes at most one window and returns how long to sleep
// before the next tick.
func (idx *Indexer) tick(ctx context.Context) (time.Duration, error) {
	last, err := idx.cursors.Get(ctx, gmxperp.CursorLastIngestedBlock)
	if err != nil {
		return idx.cfg.RealtimeWait, fmt.Errorf("failed to read ingest cursor: %w", err)
	}

	head, err := idx.chain.BlockNumber(ctx)
	if err != nil {
		return idx.cfg.RealtimeWait, fmt.Errorf("failed to query chain head: %w", err)
	}

	fromBlock := uint64(last) + 1
	if head < fromBlock {
		return idx.cfg.RealtimeWait, nil
	}

	lag := head - uint64(last)
	var window uint64
	var wait time.Duration
	mode := "real-time"
	if lag > idx.cfg.RealtimeThreshold {
		window = min64(idx.cfg.CatchupWindow, lag)
		wait = idx.cfg.CatchupWait
		mode = "catch-up"
	} else {
		window = min64(idx.cfg.RealtimeWindow, lag)
		wait = idx.cfg.RealtimeWait
	}
	toBlock := fromBlock + window - 1
	if toBlock > head {
		toBlock = head
	}
	log.Printf("indexer: %s mode, %d blocks behind head %d, processing %d-%d", mode, lag, head, fromBlock, toBlock)

	logs, err := idx.chain.FilterLogsChunked(ctx, idx.emitter, abidecode.EventSignature, fromBlock, toBlock)
	if err != nil {
		return wait, fmt.Errorf("failed to fetch logs for window %d-%d: %w", fromBlock, toBlock, err)
	}

	upserted := 0
	for _, l := range logs {
		decoded, ok, err := abidecode.Decode(idx.abi, l)
		if err != nil {
			log.Printf("indexer: decode error for tx %s, skipping event: %v", l.TxHash.Hex(), err)
			continue
		}
		if !ok {
			continue
		}

		event, err := idx.normalizeEvent(ctx, decoded)
		if err != nil {
			log.Printf("indexer: normalize error for tx %s, skipping event: %v", decoded.TransactionHash, err)
			continue
		}

		if err := idx.events.Upsert(ctx, event); err != nil {
			return wait, fmt.Errorf("failed to upsert event %s: %w", event.TransactionHash, err)
		}
		upserted++
	}

	if err := idx.cursors.Set(ctx, gmxperp.CursorLastIngestedBlock, int64(toBlock)); err != nil {
		return wait, fmt.Errorf("failed to advance ingest cursor to %d: %w", toBlock, err)
	}

	if len(logs) > 0 {
		log.Printf("indexer: found %d logs in %d-%d, upserted %d position events", len(logs), fromBlock, toBlock, upserted)
	}
	return wait, nil
}

// normalizeEvent resolves market/collateral decimals and rescales a
// decoded record. On missing market metadata it returns a degraded
// record instead of failing the event.
func (idx *Indexer) normalizeEvent(ctx context.Context, d abidecode.Decoded) (gmxperp.NormalizedEvent, error) {
	fields := normalize.ApplyRenames(normalize.Fields(d.Fields))

	marketAddr, _ := fields.StringField("market")
	market, err := idx.markets.Get(ctx, marketAddr)
	if err != nil {
		return gmxperp.NormalizedEvent{}, fmt.Errorf("failed to resolve market %s: %w", marketAddr, err)
	}
	if market == nil {
		return idx.degradedEvent(d, fields), nil
	}

	collateralAddr, _ := fields.StringField("collateralToken")
	collateral, err := idx.metadata.Lookup(ctx, collateralAddr)
	if err != nil {
		return gmxperp.NormalizedEvent{}, fmt.Errorf("failed to resolve collateral token %s: %w", collateralAddr, err)
	}

	dec := normalize.Decimals{Index: market.Decimals, Collateral: collateral.Decimals}

	sizeInUsd, _ := fields.RescaleField(normalize.FieldSizeInUsd, dec)
	sizeDeltaUsd, hasSizeDelta := fields.RescaleField(normalize.FieldSizeDeltaUsd, dec)
	collateralAmount, _ := fields.RescaleField(normalize.FieldCollateralAmount, dec)
	collateralDeltaAmount, _ := fields.RescaleField(normalize.FieldCollateralDeltaAmount, dec)
	executionPrice, _ := fields.RescaleField(normalize.FieldExecutionPrice, dec)
	basePnlUsd, _ := fields.RescaleField(normalize.FieldBasePnlUsd, dec)
	uncappedBasePnlUsd, _ := fields.RescaleField(normalize.FieldUncappedBasePnlUsd, dec)
	priceImpactUsd, _ := fields.RescaleField(normalize.FieldPriceImpactUsd, dec)
	priceImpactDiffUsd, _ := fields.RescaleField(normalize.FieldPriceImpactDiffUsd, dec)
	priceImpactAmount, _ := fields.RescaleField(normalize.FieldPriceImpactAmount, dec)
	borrowingFactor, _ := fields.RescaleField(normalize.FieldBorrowingFactor, dec)
	sizeInTokens, _ := fields.RescaleField(normalize.FieldSizeInTokens, dec)
	sizeDeltaInTokens, _ := fields.RescaleField(normalize.FieldSizeDeltaInTokens, dec)
	indexPriceMax, _ := fields.RescaleField(normalize.FieldIndexTokenPriceMax, dec)
	indexPriceMin, _ := fields.RescaleField(normalize.FieldIndexTokenPriceMin, dec)
	colPriceMax, _ := fields.RescaleField(normalize.FieldCollateralTokenPriceMax, dec)
	colPriceMin, _ := fields.RescaleField(normalize.FieldCollateralTokenPriceMin, dec)
	fundingFeeAmountPerSize, _ := fields.RescaleField(normalize.FieldFundingFeeAmountPerSize, dec)
	longClaimable, _ := fields.RescaleField(normalize.FieldLongTokenClaimableFundingAmountPerSize, dec)
	shortClaimable, _ := fields.RescaleField(normalize.FieldShortTokenClaimableFundingAmountPerSize, dec)

	positionKey, _ := fields.StringField("positionKey")
	isLong, _ := fields.BoolField("isLong")
	orderType, _ := fields.Int64Field("orderType")
	timestamp, _ := fields.Int64Field("timestamp")

	return gmxperp.NormalizedEvent{
		TransactionHash:         d.TransactionHash,
		EventName:               gmxperp.EventName(d.EventName),
		BlockNumber:             d.BlockNumber,
		MsgSender:               d.MsgSender,
		Account:                 d.Account,
		Market:                  marketAddr,
		CollateralToken:         collateralAddr,
		PositionKey:             positionKey,
		IsLong:                  isLong,
		OrderType:               orderType,
		Topic1:                  d.Topic1,
		SizeInUsd:               sizeInUsd,
		SizeDeltaUsd:            sizeDeltaUsd,
		HasSizeDeltaUsd:         hasSizeDelta,
		CollateralAmount:        collateralAmount,
		CollateralDeltaAmount:   collateralDeltaAmount,
		ExecutionPrice:          executionPrice,
		BasePnlUsd:              basePnlUsd,
		UncappedBasePnlUsd:      uncappedBasePnlUsd,
		PriceImpactUsd:          priceImpactUsd,
		PriceImpactDiffUsd:      priceImpactDiffUsd,
		PriceImpactAmount:       priceImpactAmount,
		BorrowingFactor:         borrowingFactor,
		SizeInTokens:            sizeInTokens,
		SizeDeltaInTokens:       sizeDeltaInTokens,
		IndexTokenPriceMax:      indexPriceMax,
		IndexTokenPriceMin:      indexPriceMin,
		CollateralTokenPriceMax: colPriceMax,
		CollateralTokenPriceMin: colPriceMin,
		FundingFeeAmountPerSize: fundingFeeAmountPerSize,
		LongTokenClaimableFundingAmountPerSize:  longClaimable,
		ShortTokenClaimableFundingAmountPerSize: shortClaimable,
		IndexTokenName:      market.Name,
		IndexTokenDecimals:  market.Decimals,
		CollateralTokenSym:  collateral.Symbol,
		CollateralTokenDec:  collateral.Decimals,
		Timestamp:           timestamp,
	}, nil
}

// degradedEvent carries the event with every integer field
// stringified when the market cannot be resolved, so the raw values
// survive without corrupting the numeric schema.
func (idx *Indexer) degradedEvent(d abidecode.Decoded, fields normalize.Fields) gmxperp.NormalizedEvent {
	positionKey, _ := fields.StringField("positionKey")
	isLong, _ := fields.BoolField("isLong")
	orderType, _ := fields.Int64Field("orderType")
	timestamp, _ := fields.Int64Field("timestamp")
	marketAddr, _ := fields.StringField("market")
	collateralAddr, _ := fields.StringField("collateralToken")

	return gmxperp.NormalizedEvent{
		TransactionHash: d.TransactionHash,
		EventName:       gmxperp.EventName(d.EventName),
		BlockNumber:     d.BlockNumber,
		MsgSender:       d.MsgSender,
		Account:         d.Account,
		Market:          marketAddr,
		CollateralToken: collateralAddr,
		PositionKey:     positionKey,
		IsLong:          isLong,
		OrderType:       orderType,
		Topic1:          d.Topic1,
		Timestamp:       timestamp,
		Degraded:        true,
		Raw:             abidecode.MarshalDegraded(fields),
	}
}

func min64(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
