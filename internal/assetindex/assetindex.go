// Package assetindex implements the AssetIndex worker: a
// low-frequency derivation of each account's distinct traded assets.
package assetindex

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/tourmii/gmxperp"
	"github.com/tourmii/gmxperp/internal/store"
)

// Config tunes the low-frequency tick interval.
type Config struct {
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: time.Hour}
}

type AssetIndex struct {
	cfg      Config
	opening  *store.OpeningPositionStore
	closed   *store.ClosedPositionStore
	accounts *store.AccountStore
}

func New(cfg Config, opening *store.OpeningPositionStore, closed *store.ClosedPositionStore, accounts *store.AccountStore) *AssetIndex {
	return &AssetIndex{cfg: cfg, opening: opening, closed: closed, accounts: accounts}
}

func (ai *AssetIndex) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := ai.tick(ctx); err != nil {
			log.Printf("assetindex: tick failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(ai.cfg.Interval):
		}
	}
}

func (ai *AssetIndex) tick(ctx context.Context) error {
	openPositions, err := ai.opening.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list opening positions: %w", err)
	}
	closedPositions, err := ai.closed.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list closed positions: %w", err)
	}

	assetByKey := BuildAssetIndex(openPositions, closedPositions)

	accounts, err := ai.accounts.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	byAccount := make(map[string][]string, len(accounts))
	for _, a := range accounts {
		byAccount[a.Address] = TradedAssets(a.PositionKeys, assetByKey)
	}

	if err := ai.accounts.BulkUpsertTradedAssets(ctx, byAccount); err != nil {
		return fmt.Errorf("failed to bulk-update traded assets: %w", err)
	}
	return nil
}

// BuildAssetIndex projects positionKey -> asset from the union of
// OpeningPosition and ClosedPosition documents.
func BuildAssetIndex(opening []gmxperp.OpeningPosition, closed []gmxperp.ClosedPosition) map[string]string {
	index := make(map[string]string, len(opening)+len(closed))
	for _, p := range opening {
		index[p.PositionKey] = p.Asset
	}
	for _, p := range closed {
		index[p.PositionKey] = p.Asset
	}
	return index
}

// TradedAssets projects an account's positionKeys through the asset
// index, deduplicated and in first-seen order.
func TradedAssets(positionKeys []string, assetByKey map[string]string) []string {
	seen := make(map[string]bool, len(positionKeys))
	var assets []string
	for _, key := range positionKeys {
		asset, ok := assetByKey[key]
		if !ok || seen[asset] {
			continue
		}
		seen[asset] = true
		assets = append(assets, asset)
	}
	return assets
}
