// Package metadata implements MetadataCache: a memoized on-chain
// lookup of ERC-20-style decimals()/symbol(), backed by the token_info
// collection and the read-only chain client.
package metadata

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/tourmii/gmxperp"
	"github.com/tourmii/gmxperp/internal/store"
	"github.com/tourmii/gmxperp/pkg/chain"
)

// FallbackDecimals and FallbackSymbol are returned for a token whose
// contract doesn't answer decimals()/symbol() (non-standard token);
// this result is never persisted, so a later, well-formed lookup can
// still succeed.
const (
	FallbackDecimals uint8  = 18
	FallbackSymbol   string = "UNKNOWN"
)

// Cache is a cache-first token metadata resolver. There is no
// single-flight: concurrent first-time lookups for the same address
// are tolerated, since the upsert on _id makes the race harmless.
type Cache struct {
	tokens *store.TokenInfoStore
	chain  *chain.Client
}

func New(tokens *store.TokenInfoStore, chainClient *chain.Client) *Cache {
	return &Cache{tokens: tokens, chain: chainClient}
}

// Lookup resolves a token's decimals/symbol, persisting a freshly
// learned result and falling back (without persisting) when the
// contract is non-compliant.
func (c *Cache) Lookup(ctx context.Context, address string) (gmxperp.TokenInfo, error) {
	cached, err := c.tokens.Get(ctx, address)
	if err != nil {
		return gmxperp.TokenInfo{}, fmt.Errorf("failed to query token info cache for %s: %w", address, err)
	}
	if cached != nil {
		return *cached, nil
	}

	decimals, symbol, err := c.chain.DecimalsAndSymbol(ctx, common.HexToAddress(address))
	if err != nil {
		log.Printf("metadata: falling back for non-compliant token %s: %v", address, err)
		return gmxperp.TokenInfo{Address: strings.ToLower(address), Decimals: FallbackDecimals, Symbol: FallbackSymbol}, nil
	}

	info := gmxperp.TokenInfo{Address: strings.ToLower(address), Decimals: decimals, Symbol: symbol}
	if err := c.tokens.Upsert(ctx, info); err != nil {
		return gmxperp.TokenInfo{}, fmt.Errorf("failed to persist token info for %s: %w", address, err)
	}
	return info, nil
}

// Warmer runs MetadataCache as its own standalone worker: on a tick,
// it prefetches every collateral token seen in ingested events so the
// Indexer's inline lookups are cache hits rather than first-time
// eth_calls. Every token it touches still goes through Lookup, so
// persistence and fallback behavior is identical either way.
type Warmer struct {
	cache  *Cache
	events *store.EventStore
}

func NewWarmer(cache *Cache, events *store.EventStore) *Warmer {
	return &Warmer{cache: cache, events: events}
}

// Tick prefetches every distinct collateral token address observed so
// far, logging but not failing the tick on a per-token lookup error.
func (w *Warmer) Tick(ctx context.Context) error {
	tokens, err := w.events.DistinctCollateralTokens(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collateral tokens to warm: %w", err)
	}
	for _, addr := range tokens {
		if _, err := w.cache.Lookup(ctx, addr); err != nil {
			log.Printf("metadata: warm lookup failed for %s: %v", addr, err)
		}
	}
	return nil
}

// Run ticks the warmer on interval until ctx is cancelled.
func (w *Warmer) Run(ctx context.Context, interval time.Duration) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := w.Tick(ctx); err != nil {
			log.Printf("metadata: warm tick failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}
