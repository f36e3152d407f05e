// Package valuator implements the Valuator worker: periodically
// re-prices open positions against a live oracle ticker and
// recomputes unrealized PnL, open exposure, PNL, and ROI per account.
package valuator

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/tourmii/gmxperp"
	"github.com/tourmii/gmxperp/internal/store"
)

// FirstOpenedAtFallback is used when an OpeningPosition has no logs to
// derive firstOpenedAt from.
const FirstOpenedAtFallback int64 = 1735689600

// syntheticPrefixes are the single-letter lowercase market-name
// prefixes marking leveraged/synthetic variants of an underlying
// asset. This is the one place that knows the prefix set; price
// resolution expands it and asset normalization strips it.
var syntheticPrefixes = []string{"k", "t", "m"}

// Config tunes the revaluation tick interval.
type Config struct {
	Interval time.Duration
}

func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second}
}

// Ticker fetches the oracle's price snapshot. Implemented by
// internal/priceticker; declared as an interface here so the fold
// logic is testable without an HTTP round trip.
type Ticker interface {
	Fetch(ctx context.Context) ([]TickerQuote, error)
}

// TickerQuote is one entry of the oracle's ticker response.
type TickerQuote struct {
	TokenSymbol string
	MinPrice    float64
	MaxPrice    float64
}

type Valuator struct {
	cfg      Config
	ticker   Ticker
	markets  *store.MarketStore
	accounts *store.AccountStore
	opening  *store.OpeningPositionStore
	closed   *store.ClosedPositionStore
}

func New(cfg Config, ticker Ticker, markets *store.MarketStore, accounts *store.AccountStore, opening *store.OpeningPositionStore, closed *store.ClosedPositionStore) *Valuator {
	return &Valuator{cfg: cfg, ticker: ticker, markets: markets, accounts: accounts, opening: opening, closed: closed}
}

func (v *Valuator) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if err := v.tick(ctx); err != nil {
			log.Printf("valuator: tick failed: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(v.cfg.Interval):
		}
	}
}

// tick re-prices everything once. Each collection receives one bulk
// write, and only the valuation fields are touched, so the Analytics
// fold's concurrent writes stay disjoint.
func (v *Valuator) tick(ctx context.Context) error {
	quotes, err := v.ticker.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch ticker snapshot: %w", err)
	}

	prices, err := v.buildPriceMap(ctx, quotes)
	if err != nil {
		return fmt.Errorf("failed to resolve ticker decimals: %w", err)
	}

	closedPositions, err := v.closed.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list closed positions: %w", err)
	}
	lastClosed := make(map[string]int64, len(closedPositions))
	for i := range closedPositions {
		ApplyLastClosedAt(&closedPositions[i])
		lastClosed[closedPositions[i].PositionKey] = closedPositions[i].LastClosedAt
	}
	if err := v.closed.BulkSetLastClosedAt(ctx, lastClosed); err != nil {
		return err
	}

	openingPositions, err := v.opening.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list opening positions: %w", err)
	}

	aggregates := make(map[string]*OpenAggregate)
	var positionUpdates []store.OpeningValuation
	for i := range openingPositions {
		p := &openingPositions[i]
		agg := aggregates[p.OwnerAccount]
		if agg == nil {
			agg = &OpenAggregate{}
			aggregates[p.OwnerAccount] = agg
		}
		if !ApplyUnrealizedPnl(p, prices) {
			continue
		}
		positionUpdates = append(positionUpdates, store.OpeningValuation{
			PositionKey:   p.PositionKey,
			FirstOpenedAt: p.FirstOpenedAt,
			UnrealizedPnl: p.UnrealizedPnl,
		})
		agg.Add(*p)
	}
	if err := v.opening.BulkSetValuation(ctx, positionUpdates); err != nil {
		return err
	}

	accounts, err := v.accounts.All(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}
	accountUpdates := make([]store.AccountValuation, 0, len(accounts))
	for i := range accounts {
		accountUpdates = append(accountUpdates, ComputeValuation(accounts[i], aggregates[accounts[i].Address]))
	}
	if err := v.accounts.BulkSetValuation(ctx, accountUpdates); err != nil {
		return err
	}

	log.Printf("valuator: repriced %d open positions across %d accounts (%d closed positions)",
		len(positionUpdates), len(accountUpdates), len(closedPositions))
	return nil
}

// buildPriceMap resolves each quote's symbol to a market's decimals,
// trying the bare symbol then each synthetic prefix, and rescales the
// mid price to the position scale. Quotes matching no seeded market
// are dropped.
func (v *Valuator) buildPriceMap(ctx context.Context, quotes []TickerQuote) (map[string]float64, error) {
	prices := make(map[string]float64, len(quotes))
	for _, q := range quotes {
		var market *gmxperp.Market
		candidates := append([]string{q.TokenSymbol}, prefixedNames(q.TokenSymbol)...)
		for _, name := range candidates {
			m, err := v.markets.FindByName(ctx, name)
			if err != nil {
				return nil, err
			}
			if m != nil {
				market = m
				break
			}
		}
		if market == nil {
			continue
		}
		mid := (q.MinPrice + q.MaxPrice) / 2
		prices[q.TokenSymbol] = mid / pow10(30-int(market.Decimals))
	}
	return prices, nil
}

func prefixedNames(symbol string) []string {
	names := make([]string, 0, len(syntheticPrefixes))
	for _, p := range syntheticPrefixes {
		names = append(names, p+symbol)
	}
	return names
}

// normalizeAsset strips a leading lowercase synthetic-market prefix
// letter; the rest of the name keeps its case, matching the ticker's
// symbols.
func normalizeAsset(asset string) string {
	for _, p := range syntheticPrefixes {
		if strings.HasPrefix(asset, p) && len(asset) > len(p) {
			return asset[len(p):]
		}
	}
	return asset
}

func pow10(exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= 10
	}
	for i := 0; i > exp; i-- {
		result /= 10
	}
	return result
}

// ApplyLastClosedAt sets lastClosedAt to the max log timestamp.
func ApplyLastClosedAt(p *gmxperp.ClosedPosition) {
	var max int64
	for _, l := range p.Logs {
		if l.Timestamp > max {
			max = l.Timestamp
		}
	}
	p.LastClosedAt = max
}

// ApplyUnrealizedPnl recomputes an OpeningPosition's unrealizedPnl and
// firstOpenedAt against the resolved price map. Returns false without
// modifying the position when its asset has no price this tick (the
// position is skipped entirely, aggregation included).
func ApplyUnrealizedPnl(p *gmxperp.OpeningPosition, prices map[string]float64) bool {
	px, ok := prices[normalizeAsset(p.Asset)]
	if !ok || p.EntryPrice == 0 {
		return false
	}

	if len(p.Logs) == 0 {
		p.FirstOpenedAt = FirstOpenedAtFallback
	} else {
		min := p.Logs[0].Timestamp
		for _, l := range p.Logs[1:] {
			if l.Timestamp < min {
				min = l.Timestamp
			}
		}
		p.FirstOpenedAt = min
	}

	if p.Side == gmxperp.SideLong {
		p.UnrealizedPnl = p.SizeUsd * (px - p.EntryPrice) / p.EntryPrice
	} else {
		p.UnrealizedPnl = p.SizeUsd * (p.EntryPrice - px) / p.EntryPrice
	}
	return true
}

// OpenAggregate accumulates one account's opening-side totals across
// the positions priced this tick.
type OpenAggregate struct {
	SizeUsd       float64
	UnrealizedPnl float64
	Count         int
	Suppressed    bool
}

// Add folds one revalued position into the aggregate. A position whose
// recorded sizeUsd exceeds the sum of its log sizes marks the whole
// account for ROI suppression this tick.
func (agg *OpenAggregate) Add(p gmxperp.OpeningPosition) {
	agg.SizeUsd += p.SizeUsd
	agg.UnrealizedPnl += p.UnrealizedPnl
	agg.Count++

	var loggedSizeSum float64
	for _, l := range p.Logs {
		loggedSizeSum += l.SizeUsd
	}
	if p.SizeUsd > loggedSizeSum {
		agg.Suppressed = true
	}
}

// ComputeValuation derives one account's valuation update from its
// stored aggregates and this tick's opening-side totals. agg is nil
// for an account with no open positions. A nil ROI in the result means
// the stored ROI is left untouched (suppressed or no collateral); same
// for ProfitableRatio before any close.
func ComputeValuation(a gmxperp.Account, agg *OpenAggregate) store.AccountValuation {
	u := store.AccountValuation{Address: a.Address, PNL: a.RealizedPnl}
	if agg != nil {
		u.OpeningSizeUsd = agg.SizeUsd
		u.OpeningPositionCount = agg.Count
		u.UnrealizedPnl = agg.UnrealizedPnl
		u.PNL = a.RealizedPnl + agg.UnrealizedPnl
	}

	if a.ClosedPositionCount > 0 {
		ratio := float64(a.ProfitedPositionCount) / float64(a.ClosedPositionCount)
		u.ProfitableRatio = &ratio
	}

	suppressed := agg != nil && agg.Suppressed
	if a.CollateralUsd > 0 && !suppressed {
		roi := u.PNL / a.CollateralUsd * 100
		u.ROI = &roi
	}
	return u
}
