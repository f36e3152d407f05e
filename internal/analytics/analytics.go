// Package analytics implements the Analytics worker: folds normalized
// events, in ascending block order, into Account/OpeningPosition/
// ClosedPosition documents.
package analytics

import (
	"context"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tourmii/gmxperp"
	"github.com/tourmii/gmxperp/internal/store"
)

// LiquidationOrderType is the order-type code that classifies a
// Decrease as a liquidation rather than an ordinary close.
const LiquidationOrderType = 7

// Config tunes the batch size and idle sleep.
type Config struct {
	BatchSize int
	Idle      time.Duration
}

func DefaultConfig() Config {
	return Config{BatchSize: 1000, Idle: 5 * time.Second}
}

type Analytics struct {
	cfg      Config
	events   *mongo.Collection
	accounts *store.AccountStore
	opening  *store.OpeningPositionStore
	closed   *store.ClosedPositionStore
	cursors  *store.CursorStore
}

// New takes the raw events collection directly (rather than
// store.EventStore) because Analytics needs an ascending-blockNumber
// range query the narrower EventStore interface doesn't expose.
func New(cfg Config, events *mongo.Collection, accounts *store.AccountStore, opening *store.OpeningPositionStore, closed *store.ClosedPositionStore, cursors *store.CursorStore) *Analytics {
	return &Analytics{cfg: cfg, events: events, accounts: accounts, opening: opening, closed: closed, cursors: cursors}
}

func (a *Analytics) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		progressed, err := a.tick(ctx)
		if err != nil {
			log.Printf("analytics: tick failed: %v", err)
		}

		wait := a.cfg.Idle
		if progressed {
			wait = 0
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (a *Analytics) tick(ctx context.Context) (bool, error) {
	lastAnalyzed, err := a.cursors.Get(ctx, gmxperp.CursorLastAnalyzedBlock)
	if err != nil {
		return false, fmt.Errorf("failed to read analyzed cursor: %w", err)
	}
	lastIngested, err := a.cursors.Get(ctx, gmxperp.CursorLastIngestedBlock)
	if err != nil {
		return false, fmt.Errorf("failed to read ingested cursor: %w", err)
	}

	fromBlock := lastAnalyzed + 1
	toBlock := fromBlock + int64(a.cfg.BatchSize) - 1
	if toBlock > lastIngested {
		toBlock = lastIngested
	}
	if toBlock < fromBlock {
		return false, nil
	}

	cur, err := a.events.Find(ctx,
		bson.M{"blockNumber": bson.M{"$gte": fromBlock, "$lte": toBlock}},
		options.Find().SetSort(bson.D{{Key: "blockNumber", Value: 1}}),
	)
	if err != nil {
		return false, fmt.Errorf("failed to query events %d-%d: %w", fromBlock, toBlock, err)
	}
	defer cur.Close(ctx)

	var events []gmxperp.NormalizedEvent
	if err := cur.All(ctx, &events); err != nil {
		return false, fmt.Errorf("failed to decode events %d-%d: %w", fromBlock, toBlock, err)
	}

	folded := 0
	for _, e := range events {
		if e.Degraded {
			continue
		}
		if err := a.foldEvent(ctx, e); err != nil {
			return false, fmt.Errorf("failed to fold event %s: %w", e.TransactionHash, err)
		}
		folded++
	}

	if err := a.cursors.Set(ctx, gmxperp.CursorLastAnalyzedBlock, toBlock); err != nil {
		return false, fmt.Errorf("failed to advance analyzed cursor to %d: %w", toBlock, err)
	}
	log.Printf("analytics: processed blocks %d-%d, folded %d events", fromBlock, toBlock, folded)
	return true, nil
}

func (a *Analytics) foldEvent(ctx context.Context, e gmxperp.NormalizedEvent) error {
	switch e.EventName {
	case gmxperp.EventPositionIncrease:
		return a.foldIncrease(ctx, e)
	case gmxperp.EventPositionDecrease:
		return a.foldDecrease(ctx, e)
	}
	return nil
}

func (a *Analytics) foldIncrease(ctx context.Context, e gmxperp.NormalizedEvent) error {
	account, err := a.loadOrCreateAccount(ctx, e.Account)
	if err != nil {
		return err
	}
	position, err := a.opening.Get(ctx, e.PositionKey)
	if err != nil {
		return fmt.Errorf("failed to fetch opening position %s: %w", e.PositionKey, err)
	}

	position = ApplyIncrease(account, position, e)

	if err := a.opening.UpsertFold(ctx, *position); err != nil {
		return err
	}
	return a.accounts.UpsertFold(ctx, *account)
}

func (a *Analytics) foldDecrease(ctx context.Context, e gmxperp.NormalizedEvent) error {
	account, err := a.loadOrCreateAccount(ctx, e.Account)
	if err != nil {
		return err
	}
	position, err := a.opening.Get(ctx, e.PositionKey)
	if err != nil {
		return fmt.Errorf("failed to fetch opening position %s: %w", e.PositionKey, err)
	}
	closedPos, err := a.closed.Get(ctx, e.PositionKey)
	if err != nil {
		return fmt.Errorf("failed to fetch closed position %s: %w", e.PositionKey, err)
	}

	remaining, closedPos := ApplyDecrease(account, position, closedPos, e)

	if remaining != nil {
		if err := a.opening.UpsertFold(ctx, *remaining); err != nil {
			return err
		}
	} else if position != nil {
		if err := a.opening.Delete(ctx, e.PositionKey); err != nil {
			return err
		}
	}

	if err := a.closed.UpsertFold(ctx, *closedPos); err != nil {
		return err
	}
	return a.accounts.UpsertFold(ctx, *account)
}

// ApplyIncrease applies a PositionIncrease fold to account
// and position in place, creating position if it is nil, and returns
// the (possibly new) position. Pure aside from its two argument
// mutations, with no I/O, so it is exercised directly by tests.
func ApplyIncrease(account *gmxperp.Account, position *gmxperp.OpeningPosition, e gmxperp.NormalizedEvent) *gmxperp.OpeningPosition {
	addPositionKey(account, e.PositionKey)
	account.CollateralUsd += e.CollateralDeltaAmount

	sizeDelta := e.SizeDeltaUsd
	var leverage float64
	if e.CollateralDeltaAmount > 0 {
		leverage = math.Ceil(sizeDelta/e.CollateralDeltaAmount*10) / 10
	}
	openLog := gmxperp.OpenLog{
		Timestamp:       e.Timestamp,
		Action:          gmxperp.ActionOpen,
		CollateralUsd:   e.CollateralDeltaAmount,
		Leverage:        leverage,
		SizeUsd:         sizeDelta,
		Price:           e.ExecutionPrice,
		TransactionHash: e.TransactionHash,
	}

	if position == nil {
		return &gmxperp.OpeningPosition{
			PositionKey:   e.PositionKey,
			OwnerAccount:  e.Account,
			Asset:         e.IndexTokenName,
			Side:          sideOf(e.IsLong),
			SizeUsd:       e.SizeInUsd,
			EntryPrice:    e.ExecutionPrice,
			UnrealizedPnl: 0,
			Logs:          []gmxperp.OpenLog{openLog},
		}
	}

	sizeOld := position.SizeUsd
	position.EntryPrice = weightedEntry(position.EntryPrice, sizeOld, e.ExecutionPrice, sizeDelta)
	position.SizeUsd = e.SizeInUsd
	position.Logs = append(position.Logs, openLog)
	return position
}

// ApplyDecrease applies a PositionDecrease fold. Returns
// the surviving OpeningPosition (nil if the position was fully
// closed) and the updated ClosedPosition (created if this is the
// first close of this key). Pure aside from its argument mutations.
func ApplyDecrease(account *gmxperp.Account, position *gmxperp.OpeningPosition, closedPos *gmxperp.ClosedPosition, e gmxperp.NormalizedEvent) (*gmxperp.OpeningPosition, *gmxperp.ClosedPosition) {
	addPositionKey(account, e.PositionKey)
	account.RealizedPnl += e.BasePnlUsd
	account.ClosedPositionCount++
	if e.BasePnlUsd > 0 {
		account.ProfitedPositionCount++
	}

	var sizeOld float64
	if position != nil {
		sizeOld = position.SizeUsd
	}

	var sizeDelta, sizePost float64
	if e.HasSizeDeltaUsd {
		sizeDelta = e.SizeDeltaUsd
		sizePost = e.SizeInUsd
	} else {
		sizeDelta = sizeOld
		sizePost = 0
	}

	percentageClosed := 100
	if denom := sizeDelta + sizePost; denom != 0 {
		percentageClosed = int(math.Round(sizeDelta / denom * 100))
	}

	action := gmxperp.ActionClose
	if e.OrderType == LiquidationOrderType {
		action = gmxperp.ActionLiquidate
	}

	closeLog := gmxperp.CloseLog{
		Timestamp:        e.Timestamp,
		Action:           action,
		RealizedPnl:      e.BasePnlUsd,
		SizeUsd:          sizeDelta,
		PercentageClosed: percentageClosed,
		Price:            e.ExecutionPrice,
		TransactionHash:  e.TransactionHash,
	}

	if closedPos == nil {
		closedPos = &gmxperp.ClosedPosition{
			PositionKey:  e.PositionKey,
			OwnerAccount: e.Account,
			Asset:        e.IndexTokenName,
			Side:         sideOf(e.IsLong),
		}
	}
	closedPos.Logs = append(closedPos.Logs, closeLog)
	closedPos.RealizedPnl += e.BasePnlUsd

	if sizePost > 0 {
		if position == nil {
			// re-open after full closure: the decrease's execution
			// price is the only entry price available.
			position = &gmxperp.OpeningPosition{
				PositionKey:  e.PositionKey,
				OwnerAccount: e.Account,
				Asset:        e.IndexTokenName,
				Side:         sideOf(e.IsLong),
				EntryPrice:   e.ExecutionPrice,
			}
		}
		position.SizeUsd = sizePost
		return position, closedPos
	}

	if position != nil {
		for _, ol := range position.Logs {
			closedPos.Logs = append(closedPos.Logs, openLogToCloseLog(ol))
		}
		sort.Slice(closedPos.Logs, func(i, j int) bool {
			return closedPos.Logs[i].Timestamp > closedPos.Logs[j].Timestamp
		})
	}
	return nil, closedPos
}

// openLogToCloseLog carries an Open entry's fields across into the
// ClosedPosition's unified log history on full close;
// CollateralUsd/Leverage ride along on the otherwise-Close-shaped
// entry for exactly this reason.
func openLogToCloseLog(ol gmxperp.OpenLog) gmxperp.CloseLog {
	return gmxperp.CloseLog{
		Timestamp:       ol.Timestamp,
		Action:          ol.Action,
		SizeUsd:         ol.SizeUsd,
		Price:           ol.Price,
		TransactionHash: ol.TransactionHash,
		CollateralUsd:   ol.CollateralUsd,
		Leverage:        ol.Leverage,
	}
}

func (a *Analytics) loadOrCreateAccount(ctx context.Context, address string) (*gmxperp.Account, error) {
	account, err := a.accounts.Get(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account %s: %w", address, err)
	}
	if account == nil {
		account = &gmxperp.Account{Address: address}
	}
	return account, nil
}

func addPositionKey(account *gmxperp.Account, key string) {
	for _, k := range account.PositionKeys {
		if k == key {
			return
		}
	}
	account.PositionKeys = append(account.PositionKeys, key)
}

func weightedEntry(entryOld, sizeOld, execPrice, sizeDelta float64) float64 {
	denom := sizeOld + sizeDelta
	if denom == 0 {
		return execPrice
	}
	return (entryOld*sizeOld + execPrice*sizeDelta) / denom
}

func sideOf(isLong bool) gmxperp.Side {
	if isLong {
		return gmxperp.SideLong
	}
	return gmxperp.SideShort
}
