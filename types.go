// Package gmxperp indexes position-lifecycle events emitted by a
// perpetual-futures protocol's generic event emitter and maintains a
// derived analytical view of accounts and positions.
package gmxperp

// EventName enumerates the only two event kinds the pipeline keeps.
type EventName string

const (
	EventPositionIncrease EventName = "PositionIncrease"
	EventPositionDecrease EventName = "PositionDecrease"
)

// Side is a position's direction.
type Side string

const (
	SideLong  Side = "Long"
	SideShort Side = "Short"
)

// ActionKind labels a single entry in a position's log history.
type ActionKind string

const (
	ActionOpen      ActionKind = "Open"
	ActionClose     ActionKind = "Close"
	ActionLiquidate ActionKind = "Liquidate"
)

// TokenInfo is keyed by the lowercased contract address. Immutable once
// learned; never evicted.
type TokenInfo struct {
	Address  string `bson:"_id" json:"address"`
	Decimals uint8  `bson:"decimals" json:"decimals"`
	Symbol   string `bson:"symbol" json:"symbol"`
}

// Market is seeded externally and read-only to the pipeline. Name may
// carry a lowercase k/t/m prefix marking a synthetic variant of the
// underlying index token.
type Market struct {
	Address  string `bson:"_id" json:"address"`
	Name     string `bson:"name" json:"name"`
	Decimals uint8  `bson:"decimals" json:"decimals"`
}

// NormalizedEvent is the domain-level, rescaled view of a single
// decoded PositionIncrease/PositionDecrease log. Keyed by
// transactionHash; replaced idempotently on re-ingest.
type NormalizedEvent struct {
	TransactionHash string    `bson:"_id" json:"transactionHash"`
	EventName       EventName `bson:"eventName" json:"eventName"`
	BlockNumber     uint64    `bson:"blockNumber" json:"blockNumber"`
	MsgSender       string    `bson:"msgSender" json:"msgSender"`
	Account         string    `bson:"account" json:"account"`
	Market          string    `bson:"market,omitempty" json:"market,omitempty"`
	CollateralToken string    `bson:"collateralToken,omitempty" json:"collateralToken,omitempty"`
	PositionKey     string    `bson:"positionKey" json:"positionKey"`
	IsLong          bool      `bson:"isLong" json:"isLong"`
	OrderType       int64     `bson:"orderType" json:"orderType"`
	Topic1          string    `bson:"topic1,omitempty" json:"topic1,omitempty"`

	SizeInUsd             float64 `bson:"sizeInUsd" json:"sizeInUsd"`
	SizeDeltaUsd          float64 `bson:"sizeDeltaUsd,omitempty" json:"sizeDeltaUsd,omitempty"`
	HasSizeDeltaUsd       bool    `bson:"hasSizeDeltaUsd" json:"hasSizeDeltaUsd"`
	CollateralAmount      float64 `bson:"collateralAmount,omitempty" json:"collateralAmount,omitempty"`
	CollateralDeltaAmount float64 `bson:"collateralDeltaAmount,omitempty" json:"collateralDeltaAmount,omitempty"`
	ExecutionPrice        float64 `bson:"executionPrice" json:"executionPrice"`
	BasePnlUsd            float64 `bson:"basePnlUsd" json:"basePnlUsd"`
	UncappedBasePnlUsd    float64 `bson:"uncappedBasePnlUsd,omitempty" json:"uncappedBasePnlUsd,omitempty"`
	PriceImpactUsd        float64 `bson:"priceImpactUsd,omitempty" json:"priceImpactUsd,omitempty"`
	PriceImpactDiffUsd    float64 `bson:"priceImpactDiffUsd,omitempty" json:"priceImpactDiffUsd,omitempty"`
	PriceImpactAmount     float64 `bson:"priceImpactAmount,omitempty" json:"priceImpactAmount,omitempty"`
	BorrowingFactor       float64 `bson:"borrowingFactor,omitempty" json:"borrowingFactor,omitempty"`

	SizeInTokens      float64 `bson:"sizeInTokens,omitempty" json:"sizeInTokens,omitempty"`
	SizeDeltaInTokens float64 `bson:"sizeDeltaInTokens,omitempty" json:"sizeDeltaInTokens,omitempty"`

	IndexTokenPriceMax      float64 `bson:"indexTokenPriceMax,omitempty" json:"indexTokenPriceMax,omitempty"`
	IndexTokenPriceMin      float64 `bson:"indexTokenPriceMin,omitempty" json:"indexTokenPriceMin,omitempty"`
	CollateralTokenPriceMax float64 `bson:"collateralTokenPriceMax,omitempty" json:"collateralTokenPriceMax,omitempty"`
	CollateralTokenPriceMin float64 `bson:"collateralTokenPriceMin,omitempty" json:"collateralTokenPriceMin,omitempty"`

	FundingFeeAmountPerSize                float64 `bson:"fundingFeeAmountPerSize,omitempty" json:"fundingFeeAmountPerSize,omitempty"`
	LongTokenClaimableFundingAmountPerSize  float64 `bson:"longTokenClaimableFundingAmountPerSize,omitempty" json:"longTokenClaimableFundingAmountPerSize,omitempty"`
	ShortTokenClaimableFundingAmountPerSize float64 `bson:"shortTokenClaimableFundingAmountPerSize,omitempty" json:"shortTokenClaimableFundingAmountPerSize,omitempty"`

	IndexTokenName     string `bson:"indexTokenName,omitempty" json:"indexTokenName,omitempty"`
	IndexTokenDecimals uint8  `bson:"indexTokenDecimals,omitempty" json:"indexTokenDecimals,omitempty"`
	CollateralTokenSym string `bson:"collateralTokenSymbol,omitempty" json:"collateralTokenSymbol,omitempty"`
	CollateralTokenDec uint8  `bson:"collateralTokenDecimals,omitempty" json:"collateralTokenDecimals,omitempty"`

	Timestamp int64 `bson:"timestamp" json:"timestamp"`

	// Degraded is set when market resolution failed; in that case every
	// numeric field above is meaningless and Raw carries the
	// stringified originals instead.
	Degraded bool              `bson:"degraded,omitempty" json:"degraded,omitempty"`
	Raw      map[string]string `bson:"raw,omitempty" json:"raw,omitempty"`
}

// OpenLog is a single Increase entry in an OpeningPosition's history.
type OpenLog struct {
	Timestamp       int64      `bson:"timestamp" json:"timestamp"`
	Action          ActionKind `bson:"action" json:"action"`
	CollateralUsd   float64    `bson:"collateralUsd" json:"collateralUsd"`
	Leverage        float64    `bson:"leverage" json:"leverage"`
	SizeUsd         float64    `bson:"sizeUsd" json:"sizeUsd"`
	Price           float64    `bson:"price" json:"price"`
	TransactionHash string     `bson:"transaction_hash" json:"transaction_hash"`
}

// CloseLog is a single Decrease entry, either a partial close, a full
// close, or a liquidation.
type CloseLog struct {
	Timestamp         int64      `bson:"timestamp" json:"timestamp"`
	Action            ActionKind `bson:"action" json:"action"`
	RealizedPnl       float64    `bson:"realizedPnl" json:"realizedPnl"`
	SizeUsd           float64    `bson:"sizeUsd" json:"sizeUsd"`
	PercentageClosed  int        `bson:"percentageClosed" json:"percentageClosed"`
	Price             float64    `bson:"price" json:"price"`
	TransactionHash   string     `bson:"transaction_hash" json:"transaction_hash"`
	// CollateralUsd/Leverage are carried over when an Open log merges
	// into a ClosedPosition's log history on full close; zero for logs
	// created directly as Close/Liquidate entries.
	CollateralUsd float64 `bson:"collateralUsd,omitempty" json:"collateralUsd,omitempty"`
	Leverage      float64 `bson:"leverage,omitempty" json:"leverage,omitempty"`
}

// OpeningPosition is keyed by positionKey. Deleted when sizeUsd
// reaches zero; its logs are merged into the ClosedPosition at that
// point.
type OpeningPosition struct {
	PositionKey   string    `bson:"_id" json:"positionKey"`
	OwnerAccount  string    `bson:"ownerAccount" json:"ownerAccount"`
	Asset         string    `bson:"asset" json:"asset"`
	Side          Side      `bson:"side" json:"side"`
	SizeUsd       float64   `bson:"sizeUsd" json:"sizeUsd"`
	EntryPrice    float64   `bson:"entryPrice" json:"entryPrice"`
	UnrealizedPnl float64   `bson:"unrealizedPnl" json:"unrealizedPnl"`
	FirstOpenedAt int64     `bson:"firstOpenedAt,omitempty" json:"firstOpenedAt,omitempty"`
	Logs          []OpenLog `bson:"logs" json:"logs"`
}

// ClosedPosition shares its key with the OpeningPosition it closed.
// Accumulates across repeated opens/closes of the same positionKey.
type ClosedPosition struct {
	PositionKey  string     `bson:"_id" json:"positionKey"`
	OwnerAccount string     `bson:"ownerAccount" json:"ownerAccount"`
	Asset        string     `bson:"asset" json:"asset"`
	Side         Side       `bson:"side" json:"side"`
	RealizedPnl  float64    `bson:"realizedPnl" json:"realizedPnl"`
	LastClosedAt int64      `bson:"lastClosedAt,omitempty" json:"lastClosedAt,omitempty"`
	Logs         []CloseLog `bson:"logs" json:"logs"`
}

// Account aggregates across every position an address has ever
// touched.
type Account struct {
	Address               string   `bson:"_id" json:"account"`
	PositionKeys          []string `bson:"positionKeys" json:"positionKeys"`
	OpeningSizeUsd        float64  `bson:"openingSizeUsd" json:"openingSizeUsd"`
	CollateralUsd         float64  `bson:"collateralUsd" json:"collateralUsd"`
	RealizedPnl           float64  `bson:"realizedPnl" json:"realizedPnl"`
	UnrealizedPnl         float64  `bson:"unrealizedPnl" json:"unrealizedPnl"`
	OpeningPositionCount  int      `bson:"openingPositionCount" json:"openingPositionCount"`
	ClosedPositionCount   int      `bson:"closedPositionCount" json:"closedPositionCount"`
	ProfitedPositionCount int      `bson:"profitedPositionCount" json:"profitedPositionCount"`
	ProfitableRatio       float64  `bson:"profitableRatio" json:"profitableRatio"`
	PNL                   float64  `bson:"PNL" json:"PNL"`
	ROI                   float64  `bson:"ROI" json:"ROI"`
	TradedAssets          []string `bson:"tradedAssets,omitempty" json:"tradedAssets,omitempty"`
}

// Cursor names, persisted in the configs collection.
const (
	CursorLastIngestedBlock = "gmx_last_updated_event"
	CursorLastAnalyzedBlock = "last_updated_gmx_analytics"
)

// Cursor is a single named scalar block-height watermark.
type Cursor struct {
	ID                 string `bson:"_id" json:"_id"`
	LastUpdatedAtBlock int64  `bson:"last_updated_at_block_number" json:"last_updated_at_block_number"`
}
