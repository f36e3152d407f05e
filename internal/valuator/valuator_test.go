package valuator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tourmii/gmxperp"
)

func TestApplyUnrealizedPnlShortSign(t *testing.T) {
	p := &gmxperp.OpeningPosition{Asset: "BTC", Side: gmxperp.SideShort, SizeUsd: 10, EntryPrice: 100, Logs: []gmxperp.OpenLog{{Timestamp: 100}}}
	require.True(t, ApplyUnrealizedPnl(p, map[string]float64{"BTC": 80}))

	assert.InDelta(t, 2.0, p.UnrealizedPnl, 1e-9)
}

func TestApplyUnrealizedPnlLong(t *testing.T) {
	p := &gmxperp.OpeningPosition{Asset: "ETH", Side: gmxperp.SideLong, SizeUsd: 10, EntryPrice: 100, Logs: []gmxperp.OpenLog{{Timestamp: 100}}}
	require.True(t, ApplyUnrealizedPnl(p, map[string]float64{"ETH": 120}))

	assert.InDelta(t, 2.0, p.UnrealizedPnl, 1e-9)
}

func TestApplyUnrealizedPnlStripsSyntheticPrefix(t *testing.T) {
	p := &gmxperp.OpeningPosition{Asset: "kBTC", Side: gmxperp.SideLong, SizeUsd: 10, EntryPrice: 100, Logs: []gmxperp.OpenLog{{Timestamp: 100}}}
	require.True(t, ApplyUnrealizedPnl(p, map[string]float64{"BTC": 110}))

	assert.InDelta(t, 1.0, p.UnrealizedPnl, 1e-9)
}

func TestApplyUnrealizedPnlMissingPriceSkips(t *testing.T) {
	p := &gmxperp.OpeningPosition{Asset: "XRP", Side: gmxperp.SideLong, SizeUsd: 10, EntryPrice: 100, UnrealizedPnl: 5}
	assert.False(t, ApplyUnrealizedPnl(p, map[string]float64{}))

	assert.Equal(t, 5.0, p.UnrealizedPnl)
	assert.Equal(t, int64(0), p.FirstOpenedAt)
}

func TestApplyUnrealizedPnlFirstOpenedAtFallback(t *testing.T) {
	p := &gmxperp.OpeningPosition{Asset: "ETH", Side: gmxperp.SideLong, SizeUsd: 10, EntryPrice: 100}
	require.True(t, ApplyUnrealizedPnl(p, map[string]float64{"ETH": 100}))

	assert.Equal(t, FirstOpenedAtFallback, p.FirstOpenedAt)
}

func TestApplyUnrealizedPnlFirstOpenedAtFromLogs(t *testing.T) {
	p := &gmxperp.OpeningPosition{
		Asset: "ETH", Side: gmxperp.SideLong, SizeUsd: 10, EntryPrice: 100,
		Logs: []gmxperp.OpenLog{{Timestamp: 300}, {Timestamp: 100}, {Timestamp: 200}},
	}
	require.True(t, ApplyUnrealizedPnl(p, map[string]float64{"ETH": 100}))

	assert.Equal(t, int64(100), p.FirstOpenedAt)
}

func TestApplyLastClosedAt(t *testing.T) {
	p := &gmxperp.ClosedPosition{Logs: []gmxperp.CloseLog{{Timestamp: 100}, {Timestamp: 300}, {Timestamp: 200}}}
	ApplyLastClosedAt(p)

	assert.Equal(t, int64(300), p.LastClosedAt)
}

func TestComputeValuationROISuppression(t *testing.T) {
	account := gmxperp.Account{Address: "0xacc", CollateralUsd: 100, RealizedPnl: 10}
	agg := &OpenAggregate{}
	agg.Add(gmxperp.OpeningPosition{SizeUsd: 50, UnrealizedPnl: 5, Logs: []gmxperp.OpenLog{{SizeUsd: 10}}})

	u := ComputeValuation(account, agg)

	assert.True(t, agg.Suppressed)
	assert.Nil(t, u.ROI)
	assert.InDelta(t, 15.0, u.PNL, 1e-9)
}

func TestComputeValuationROI(t *testing.T) {
	account := gmxperp.Account{Address: "0xacc", CollateralUsd: 100, RealizedPnl: 10, ClosedPositionCount: 2, ProfitedPositionCount: 1}
	agg := &OpenAggregate{}
	agg.Add(gmxperp.OpeningPosition{SizeUsd: 50, UnrealizedPnl: 5, Logs: []gmxperp.OpenLog{{SizeUsd: 50}}})

	u := ComputeValuation(account, agg)

	assert.InDelta(t, 15.0, u.PNL, 1e-9)
	require.NotNil(t, u.ROI)
	assert.InDelta(t, 15.0, *u.ROI, 1e-9)
	require.NotNil(t, u.ProfitableRatio)
	assert.InDelta(t, 0.5, *u.ProfitableRatio, 1e-9)
	assert.Equal(t, 1, u.OpeningPositionCount)
	assert.InDelta(t, 50.0, u.OpeningSizeUsd, 1e-9)
}

func TestComputeValuationNoOpenPositions(t *testing.T) {
	account := gmxperp.Account{Address: "0xacc", CollateralUsd: 100, RealizedPnl: 10}

	u := ComputeValuation(account, nil)

	assert.Equal(t, 10.0, u.PNL)
	assert.Equal(t, 0, u.OpeningPositionCount)
	assert.Equal(t, 0.0, u.OpeningSizeUsd)
	require.NotNil(t, u.ROI)
	assert.InDelta(t, 10.0, *u.ROI, 1e-9)
	assert.Nil(t, u.ProfitableRatio)
}

func TestComputeValuationNoCollateralWithholdsROI(t *testing.T) {
	u := ComputeValuation(gmxperp.Account{Address: "0xacc"}, nil)

	assert.Nil(t, u.ROI)
}

func TestNormalizeAsset(t *testing.T) {
	assert.Equal(t, "BTC", normalizeAsset("kBTC"))
	assert.Equal(t, "ETH", normalizeAsset("ETH"))
	assert.Equal(t, "MATIC", normalizeAsset("mMATIC"))
	// an uppercase first letter is never a synthetic prefix
	assert.Equal(t, "MKR", normalizeAsset("MKR"))
	assert.Equal(t, "TIA", normalizeAsset("TIA"))
}

func TestPow10(t *testing.T) {
	assert.InDelta(t, 1e6, pow10(6), 1e-6)
	assert.InDelta(t, 1e-6, pow10(-6), 1e-15)
	assert.InDelta(t, 1.0, pow10(0), 1e-9)
}
