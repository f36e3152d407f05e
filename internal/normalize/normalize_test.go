package normalize

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRescale(t *testing.T) {
	d := Decimals{Index: 18, Collateral: 6}

	t.Run("sizeInUsd at 10^30", func(t *testing.T) {
		raw, _ := new(big.Int).SetString("1000000000000000000000000000000", 10) // 10^30
		got := Rescale(FieldSizeInUsd, raw, d)
		assert.InDelta(t, 1.0, got, 1e-9)
	})

	t.Run("collateralAmount at token decimals", func(t *testing.T) {
		raw := big.NewInt(5_000_000) // 5 USDC at 6 decimals
		got := Rescale(FieldCollateralAmount, raw, d)
		assert.InDelta(t, 5.0, got, 1e-9)
	})

	t.Run("executionPrice at 10^(30-d_idx)", func(t *testing.T) {
		// d.Index=18, so the divisor is 10^(30-18)=10^12; 10^18 / 10^12 = 10^6.
		raw, _ := new(big.Int).SetString("1000000000000000000", 10) // 10^18
		got := Rescale(FieldExecutionPrice, raw, d)
		assert.InDelta(t, 1_000_000.0, got, 1e-6)
	})

	t.Run("collateralTokenPriceMax at 10^(30-d_col)", func(t *testing.T) {
		raw, _ := new(big.Int).SetString("1000000000000000000000000", 10) // 10^24
		got := Rescale(FieldCollateralTokenPriceMax, raw, d)
		assert.InDelta(t, 1.0, got, 1e-9)
	})

	t.Run("nil raw returns zero", func(t *testing.T) {
		assert.Equal(t, 0.0, Rescale(FieldSizeInUsd, nil, d))
	})
}

func TestFieldsRescaleField(t *testing.T) {
	d := Decimals{Index: 18, Collateral: 6}
	raw, _ := new(big.Int).SetString("400000000000000000000000000000", 10) // 0.4 * 10^30
	fields := Fields{"sizeDeltaUsd": raw}

	got, ok := fields.RescaleField(FieldSizeDeltaUsd, d)
	assert.True(t, ok)
	assert.InDelta(t, 0.4, got, 1e-9)

	_, ok = fields.RescaleField(FieldBasePnlUsd, d)
	assert.False(t, ok)
}

func TestApplyRenames(t *testing.T) {
	fields := Fields{
		"indexTokenPrice.max":       big.NewInt(1),
		"indexTokenPrice.min":       big.NewInt(2),
		"values.priceImpactDiffUsd": big.NewInt(3),
		"decreasedAtTime":           big.NewInt(1700000000),
	}
	renamed := ApplyRenames(fields)

	_, hasOld := renamed["indexTokenPrice.max"]
	assert.False(t, hasOld)

	v, ok := renamed.BigIntField("indexTokenPriceMax")
	assert.True(t, ok)
	assert.Equal(t, big.NewInt(1), v)

	v, ok = renamed.BigIntField("priceImpactDiffUsd")
	assert.True(t, ok)
	assert.Equal(t, big.NewInt(3), v)

	v, ok = renamed.BigIntField("timestamp")
	assert.True(t, ok)
	assert.Equal(t, big.NewInt(1700000000), v)
}
