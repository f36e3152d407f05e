package assetindex

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tourmii/gmxperp"
)

func TestBuildAssetIndex(t *testing.T) {
	opening := []gmxperp.OpeningPosition{{PositionKey: "k1", Asset: "BTC"}}
	closed := []gmxperp.ClosedPosition{{PositionKey: "k2", Asset: "ETH"}}

	index := BuildAssetIndex(opening, closed)

	assert.Equal(t, "BTC", index["k1"])
	assert.Equal(t, "ETH", index["k2"])
}

func TestTradedAssetsDedupes(t *testing.T) {
	assetByKey := map[string]string{"k1": "BTC", "k2": "BTC", "k3": "ETH"}

	assets := TradedAssets([]string{"k1", "k2", "k3"}, assetByKey)

	assert.Equal(t, []string{"BTC", "ETH"}, assets)
}

func TestTradedAssetsSkipsUnknownKeys(t *testing.T) {
	assetByKey := map[string]string{"k1": "BTC"}

	assets := TradedAssets([]string{"k1", "missing"}, assetByKey)

	assert.Equal(t, []string{"BTC"}, assets)
}
