package abidecode

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenCategoryDropsEmptyValues(t *testing.T) {
	out := make(map[string]interface{})
	c := category[[32]byte]{
		Items: []keyValue[[32]byte]{
			{Key: "nonZero", Value: [32]byte{1}},
			{Key: "zero", Value: [32]byte{}},
		},
	}
	flattenCategory(out, c, formatBytes32)

	_, hasZero := out["zero"]
	assert.False(t, hasZero)
	_, hasNonZero := out["nonZero"]
	assert.True(t, hasNonZero)
}

func TestFlattenCategoryArrayItems(t *testing.T) {
	out := make(map[string]interface{})
	c := category[*big.Int]{
		ArrayItems: []keyValue[[]*big.Int]{
			{Key: "amounts", Value: []*big.Int{big.NewInt(1), big.NewInt(2)}},
			{Key: "empty", Value: nil},
		},
	}
	flattenCategory(out, c, formatBigInt)

	_, hasEmpty := out["empty"]
	assert.False(t, hasEmpty)
	arr, ok := out["amounts"].([]interface{})
	assert.True(t, ok)
	assert.Len(t, arr, 2)
}

func TestFormatBytes32ZeroIsEmpty(t *testing.T) {
	assert.Equal(t, "", formatBytes32([32]byte{}))

	var nonZero [32]byte
	nonZero[0] = 1
	assert.Equal(t, "0x0100000000000000000000000000000000000000000000000000000000000000"[:4], formatBytes32(nonZero).(string)[:4])
}

func TestFormatBytesEmpty(t *testing.T) {
	assert.Equal(t, "", formatBytes(nil))
	assert.Equal(t, "0x01", formatBytes([]byte{1}))
}

func TestMarshalDegraded(t *testing.T) {
	fields := map[string]interface{}{
		"sizeInUsd": big.NewInt(1000),
		"isLong":    true,
	}
	out := MarshalDegraded(fields)

	assert.Equal(t, "1000", out["sizeInUsd"])
	assert.Equal(t, "true", out["isLong"])
}

func TestEventSignatureConstant(t *testing.T) {
	assert.Equal(t, "0x137a44067c8961cd7e1d876f4754a5a3a75989b4552f1843fc69c3b372def160", EventSignature.Hex())
}
