// Package normalize rescales the flat, still-integer fields abidecode
// produces into the real-valued fields NormalizedEvent carries, per
// the fixed-point convention: USD values carry an implicit 10^30
// scale, token amounts carry the token's own decimals, and prices are
// scaled so that price × amount yields a 10^30 USD figure.
//
// Every field uses the same division shape (integer / 10^exponent);
// the table below is the single source of truth rather than five
// near-identical rescale functions.
package normalize

import (
	"math/big"
)

// DecimalsUSD is the fixed USD scale every USD-denominated field
// shares.
const DecimalsUSD = 30

// Decimals bundles the two decimal counts every per-market rescale
// depends on: the index token's and the collateral token's.
type Decimals struct {
	Index      uint8
	Collateral uint8
}

// field names the fixed-point fields normalize recognizes, matching
// abidecode's flattened keys after the pre-normalization renames
// (indexTokenPrice.max -> indexTokenPriceMax, etc.) have been applied
// by the caller.
type field string

const (
	FieldSizeInUsd          field = "sizeInUsd"
	FieldSizeDeltaUsd       field = "sizeDeltaUsd"
	FieldPriceImpactUsd     field = "priceImpactUsd"
	FieldBasePnlUsd         field = "basePnlUsd"
	FieldUncappedBasePnlUsd field = "uncappedBasePnlUsd"
	FieldBorrowingFactor    field = "borrowingFactor"
	FieldPriceImpactDiffUsd field = "priceImpactDiffUsd"

	FieldSizeInTokens      field = "sizeInTokens"
	FieldSizeDeltaInTokens field = "sizeDeltaInTokens"

	FieldCollateralAmount      field = "collateralAmount"
	FieldCollateralDeltaAmount field = "collateralDeltaAmount"

	FieldExecutionPrice      field = "executionPrice"
	FieldIndexTokenPriceMax  field = "indexTokenPriceMax"
	FieldIndexTokenPriceMin  field = "indexTokenPriceMin"

	FieldCollateralTokenPriceMax field = "collateralTokenPriceMax"
	FieldCollateralTokenPriceMin field = "collateralTokenPriceMin"

	FieldFundingFeeAmountPerSize field = "fundingFeeAmountPerSize"

	FieldLongTokenClaimableFundingAmountPerSize  field = "longTokenClaimableFundingAmountPerSize"
	FieldShortTokenClaimableFundingAmountPerSize field = "shortTokenClaimableFundingAmountPerSize"

	FieldPriceImpactAmount field = "priceImpactAmount"
)

// exponent returns the rescale divisor's exponent for a field. d is
// the pair of decimal counts resolved for the event's
// market/collateral token.
func exponent(f field, d Decimals) int {
	switch f {
	case FieldSizeInUsd, FieldSizeDeltaUsd, FieldPriceImpactUsd, FieldBasePnlUsd,
		FieldUncappedBasePnlUsd, FieldBorrowingFactor, FieldPriceImpactDiffUsd,
		FieldLongTokenClaimableFundingAmountPerSize, FieldShortTokenClaimableFundingAmountPerSize:
		return DecimalsUSD
	case FieldSizeInTokens, FieldSizeDeltaInTokens, FieldPriceImpactAmount:
		return int(d.Index)
	case FieldCollateralAmount, FieldCollateralDeltaAmount, FieldFundingFeeAmountPerSize:
		return int(d.Collateral)
	case FieldExecutionPrice, FieldIndexTokenPriceMax, FieldIndexTokenPriceMin:
		return DecimalsUSD - int(d.Index)
	case FieldCollateralTokenPriceMax, FieldCollateralTokenPriceMin:
		return DecimalsUSD - int(d.Collateral)
	}
	return 0
}

// divisorCache memoizes 10^n as a *big.Float across the small, fixed
// set of exponents this pipeline ever computes (0..30).
var divisorCache [DecimalsUSD + 1]*big.Float

func divisor(exp int) *big.Float {
	if exp < 0 {
		exp = 0
	}
	if exp > DecimalsUSD {
		pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
		return new(big.Float).SetPrec(256).SetInt(pow)
	}
	if divisorCache[exp] == nil {
		pow := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(exp)), nil)
		divisorCache[exp] = new(big.Float).SetPrec(256).SetInt(pow)
	}
	return divisorCache[exp]
}

// Rescale converts a raw on-chain integer into a real-valued float for
// the given field, using a 256-bit-precision big.Float intermediate so
// a 256-bit numerator never silently overflows before division.
func Rescale(f field, raw *big.Int, d Decimals) float64 {
	if raw == nil {
		return 0
	}
	num := new(big.Float).SetPrec(256).SetInt(raw)
	quotient := new(big.Float).SetPrec(256).Quo(num, divisor(exponent(f, d)))
	result, _ := quotient.Float64()
	return result
}

// Fields is a still-raw, renamed flat record: abidecode's output after
// ApplyRenames (indexTokenPrice.max -> indexTokenPriceMax etc.,
// decreasedAtTime/increasedAtTime -> timestamp) but before any
// rescaling.
type Fields map[string]interface{}

// BigIntField reads a *big.Int-valued field, returning ok=false if the
// field is absent or not an integer (i.e. it was dropped by
// abidecode's empty-value flatten rule).
func (f Fields) BigIntField(name field) (*big.Int, bool) {
	v, ok := f[string(name)]
	if !ok {
		return nil, false
	}
	bi, ok := v.(*big.Int)
	return bi, ok
}

// StringField reads a string-valued field.
func (f Fields) StringField(name string) (string, bool) {
	v, ok := f[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// BoolField reads a bool-valued field.
func (f Fields) BoolField(name string) (bool, bool) {
	v, ok := f[name]
	if !ok {
		return false, false
	}
	b, ok := v.(bool)
	return b, ok
}

// Int64Field reads an integer field as int64 (used for orderType,
// which fits comfortably within 64 bits despite arriving as *big.Int).
func (f Fields) Int64Field(name string) (int64, bool) {
	v, ok := f[name]
	if !ok {
		return 0, false
	}
	bi, ok := v.(*big.Int)
	if !ok {
		return 0, false
	}
	return bi.Int64(), true
}

// RescaleField looks up a raw field by name and rescales it; returns
// (0, false) if the field was absent (callers distinguish "absent" from
// "present and zero" via the second return).
func (f Fields) RescaleField(name field, d Decimals) (float64, bool) {
	raw, ok := f.BigIntField(name)
	if !ok {
		return 0, false
	}
	return Rescale(name, raw, d), true
}

// ApplyRenames rewrites the nested-path keys abidecode's flatten
// produces (indexTokenPrice.max, values.priceImpactDiffUsd, ...) into
// the flat names the rest of normalize/analytics expect, and the
// decreasedAtTime/increasedAtTime timestamp alias into a single
// "timestamp" key. It mutates and returns the same map.
func ApplyRenames(fields Fields) Fields {
	renames := map[string]string{
		"indexTokenPrice.max":      "indexTokenPriceMax",
		"indexTokenPrice.min":      "indexTokenPriceMin",
		"collateralTokenPrice.max": "collateralTokenPriceMax",
		"collateralTokenPrice.min": "collateralTokenPriceMin",
		"values.priceImpactDiffUsd": "priceImpactDiffUsd",
		"decreasedAtTime":          "timestamp",
		"increasedAtTime":          "timestamp",
	}
	for from, to := range renames {
		if v, ok := fields[from]; ok {
			fields[to] = v
			delete(fields, from)
		}
	}
	return fields
}
