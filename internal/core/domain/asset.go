package domain

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// TrackedAsset is a currency whose balance changes are reported.
// An empty Contract means the chain's native currency.
type TrackedAsset struct {
	Symbol   string
	Contract string
	Decimals int32
	PriceID  string
	// Epsilon is the smallest balance delta the poller reports.
	Epsilon decimal.Decimal
}

// IsNative reports whether the asset is the chain's native currency.
func (a TrackedAsset) IsNative() bool {
	return a.Contract == ""
}

// Scale converts a raw integer amount into the asset's unit without rounding.
func (a TrackedAsset) Scale(raw *big.Int) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -a.Decimals)
}

var (
	DefaultNativeEpsilon = decimal.New(1, -6)
	DefaultTokenEpsilon  = decimal.New(1, -2)
)

// DefaultBSCAssets is the asset table used when none is configured.
func DefaultBSCAssets() []TrackedAsset {
	return []TrackedAsset{
		{Symbol: "BNB", Decimals: 18, PriceID: "binancecoin", Epsilon: DefaultNativeEpsilon},
		{
			Symbol:   "USDT",
			Contract: "0x55d398326f99059ff775485246999027b3197955",
			Decimals: 18,
			PriceID:  "tether",
			Epsilon:  DefaultTokenEpsilon,
		},
		{
			Symbol:   "USDC",
			Contract: "0x8ac76a51cc950d9822d68b83fe1ad97b32cd580d",
			Decimals: 18,
			PriceID:  "usd-coin",
			Epsilon:  DefaultTokenEpsilon,
		},
		{
			Symbol:   "BTCB",
			Contract: "0x7130d2a12b9bcbfae4f2634d864a1ee1ce3ead9c",
			Decimals: 18,
			PriceID:  "bitcoin",
			Epsilon:  decimal.New(1, -6),
		},
	}
}
