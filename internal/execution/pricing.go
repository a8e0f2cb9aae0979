package execution

import (
	"math/big"
)

// DefaultProfitCapFraction is the default share of expected profit the
// mempool/hybrid path will spend on priority fee (spec §4.H step 5, "default 0.5").
var DefaultProfitCapFraction = big.NewFloat(0.5)

// bumpNumerator/bumpDenominator encode the mandatory 5% bump over the
// trigger transaction's priority fee (spec §4.H: "bid at least 5% above
// the trigger tx's priority so we sequence behind it").
const bumpNumerator = 105
const bumpDenominator = 100

// DynamicPriorityFee implements spec §4.H step 5's mempool/hybrid gas
// pricing formula:
//
//	priority = min(estimated_profit * profit_cap_fraction, max(trigger_priority * 1.05, floor))
//
// All amounts are wei of the chain's native gas token; estimatedProfitWei
// is the caller's own USD->native conversion (mirrors the quote-token
// conversions in internal/detector and internal/mempool — no literal
// multiplier lives here).
func DynamicPriorityFee(estimatedProfitWei *big.Int, profitCapFraction *big.Float, triggerPriorityFeeWei, floorWei *big.Int) *big.Int {
	if profitCapFraction == nil {
		profitCapFraction = DefaultProfitCapFraction
	}
	profitCap := new(big.Int)
	new(big.Float).Mul(new(big.Float).SetInt(estimatedProfitWei), profitCapFraction).Int(profitCap)

	bumped := ceilMulDiv(triggerPriorityFeeWei, bumpNumerator, bumpDenominator)
	bidFloor := bumped
	if floorWei != nil && floorWei.Cmp(bidFloor) > 0 {
		bidFloor = floorWei
	}

	if profitCap.Cmp(bidFloor) < 0 {
		return profitCap
	}
	return bidFloor
}

// ceilMulDiv computes ceil(value * num / den) without overflowing beyond
// big.Int's arbitrary precision.
func ceilMulDiv(value *big.Int, num, den int64) *big.Int {
	product := new(big.Int).Mul(value, big.NewInt(num))
	denom := big.NewInt(den)
	quotient, remainder := new(big.Int).QuoRem(product, denom, new(big.Int))
	if remainder.Sign() != 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	return quotient
}
