// Package ammmath implements the Uniswap-V3-style tick/sqrt-price
// arithmetic used by the mempool simulator (internal/mempool). The
// reference repo's pkg/util/{amm,calculation,
// simulation}_test.go exercised TickToSqrtPriceX96, ComputeAmounts,
// CalculateTokenAmountsFromLiquidity and CalculateTickBounds against no
// shipped implementation; this file supplies one, extended with the
// swap-step and overflow-avoidance functions spec.md §4.E and §9 require
// that the reference repo (an LP-staking integration, not a swap simulator)
// never needed.
package ammmath

import (
	"errors"
	"math"
	"math/big"

	"github.com/holiman/uint256"
)

// MinTick and MaxTick bound the representable tick range (Uniswap V3
// convention): 1.0001^tick stays within a uint160 sqrt-price.
const (
	MinTick = -887272
	MaxTick = 887272
)

var q96 = new(big.Int).Lsh(big.NewInt(1), 96)

// ratio constants from the Uniswap V3 TickMath reference algorithm: each is
// 2^128 * sqrt(1.0001)^(-2^k) for k = 0..19, used to build 1.0001^(tick/2) via
// repeated squaring without floating point.
var tickRatios = []string{
	"0xfffcb933bd6fad37aa2d162d1a594001",
	"0xfff97272373d413259a46990580e213a",
	"0xfff2e50f5f656932ef12357cf3c7fdcc",
	"0xffe5caca7e10e4e61c3624eaa0941cd0",
	"0xffcb9843d60f6159c9db58835c926644",
	"0xff973b41fa98c081472e6896dfb254c0",
	"0xff2ea16466c96a3843ec78b326b52861",
	"0xfe5dee046a99a2a811c461f1969c3053",
	"0xfcbe86c7900a88aedcffc83b479aa3a4",
	"0xf987a7253ac413176f2b074cf7815e54",
	"0xf3392b0822b70005940c7a398e4b70f3",
	"0xe7159475a2c29b7443b29c7fa6e889d9",
	"0xd097f3bdfd2022b8845ad8f792aa5825",
	"0xa9f746462d870fdf8a65dc1f90e061e5",
	"0x70d869a156d2a1b890bb3df62baf32f7",
	"0x31be135f97d08fd981231505542fcfa6",
	"0x9aa508b5b7a84e1c677de54f3e99bc9",
	"0x5d6af8dedb81196699c329225ee604",
	"0x2216e584f5fa1ea926041bedfe98",
	"0x48a170391f7dc42444e8fa2",
}

// TickToSqrtPriceX96 computes the Q64.96 sqrt-price at tick, following the
// Uniswap V3 core TickMath.getSqrtRatioAtTick algorithm (repeated-squaring
// over the binary expansion of |tick|, sign flip via 2^256/ratio for
// positive ticks, rounded up to a uint160 boundary at the end).
func TickToSqrtPriceX96(tick int) *big.Int {
	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio, _ := new(big.Int).SetString("100000000000000000000000000000000", 16) // 2^128
	if absTick&0x1 != 0 {
		ratio, _ = new(big.Int).SetString(tickRatios[0][2:], 16)
	}
	for i := 1; i < len(tickRatios); i++ {
		bit := 1 << uint(i)
		if absTick&bit == 0 {
			continue
		}
		factor, _ := new(big.Int).SetString(tickRatios[i][2:], 16)
		ratio = new(big.Int).Rsh(new(big.Int).Mul(ratio, factor), 128)
	}

	if tick > 0 {
		maxU256 := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
		ratio = new(big.Int).Div(maxU256, ratio)
	}

	// ratio is Q128.128; shift down to Q64.96, rounding up on any remainder.
	shifted, rem := new(big.Int).DivMod(ratio, new(big.Int).Lsh(big.NewInt(1), 32), new(big.Int))
	if rem.Sign() != 0 {
		shifted.Add(shifted, big.NewInt(1))
	}
	return shifted
}

// SqrtPriceX96ToTick inverts TickToSqrtPriceX96 by binary search over the
// valid tick range; used by the mempool simulator to recover the tick of a
// simulated sqrt-price for its N-tick-spacings reliability bound.
func SqrtPriceX96ToTick(sqrtPriceX96 *big.Int) int {
	lo, hi := MinTick, MaxTick
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if TickToSqrtPriceX96(mid).Cmp(sqrtPriceX96) <= 0 {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// SqrtPriceToPrice converts a Q64.96 sqrt-price into a decimal-adjusted
// price of token1 per token0 (quote-per-base once the caller has oriented
// token0/token1 per the pair's quote convention — see internal/pool).
func SqrtPriceToPrice(sqrtPriceX96 *big.Int, decimals0, decimals1 uint8) *big.Float {
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() == 0 {
		return big.NewFloat(0)
	}
	sqrtF := new(big.Float).SetInt(sqrtPriceX96)
	q96F := new(big.Float).SetInt(q96)
	ratio := new(big.Float).Quo(sqrtF, q96F)
	price := new(big.Float).Mul(ratio, ratio) // (sqrtPrice/2^96)^2 = token1/token0 in raw units

	decAdj := new(big.Float).SetFloat64(math.Pow(10, float64(decimals0)-float64(decimals1)))
	return new(big.Float).Mul(price, decAdj)
}

// ComputeAmounts computes the amounts of token0/token1 (bounded by
// amount0Max/amount1Max) required to mint the maximal liquidity achievable
// within [tickLower, tickUpper] at the pool's current sqrtPrice/tick.
// Grounded on the reference repo's pkg/util ComputeAmounts usage
// (b.Mint's pre-flight sizing step); no other package in this repo calls it.
func ComputeAmounts(sqrtPriceX96 *big.Int, tick, tickLower, tickUpper int, amount0Max, amount1Max *big.Int) (amount0, amount1, liquidity *big.Int) {
	sqrtLower := TickToSqrtPriceX96(tickLower)
	sqrtUpper := TickToSqrtPriceX96(tickUpper)

	switch {
	case tick < tickLower:
		liquidity = liquidityForAmount0(sqrtLower, sqrtUpper, amount0Max)
		amount0, amount1 = amount0Max, big.NewInt(0)
	case tick >= tickUpper:
		liquidity = liquidityForAmount1(sqrtLower, sqrtUpper, amount1Max)
		amount0, amount1 = big.NewInt(0), amount1Max
	default:
		l0 := liquidityForAmount0(sqrtPriceX96, sqrtUpper, amount0Max)
		l1 := liquidityForAmount1(sqrtLower, sqrtPriceX96, amount1Max)
		if l0.Cmp(l1) < 0 {
			liquidity = l0
		} else {
			liquidity = l1
		}
		amount0 = amount0ForLiquidity(sqrtPriceX96, sqrtUpper, liquidity)
		amount1 = amount1ForLiquidity(sqrtLower, sqrtPriceX96, liquidity)
	}
	if liquidity == nil {
		liquidity = big.NewInt(0)
	}
	return amount0, amount1, liquidity
}

// CalculateTokenAmountsFromLiquidity is the inverse of ComputeAmounts: given
// a known liquidity and range, recover the token0/token1 amounts it
// represents at the pool's current price. No other package in this repo
// calls it.
func CalculateTokenAmountsFromLiquidity(liquidity, sqrtPriceX96 *big.Int, tickLower, tickUpper int32) (amount0, amount1 *big.Int, err error) {
	if liquidity == nil || liquidity.Sign() < 0 {
		return nil, nil, errors.New("ammmath: negative liquidity")
	}
	if tickLower >= tickUpper {
		return nil, nil, errors.New("ammmath: tickLower must be < tickUpper")
	}
	sqrtLower := TickToSqrtPriceX96(int(tickLower))
	sqrtUpper := TickToSqrtPriceX96(int(tickUpper))
	tick := SqrtPriceX96ToTick(sqrtPriceX96)

	switch {
	case tick < int(tickLower):
		return amount0ForLiquidity(sqrtLower, sqrtUpper, liquidity), big.NewInt(0), nil
	case tick >= int(tickUpper):
		return big.NewInt(0), amount1ForLiquidity(sqrtLower, sqrtUpper, liquidity), nil
	default:
		return amount0ForLiquidity(sqrtPriceX96, sqrtUpper, liquidity),
			amount1ForLiquidity(sqrtLower, sqrtPriceX96, liquidity), nil
	}
}

// CalculateTickBounds returns a symmetric tick range of rangeWidth
// tick-spacings on either side of currentTick, after truncating currentTick
// toward zero to a multiple of tickSpacing; both bounds are clamped to
// [MinTick, MaxTick]. Grounded on the reference repo's
// pkg/util/calculation_test.go. No other package in this repo calls it: the
// mempool simulator measures tick advance with SqrtPriceX96ToTick.
func CalculateTickBounds(currentTick int32, rangeWidth int, tickSpacing int) (tickLower, tickUpper int32, err error) {
	if tickSpacing <= 0 {
		return 0, 0, errors.New("ammmath: tickSpacing must be positive")
	}
	if rangeWidth <= 0 {
		return 0, 0, errors.New("ammmath: rangeWidth must be positive")
	}
	rounded := (int(currentTick) / tickSpacing) * tickSpacing
	span := rangeWidth * tickSpacing
	lower := rounded - span
	upper := rounded + span
	if lower < MinTick {
		lower = MinTick
	}
	if upper > MaxTick {
		upper = MaxTick
	}
	return int32(lower), int32(upper), nil
}

func liquidityForAmount0(sqrtA, sqrtB *big.Int, amount0 *big.Int) *big.Int {
	sqrtA, sqrtB = orderSqrt(sqrtA, sqrtB)
	if sqrtA.Sign() == 0 {
		return big.NewInt(0)
	}
	intermediate := new(big.Int).Div(new(big.Int).Mul(sqrtA, sqrtB), q96)
	num := new(big.Int).Mul(amount0, intermediate)
	denom := new(big.Int).Sub(sqrtB, sqrtA)
	if denom.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(num, denom)
}

func liquidityForAmount1(sqrtA, sqrtB *big.Int, amount1 *big.Int) *big.Int {
	sqrtA, sqrtB = orderSqrt(sqrtA, sqrtB)
	denom := new(big.Int).Sub(sqrtB, sqrtA)
	if denom.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(amount1, q96)
	return new(big.Int).Div(num, denom)
}

func amount0ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	sqrtA, sqrtB = orderSqrt(sqrtA, sqrtB)
	if sqrtA.Sign() == 0 {
		return big.NewInt(0)
	}
	num := new(big.Int).Mul(liquidity, new(big.Int).Lsh(new(big.Int).Sub(sqrtB, sqrtA), 96))
	denom := new(big.Int).Mul(sqrtB, sqrtA)
	if denom.Sign() == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Div(num, denom)
}

func amount1ForLiquidity(sqrtA, sqrtB, liquidity *big.Int) *big.Int {
	sqrtA, sqrtB = orderSqrt(sqrtA, sqrtB)
	return new(big.Int).Div(new(big.Int).Mul(liquidity, new(big.Int).Sub(sqrtB, sqrtA)), q96)
}

func orderSqrt(a, b *big.Int) (*big.Int, *big.Int) {
	if a.Cmp(b) > 0 {
		return b, a
	}
	return a, b
}

// GetNextSqrtPriceFromAmount0RoundingUp computes the resulting sqrt-price
// after adding (or removing) amount of token0, following Uniswap V3's
// SqrtPriceMath.sol. When amount is added and amount*sqrtPrice fits in a
// uint256, it returns liquidity*2^96*sqrtPrice / (liquidity*2^96 +
// amount*sqrtPrice) rounded up, with the numerator held at full width (the
// Solidity mulDiv). Otherwise it uses the "rounding up" fallback
// liquidity*2^96 / (liquidity*2^96/sqrtPrice ± amount), which avoids the
// overflow-prone product noted in spec §9 on deep pools. The overflow check
// uses uint256 so its boundary matches the Solidity arithmetic being
// simulated.
func GetNextSqrtPriceFromAmount0RoundingUp(sqrtPriceX96, liquidity, amount *big.Int, add bool) *big.Int {
	if amount.Sign() == 0 {
		return new(big.Int).Set(sqrtPriceX96)
	}
	sqrtP := bigToU256(sqrtPriceX96)
	l := bigToU256(liquidity)
	amt := bigToU256(amount)
	lShifted := new(uint256.Int).Lsh(l, 96)

	product, overflow := new(uint256.Int).MulOverflow(amt, sqrtP)
	if !overflow && add {
		denom := new(uint256.Int).Add(lShifted, product)
		if denom.Cmp(lShifted) >= 0 {
			num := new(big.Int).Mul(u256ToBig(lShifted), sqrtPriceX96)
			q, r := new(big.Int).QuoRem(num, u256ToBig(denom), new(big.Int))
			if r.Sign() != 0 {
				q.Add(q, big.NewInt(1))
			}
			return q
		}
	}
	// Fallback path: divide-then-multiply ordering avoids the overflowing
	// product entirely, at the cost of a tiny extra rounding error — this
	// is the "rounding up" fallback spec §9 requires on deep pools.
	denomFallback := new(uint256.Int).Div(lShifted, sqrtP)
	if add {
		denomFallback = denomFallback.Add(denomFallback, amt)
	} else {
		denomFallback = denomFallback.Sub(denomFallback, amt)
	}
	result := divRoundingUp(lShifted, denomFallback)
	return u256ToBig(result)
}

// GetNextSqrtPriceFromAmount1RoundingDown mirrors
// GetNextSqrtPriceFromAmount0RoundingUp for token1-denominated input, per
// spec §4.E "rounding-down for token1-in".
func GetNextSqrtPriceFromAmount1RoundingDown(sqrtPriceX96, liquidity, amount *big.Int, add bool) *big.Int {
	l := bigToU256(liquidity)
	amt := bigToU256(amount)
	sqrtP := bigToU256(sqrtPriceX96)

	shiftedAmt := new(uint256.Int).Lsh(amt, 96)
	if add {
		quotient := new(uint256.Int).Div(shiftedAmt, l)
		return u256ToBig(new(uint256.Int).Add(sqrtP, quotient))
	}
	quotient := divRoundingUp(shiftedAmt, l)
	return u256ToBig(new(uint256.Int).Sub(sqrtP, quotient))
}

func divRoundingUp(a, b *uint256.Int) *uint256.Int {
	q, r := new(uint256.Int), new(uint256.Int)
	q.DivMod(a, b, r)
	if r.Sign() != 0 {
		q.AddUint64(q, 1)
	}
	return q
}

func bigToU256(b *big.Int) *uint256.Int {
	u, _ := uint256.FromBig(b)
	return u
}

func u256ToBig(u *uint256.Int) *big.Int {
	return u.ToBig()
}
