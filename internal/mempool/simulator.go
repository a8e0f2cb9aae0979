package mempool

import (
	"math/big"

	"github.com/strongca22-cpu/dexarb-sub003/internal/ammmath"
)

// defaultMaxTickSpacingAdvance is spec §4.E's "default 10 (~1% price move)".
const defaultMaxTickSpacingAdvance = 10

// SimulatedConstantProduct is the result of applying one swap to an x*y=k
// pool's current reserves.
type SimulatedConstantProduct struct {
	AmountOut     *big.Int
	NewReserveIn  *big.Int
	NewReserveOut *big.Int
}

// SimulateConstantProduct implements spec §4.E's constant-product formula:
// amount_out = (amount_in*(10000-fee_bps)*reserve_out) /
// (reserve_in*10000 + amount_in*(10000-fee_bps)).
func SimulateConstantProduct(amountIn, reserveIn, reserveOut *big.Int, feeBps uint32) SimulatedConstantProduct {
	feeMultiplier := big.NewInt(10000 - int64(feeBps))
	numerator := new(big.Int).Mul(amountIn, feeMultiplier)
	numerator.Mul(numerator, reserveOut)

	denominator := new(big.Int).Mul(reserveIn, big.NewInt(10000))
	denominator.Add(denominator, new(big.Int).Mul(amountIn, feeMultiplier))

	amountOut := new(big.Int).Div(numerator, denominator)
	return SimulatedConstantProduct{
		AmountOut:     amountOut,
		NewReserveIn:  new(big.Int).Add(reserveIn, amountIn),
		NewReserveOut: new(big.Int).Sub(reserveOut, amountOut),
	}
}

// SimulatedConcentratedLiquidity is the result of a single-tick-range
// approximation of a Uniswap-V3-style swap.
type SimulatedConcentratedLiquidity struct {
	NewSqrtPriceX96 *big.Int
	NewTick         int32
	TickAdvance     int
	Reliable        bool // false once the tick advance exceeds the configured bound
}

// SimulateConcentratedLiquidity implements spec §4.E: fee is deducted up
// front (amount_after_fee = amount_in*(1e6-fee_pph)/1e6), then the post-swap
// sqrt-price is computed via the overflow-avoiding rounding formula
// appropriate to swap direction. zeroForOne is true for token0-in.
// maxTickSpacingAdvance<=0 uses the spec default of 10 tick-spacings.
func SimulateConcentratedLiquidity(sqrtPriceX96, liquidity, amountIn *big.Int, feePph uint32, zeroForOne bool, tickSpacing, maxTickSpacingAdvance int) SimulatedConcentratedLiquidity {
	if maxTickSpacingAdvance <= 0 {
		maxTickSpacingAdvance = defaultMaxTickSpacingAdvance
	}
	feeScale := big.NewInt(1_000_000)
	afterFee := new(big.Int).Mul(amountIn, new(big.Int).Sub(feeScale, big.NewInt(int64(feePph))))
	afterFee.Div(afterFee, feeScale)

	var newSqrtPrice *big.Int
	if zeroForOne {
		newSqrtPrice = ammmath.GetNextSqrtPriceFromAmount0RoundingUp(sqrtPriceX96, liquidity, afterFee, true)
	} else {
		newSqrtPrice = ammmath.GetNextSqrtPriceFromAmount1RoundingDown(sqrtPriceX96, liquidity, afterFee, true)
	}

	oldTick := ammmath.SqrtPriceX96ToTick(sqrtPriceX96)
	newTick := ammmath.SqrtPriceX96ToTick(newSqrtPrice)
	advance := newTick - oldTick
	if advance < 0 {
		advance = -advance
	}
	reliable := tickSpacing <= 0 || advance <= maxTickSpacingAdvance*tickSpacing

	return SimulatedConcentratedLiquidity{
		NewSqrtPriceX96: newSqrtPrice,
		NewTick:         int32(newTick),
		TickAdvance:     advance,
		Reliable:        reliable,
	}
}
