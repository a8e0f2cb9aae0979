// Package pool implements spec component A: the unified pool abstraction
// and the static whitelist classification every other component consults.
// Grounded on the reference repo's types.go struct style (plain exported
// fields, no builder pattern) generalized from a single hardcoded DEX
// integration to a venue-agnostic model.
package pool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Venue identifies a distinct liquidity venue: a constant-product DEX, or a
// single fee tier of a concentrated-liquidity DEX (spec §3 PoolKey: "e.g.
// venue=UniswapV3@500bps is distinct from UniswapV3@3000bps").
type Venue string

// PairSymbol is the human-readable identifier of a TokenPair, e.g. "WETH-USDC".
type PairSymbol string

// PoolKey uniquely identifies one pool instance within one venue/pair.
type PoolKey struct {
	Venue Venue
	Pair  PairSymbol
}

// TokenPair is process-wide immutable configuration: spec §3 "the pair's
// quote token is one of a small configured set ... pool prices are always
// expressed in quote-per-base."
type TokenPair struct {
	Symbol        PairSymbol
	Base          common.Address
	Quote         common.Address
	QuoteDecimals uint8
	QuotePriceUSD *big.Float // used only for profit-threshold scaling, per §6
}

// Family distinguishes the two AMM pricing models this core understands.
type Family int

const (
	FamilyConstantProduct Family = iota
	FamilyConcentratedLiquidity
)

func (f Family) String() string {
	if f == FamilyConcentratedLiquidity {
		return "concentrated-liquidity"
	}
	return "constant-product"
}

// ConstantProductState is a whole-state snapshot of an x*y=k pool. Fields
// mirror spec §3: token ordering and decimals MUST be the on-chain values
// (§9 "Token-ordering"), never the configured ones.
type ConstantProductState struct {
	PoolAddress     common.Address
	Token0, Token1  common.Address
	Decimals0, Decimals1 uint8
	Reserve0, Reserve1   *big.Int
	LastUpdateBlock      uint64
}

// ConcentratedLiquidityState is a whole-state snapshot of a Uniswap-V3 /
// Algebra-style pool.
type ConcentratedLiquidityState struct {
	PoolAddress          common.Address
	Token0, Token1       common.Address
	Decimals0, Decimals1 uint8
	SqrtPriceX96         *big.Int
	Tick                 int32
	Liquidity            *big.Int
	FeeHundredthsBps     uint32 // 0 => dynamic/algebra-style fee
	LastUpdateBlock      uint64
}

// PoolState is the per-family capability set (spec §9 "Dynamic dispatch
// over pool families"): price, fee_bps, freshness, liquidity floor and
// degeneracy, implemented once per family rather than via a shared struct
// with unused fields. It carries no maximum trade size; UnifiedPool takes
// that from the pool's whitelist entry.
type PoolState interface {
	Address() common.Address
	Family() Family
	// Price returns quote-per-base, decimal-adjusted, oriented by pair.
	Price(pair TokenPair) *big.Float
	FeeBps() uint32
	Block() uint64
	IsFresh(currentBlock uint64, maxStaleBlocks uint64) bool
	// MeetsLiquidityFloor reports whether the pool's raw liquidity/reserve
	// measure clears the whitelist's min_liquidity_threshold.
	MeetsLiquidityFloor(threshold *big.Int) bool
	// Degenerate reports a null/out-of-range price (spec §4.D filtering).
	Degenerate() bool
}

func (s *ConstantProductState) Address() common.Address { return s.PoolAddress }
func (s *ConstantProductState) Family() Family           { return FamilyConstantProduct }
func (s *ConstantProductState) Block() uint64            { return s.LastUpdateBlock }

func (s *ConstantProductState) IsFresh(currentBlock, maxStaleBlocks uint64) bool {
	if currentBlock < s.LastUpdateBlock {
		return true
	}
	return currentBlock-s.LastUpdateBlock <= maxStaleBlocks
}

func (s *ConstantProductState) FeeBps() uint32 { return 30 } // overridden per-pool by whitelist fee_tier in UnifiedPool

func (s *ConstantProductState) Price(pair TokenPair) *big.Float {
	if s.Degenerate() {
		return big.NewFloat(0)
	}
	r0 := new(big.Float).SetInt(s.Reserve0)
	r1 := new(big.Float).SetInt(s.Reserve1)
	// price is quote-per-base; orient by which token0/token1 matches the
	// pair's configured quote token (read on-chain, per §9).
	if s.Token0 == pair.Quote {
		// price = reserve0/reserve1 adjusted by decimals
		raw := new(big.Float).Quo(r0, r1)
		return adjustDecimals(raw, s.Decimals1, s.Decimals0)
	}
	raw := new(big.Float).Quo(r1, r0)
	return adjustDecimals(raw, s.Decimals0, s.Decimals1)
}

func (s *ConstantProductState) MeetsLiquidityFloor(threshold *big.Int) bool {
	if threshold == nil || threshold.Sign() == 0 {
		return true
	}
	min := s.Reserve0
	if s.Reserve1.Cmp(min) < 0 {
		min = s.Reserve1
	}
	return min.Cmp(threshold) >= 0
}

func (s *ConstantProductState) Degenerate() bool {
	return s.Reserve0 == nil || s.Reserve1 == nil || s.Reserve0.Sign() <= 0 || s.Reserve1.Sign() <= 0
}

func (s *ConcentratedLiquidityState) Address() common.Address { return s.PoolAddress }
func (s *ConcentratedLiquidityState) Family() Family           { return FamilyConcentratedLiquidity }
func (s *ConcentratedLiquidityState) Block() uint64            { return s.LastUpdateBlock }
func (s *ConcentratedLiquidityState) FeeBps() uint32           { return s.FeeHundredthsBps / 100 }

func (s *ConcentratedLiquidityState) IsFresh(currentBlock, maxStaleBlocks uint64) bool {
	if currentBlock < s.LastUpdateBlock {
		return true
	}
	return currentBlock-s.LastUpdateBlock <= maxStaleBlocks
}

func (s *ConcentratedLiquidityState) Degenerate() bool {
	if s.SqrtPriceX96 == nil || s.SqrtPriceX96.Sign() <= 0 {
		return true
	}
	return int(s.Tick) < -887272 || int(s.Tick) > 887272
}

func (s *ConcentratedLiquidityState) MeetsLiquidityFloor(threshold *big.Int) bool {
	if threshold == nil || threshold.Sign() == 0 {
		return true
	}
	if s.Liquidity == nil {
		return false
	}
	return s.Liquidity.Cmp(threshold) >= 0
}

// Price uses the tick, not the sqrt-price, per spec §4.D: "tick-based price
// is always accurate; sqrt-price arithmetic is a known overflow hazard —
// prefer tick."
func (s *ConcentratedLiquidityState) Price(pair TokenPair) *big.Float {
	if s.Degenerate() {
		return big.NewFloat(0)
	}
	// price(token1/token0) = 1.0001^tick
	raw := tickToPriceRatio(int(s.Tick))
	if s.Token0 == pair.Quote {
		inv := new(big.Float).Quo(big.NewFloat(1), raw)
		return adjustDecimals(inv, s.Decimals1, s.Decimals0)
	}
	return adjustDecimals(raw, s.Decimals0, s.Decimals1)
}

func tickToPriceRatio(tick int) *big.Float {
	base := big.NewFloat(1.0001)
	result := big.NewFloat(1)
	exp := tick
	neg := exp < 0
	if neg {
		exp = -exp
	}
	b := new(big.Float).Copy(base)
	for exp > 0 {
		if exp&1 == 1 {
			result.Mul(result, b)
		}
		b.Mul(b, b)
		exp >>= 1
	}
	if neg {
		return new(big.Float).Quo(big.NewFloat(1), result)
	}
	return result
}

func adjustDecimals(raw *big.Float, decIn, decOut uint8) *big.Float {
	diff := int(decIn) - int(decOut)
	if diff == 0 {
		return raw
	}
	scale := new(big.Float).SetInt(pow10(abs(diff)))
	if diff > 0 {
		return new(big.Float).Mul(raw, scale)
	}
	return new(big.Float).Quo(raw, scale)
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// UnifiedPool is the detector-facing derived view, constructed fresh per
// scan from a PoolState plus its WhitelistEntry (spec §3 UnifiedPool).
type UnifiedPool struct {
	Key                  PoolKey
	Address              common.Address
	Price                *big.Float
	FeeBps               uint32
	QuoteDecimals        uint8
	MaxTradeSizeUSD      *big.Float
	MinLiquidityThreshold *big.Int
	IsV3Like             bool
	LastUpdateBlock      uint64
}

// NewUnifiedPool builds the derived view, returning ok=false for stale,
// degenerate, or sub-threshold pools (spec §4.D steps 1/filtering).
func NewUnifiedPool(key PoolKey, state PoolState, pair TokenPair, entry WhitelistEntry, currentBlock, maxStaleBlocks uint64) (UnifiedPool, bool) {
	if entry.Status != StatusActive {
		return UnifiedPool{}, false
	}
	if !state.IsFresh(currentBlock, maxStaleBlocks) {
		return UnifiedPool{}, false
	}
	if state.Degenerate() {
		return UnifiedPool{}, false
	}
	if !state.MeetsLiquidityFloor(entry.MinLiquidityThreshold) {
		return UnifiedPool{}, false
	}
	return UnifiedPool{
		Key:                   key,
		Address:               state.Address(),
		Price:                 state.Price(pair),
		FeeBps:                entry.FeeTierBps(state.FeeBps()),
		QuoteDecimals:         pair.QuoteDecimals,
		MaxTradeSizeUSD:       entry.MaxTradeSizeUSD,
		MinLiquidityThreshold: entry.MinLiquidityThreshold,
		IsV3Like:              state.Family() == FamilyConcentratedLiquidity,
		LastUpdateBlock:       state.Block(),
	}, true
}
