// Package detector implements spec component D: the opportunity detector.
// Pure logic, grounded directly on spec §4.D's algorithm (no teacher
// analog exists — the reference repo never compared two venues' prices —
// but the surrounding code style, plain struct + method, matches the
// reference's internal/util helpers).
package detector

import (
	"math/big"
	"sort"

	"github.com/strongca22-cpu/dexarb-sub003/internal/opportunity"
	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

// PoolSource is the narrow poolstate.Manager surface the detector needs.
type PoolSource interface {
	PoolsForPair(pair pool.PairSymbol) []pool.PoolState
}

// Config holds the per-run thresholds from spec §6's configuration surface
// that the detector consults.
type Config struct {
	MinSpreadMarginBps uint32
	MinProfitUSD       *big.Float
	MaxStaleBlocks      uint64
	EstimatedGasCostUSD *big.Float
}

// Detector scans UnifiedPool views for cross-venue arbitrage (spec §4.D).
type Detector struct {
	pools     PoolSource
	whitelist *pool.Whitelist
	pairs     map[pool.PairSymbol]pool.TokenPair
	cfg       Config
}

// New builds a Detector over pools/whitelist/pairs with cfg's thresholds.
func New(pools PoolSource, whitelist *pool.Whitelist, pairs map[pool.PairSymbol]pool.TokenPair, cfg Config) *Detector {
	return &Detector{pools: pools, whitelist: whitelist, pairs: pairs, cfg: cfg}
}

// Scan runs the §4.D algorithm for every configured pair at currentBlock,
// returning opportunities ranked by estimated net profit descending, ties
// broken by the buy pool's last-update block (the route using the fresher
// buy-side state wins), with venue name as a final deterministic fallback.
func (d *Detector) Scan(currentBlock uint64) []opportunity.ArbitrageOpportunity {
	var out []opportunity.ArbitrageOpportunity
	for symbol, pair := range d.pairs {
		out = append(out, d.scanPair(symbol, pair, currentBlock)...)
	}
	sort.Slice(out, func(i, j int) bool {
		cmp := out[i].EstimatedNetProfitQuote.Cmp(out[j].EstimatedNetProfitQuote)
		if cmp != 0 {
			return cmp > 0
		}
		if out[i].BuyPoolLastUpdateBlock != out[j].BuyPoolLastUpdateBlock {
			return out[i].BuyPoolLastUpdateBlock > out[j].BuyPoolLastUpdateBlock
		}
		return out[i].BuyPoolKey.Venue < out[j].BuyPoolKey.Venue // deterministic tie-break fallback
	})
	return out
}

func (d *Detector) scanPair(symbol pool.PairSymbol, pair pool.TokenPair, currentBlock uint64) []opportunity.ArbitrageOpportunity {
	entries := d.whitelist.ActiveForPair(symbol)
	if len(entries) < 2 {
		return nil
	}
	entryByAddr := make(map[string]pool.WhitelistEntry, len(entries))
	for _, e := range entries {
		entryByAddr[e.Address.Hex()] = e
	}

	states := d.pools.PoolsForPair(symbol)
	var unified []pool.UnifiedPool
	for _, st := range states {
		entry, ok := entryByAddr[st.Address().Hex()]
		if !ok {
			continue
		}
		key := pool.PoolKey{Venue: entry.Venue, Pair: symbol}
		up, ok := pool.NewUnifiedPool(key, st, pair, entry, currentBlock, d.cfg.MaxStaleBlocks)
		if !ok {
			continue
		}
		unified = append(unified, up)
	}

	var opps []opportunity.ArbitrageOpportunity
	for i := range unified {
		for j := range unified {
			if i == j {
				continue
			}
			buy, sell := unified[i], unified[j]
			if opp, ok := d.evaluate(symbol, pair, buy, sell, currentBlock); ok {
				opps = append(opps, opp)
			}
		}
	}
	return opps
}

// evaluate implements spec §4.D steps 3-7 for one ordered (buy, sell) pair.
func (d *Detector) evaluate(symbol pool.PairSymbol, pair pool.TokenPair, buy, sell pool.UnifiedPool, currentBlock uint64) (opportunity.ArbitrageOpportunity, bool) {
	if buy.Price.Sign() <= 0 {
		return opportunity.ArbitrageOpportunity{}, false
	}
	spread := new(big.Float).Quo(new(big.Float).Sub(sell.Price, buy.Price), buy.Price)

	roundTripFeeBps := buy.FeeBps + sell.FeeBps
	marginThreshold := new(big.Float).Quo(big.NewFloat(float64(roundTripFeeBps)+float64(d.cfg.MinSpreadMarginBps)), big.NewFloat(10000))
	if spread.Cmp(marginThreshold) <= 0 {
		return opportunity.ArbitrageOpportunity{}, false
	}

	tradeSizeUSD := buy.MaxTradeSizeUSD
	if sell.MaxTradeSizeUSD.Cmp(tradeSizeUSD) < 0 {
		tradeSizeUSD = sell.MaxTradeSizeUSD
	}

	feeFraction := new(big.Float).Quo(big.NewFloat(float64(roundTripFeeBps)), big.NewFloat(10000))
	netSpread := new(big.Float).Sub(spread, feeFraction)
	grossProfit := new(big.Float).Mul(tradeSizeUSD, spread)
	netProfit := new(big.Float).Sub(new(big.Float).Mul(tradeSizeUSD, netSpread), d.cfg.EstimatedGasCostUSD)

	if netProfit.Cmp(d.cfg.MinProfitUSD) < 0 {
		return opportunity.ArbitrageOpportunity{}, false
	}

	minProfitRaw := UsdToRaw(d.cfg.MinProfitUSD, pair.QuoteDecimals, pair.QuotePriceUSD)

	return opportunity.ArbitrageOpportunity{
		Pair:                      symbol,
		BuyPoolKey:                pool.PoolKey{Venue: buy.Key.Venue, Pair: symbol},
		SellPoolKey:               pool.PoolKey{Venue: sell.Key.Venue, Pair: symbol},
		TradeSizeQuote:            tradeSizeUSD,
		EstimatedGrossProfitQuote: grossProfit,
		EstimatedNetProfitQuote:   netProfit,
		MinProfitRaw:              minProfitRaw,
		DetectedAtBlock:           currentBlock,
		BuyPoolLastUpdateBlock:    buy.LastUpdateBlock,
	}, true
}

// UsdToRaw converts a USD amount into raw quote-token units using the
// pair's own decimals and USD reference price — spec §9 "Decimal
// generality": no literal 10^6 anywhere, works identically for a
// 6-decimal stablecoin or an 18-decimal wrapped native quote token. Shared
// with internal/mempool, whose cross-venue threshold check is the same
// computation against a predicted rather than an observed price.
func UsdToRaw(usd *big.Float, quoteDecimals uint8, quotePriceUSD *big.Float) *big.Int {
	if quotePriceUSD == nil || quotePriceUSD.Sign() == 0 {
		return big.NewInt(0)
	}
	scale := new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(quoteDecimals)), nil))
	tokens := new(big.Float).Quo(usd, quotePriceUSD)
	raw := new(big.Float).Mul(tokens, scale)
	out, _ := raw.Int(nil) // floor, matching spec §8 property 3 ("floor(...)")
	return out
}
