package engine

import (
	"fmt"

	"github.com/strongca22-cpu/dexarb-sub003/internal/detector"
	"github.com/strongca22-cpu/dexarb-sub003/internal/execution"
	"github.com/strongca22-cpu/dexarb-sub003/internal/opportunity"
	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

// buildRequest resolves an ArbitrageOpportunity into the fully-specified
// executeArb call the execution pipeline submits.
//
// The round-trip's input/output token (executeArb's "token0") is the
// pair's configured quote token, not pool.TokenPair.Base: amountIn and
// minProfit must be denominated in the token whose USD reference price is
// configured (spec §9 "Decimal generality"), and only the quote token
// carries one. The pair's base token is the intermediate hop ("token1").
// This resolves an ambiguity in the executor's "base / intermediate"
// comment (spec §6): it describes the round-trip and intermediate roles
// generically, not pool.TokenPair's own Base/Quote field names.
func (e *Engine) buildRequest(opp opportunity.ArbitrageOpportunity, detectedAtBlock uint64) (execution.Request, error) {
	pair, ok := e.cfg.Pairs[opp.Pair]
	if !ok {
		return execution.Request{}, fmt.Errorf("engine: unknown pair %s", opp.Pair)
	}

	buyState, ok := e.pools.Get(opp.BuyPoolKey)
	if !ok {
		return execution.Request{}, fmt.Errorf("engine: no pool state for buy key %+v", opp.BuyPoolKey)
	}
	sellState, ok := e.pools.Get(opp.SellPoolKey)
	if !ok {
		return execution.Request{}, fmt.Errorf("engine: no pool state for sell key %+v", opp.SellPoolKey)
	}

	buyEntry, ok := e.entryFor(opp.BuyPoolKey)
	if !ok {
		return execution.Request{}, fmt.Errorf("engine: no whitelist entry for buy key %+v", opp.BuyPoolKey)
	}
	sellEntry, ok := e.entryFor(opp.SellPoolKey)
	if !ok {
		return execution.Request{}, fmt.Errorf("engine: no whitelist entry for sell key %+v", opp.SellPoolKey)
	}

	routerBuy, ok := e.cfg.Routers[opp.BuyPoolKey.Venue]
	if !ok {
		return execution.Request{}, fmt.Errorf("engine: no router configured for venue %s", opp.BuyPoolKey.Venue)
	}
	routerSell, ok := e.cfg.Routers[opp.SellPoolKey.Venue]
	if !ok {
		return execution.Request{}, fmt.Errorf("engine: no router configured for venue %s", opp.SellPoolKey.Venue)
	}

	amountIn := detector.UsdToRaw(opp.TradeSizeQuote, pair.QuoteDecimals, pair.QuotePriceUSD)

	return execution.Request{
		Route:           opp.RouteOf(),
		Token0:          pair.Quote,
		Token1:          pair.Base,
		RouterBuy:       routerBuy,
		RouterSell:      routerSell,
		FamilyBuy:       buyState.Family(),
		FamilySell:      sellState.Family(),
		FeeTierBuy:      buyEntry.FeeTier,
		FeeTierSell:     sellEntry.FeeTier,
		AmountIn:        amountIn,
		MinProfit:       opp.MinProfitRaw,
		DetectedAtBlock: detectedAtBlock,
	}, nil
}

func (e *Engine) entryFor(key pool.PoolKey) (pool.WhitelistEntry, bool) {
	for _, entry := range e.whitelist.ActiveForPair(key.Pair) {
		if entry.Venue == key.Venue {
			return entry, true
		}
	}
	return pool.WhitelistEntry{}, false
}
