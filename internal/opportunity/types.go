// Package opportunity holds the immutable value types shared by the
// detector (internal/detector), the mempool simulator (internal/mempool),
// the hybrid cache (internal/hybridcache) and the route cooldown tracker
// (internal/cooldown) — spec §3's ArbitrageOpportunity, SimulatedOpportunity,
// CachedOpportunity, and Route.
package opportunity

import (
	"math/big"

	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

// Route is the triple (pair, buy-venue, sell-venue) that identifies one
// arbitrage path (GLOSSARY "Route"), the cooldown tracker's key.
type Route struct {
	Pair PairIdentity
	Buy  pool.Venue
	Sell pool.Venue
}

// PairIdentity avoids importing pool.PairSymbol directly into the cooldown
// key so Route remains a plain comparable struct usable as a map key.
type PairIdentity string

// ArbitrageOpportunity is immutable once produced (spec §3).
type ArbitrageOpportunity struct {
	Pair                     pool.PairSymbol
	BuyPoolKey               pool.PoolKey
	SellPoolKey              pool.PoolKey
	TradeSizeQuote           *big.Float
	EstimatedGrossProfitQuote *big.Float
	EstimatedNetProfitQuote  *big.Float
	MinProfitRaw             *big.Int
	DetectedAtBlock          uint64
	BuyPoolLastUpdateBlock   uint64
}

// RouteOf projects an opportunity onto its cooldown-tracker route key.
func (o ArbitrageOpportunity) RouteOf() Route {
	return Route{
		Pair: PairIdentity(o.Pair),
		Buy:  o.BuyPoolKey.Venue,
		Sell: o.SellPoolKey.Venue,
	}
}

// SimulatedOpportunity is the mempool-derived signal (spec §3).
type SimulatedOpportunity struct {
	TriggerTxID         string
	TriggerGasPrice     *big.Int
	TriggerPriorityFee  *big.Int
	AffectedPoolKey     pool.PoolKey
	PredictedPostPrice  *big.Float
	CrossVenueOpp       ArbitrageOpportunity
	CreatedAtUnixMillis int64
}

// CachedOpportunity is a hybrid-cache entry (spec §3).
type CachedOpportunity struct {
	TriggerTxID      string
	Opp              ArbitrageOpportunity
	CachedAtUnixMillis int64
}
