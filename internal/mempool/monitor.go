package mempool

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/strongca22-cpu/dexarb-sub003/internal/detector"
	"github.com/strongca22-cpu/dexarb-sub003/internal/opportunity"
	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

// PendingTx is the upstream subscription's yielded object: spec §4.E
// "pending transaction objects including raw calldata, gas price, priority
// fee, and a tx identifier".
type PendingTx struct {
	Hash        common.Hash
	To          common.Address
	Data        []byte
	Value       *big.Int
	GasPrice    *big.Int
	PriorityFee *big.Int
	SeenAt      time.Time
}

// PoolSource is the narrow poolstate.Manager surface the monitor needs.
type PoolSource interface {
	Get(key pool.PoolKey) (pool.PoolState, bool)
	PoolsForPair(pair pool.PairSymbol) []pool.PoolState
}

// Config holds the mempool-path thresholds from spec §6, typically set
// lower than the block-reactive detector's (§4.E: "e.g. $0.001 raw
// minimum, because the signal is higher-conviction and gas is cheaper").
type Config struct {
	MinSpreadMarginBps    uint32
	MinProfitUSD          *big.Float
	EstimatedGasCostUSD   *big.Float
	MaxTickSpacingAdvance int
	TickSpacing           int           // 0 disables the tick-advance reliability check
	MaxSignalAge          time.Duration // spec §4.E: "signals older than 10s MUST be discarded"
}

// Monitor implements spec component E end to end: decode a pending router
// call, identify the affected pool, simulate its post-swap state, and
// compare the predicted price against every other whitelisted venue for
// the same pair.
type Monitor struct {
	decoder   *Decoder
	lookup    *PoolLookup
	pools     PoolSource
	whitelist *pool.Whitelist
	pairs     map[pool.PairSymbol]pool.TokenPair
	cfg       Config
	logger    *zap.Logger
	Accuracy  *AccuracyTracker
	now       func() time.Time
}

// New builds a Monitor. logger may be nil (a no-op logger is substituted).
func New(decoder *Decoder, lookup *PoolLookup, pools PoolSource, whitelist *pool.Whitelist, pairs map[pool.PairSymbol]pool.TokenPair, cfg Config, logger *zap.Logger) *Monitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Monitor{
		decoder: decoder, lookup: lookup, pools: pools, whitelist: whitelist,
		pairs: pairs, cfg: cfg, logger: logger,
		Accuracy: NewAccuracyTracker(2 * time.Minute),
		now:      time.Now,
	}
}

// Handle decodes and simulates one pending transaction, returning every
// SimulatedOpportunity it triggers. Pure and synchronous so it can be
// exercised directly in tests; Run wires it to a live subscription.
func (m *Monitor) Handle(tx PendingTx) []opportunity.SimulatedOpportunity {
	if !tx.SeenAt.IsZero() && m.cfg.MaxSignalAge > 0 && m.now().Sub(tx.SeenAt) > m.cfg.MaxSignalAge {
		return nil
	}
	legs, err := m.decoder.Decode(tx.Data, tx.Value)
	if err != nil || len(legs) == 0 {
		return nil
	}

	var out []opportunity.SimulatedOpportunity
	for _, leg := range legs {
		if opp, ok := m.simulateLeg(tx, leg); ok {
			out = append(out, opp)
		}
	}
	return out
}

func (m *Monitor) simulateLeg(tx PendingTx, leg DecodedSwap) (opportunity.SimulatedOpportunity, bool) {
	if leg.AmountIn == nil || leg.AmountIn.Sign() <= 0 {
		return opportunity.SimulatedOpportunity{}, false
	}
	pk, ok := m.lookup.Resolve(leg.TokenIn, leg.TokenOut, leg.FeeTier)
	if !ok {
		return opportunity.SimulatedOpportunity{}, false
	}
	tp, ok := m.pairs[pk.Pair]
	if !ok {
		return opportunity.SimulatedOpportunity{}, false
	}
	state, ok := m.pools.Get(pk)
	if !ok {
		return opportunity.SimulatedOpportunity{}, false
	}
	selfEntry, ok := m.whitelist.Entry(state.Address())
	if !ok {
		return opportunity.SimulatedOpportunity{}, false
	}

	predictedPrice, selfFeeBps, ok := m.predictPrice(tx, pk, tp, state, leg)
	if !ok {
		return opportunity.SimulatedOpportunity{}, false
	}

	crossOpp, ok := m.evaluateAgainstOthers(pk, tp, predictedPrice, selfFeeBps, selfEntry)
	if !ok {
		return opportunity.SimulatedOpportunity{}, false
	}

	return opportunity.SimulatedOpportunity{
		TriggerTxID:         tx.Hash.Hex(),
		TriggerGasPrice:     tx.GasPrice,
		TriggerPriorityFee:  tx.PriorityFee,
		AffectedPoolKey:     pk,
		PredictedPostPrice:  predictedPrice,
		CrossVenueOpp:       crossOpp,
		CreatedAtUnixMillis: m.now().UnixMilli(),
	}, true
}

// predictPrice applies leg to state's current snapshot and returns the
// resulting price, also recording the prediction for later accuracy
// scoring (spec §4.E "Accuracy tracking").
func (m *Monitor) predictPrice(tx PendingTx, pk pool.PoolKey, tp pool.TokenPair, state pool.PoolState, leg DecodedSwap) (*big.Float, uint32, bool) {
	switch st := state.(type) {
	case *pool.ConstantProductState:
		zeroForOne := leg.TokenIn == st.Token0
		reserveIn, reserveOut := st.Reserve1, st.Reserve0
		if zeroForOne {
			reserveIn, reserveOut = st.Reserve0, st.Reserve1
		}
		sim := SimulateConstantProduct(leg.AmountIn, reserveIn, reserveOut, state.FeeBps())
		newReserve0, newReserve1 := sim.NewReserveOut, sim.NewReserveIn
		if zeroForOne {
			newReserve0, newReserve1 = sim.NewReserveIn, sim.NewReserveOut
		}
		predicted := &pool.ConstantProductState{
			PoolAddress: st.PoolAddress, Token0: st.Token0, Token1: st.Token1,
			Decimals0: st.Decimals0, Decimals1: st.Decimals1,
			Reserve0: newReserve0, Reserve1: newReserve1, LastUpdateBlock: st.LastUpdateBlock,
		}
		price := predicted.Price(tp)
		m.Accuracy.Record(tx.Hash.Hex(), pk, price, m.now())
		return price, state.FeeBps(), true

	case *pool.ConcentratedLiquidityState:
		zeroForOne := leg.TokenIn == st.Token0
		sim := SimulateConcentratedLiquidity(st.SqrtPriceX96, st.Liquidity, leg.AmountIn, st.FeeHundredthsBps, zeroForOne, m.cfg.TickSpacing, m.cfg.MaxTickSpacingAdvance)
		if !sim.Reliable {
			return nil, 0, false
		}
		predicted := &pool.ConcentratedLiquidityState{
			PoolAddress: st.PoolAddress, Token0: st.Token0, Token1: st.Token1,
			Decimals0: st.Decimals0, Decimals1: st.Decimals1,
			SqrtPriceX96: sim.NewSqrtPriceX96, Tick: sim.NewTick, Liquidity: st.Liquidity,
			FeeHundredthsBps: st.FeeHundredthsBps, LastUpdateBlock: st.LastUpdateBlock,
		}
		price := predicted.Price(tp)
		m.Accuracy.Record(tx.Hash.Hex(), pk, price, m.now())
		return price, state.FeeBps(), true

	default:
		return nil, 0, false
	}
}

// evaluateAgainstOthers mirrors internal/detector's evaluate step, but
// compares a predicted (not observed) price for pk against every other
// active venue for the same pair.
func (m *Monitor) evaluateAgainstOthers(pk pool.PoolKey, tp pool.TokenPair, predictedPrice *big.Float, selfFeeBps uint32, selfEntry pool.WhitelistEntry) (opportunity.ArbitrageOpportunity, bool) {
	if predictedPrice.Sign() <= 0 {
		return opportunity.ArbitrageOpportunity{}, false
	}
	entries := m.whitelist.ActiveForPair(pk.Pair)
	entryByAddr := make(map[string]pool.WhitelistEntry, len(entries))
	for _, e := range entries {
		entryByAddr[e.Address.Hex()] = e
	}

	var best opportunity.ArbitrageOpportunity
	found := false
	for _, st := range m.pools.PoolsForPair(pk.Pair) {
		entry, ok := entryByAddr[st.Address().Hex()]
		if !ok || entry.Venue == pk.Venue {
			continue
		}
		otherPrice := st.Price(tp)
		if otherPrice.Sign() <= 0 {
			continue
		}

		buyPrice, sellPrice := predictedPrice, otherPrice
		buyVenue, sellVenue := pk.Venue, entry.Venue
		buyFee, sellFee := selfFeeBps, entry.FeeTierBps(st.FeeBps())
		if otherPrice.Cmp(predictedPrice) < 0 {
			buyPrice, sellPrice = otherPrice, predictedPrice
			buyVenue, sellVenue = entry.Venue, pk.Venue
			buyFee, sellFee = entry.FeeTierBps(st.FeeBps()), selfFeeBps
		}

		spread := new(big.Float).Quo(new(big.Float).Sub(sellPrice, buyPrice), buyPrice)
		roundTripFeeBps := buyFee + sellFee
		marginThreshold := new(big.Float).Quo(big.NewFloat(float64(roundTripFeeBps)+float64(m.cfg.MinSpreadMarginBps)), big.NewFloat(10000))
		if spread.Cmp(marginThreshold) <= 0 {
			continue
		}

		tradeSizeUSD := selfEntry.MaxTradeSizeUSD
		if entry.MaxTradeSizeUSD.Cmp(tradeSizeUSD) < 0 {
			tradeSizeUSD = entry.MaxTradeSizeUSD
		}
		feeFraction := new(big.Float).Quo(big.NewFloat(float64(roundTripFeeBps)), big.NewFloat(10000))
		netSpread := new(big.Float).Sub(spread, feeFraction)
		grossProfit := new(big.Float).Mul(tradeSizeUSD, spread)
		netProfit := new(big.Float).Sub(new(big.Float).Mul(tradeSizeUSD, netSpread), m.cfg.EstimatedGasCostUSD)

		if netProfit.Cmp(m.cfg.MinProfitUSD) < 0 {
			continue
		}
		if found && netProfit.Cmp(best.EstimatedNetProfitQuote) <= 0 {
			continue
		}
		best = opportunity.ArbitrageOpportunity{
			Pair:                      pk.Pair,
			BuyPoolKey:                pool.PoolKey{Venue: buyVenue, Pair: pk.Pair},
			SellPoolKey:               pool.PoolKey{Venue: sellVenue, Pair: pk.Pair},
			TradeSizeQuote:            tradeSizeUSD,
			EstimatedGrossProfitQuote: grossProfit,
			EstimatedNetProfitQuote:   netProfit,
			MinProfitRaw:              detector.UsdToRaw(m.cfg.MinProfitUSD, tp.QuoteDecimals, tp.QuotePriceUSD),
		}
		found = true
	}
	return best, found
}
