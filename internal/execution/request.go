package execution

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/strongca22-cpu/dexarb-sub003/internal/opportunity"
	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

// Request is the fully-resolved executeArb call this pipeline submits.
// The main loop builds it from an ArbitrageOpportunity plus the whitelist
// and pool-state lookups it already owns (spec §4.H preconditions:
// "opportunity selected from detector output"); the pipeline itself never
// reasons about pool state.
type Request struct {
	Route      opportunity.Route
	Token0     common.Address
	Token1     common.Address
	RouterBuy  common.Address
	RouterSell common.Address
	FamilyBuy  pool.Family
	FamilySell pool.Family
	// FeeTierBuy/FeeTierSell are consulted only for a concentrated-liquidity
	// leg; EncodeFee ignores them for a constant-product leg.
	FeeTierBuy  uint32
	FeeTierSell uint32
	AmountIn    *big.Int
	MinProfit   *big.Int
	// EstimatedProfitWei is the native-gas-token equivalent of the
	// opportunity's estimated profit, used only by the mempool/hybrid
	// path's dynamic gas pricing (spec §4.H step 5). Unused by the
	// block-reactive path.
	EstimatedProfitWei *big.Int
	DetectedAtBlock    uint64
}

// TriggerInfo carries the pending transaction's own gas bid, the anchor
// the mempool/hybrid path's dynamic pricing formula bids against.
type TriggerInfo struct {
	SeenAt         time.Time
	PriorityFeeWei *big.Int
}

// Quoter performs a read-only pre-flight re-quote for one leg (spec §4.H
// step 1). The main loop supplies an implementation per venue family — a
// V3-style QuoterV2 call for a concentrated-liquidity router, a reserve
// read for a constant-product router — built on pkg/contractclient.Call.
type Quoter interface {
	QuoteExactIn(ctx context.Context, router, tokenIn, tokenOut common.Address, fee *big.Int, amountIn *big.Int) (*big.Int, error)
}
