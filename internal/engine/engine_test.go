package engine

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongca22-cpu/dexarb-sub003/internal/cooldown"
	"github.com/strongca22-cpu/dexarb-sub003/internal/execution"
	"github.com/strongca22-cpu/dexarb-sub003/internal/hybridcache"
	"github.com/strongca22-cpu/dexarb-sub003/internal/mempool"
	"github.com/strongca22-cpu/dexarb-sub003/internal/opportunity"
	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

const testWhitelistJSON = `{
  "version": 1,
  "active": [
    {"address":"0x000000000000000000000000000000000000aa","venue":"venueA","pair":"WETH-USDC","fee_tier":0,"status":"active","min_liquidity_threshold":"0","max_trade_size_usd":1000,"last_verified_timestamp":0},
    {"address":"0x000000000000000000000000000000000000bb","venue":"venueB","pair":"WETH-USDC","fee_tier":3000,"status":"active","min_liquidity_threshold":"0","max_trade_size_usd":1000,"last_verified_timestamp":0}
  ]
}`

func testPair() pool.TokenPair {
	return pool.TokenPair{
		Symbol:        "WETH-USDC",
		Base:          common.HexToAddress("0xbeef"),
		Quote:         common.HexToAddress("0xcafe"),
		QuoteDecimals: 6,
		QuotePriceUSD: big.NewFloat(1),
	}
}

func testOpportunity() opportunity.ArbitrageOpportunity {
	return opportunity.ArbitrageOpportunity{
		Pair:                    "WETH-USDC",
		BuyPoolKey:              pool.PoolKey{Venue: "venueA", Pair: "WETH-USDC"},
		SellPoolKey:             pool.PoolKey{Venue: "venueB", Pair: "WETH-USDC"},
		TradeSizeQuote:          big.NewFloat(100),
		EstimatedGrossProfitQuote: big.NewFloat(6),
		EstimatedNetProfitQuote: big.NewFloat(5),
		MinProfitRaw:            big.NewInt(1_000_000),
		DetectedAtBlock:         100,
	}
}

type fakePools struct {
	states map[pool.PoolKey]pool.PoolState
}

func (f *fakePools) Get(key pool.PoolKey) (pool.PoolState, bool) {
	st, ok := f.states[key]
	return st, ok
}

func testEngine(t *testing.T) (*Engine, *fakePools, *cooldown.Tracker) {
	t.Helper()
	wl, err := pool.LoadWhitelistFromBytes([]byte(testWhitelistJSON))
	require.NoError(t, err)

	pools := &fakePools{states: map[pool.PoolKey]pool.PoolState{
		{Venue: "venueA", Pair: "WETH-USDC"}: &pool.ConstantProductState{
			PoolAddress: common.HexToAddress("0xaa"),
		},
		{Venue: "venueB", Pair: "WETH-USDC"}: &pool.ConcentratedLiquidityState{
			PoolAddress: common.HexToAddress("0xbb"),
		},
	}}

	cd := cooldown.New()

	e := New(nil, nil, nil, nil, nil, pools, wl, hybridcache.New(16), cd, nil, nil, nil, nil,
		Config{
			Routers: map[pool.Venue]common.Address{
				"venueA": common.HexToAddress("0x1111"),
				"venueB": common.HexToAddress("0x2222"),
			},
			Pairs: map[pool.PairSymbol]pool.TokenPair{"WETH-USDC": testPair()},
			NativeGasTokenDecimals: 18,
			NativeGasTokenPriceUSD: big.NewFloat(2000),
		}, nil)
	return e, pools, cd
}

func TestBuildRequest_ResolvesTokensRoutersFamiliesAndFees(t *testing.T) {
	e, _, _ := testEngine(t)
	req, err := e.buildRequest(testOpportunity(), 100)
	require.NoError(t, err)

	assert.Equal(t, testPair().Quote, req.Token0)
	assert.Equal(t, testPair().Base, req.Token1)
	assert.Equal(t, common.HexToAddress("0x1111"), req.RouterBuy)
	assert.Equal(t, common.HexToAddress("0x2222"), req.RouterSell)
	assert.Equal(t, pool.FamilyConstantProduct, req.FamilyBuy)
	assert.Equal(t, pool.FamilyConcentratedLiquidity, req.FamilySell)
	assert.Equal(t, uint32(0), req.FeeTierBuy)
	assert.Equal(t, uint32(3000), req.FeeTierSell)
	assert.Equal(t, uint64(100), req.DetectedAtBlock)
	assert.Equal(t, big.NewInt(1_000_000), req.MinProfit)
	assert.Equal(t, big.NewInt(100_000_000), req.AmountIn) // 100 USD @ 1 USD/quote, 6 decimals
}

func TestBuildRequest_UnknownRouterErrors(t *testing.T) {
	e, _, _ := testEngine(t)
	delete(e.cfg.Routers, "venueA")
	_, err := e.buildRequest(testOpportunity(), 100)
	assert.Error(t, err)
}

func TestBuildRequest_UnknownPoolStateErrors(t *testing.T) {
	e, pools, _ := testEngine(t)
	delete(pools.states, pool.PoolKey{Venue: "venueA", Pair: "WETH-USDC"})
	_, err := e.buildRequest(testOpportunity(), 100)
	assert.Error(t, err)
}

type fakeDetector struct {
	opps []opportunity.ArbitrageOpportunity
}

func (f *fakeDetector) Scan(currentBlock uint64) []opportunity.ArbitrageOpportunity { return f.opps }

type fakePipeline struct {
	blockReactiveCalls int
	mempoolCalls       int
	result             execution.Result
}

func (f *fakePipeline) ExecuteBlockReactive(ctx context.Context, req execution.Request) execution.Result {
	f.blockReactiveCalls++
	return f.result
}

func (f *fakePipeline) ExecuteMempoolSignal(ctx context.Context, req execution.Request, trigger execution.TriggerInfo) execution.Result {
	f.mempoolCalls++
	return f.result
}

type fakeSink struct {
	recorded []execution.Result
}

func (f *fakeSink) RecordExecution(opp opportunity.ArbitrageOpportunity, result execution.Result) {
	f.recorded = append(f.recorded, result)
}

func TestExecuteBestViable_SkipsSuppressedRouteAndStopsAtFirstViable(t *testing.T) {
	e, _, cd := testEngine(t)
	oppA := testOpportunity()
	oppB := testOpportunity()
	oppB.SellPoolKey.Venue = "venueA" // distinct route so it isn't also suppressed

	cd.RecordFailure(oppA.RouteOf(), 50) // suppressed until block 60 (exclusive)

	det := &fakeDetector{opps: []opportunity.ArbitrageOpportunity{oppA, oppB}}
	pipe := &fakePipeline{result: execution.Result{Outcome: execution.OutcomeSuccess}}
	sink := &fakeSink{}
	e.detector = det
	e.pipeline = pipe
	e.sink = sink

	e.executeBestViable(context.Background(), 55)

	assert.Equal(t, 1, pipe.blockReactiveCalls)
	assert.Len(t, sink.recorded, 1)
}

func TestExecuteBestViable_NoOpportunitiesIsNoop(t *testing.T) {
	e, _, _ := testEngine(t)
	e.detector = &fakeDetector{}
	pipe := &fakePipeline{}
	e.pipeline = pipe
	e.executeBestViable(context.Background(), 1)
	assert.Equal(t, 0, pipe.blockReactiveCalls)
}

type fakeMonitor struct {
	sims []opportunity.SimulatedOpportunity
}

func (f *fakeMonitor) Handle(tx mempool.PendingTx) []opportunity.SimulatedOpportunity { return f.sims }

func testSimulated() opportunity.SimulatedOpportunity {
	return opportunity.SimulatedOpportunity{
		TriggerTxID:        "0xdead",
		TriggerPriorityFee: big.NewInt(2_000_000_000),
		CrossVenueOpp:      testOpportunity(),
	}
}

func TestOnMempoolSignal_ObserveModeNeverExecutes(t *testing.T) {
	e, _, _ := testEngine(t)
	e.monitor = &fakeMonitor{sims: []opportunity.SimulatedOpportunity{testSimulated()}}
	pipe := &fakePipeline{}
	e.pipeline = pipe
	e.cfg.MempoolMode = MempoolModeObserve

	e.onMempoolSignal(context.Background(), mempool.PendingTx{SeenAt: time.Now()})

	assert.Equal(t, 0, pipe.mempoolCalls)
}

func TestOnMempoolSignal_ImmediateModeExecutesWithEstimatedProfit(t *testing.T) {
	e, _, _ := testEngine(t)
	e.monitor = &fakeMonitor{sims: []opportunity.SimulatedOpportunity{testSimulated()}}
	pipe := &fakePipeline{result: execution.Result{Outcome: execution.OutcomeSuccess}}
	sink := &fakeSink{}
	e.pipeline = pipe
	e.sink = sink
	e.cfg.MempoolMode = MempoolModeAct
	e.cfg.HybridMode = HybridModeImmediate

	e.onMempoolSignal(context.Background(), mempool.PendingTx{SeenAt: time.Now()})

	assert.Equal(t, 1, pipe.mempoolCalls)
	assert.Len(t, sink.recorded, 1)
}

func TestOnMempoolSignal_CacheAndWaitInsertsWithoutExecuting(t *testing.T) {
	e, _, _ := testEngine(t)
	e.monitor = &fakeMonitor{sims: []opportunity.SimulatedOpportunity{testSimulated()}}
	pipe := &fakePipeline{}
	e.pipeline = pipe
	e.cfg.MempoolMode = MempoolModeAct
	e.cfg.HybridMode = HybridModeCacheAndWait

	e.onMempoolSignal(context.Background(), mempool.PendingTx{SeenAt: time.Now()})

	assert.Equal(t, 0, pipe.mempoolCalls)
	assert.Equal(t, 1, e.hybrid.Len())
}

func TestOnMempoolSignal_OffModeIsNoop(t *testing.T) {
	e, _, _ := testEngine(t)
	e.monitor = &fakeMonitor{sims: []opportunity.SimulatedOpportunity{testSimulated()}}
	pipe := &fakePipeline{}
	e.pipeline = pipe
	e.cfg.MempoolMode = MempoolModeOff

	e.onMempoolSignal(context.Background(), mempool.PendingTx{SeenAt: time.Now()})

	assert.Equal(t, 0, pipe.mempoolCalls)
	assert.Equal(t, 0, e.hybrid.Len())
}

type fakeReceipts struct {
	byHash map[common.Hash]*types.Receipt
}

func (f *fakeReceipts) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	r, ok := f.byHash[txHash]
	if !ok {
		return nil, assert.AnError
	}
	return r, nil
}

func TestConfirmHybridCache_ExecutesOnceReceiptIsSuccessful(t *testing.T) {
	e, _, _ := testEngine(t)
	e.hybrid.Insert("0xdead", testOpportunity())

	pipe := &fakePipeline{result: execution.Result{Outcome: execution.OutcomeSuccess}}
	sink := &fakeSink{}
	e.pipeline = pipe
	e.sink = sink
	e.receipts = &fakeReceipts{byHash: map[common.Hash]*types.Receipt{
		common.HexToHash("0xdead"): {Status: types.ReceiptStatusSuccessful},
	}}

	e.confirmHybridCache(context.Background())

	assert.Equal(t, 1, pipe.blockReactiveCalls)
	assert.Len(t, sink.recorded, 1)
	assert.Equal(t, 0, e.hybrid.Len())
}

func TestConfirmHybridCache_LeavesUnconfirmedEntriesCached(t *testing.T) {
	e, _, _ := testEngine(t)
	e.hybrid.Insert("0xdead", testOpportunity())

	pipe := &fakePipeline{}
	e.pipeline = pipe
	e.receipts = &fakeReceipts{byHash: map[common.Hash]*types.Receipt{}}

	e.confirmHybridCache(context.Background())

	assert.Equal(t, 0, pipe.blockReactiveCalls)
	assert.Equal(t, 1, e.hybrid.Len())
}
