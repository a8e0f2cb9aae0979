package mempool

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

type fakePoolSource struct {
	byKey  map[pool.PoolKey]pool.PoolState
	byPair map[pool.PairSymbol][]pool.PoolState
}

func (f *fakePoolSource) Get(key pool.PoolKey) (pool.PoolState, bool) {
	st, ok := f.byKey[key]
	return st, ok
}

func (f *fakePoolSource) PoolsForPair(pair pool.PairSymbol) []pool.PoolState {
	return f.byPair[pair]
}

func testPair() pool.TokenPair {
	return pool.TokenPair{
		Symbol: "WETH-USDC", Base: addr("0xaaaa"), Quote: addr("0xbbbb"),
		QuoteDecimals: 6, QuotePriceUSD: big.NewFloat(1.0),
	}
}

// buildExactInputSingleCalldata packs a minimal exactInputSingle call
// against tokenIn -> tokenOut for amountIn at feeTier.
func buildExactInputSingleCalldata(t *testing.T, d *Decoder, tokenIn, tokenOut common.Address, feeTier int64, amountIn int64) []byte {
	t.Helper()
	method := d.abi.Methods["exactInputSingle"]
	type params struct {
		TokenIn           common.Address `json:"tokenIn"`
		TokenOut          common.Address `json:"tokenOut"`
		Fee               *big.Int       `json:"fee"`
		Recipient         common.Address `json:"recipient"`
		Deadline          *big.Int       `json:"deadline"`
		AmountIn          *big.Int       `json:"amountIn"`
		AmountOutMinimum  *big.Int       `json:"amountOutMinimum"`
		SqrtPriceLimitX96 *big.Int       `json:"sqrtPriceLimitX96"`
	}
	packed, err := method.Inputs.Pack(params{
		TokenIn: tokenIn, TokenOut: tokenOut, Fee: big.NewInt(feeTier),
		Recipient: addr("0xdead"), Deadline: big.NewInt(1),
		AmountIn: big.NewInt(amountIn), AmountOutMinimum: big.NewInt(1), SqrtPriceLimitX96: big.NewInt(0),
	})
	require.NoError(t, err)
	return append(method.ID, packed...)
}

func TestMonitor_Handle_EmitsOpportunityWhenOtherVenueIsRicher(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	token0, token1 := addr("0xaaaa"), addr("0xbbbb") // Base, Quote (token0 < token1 not enforced here, just test fixtures)
	wl := whitelistJSON(t, `
		{"address":"0x11","venue":"venueA","pair":"WETH-USDC","fee_tier":3000,"status":"active","min_liquidity_threshold":"0","max_trade_size_usd":1000000},
		{"address":"0x12","venue":"venueB","pair":"WETH-USDC","fee_tier":3000,"status":"active","min_liquidity_threshold":"0","max_trade_size_usd":1000000}
	`)
	pairs := map[pool.PairSymbol]pool.TokenPair{"WETH-USDC": testPair()}
	lookup := NewPoolLookup(wl, pairs)

	triggerPool := &pool.ConstantProductState{
		PoolAddress: addr("0x11"), Token0: token0, Token1: token1,
		Decimals0: 18, Decimals1: 6,
		Reserve0: big.NewInt(1_000_000_000_000_000_000_000), Reserve1: big.NewInt(2_000_000_000_000),
		LastUpdateBlock: 100,
	}
	richerPool := &pool.ConstantProductState{
		PoolAddress: addr("0x12"), Token0: token0, Token1: token1,
		Decimals0: 18, Decimals1: 6,
		Reserve0: big.NewInt(1_000_000_000_000_000_000_000), Reserve1: big.NewInt(2_300_000_000_000),
		LastUpdateBlock: 100,
	}
	src := &fakePoolSource{
		byKey: map[pool.PoolKey]pool.PoolState{
			{Venue: "venueA", Pair: "WETH-USDC"}: triggerPool,
			{Venue: "venueB", Pair: "WETH-USDC"}: richerPool,
		},
		byPair: map[pool.PairSymbol][]pool.PoolState{
			"WETH-USDC": {triggerPool, richerPool},
		},
	}

	m := New(d, lookup, src, wl, pairs, Config{
		MinSpreadMarginBps:  10,
		MinProfitUSD:        big.NewFloat(0.01),
		EstimatedGasCostUSD: big.NewFloat(0),
		MaxSignalAge:        10 * time.Second,
	}, nil)

	calldata := buildExactInputSingleCalldata(t, d, token0, token1, 3000, 1_000_000_000_000_000_000)
	tx := PendingTx{Hash: common.HexToHash("0x1234"), Data: calldata, Value: big.NewInt(0), SeenAt: time.Now()}

	opps := m.Handle(tx)
	require.NotEmpty(t, opps)
	assert.Equal(t, tx.Hash.Hex(), opps[0].TriggerTxID)
	assert.Equal(t, 1, m.Accuracy.Len())
}

func TestMonitor_Handle_DiscardsStaleSignal(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)
	wl := whitelistJSON(t, ``)
	m := New(d, NewPoolLookup(wl, nil), &fakePoolSource{}, wl, nil, Config{MaxSignalAge: 10 * time.Second}, nil)

	calldata := buildExactInputSingleCalldata(t, d, addr("0x01"), addr("0x02"), 3000, 100)
	tx := PendingTx{Hash: common.HexToHash("0x01"), Data: calldata, SeenAt: time.Now().Add(-1 * time.Minute)}

	assert.Empty(t, m.Handle(tx))
}

func TestMonitor_Handle_UnknownPoolProducesNoOpportunity(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)
	wl := whitelistJSON(t, ``)
	m := New(d, NewPoolLookup(wl, nil), &fakePoolSource{}, wl, nil, Config{MaxSignalAge: 10 * time.Second}, nil)

	calldata := buildExactInputSingleCalldata(t, d, addr("0x01"), addr("0x02"), 3000, 100)
	tx := PendingTx{Hash: common.HexToHash("0x01"), Data: calldata, SeenAt: time.Now()}

	assert.Empty(t, m.Handle(tx))
}
