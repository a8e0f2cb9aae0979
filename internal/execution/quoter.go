package execution

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
	"github.com/strongca22-cpu/dexarb-sub003/pkg/contractclient"
)

// quoterV2ABIJSON is the read-only subset of Uniswap's QuoterV2 this repo
// calls: a single-hop exact-in quote against a concentrated-liquidity pool.
const quoterV2ABIJSON = `[
  {"name":"quoteExactInputSingle","type":"function","stateMutability":"nonpayable","inputs":[{"name":"params","type":"tuple","components":[
    {"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"amountIn","type":"uint256"},
    {"name":"fee","type":"uint24"},{"name":"sqrtPriceLimitX96","type":"uint160"}
  ]}],"outputs":[
    {"name":"amountOut","type":"uint256"},{"name":"sqrtPriceX96After","type":"uint160"},
    {"name":"initializedTicksCrossed","type":"uint32"},{"name":"gasEstimate","type":"uint256"}
  ]}
]`

// routerV2ABIJSON is the constant-product router's read-only path quote.
const routerV2ABIJSON = `[
  {"name":"getAmountsOut","type":"function","stateMutability":"view","inputs":[
    {"name":"amountIn","type":"uint256"},{"name":"path","type":"address[]"}
  ],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

// FamilyQuoter dispatches QuoteExactIn to a per-router-family read-only
// quote call, building and caching one contractclient.ContractClient per
// router address it is asked about (spec §4.H step 1: "a V3-style
// QuoterV2 call for a concentrated-liquidity router, a reserve read for a
// constant-product router").
type FamilyQuoter struct {
	eth *ethclient.Client

	quoterV2ABI abi.ABI
	routerV2ABI abi.ABI

	mu      sync.Mutex
	clients map[familyRouter]contractclient.ContractClient
}

type familyRouter struct {
	family pool.Family
	router common.Address
}

// NewFamilyQuoter parses both router ABIs once at startup.
func NewFamilyQuoter(eth *ethclient.Client) (*FamilyQuoter, error) {
	quoterV2ABI, err := abi.JSON(strings.NewReader(quoterV2ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("execution: parse quoterV2 ABI: %w", err)
	}
	routerV2ABI, err := abi.JSON(strings.NewReader(routerV2ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("execution: parse routerV2 ABI: %w", err)
	}
	return &FamilyQuoter{
		eth: eth, quoterV2ABI: quoterV2ABI, routerV2ABI: routerV2ABI,
		clients: make(map[familyRouter]contractclient.ContractClient),
	}, nil
}

// QuoteExactIn implements Quoter, dispatching on the same fee-sentinel
// convention EncodeFee uses to pick the executor's routing path
// (ConstantProductSentinel means "ignore fee, read reserves").
func (q *FamilyQuoter) QuoteExactIn(ctx context.Context, router, tokenIn, tokenOut common.Address, fee *big.Int, amountIn *big.Int) (*big.Int, error) {
	if fee != nil && fee.IsUint64() && fee.Uint64() == uint64(ConstantProductSentinel) {
		return q.quoteConstantProduct(router, tokenIn, tokenOut, amountIn)
	}
	return q.quoteConcentrated(router, tokenIn, tokenOut, fee, amountIn)
}

func (q *FamilyQuoter) quoteConcentrated(router, tokenIn, tokenOut common.Address, fee *big.Int, amountIn *big.Int) (*big.Int, error) {
	client := q.clientFor(pool.FamilyConcentratedLiquidity, router, q.quoterV2ABI)
	params := struct {
		TokenIn           common.Address
		TokenOut          common.Address
		AmountIn          *big.Int
		Fee               *big.Int
		SqrtPriceLimitX96 *big.Int
	}{tokenIn, tokenOut, amountIn, fee, big.NewInt(0)}
	outputs, err := client.Call(nil, "quoteExactInputSingle", params)
	if err != nil {
		return nil, fmt.Errorf("execution: quoteExactInputSingle: %w", err)
	}
	amountOut, ok := outputs[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("execution: quoteExactInputSingle: unexpected output type")
	}
	return amountOut, nil
}

func (q *FamilyQuoter) quoteConstantProduct(router, tokenIn, tokenOut common.Address, amountIn *big.Int) (*big.Int, error) {
	client := q.clientFor(pool.FamilyConstantProduct, router, q.routerV2ABI)
	outputs, err := client.Call(nil, "getAmountsOut", amountIn, []common.Address{tokenIn, tokenOut})
	if err != nil {
		return nil, fmt.Errorf("execution: getAmountsOut: %w", err)
	}
	amounts, ok := outputs[0].([]*big.Int)
	if !ok || len(amounts) < 2 {
		return nil, fmt.Errorf("execution: getAmountsOut: unexpected output shape")
	}
	return amounts[len(amounts)-1], nil
}

func (q *FamilyQuoter) clientFor(family pool.Family, router common.Address, contractABI abi.ABI) contractclient.ContractClient {
	key := familyRouter{family: family, router: router}
	q.mu.Lock()
	defer q.mu.Unlock()
	if client, ok := q.clients[key]; ok {
		return client
	}
	client := contractclient.NewContractClient(q.eth, router, contractABI)
	q.clients[key] = client
	return client
}
