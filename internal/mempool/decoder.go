// Package mempool implements spec component E: the pending-transaction
// monitor and its single-tick swap simulator. Grounded on
// pkg/contractclient's abi.MethodById/Unpack pattern (the reference repo's
// only prior calldata-decoding code), extended here from "call our own
// contract" to "decode an arbitrary router's pending call".
package mempool

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// routerABIJSON covers every router call shape spec §4.E names: the
// concentrated-liquidity single/multi-hop exact-in/out pair, its
// Algebra-style (no static fee field) sibling, batch multicall, and the
// constant-product exact-in/out pair including ETH variants.
const routerABIJSON = `[
  {"name":"exactInputSingle","type":"function","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
    {"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"fee","type":"uint24"},
    {"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},
    {"name":"amountIn","type":"uint256"},{"name":"amountOutMinimum","type":"uint256"},{"name":"sqrtPriceLimitX96","type":"uint160"}
  ]}],"outputs":[{"name":"amountOut","type":"uint256"}]},
  {"name":"exactOutputSingle","type":"function","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
    {"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},{"name":"fee","type":"uint24"},
    {"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},
    {"name":"amountOut","type":"uint256"},{"name":"amountInMaximum","type":"uint256"},{"name":"sqrtPriceLimitX96","type":"uint160"}
  ]}],"outputs":[{"name":"amountIn","type":"uint256"}]},
  {"name":"exactInput","type":"function","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
    {"name":"path","type":"bytes"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},
    {"name":"amountIn","type":"uint256"},{"name":"amountOutMinimum","type":"uint256"}
  ]}],"outputs":[{"name":"amountOut","type":"uint256"}]},
  {"name":"exactOutput","type":"function","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
    {"name":"path","type":"bytes"},{"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},
    {"name":"amountOut","type":"uint256"},{"name":"amountInMaximum","type":"uint256"}
  ]}],"outputs":[{"name":"amountIn","type":"uint256"}]},
  {"name":"multicall","type":"function","stateMutability":"payable","inputs":[{"name":"data","type":"bytes[]"}],"outputs":[{"name":"results","type":"bytes[]"}]},
  {"name":"algebraExactInputSingle","type":"function","stateMutability":"payable","inputs":[{"name":"params","type":"tuple","components":[
    {"name":"tokenIn","type":"address"},{"name":"tokenOut","type":"address"},
    {"name":"recipient","type":"address"},{"name":"deadline","type":"uint256"},
    {"name":"amountIn","type":"uint256"},{"name":"amountOutMinimum","type":"uint256"},{"name":"limitSqrtPrice","type":"uint160"}
  ]}],"outputs":[{"name":"amountOut","type":"uint256"}]},
  {"name":"swapExactTokensForTokens","type":"function","stateMutability":"nonpayable","inputs":[
    {"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},
    {"name":"to","type":"address"},{"name":"deadline","type":"uint256"}
  ],"outputs":[{"name":"amounts","type":"uint256[]"}]},
  {"name":"swapTokensForExactTokens","type":"function","stateMutability":"nonpayable","inputs":[
    {"name":"amountOut","type":"uint256"},{"name":"amountInMax","type":"uint256"},{"name":"path","type":"address[]"},
    {"name":"to","type":"address"},{"name":"deadline","type":"uint256"}
  ],"outputs":[{"name":"amounts","type":"uint256[]"}]},
  {"name":"swapExactETHForTokens","type":"function","stateMutability":"payable","inputs":[
    {"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},
    {"name":"to","type":"address"},{"name":"deadline","type":"uint256"}
  ],"outputs":[{"name":"amounts","type":"uint256[]"}]},
  {"name":"swapExactTokensForETH","type":"function","stateMutability":"nonpayable","inputs":[
    {"name":"amountIn","type":"uint256"},{"name":"amountOutMin","type":"uint256"},{"name":"path","type":"address[]"},
    {"name":"to","type":"address"},{"name":"deadline","type":"uint256"}
  ],"outputs":[{"name":"amounts","type":"uint256[]"}]},
  {"name":"swapETHForExactTokens","type":"function","stateMutability":"payable","inputs":[
    {"name":"amountOut","type":"uint256"},{"name":"path","type":"address[]"},
    {"name":"to","type":"address"},{"name":"deadline","type":"uint256"}
  ],"outputs":[{"name":"amounts","type":"uint256[]"}]},
  {"name":"swapTokensForExactETH","type":"function","stateMutability":"nonpayable","inputs":[
    {"name":"amountOut","type":"uint256"},{"name":"amountInMax","type":"uint256"},{"name":"path","type":"address[]"},
    {"name":"to","type":"address"},{"name":"deadline","type":"uint256"}
  ],"outputs":[{"name":"amounts","type":"uint256[]"}]}
]`

// SwapKind records the router family of a decoded call. The monitor picks
// its simulation formula from the resolved pool's state type, not from this
// field.
type SwapKind int

const (
	KindConstantProduct SwapKind = iota
	KindConcentratedLiquidity
)

// DecodedSwap is one leg of a pending transaction's effect: spec §4.E
// "token_in, token_out, amount_in (or amount_out_min), fee_tier".
type DecodedSwap struct {
	Kind         SwapKind
	TokenIn      common.Address
	TokenOut     common.Address
	AmountIn     *big.Int // nil when the call only bounds amount_out (exact-output)
	AmountOutMin *big.Int // amount_out for exact-output calls, amount_out_min for exact-input
	FeeTier      uint32   // 0 for constant-product and Algebra-style dynamic-fee pools
}

// Decoder decodes pending calldata against the router ABI shapes spec §4.E
// enumerates, including recursive multicall batches.
type Decoder struct {
	abi abi.ABI
}

// NewDecoder parses the fixed router ABI once at startup.
func NewDecoder() (*Decoder, error) {
	parsed, err := abi.JSON(strings.NewReader(routerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("mempool: parse router abi: %w", err)
	}
	return &Decoder{abi: parsed}, nil
}

// Decode extracts every swap leg from calldata, recursing into multicall
// batches (spec §4.E "batch-multicall (recursive)"). msgValue is the
// pending transaction's value field, substituted as amount_in for the
// ETH-in variants whose ABI carries no explicit amountIn parameter.
func (d *Decoder) Decode(calldata []byte, msgValue *big.Int) ([]DecodedSwap, error) {
	if len(calldata) < 4 {
		return nil, nil
	}
	method, err := d.abi.MethodById(calldata[:4])
	if err != nil {
		return nil, nil // unrecognized selector: not a swap we track, not an error
	}
	args, err := method.Inputs.Unpack(calldata[4:])
	if err != nil {
		return nil, fmt.Errorf("mempool: unpack %s: %w", method.Name, err)
	}

	switch method.Name {
	case "exactInputSingle":
		p := args[0].(struct {
			TokenIn           common.Address `json:"tokenIn"`
			TokenOut          common.Address `json:"tokenOut"`
			Fee               *big.Int       `json:"fee"`
			Recipient         common.Address `json:"recipient"`
			Deadline          *big.Int       `json:"deadline"`
			AmountIn          *big.Int       `json:"amountIn"`
			AmountOutMinimum  *big.Int       `json:"amountOutMinimum"`
			SqrtPriceLimitX96 *big.Int       `json:"sqrtPriceLimitX96"`
		})
		return []DecodedSwap{{
			Kind: KindConcentratedLiquidity, TokenIn: p.TokenIn, TokenOut: p.TokenOut,
			AmountIn: p.AmountIn, AmountOutMin: p.AmountOutMinimum, FeeTier: uint32(p.Fee.Uint64()),
		}}, nil

	case "algebraExactInputSingle":
		p := args[0].(struct {
			TokenIn          common.Address `json:"tokenIn"`
			TokenOut         common.Address `json:"tokenOut"`
			Recipient        common.Address `json:"recipient"`
			Deadline         *big.Int       `json:"deadline"`
			AmountIn         *big.Int       `json:"amountIn"`
			AmountOutMinimum *big.Int       `json:"amountOutMinimum"`
			LimitSqrtPrice   *big.Int       `json:"limitSqrtPrice"`
		})
		return []DecodedSwap{{
			Kind: KindConcentratedLiquidity, TokenIn: p.TokenIn, TokenOut: p.TokenOut,
			AmountIn: p.AmountIn, AmountOutMin: p.AmountOutMinimum, FeeTier: 0,
		}}, nil

	case "exactOutputSingle":
		p := args[0].(struct {
			TokenIn           common.Address `json:"tokenIn"`
			TokenOut          common.Address `json:"tokenOut"`
			Fee               *big.Int       `json:"fee"`
			Recipient         common.Address `json:"recipient"`
			Deadline          *big.Int       `json:"deadline"`
			AmountOut         *big.Int       `json:"amountOut"`
			AmountInMaximum   *big.Int       `json:"amountInMaximum"`
			SqrtPriceLimitX96 *big.Int       `json:"sqrtPriceLimitX96"`
		})
		return []DecodedSwap{{
			Kind: KindConcentratedLiquidity, TokenIn: p.TokenIn, TokenOut: p.TokenOut,
			AmountOutMin: p.AmountOut, FeeTier: uint32(p.Fee.Uint64()),
		}}, nil

	case "exactInput":
		p := args[0].(struct {
			Path             []byte         `json:"path"`
			Recipient        common.Address `json:"recipient"`
			Deadline         *big.Int       `json:"deadline"`
			AmountIn         *big.Int       `json:"amountIn"`
			AmountOutMinimum *big.Int       `json:"amountOutMinimum"`
		})
		tokenIn, tokenOut, fee, ok := decodeFirstHop(p.Path)
		if !ok {
			return nil, nil
		}
		return []DecodedSwap{{
			Kind: KindConcentratedLiquidity, TokenIn: tokenIn, TokenOut: tokenOut,
			AmountIn: p.AmountIn, AmountOutMin: p.AmountOutMinimum, FeeTier: fee,
		}}, nil

	case "exactOutput":
		p := args[0].(struct {
			Path            []byte         `json:"path"`
			Recipient       common.Address `json:"recipient"`
			Deadline        *big.Int       `json:"deadline"`
			AmountOut       *big.Int       `json:"amountOut"`
			AmountInMaximum *big.Int       `json:"amountInMaximum"`
		})
		// exactOutput's path is reversed (tokenOut..tokenIn); the first hop
		// we recover is the last hop actually executed on-chain.
		tokenOut, tokenIn, fee, ok := decodeFirstHop(p.Path)
		if !ok {
			return nil, nil
		}
		return []DecodedSwap{{
			Kind: KindConcentratedLiquidity, TokenIn: tokenIn, TokenOut: tokenOut,
			AmountOutMin: p.AmountOut, FeeTier: fee,
		}}, nil

	case "multicall":
		batches := args[0].([][]byte)
		var out []DecodedSwap
		for _, inner := range batches {
			legs, err := d.Decode(inner, nil)
			if err != nil {
				continue // one malformed inner call doesn't invalidate the batch
			}
			out = append(out, legs...)
		}
		return out, nil

	case "swapExactTokensForTokens", "swapExactTokensForETH":
		amountIn := args[0].(*big.Int)
		amountOutMin := args[1].(*big.Int)
		path := args[2].([]common.Address)
		return constantProductLeg(path, amountIn, amountOutMin)

	case "swapTokensForExactTokens", "swapTokensForExactETH":
		amountOut := args[0].(*big.Int)
		path := args[2].([]common.Address)
		return constantProductLeg(path, nil, amountOut)

	case "swapExactETHForTokens":
		amountOutMin := args[0].(*big.Int)
		path := args[1].([]common.Address)
		return constantProductLeg(path, msgValue, amountOutMin)

	case "swapETHForExactTokens":
		amountOut := args[0].(*big.Int)
		path := args[1].([]common.Address)
		return constantProductLeg(path, nil, amountOut)

	default:
		return nil, nil
	}
}

func constantProductLeg(path []common.Address, amountIn, amountBound *big.Int) ([]DecodedSwap, error) {
	if len(path) < 2 {
		return nil, nil
	}
	return []DecodedSwap{{
		Kind: KindConstantProduct, TokenIn: path[0], TokenOut: path[len(path)-1],
		AmountIn: amountIn, AmountOutMin: amountBound,
	}}, nil
}

// decodeFirstHop parses a V3-style packed path: address(20) | fee(3) |
// address(20) | fee(3) | ... | address(20), returning the first hop's
// token_in, token_out and fee_tier (spec §4.E "packed path").
func decodeFirstHop(path []byte) (tokenIn, tokenOut common.Address, feeTier uint32, ok bool) {
	const hopSize = 23 // 20-byte address + 3-byte fee
	if len(path) < hopSize+20 {
		return common.Address{}, common.Address{}, 0, false
	}
	tokenIn = common.BytesToAddress(path[0:20])
	feeTier = uint32(path[20])<<16 | uint32(path[21])<<8 | uint32(path[22])
	tokenOut = common.BytesToAddress(path[23:43])
	return tokenIn, tokenOut, feeTier, true
}
