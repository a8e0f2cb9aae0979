package mempool

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func addr(s string) common.Address { return common.HexToAddress(s) }

func TestDecode_ExactInputSingle(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	method, ok := d.abi.Methods["exactInputSingle"]
	require.True(t, ok)

	tokenIn, tokenOut := addr("0x01"), addr("0x02")
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
		TokenIn: tokenIn, TokenOut: tokenOut, Fee: big.NewInt(3000),
		Recipient: addr("0x03"), Deadline: big.NewInt(9999),
		AmountIn: big.NewInt(1_000_000), AmountOutMinimum: big.NewInt(1), SqrtPriceLimitX96: big.NewInt(0),
	})
	require.NoError(t, err)
	calldata := append(method.ID, packed...)

	legs, err := d.Decode(calldata, nil)
	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.Equal(t, KindConcentratedLiquidity, legs[0].Kind)
	assert.Equal(t, tokenIn, legs[0].TokenIn)
	assert.Equal(t, tokenOut, legs[0].TokenOut)
	assert.Equal(t, big.NewInt(1_000_000), legs[0].AmountIn)
	assert.Equal(t, uint32(3000), legs[0].FeeTier)
}

func TestDecode_SwapExactTokensForTokens(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	method := d.abi.Methods["swapExactTokensForTokens"]
	path := []common.Address{addr("0x01"), addr("0x02"), addr("0x04")}
	packed, err := method.Inputs.Pack(big.NewInt(500), big.NewInt(1), path, addr("0x05"), big.NewInt(123))
	require.NoError(t, err)
	calldata := append(method.ID, packed...)

	legs, err := d.Decode(calldata, nil)
	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.Equal(t, KindConstantProduct, legs[0].Kind)
	assert.Equal(t, addr("0x01"), legs[0].TokenIn)
	assert.Equal(t, addr("0x04"), legs[0].TokenOut)
	assert.Equal(t, big.NewInt(500), legs[0].AmountIn)
}

func TestDecode_MulticallRecurses(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)

	single := d.abi.Methods["exactInputSingle"]
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
	innerPacked, err := single.Inputs.Pack(params{
		TokenIn: addr("0x01"), TokenOut: addr("0x02"), Fee: big.NewInt(500),
		Recipient: addr("0x03"), Deadline: big.NewInt(1), AmountIn: big.NewInt(42),
		AmountOutMinimum: big.NewInt(1), SqrtPriceLimitX96: big.NewInt(0),
	})
	require.NoError(t, err)
	innerCall := append(single.ID, innerPacked...)

	multi := d.abi.Methods["multicall"]
	outerPacked, err := multi.Inputs.Pack([][]byte{innerCall})
	require.NoError(t, err)
	calldata := append(multi.ID, outerPacked...)

	legs, err := d.Decode(calldata, nil)
	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.Equal(t, big.NewInt(42), legs[0].AmountIn)
}

func TestDecode_UnrecognizedSelectorIsNotAnError(t *testing.T) {
	d, err := NewDecoder()
	require.NoError(t, err)
	legs, err := d.Decode([]byte{0xde, 0xad, 0xbe, 0xef, 0x01}, nil)
	require.NoError(t, err)
	assert.Empty(t, legs)
}

func TestDecodeFirstHop_RejectsShortPath(t *testing.T) {
	_, _, _, ok := decodeFirstHop([]byte{1, 2, 3})
	assert.False(t, ok)
}
