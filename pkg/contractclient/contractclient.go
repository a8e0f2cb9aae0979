// Package contractclient wraps a single on-chain contract (address + ABI)
// behind a small call/send/decode surface. The reference repo's
// blackhole.go declares the ContractClient interface and exercises it
// (contractclient.NewContractClient(client, addr, abi), then .Call(...),
// .TransactionData(...), .DecodeTransaction(...)) but ships no
// implementation file — only pkg/contractclient/contractclient_test.go.
// This file supplies the implementation those usages imply.
package contractclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ContractClient is the per-contract call/send boundary: pool-state reads
// (internal/chainsync) and the execution pipeline's submit/quote calls
// (internal/execution) depend on this interface rather than on
// *ethclient.Client directly. internal/mempool does not use it; it decodes
// pending calldata with its own router ABI.
type ContractClient interface {
	Abi() abi.ABI
	ContractAddress() common.Address
	// Call performs a read-only eth_call to method with args, decoding the
	// ABI-declared outputs. caller may be nil for an anonymous call.
	Call(caller *common.Address, method string, args ...interface{}) ([]interface{}, error)
	// Send signs and submits a transaction invoking method with args using
	// key, returning the submitted transaction hash.
	Send(ctx context.Context, key *ecdsa.PrivateKey, method string, value *big.Int, args ...interface{}) (common.Hash, error)
	// TransactionData fetches the raw calldata of a (possibly still
	// pending) transaction by hash.
	TransactionData(ctx context.Context, txHash common.Hash) ([]byte, error)
	// DecodeTransaction decodes raw calldata into its method name and
	// ABI-typed argument list.
	DecodeTransaction(data []byte) (method string, args []interface{}, err error)
	// DecodeTransactionHex is a convenience wrapper accepting 0x-prefixed hex.
	DecodeTransactionHex(hexData string) (method string, args []interface{}, err error)
	// SendRaw builds, signs and submits a transaction using caller-supplied
	// nonce and gas fields, skipping the RPC round-trips Send performs
	// internally. internal/execution uses this to pre-fill nonce from its
	// own cached counter and gas fields from its own cached base fee
	// (spec §4.H step 2: "avoid an extra gas-price RPC").
	SendRaw(ctx context.Context, key *ecdsa.PrivateKey, method string, value *big.Int, params TxParams, args ...interface{}) (common.Hash, error)
	// EstimateGas packs method/args and estimates gas without submitting
	// (spec §4.H step 3, the block-reactive path's own estimation step).
	EstimateGas(ctx context.Context, from common.Address, value *big.Int, method string, args ...interface{}) (uint64, error)
	// PendingNonceAt is the one RPC the execution pipeline's nonce cache
	// calls, exactly once at startup (spec §4.H step 2: "initialized once").
	PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error)
	// LatestBaseFee reads the most recent block header's base fee, cached
	// by the caller to avoid a gas-price RPC per submission (spec §4.H step 2).
	LatestBaseFee(ctx context.Context) (*big.Int, error)
	// TransactionReceipt fetches a mined transaction's receipt, used to
	// classify a submission's outcome (spec §4.H step 5).
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	// ReplayAt re-runs method/args as a read-only eth_call pinned to
	// blockNumber (nil = latest) and returns the raw revert data on
	// failure, the standard go-ethereum idiom for decoding a custom
	// revert error after receiving a failed receipt.
	ReplayAt(ctx context.Context, from *common.Address, blockNumber *big.Int, method string, args ...interface{}) ([]byte, error)
}

// TxParams carries the caller-computed nonce and gas fields SendRaw needs.
type TxParams struct {
	Nonce     uint64
	GasTipCap *big.Int
	GasFeeCap *big.Int
	GasLimit  uint64
}

type client struct {
	eth     *ethclient.Client
	address common.Address
	abi     abi.ABI
	chainID *big.Int
}

// NewContractClient binds address/contractABI to eth for subsequent
// Call/Send/decode operations.
func NewContractClient(eth *ethclient.Client, address common.Address, contractABI abi.ABI) ContractClient {
	return &client{eth: eth, address: address, abi: contractABI}
}

func (c *client) Abi() abi.ABI                     { return c.abi }
func (c *client) ContractAddress() common.Address  { return c.address }

func (c *client) Call(caller *common.Address, method string, args ...interface{}) ([]interface{}, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("contractclient: pack %s: %w", method, err)
	}
	msg := ethereumCallMsg(caller, c.address, input)
	output, err := c.eth.CallContract(context.Background(), msg, nil)
	if err != nil {
		return nil, fmt.Errorf("contractclient: call %s: %w", method, err)
	}
	outputs, err := c.abi.Unpack(method, output)
	if err != nil {
		return nil, fmt.Errorf("contractclient: unpack %s: %w", method, err)
	}
	return outputs, nil
}

func (c *client) Send(ctx context.Context, key *ecdsa.PrivateKey, method string, value *big.Int, args ...interface{}) (common.Hash, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: pack %s: %w", method, err)
	}

	from := crypto.PubkeyToAddress(key.PublicKey)
	nonce, err := c.eth.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: nonce for %s: %w", from.Hex(), err)
	}
	if c.chainID == nil {
		chainID, err := c.eth.ChainID(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("contractclient: chain id: %w", err)
		}
		c.chainID = chainID
	}
	tipCap, err := c.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: suggest tip: %w", err)
	}
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: head header: %w", err)
	}
	feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	if value == nil {
		value = big.NewInt(0)
	}
	callMsg := ethereumCallMsg(&from, c.address, input)
	gasLimit, err := c.eth.EstimateGas(ctx, callMsg)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: estimate gas %s: %w", method, err)
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tipCap,
		GasFeeCap: feeCap,
		Gas:       gasLimit,
		To:        &c.address,
		Value:     value,
		Data:      input,
	})

	signer := types.LatestSignerForChainID(c.chainID)
	signedTx, err := types.SignTx(tx, signer, key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: sign %s: %w", method, err)
	}
	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: send %s: %w", method, err)
	}
	return signedTx.Hash(), nil
}

func (c *client) SendRaw(ctx context.Context, key *ecdsa.PrivateKey, method string, value *big.Int, params TxParams, args ...interface{}) (common.Hash, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: pack %s: %w", method, err)
	}
	if c.chainID == nil {
		chainID, err := c.eth.ChainID(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("contractclient: chain id: %w", err)
		}
		c.chainID = chainID
	}
	if value == nil {
		value = big.NewInt(0)
	}
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     params.Nonce,
		GasTipCap: params.GasTipCap,
		GasFeeCap: params.GasFeeCap,
		Gas:       params.GasLimit,
		To:        &c.address,
		Value:     value,
		Data:      input,
	})
	signer := types.LatestSignerForChainID(c.chainID)
	signedTx, err := types.SignTx(tx, signer, key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: sign %s: %w", method, err)
	}
	if err := c.eth.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("contractclient: send %s: %w", method, err)
	}
	return signedTx.Hash(), nil
}

func (c *client) EstimateGas(ctx context.Context, from common.Address, value *big.Int, method string, args ...interface{}) (uint64, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return 0, fmt.Errorf("contractclient: pack %s: %w", method, err)
	}
	msg := ethereumCallMsg(&from, c.address, input)
	msg.Value = value
	gas, err := c.eth.EstimateGas(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("contractclient: estimate gas %s: %w", method, err)
	}
	return gas, nil
}

func (c *client) PendingNonceAt(ctx context.Context, addr common.Address) (uint64, error) {
	nonce, err := c.eth.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, fmt.Errorf("contractclient: pending nonce for %s: %w", addr.Hex(), err)
	}
	return nonce, nil
}

func (c *client) LatestBaseFee(ctx context.Context) (*big.Int, error) {
	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("contractclient: head header: %w", err)
	}
	return head.BaseFee, nil
}

func (c *client) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	receipt, err := c.eth.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("contractclient: receipt %s: %w", txHash.Hex(), err)
	}
	return receipt, nil
}

// revertDataError matches the subset of go-ethereum's rpc.DataError that
// carries raw revert bytes alongside the JSON-RPC error.
type revertDataError interface {
	ErrorData() interface{}
}

func (c *client) ReplayAt(ctx context.Context, from *common.Address, blockNumber *big.Int, method string, args ...interface{}) ([]byte, error) {
	input, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("contractclient: pack %s: %w", method, err)
	}
	msg := ethereumCallMsg(from, c.address, input)
	_, callErr := c.eth.CallContract(ctx, msg, blockNumber)
	if callErr == nil {
		return nil, nil
	}
	dataErr, ok := callErr.(revertDataError)
	if !ok {
		return nil, fmt.Errorf("contractclient: replay %s: %w", method, callErr)
	}
	switch data := dataErr.ErrorData().(type) {
	case string:
		return hexutil.Decode(data)
	case []byte:
		return data, nil
	default:
		return nil, fmt.Errorf("contractclient: replay %s: unrecognized revert data shape %T", method, data)
	}
}

func (c *client) TransactionData(ctx context.Context, txHash common.Hash) ([]byte, error) {
	tx, _, err := c.eth.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, fmt.Errorf("contractclient: fetch tx %s: %w", txHash.Hex(), err)
	}
	return tx.Data(), nil
}

func (c *client) DecodeTransaction(data []byte) (string, []interface{}, error) {
	if len(data) < 4 {
		return "", nil, fmt.Errorf("contractclient: calldata too short (%d bytes)", len(data))
	}
	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return "", nil, fmt.Errorf("contractclient: unknown selector %x: %w", data[:4], err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return "", nil, fmt.Errorf("contractclient: unpack %s args: %w", method.Name, err)
	}
	return method.Name, args, nil
}

func (c *client) DecodeTransactionHex(hexData string) (string, []interface{}, error) {
	if !strings.HasPrefix(hexData, "0x") {
		hexData = "0x" + hexData
	}
	data, err := hexutil.Decode(hexData)
	if err != nil {
		return "", nil, fmt.Errorf("contractclient: decode hex: %w", err)
	}
	return c.DecodeTransaction(data)
}

func ethereumCallMsg(from *common.Address, to common.Address, data []byte) ethereum.CallMsg {
	msg := ethereum.CallMsg{To: &to, Data: data}
	if from != nil {
		msg.From = *from
	}
	return msg
}
