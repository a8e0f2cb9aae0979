package execution

import (
	"bytes"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/strongca22-cpu/dexarb-sub003/pkg/contractclient"
)

// executorABIJSON declares the single external entry point spec §6
// describes: executeArb(...) -> profit, plus the InsufficientProfit
// custom error the pipeline decodes a failed receipt's revert data
// against.
const executorABIJSON = `[
  {"type":"function","name":"executeArb","stateMutability":"nonpayable",
   "inputs":[
     {"name":"token0","type":"address"},
     {"name":"token1","type":"address"},
     {"name":"routerBuy","type":"address"},
     {"name":"routerSell","type":"address"},
     {"name":"feeBuy","type":"uint24"},
     {"name":"feeSell","type":"uint24"},
     {"name":"amountIn","type":"uint256"},
     {"name":"minProfit","type":"uint256"}
   ],
   "outputs":[{"name":"profit","type":"uint256"}]},
  {"type":"error","name":"InsufficientProfit",
   "inputs":[
     {"name":"actual","type":"uint256"},
     {"name":"required","type":"uint256"}
   ]}
]`

// ParseExecutorABI parses the executor's interface once at startup.
func ParseExecutorABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(executorABIJSON))
}

// NewExecutorClient binds a contractclient.ContractClient to the executor
// contract address, for internal/execution's exclusive use.
func NewExecutorClient(eth *ethclient.Client, address common.Address) (contractclient.ContractClient, error) {
	executorABI, err := ParseExecutorABI()
	if err != nil {
		return nil, err
	}
	return contractclient.NewContractClient(eth, address, executorABI), nil
}

// classifyRevert matches raw revert data against the executor's
// InsufficientProfit custom error (encoded like a function call: 4-byte
// selector + ABI-encoded args) and decodes its two uint256 arguments on a
// match.
func classifyRevert(executorABI abi.ABI, data []byte) (actual, required *big.Int, isInsufficientProfit bool) {
	if len(data) < 4 {
		return nil, nil, false
	}
	errDef, ok := executorABI.Errors["InsufficientProfit"]
	if !ok {
		return nil, nil, false
	}
	if !bytes.Equal(data[:4], errDef.ID[:4]) {
		return nil, nil, false
	}
	vals, err := errDef.Inputs.Unpack(data[4:])
	if err != nil || len(vals) != 2 {
		return nil, nil, false
	}
	actual, _ = vals[0].(*big.Int)
	required, _ = vals[1].(*big.Int)
	return actual, required, actual != nil && required != nil
}
