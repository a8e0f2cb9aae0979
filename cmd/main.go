package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/strongca22-cpu/dexarb-sub003/configs"
	"github.com/strongca22-cpu/dexarb-sub003/internal/chainfeed"
	"github.com/strongca22-cpu/dexarb-sub003/internal/chainsync"
	"github.com/strongca22-cpu/dexarb-sub003/internal/cooldown"
	"github.com/strongca22-cpu/dexarb-sub003/internal/detector"
	"github.com/strongca22-cpu/dexarb-sub003/internal/engine"
	"github.com/strongca22-cpu/dexarb-sub003/internal/execution"
	"github.com/strongca22-cpu/dexarb-sub003/internal/hybridcache"
	"github.com/strongca22-cpu/dexarb-sub003/internal/mempool"
	"github.com/strongca22-cpu/dexarb-sub003/internal/persist"
	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
	"github.com/strongca22-cpu/dexarb-sub003/internal/poolstate"
	"github.com/strongca22-cpu/dexarb-sub003/pkg/contractclient"
	"github.com/strongca22-cpu/dexarb-sub003/pkg/util"
)

// chainReadABIJSON covers every read method chainsync's synchronizer calls
// against either a pool contract (token0/token1/getReserves/slot0/
// liquidity) or an ERC20 token contract (decimals), across both pool
// families it supports.
const chainReadABIJSON = `[
  {"name":"token0","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"name":"token1","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
  {"name":"getReserves","type":"function","stateMutability":"view","inputs":[],"outputs":[
    {"name":"reserve0","type":"uint112"},{"name":"reserve1","type":"uint112"},{"name":"blockTimestampLast","type":"uint32"}
  ]},
  {"name":"slot0","type":"function","stateMutability":"view","inputs":[],"outputs":[
    {"name":"sqrtPriceX96","type":"uint160"},{"name":"tick","type":"int24"},{"name":"observationIndex","type":"uint16"},
    {"name":"observationCardinality","type":"uint16"},{"name":"observationCardinalityNext","type":"uint16"},
    {"name":"feeProtocol","type":"uint8"},{"name":"unlocked","type":"bool"}
  ]},
  {"name":"liquidity","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint128"}]},
  {"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]}
]`

func main() {
	_ = godotenv.Load()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	encryptedPk := os.Getenv("ENC_PK")
	if encryptedPk == "" {
		logger.Fatal("ENC_PK not set")
	}
	key := os.Getenv("KEY")
	if key == "" {
		logger.Fatal("KEY not set")
	}

	pkHex, err := util.Decrypt([]byte(key), encryptedPk)
	if err != nil {
		logger.Fatal("decrypt wallet signing key", zap.Error(err))
	}
	signer, err := crypto.HexToECDSA(strings.TrimPrefix(pkHex, "0x"))
	if err != nil {
		logger.Fatal("parse wallet signing key", zap.Error(err))
	}
	signerAddr := crypto.PubkeyToAddress(signer.PublicKey)

	conf, err := configs.LoadConfig("configs/config.yml")
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	whitelist, err := pool.LoadWhitelist(conf.WhitelistPath)
	if err != nil {
		logger.Fatal("load whitelist", zap.Error(err))
	}
	pairs := conf.ToTokenPairs()
	routers := conf.ToRouters()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rpcClient, err := rpc.DialContext(ctx, conf.RPCSubscription)
	if err != nil {
		logger.Fatal("dial subscription RPC", zap.Error(err))
	}
	subClient := ethclient.NewClient(rpcClient)
	execClient, err := ethclient.Dial(conf.RPCExecution)
	if err != nil {
		logger.Fatal("dial execution RPC", zap.Error(err))
	}

	chainABI, err := abi.JSON(strings.NewReader(chainReadABIJSON))
	if err != nil {
		logger.Fatal("parse chain-read ABI", zap.Error(err))
	}
	clients := buildChainClients(execClient, chainABI, whitelist, pairs)

	limit := conf.RPCRateLimitPerSec
	if limit <= 0 {
		limit = 10
	}
	limiter := rate.NewLimiter(rate.Limit(limit), int(limit))

	manager := poolstate.NewManager()
	synchronizer := chainsync.NewSynchronizer(execClient, manager, whitelist, clients, limiter, logger)

	det := detector.New(manager, whitelist, pairs, conf.ToDetectorConfig())

	decoder, err := mempool.NewDecoder()
	if err != nil {
		logger.Fatal("build mempool decoder", zap.Error(err))
	}
	lookup := mempool.NewPoolLookup(whitelist, pairs)
	monitor := mempool.New(decoder, lookup, manager, whitelist, pairs, conf.ToMempoolConfig(), logger)

	capacity := conf.Engine.HybridCacheCapacity
	if capacity <= 0 {
		capacity = 256
	}
	hybrid := hybridcache.New(capacity)
	cd := cooldown.New()

	executorAddr := common.HexToAddress(conf.ExecutorAddress)
	executorClient, err := execution.NewExecutorClient(execClient, executorAddr)
	if err != nil {
		logger.Fatal("build executor client", zap.Error(err))
	}
	quoter, err := execution.NewFamilyQuoter(execClient)
	if err != nil {
		logger.Fatal("build quoter", zap.Error(err))
	}

	nonce := execution.NewNonceCache()
	startNonce, err := execClient.PendingNonceAt(ctx, signerAddr)
	if err != nil {
		logger.Fatal("read starting nonce", zap.Error(err))
	}
	nonce.Init(startNonce)
	baseFee := execution.NewBaseFeeCache()

	pipeline := execution.New(executorClient, quoter, signer, nonce, baseFee, cd, conf.ToExecutionConfig(), logger)

	recorder := persist.NewRecorder(conf.PersistDir)
	defer recorder.Close()

	blockFeed := chainfeed.NewBlockFeed(subClient)
	mempoolFeed := chainfeed.NewMempoolFeed(rpcClient)

	eng := engine.New(blockFeed, mempoolFeed, synchronizer, det, monitor, manager, whitelist, hybrid, cd, pipeline, baseFee, executorClient, recorder, conf.ToEngineConfig(routers, pairs), logger)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := eng.Run(sigCtx); err != nil && sigCtx.Err() == nil {
		logger.Fatal("engine stopped", zap.Error(err))
	}
	fmt.Println("shutdown complete")
}

// buildChainClients registers one ContractClient per whitelisted pool
// address plus every configured pair's base/quote token address, the full
// universe chainsync.Synchronizer's ensureTokenInfo/readDecimals calls
// need addressable ahead of time.
func buildChainClients(eth *ethclient.Client, chainABI abi.ABI, whitelist *pool.Whitelist, pairs map[pool.PairSymbol]pool.TokenPair) map[common.Address]contractclient.ContractClient {
	clients := make(map[common.Address]contractclient.ContractClient)
	for _, addr := range whitelist.SyncAddresses() {
		clients[addr] = contractclient.NewContractClient(eth, addr, chainABI)
	}
	for _, pair := range pairs {
		if _, ok := clients[pair.Base]; !ok {
			clients[pair.Base] = contractclient.NewContractClient(eth, pair.Base, chainABI)
		}
		if _, ok := clients[pair.Quote]; !ok {
			clients[pair.Quote] = contractclient.NewContractClient(eth, pair.Quote, chainABI)
		}
	}
	return clients
}
