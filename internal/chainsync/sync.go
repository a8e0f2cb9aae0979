// Package chainsync implements spec component C: the event-driven
// synchronizer. Grounded on the reference repo's blackhole.go
// GetAMMState/safelyGetStateOfAMM pattern (a single ABI-driven call that
// returns a struct of pool fields, parsed into a typed state) generalized
// from one hardcoded pool to whitelist-driven log-query-then-RPC-fallback
// sync across many pools and two pool families.
package chainsync

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
	"github.com/strongca22-cpu/dexarb-sub003/pkg/contractclient"
)

// Event topic hashes the log query filters by (spec §4.C step 2: "filtered
// by ... the two topic hashes of interest").
var (
	// ConstantProductSyncTopic is keccak256("Sync(uint112,uint112)").
	ConstantProductSyncTopic = common.HexToHash("0x1c411e9a96e071241c2f21f7726b17ae89e3cab4c78be50e062b03a9fffbbad1")
	// ConcentratedLiquiditySwapTopic is keccak256("Swap(address,address,int256,int256,uint160,uint128,int24)").
	ConcentratedLiquiditySwapTopic = common.HexToHash("0xc42079f94a6350d7e6235f29174924f928cc2ac818eb64fed8004e115fbcca67")
)

// ChainClient is the subset of *ethclient.Client the synchronizer needs,
// narrowed for testability.
type ChainClient interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error)
}

// Synchronizer keeps internal/poolstate's Manager current by consuming
// block headers (spec §4.C).
type Synchronizer struct {
	client    ChainClient
	manager   Manager
	whitelist *pool.Whitelist
	clients   map[common.Address]contractclient.ContractClient
	limiter   *rate.Limiter
	logger    *zap.Logger

	mu           sync.Mutex
	tokenInfoFor map[common.Address]tokenInfo // first-sync cache, per §4.C
}

// Manager is the narrow poolstate.Manager surface chainsync depends on.
type Manager interface {
	Upsert(key pool.PoolKey, state pool.PoolState)
	Get(key pool.PoolKey) (pool.PoolState, bool)
}

type tokenInfo struct {
	token0, token1     common.Address
	decimals0, decimals1 uint8
}

// NewSynchronizer wires a ChainClient, a poolstate Manager, the whitelist,
// a per-address ContractClient registry, and an RPC rate limiter (spec §5
// "Resource budget").
func NewSynchronizer(client ChainClient, manager Manager, whitelist *pool.Whitelist, clients map[common.Address]contractclient.ContractClient, limiter *rate.Limiter, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		client:       client,
		manager:      manager,
		whitelist:    whitelist,
		clients:      clients,
		limiter:      limiter,
		logger:       logger,
		tokenInfoFor: make(map[common.Address]tokenInfo),
	}
}

// OnBlock runs the per-block protocol of spec §4.C: one log query for
// blockNumber over the whitelisted addresses, decode-and-replace for every
// returned log, and a per-pool RPC fallback over every synced address only
// when the log query itself fails.
func (s *Synchronizer) OnBlock(ctx context.Context, blockNumber uint64) error {
	addrs := s.whitelist.SyncAddresses()
	if len(addrs) == 0 {
		return nil
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(blockNumber),
		ToBlock:   new(big.Int).SetUint64(blockNumber),
		Addresses: addrs,
		Topics:    [][]common.Hash{{ConstantProductSyncTopic, ConcentratedLiquiditySwapTopic}},
	}

	logs, err := s.client.FilterLogs(ctx, query)
	if err != nil {
		s.logger.Warn("log query failed, falling back to per-pool RPC reads", zap.Uint64("block", blockNumber), zap.Error(err))
		return s.fallbackSyncAll(ctx, addrs, blockNumber)
	}

	for _, lg := range logs {
		if err := s.applyLog(ctx, lg, blockNumber); err != nil {
			s.logger.Warn("decode failed, skipping log", zap.String("pool", lg.Address.Hex()), zap.Error(err))
		}
	}
	return nil
}

func (s *Synchronizer) applyLog(ctx context.Context, lg gethtypes.Log, blockNumber uint64) error {
	info, err := s.ensureTokenInfo(ctx, lg.Address)
	if err != nil {
		return err
	}
	entry, ok := s.whitelist.Entry(lg.Address)
	if !ok {
		return fmt.Errorf("chainsync: log from unwhitelisted pool %s", lg.Address.Hex())
	}
	key := pool.PoolKey{Venue: entry.Venue, Pair: entry.Pair}

	if len(lg.Topics) > 0 && lg.Topics[0] == ConstantProductSyncTopic {
		r0, r1, err := decodeSyncReserves(lg.Data)
		if err != nil {
			return err
		}
		s.manager.Upsert(key, &pool.ConstantProductState{
			PoolAddress:     lg.Address,
			Token0:          info.token0,
			Token1:          info.token1,
			Decimals0:       info.decimals0,
			Decimals1:       info.decimals1,
			Reserve0:        r0,
			Reserve1:        r1,
			LastUpdateBlock: blockNumber,
		})
		return nil
	}

	sqrtPrice, liquidity, tick, err := decodeSwapPayload(lg.Data)
	if err != nil {
		return err
	}
	s.manager.Upsert(key, &pool.ConcentratedLiquidityState{
		PoolAddress:      lg.Address,
		Token0:           info.token0,
		Token1:           info.token1,
		Decimals0:        info.decimals0,
		Decimals1:        info.decimals1,
		SqrtPriceX96:     sqrtPrice,
		Tick:             tick,
		Liquidity:        liquidity,
		FeeHundredthsBps: entry.FeeTier,
		LastUpdateBlock:  blockNumber,
	})
	return nil
}

// decodeSyncReserves decodes the Sync(uint112,uint112) payload: two 128-bit
// (padded to 256-bit word) reserves, per spec §4.C.
func decodeSyncReserves(data []byte) (r0, r1 *big.Int, err error) {
	if len(data) != 64 {
		return nil, nil, fmt.Errorf("chainsync: sync payload wrong length %d", len(data))
	}
	return new(big.Int).SetBytes(data[:32]), new(big.Int).SetBytes(data[32:64]), nil
}

// decodeSwapPayload decodes a concentrated-liquidity Swap event's
// non-indexed fields (amount0, amount1 int256; sqrtPriceX96 uint160;
// liquidity uint128; tick int24 sign-extended) per spec §4.C, returning
// only the fields the pool state needs.
func decodeSwapPayload(data []byte) (sqrtPrice, liquidity *big.Int, tick int32, err error) {
	if len(data) != 160 {
		return nil, nil, 0, fmt.Errorf("chainsync: swap payload wrong length %d", len(data))
	}
	sqrtPrice = new(big.Int).SetBytes(data[64:96])
	liquidity = new(big.Int).SetBytes(data[96:128])
	tickWord := new(big.Int).SetBytes(data[128:160])
	tick = signExtend24(tickWord)
	return sqrtPrice, liquidity, tick, nil
}

// signExtend24 interprets the low 24 bits of a 256-bit two's-complement
// word as a signed int24 (spec §4.C: "new tick (24 bits, sign-extended)").
func signExtend24(word *big.Int) int32 {
	masked := new(big.Int).And(word, big.NewInt(0xFFFFFF))
	v := int32(masked.Int64())
	if v&0x800000 != 0 {
		v -= 1 << 24
	}
	return v
}

func (s *Synchronizer) ensureTokenInfo(ctx context.Context, addr common.Address) (tokenInfo, error) {
	s.mu.Lock()
	if info, ok := s.tokenInfoFor[addr]; ok {
		s.mu.Unlock()
		return info, nil
	}
	s.mu.Unlock()

	cc, ok := s.clients[addr]
	if !ok {
		return tokenInfo{}, fmt.Errorf("chainsync: no contract client registered for %s", addr.Hex())
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return tokenInfo{}, fmt.Errorf("chainsync: rate limit wait: %w", err)
	}

	// Token-ordering invariant (spec §9): read the pool's actual token0/
	// token1, never trust configured ordering.
	out0, err := cc.Call(nil, "token0")
	if err != nil {
		return tokenInfo{}, fmt.Errorf("chainsync: token0 for %s: %w", addr.Hex(), err)
	}
	out1, err := cc.Call(nil, "token1")
	if err != nil {
		return tokenInfo{}, fmt.Errorf("chainsync: token1 for %s: %w", addr.Hex(), err)
	}
	token0 := out0[0].(common.Address)
	token1 := out1[0].(common.Address)

	if token0.Cmp(token1) >= 0 {
		return tokenInfo{}, fmt.Errorf("chainsync: invariant violation: token0 %s >= token1 %s for pool %s", token0.Hex(), token1.Hex(), addr.Hex())
	}

	dec0 := s.readDecimals(ctx, token0)
	dec1 := s.readDecimals(ctx, token1)

	info := tokenInfo{token0: token0, token1: token1, decimals0: dec0, decimals1: dec1}
	s.mu.Lock()
	s.tokenInfoFor[addr] = info
	s.mu.Unlock()
	return info, nil
}

func (s *Synchronizer) readDecimals(ctx context.Context, token common.Address) uint8 {
	cc, ok := s.clients[token]
	if !ok {
		return 18 // conservative default when no ERC20 client is registered for this token
	}
	out, err := cc.Call(nil, "decimals")
	if err != nil {
		return 18
	}
	switch v := out[0].(type) {
	case uint8:
		return v
	case uint64:
		return uint8(v)
	default:
		return 18
	}
}

// fallbackSyncAll performs the per-pool RPC reads of spec §4.C step 4
// (slot0-equivalent + liquidity for V3, getReserves for V2) when the log
// query itself failed.
func (s *Synchronizer) fallbackSyncAll(ctx context.Context, addrs []common.Address, blockNumber uint64) error {
	var firstErr error
	for _, addr := range addrs {
		if err := s.fallbackSyncOne(ctx, addr, blockNumber); err != nil {
			s.logger.Warn("fallback sync failed for pool", zap.String("pool", addr.Hex()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return nil // per §4.C: a single block's sync failure is non-fatal
}

func (s *Synchronizer) fallbackSyncOne(ctx context.Context, addr common.Address, blockNumber uint64) error {
	entry, ok := s.whitelist.Entry(addr)
	if !ok || entry.Status == pool.StatusBlacklisted {
		return nil
	}
	cc, ok := s.clients[addr]
	if !ok {
		return fmt.Errorf("chainsync: no contract client for %s", addr.Hex())
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	info, err := s.ensureTokenInfo(ctx, addr)
	if err != nil {
		return err
	}
	key := pool.PoolKey{Venue: entry.Venue, Pair: entry.Pair}

	if out, err := cc.Call(nil, "getReserves"); err == nil {
		r0 := out[0].(*big.Int)
		r1 := out[1].(*big.Int)
		s.manager.Upsert(key, &pool.ConstantProductState{
			PoolAddress:     addr,
			Token0:          info.token0,
			Token1:          info.token1,
			Decimals0:       info.decimals0,
			Decimals1:       info.decimals1,
			Reserve0:        r0,
			Reserve1:        r1,
			LastUpdateBlock: blockNumber,
		})
		return nil
	}

	out, err := cc.Call(nil, "slot0")
	if err != nil {
		return fmt.Errorf("chainsync: RPC fallback read for %s: %w", addr.Hex(), err)
	}
	sqrtPrice := out[0].(*big.Int)
	tick := int32(out[1].(*big.Int).Int64())
	liqOut, err := cc.Call(nil, "liquidity")
	if err != nil {
		return fmt.Errorf("chainsync: liquidity read for %s: %w", addr.Hex(), err)
	}
	liquidity := liqOut[0].(*big.Int)

	s.manager.Upsert(key, &pool.ConcentratedLiquidityState{
		PoolAddress:      addr,
		Token0:           info.token0,
		Token1:           info.token1,
		Decimals0:        info.decimals0,
		Decimals1:        info.decimals1,
		SqrtPriceX96:     sqrtPrice,
		Tick:             tick,
		Liquidity:        liquidity,
		FeeHundredthsBps: entry.FeeTier,
		LastUpdateBlock:  blockNumber,
	})
	return nil
}

var _ *ethclient.Client // anchor import; production wiring dials *ethclient.Client and passes it as ChainClient
