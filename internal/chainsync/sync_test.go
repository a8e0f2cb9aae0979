package chainsync

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
	"github.com/strongca22-cpu/dexarb-sub003/pkg/contractclient"
)

type fakeChainClient struct {
	logs []gethtypes.Log
	err  error
}

func (f *fakeChainClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]gethtypes.Log, error) {
	return f.logs, f.err
}

type fakeManager struct {
	upserts map[pool.PoolKey]pool.PoolState
}

func newFakeManager() *fakeManager { return &fakeManager{upserts: make(map[pool.PoolKey]pool.PoolState)} }

func (f *fakeManager) Upsert(key pool.PoolKey, state pool.PoolState) { f.upserts[key] = state }
func (f *fakeManager) Get(key pool.PoolKey) (pool.PoolState, bool) {
	s, ok := f.upserts[key]
	return s, ok
}

func TestDecodeSyncReserves_RejectsWrongLength(t *testing.T) {
	_, _, err := decodeSyncReserves(make([]byte, 10))
	assert.Error(t, err)
}

func TestDecodeSyncReserves_ParsesTwoReserves(t *testing.T) {
	data := make([]byte, 64)
	r0 := big.NewInt(123456)
	r1 := big.NewInt(654321)
	copy(data[32-len(r0.Bytes()):32], r0.Bytes())
	copy(data[64-len(r1.Bytes()):64], r1.Bytes())

	got0, got1, err := decodeSyncReserves(data)
	require.NoError(t, err)
	assert.Equal(t, r0, got0)
	assert.Equal(t, r1, got1)
}

func TestSignExtend24_NegativeTick(t *testing.T) {
	word := new(big.Int).And(big.NewInt(-100), big.NewInt(0xFFFFFF))
	got := signExtend24(word)
	assert.Equal(t, int32(-100), got)
}

func TestSignExtend24_PositiveTick(t *testing.T) {
	word := big.NewInt(12345)
	got := signExtend24(word)
	assert.Equal(t, int32(12345), got)
}

func TestOnBlock_NoAddresses_NoOp(t *testing.T) {
	wl, err := newWhitelistForTest()
	require.NoError(t, err)
	m := newFakeManager()
	s := NewSynchronizer(&fakeChainClient{}, m, wl, map[common.Address]contractclient.ContractClient{}, rate.NewLimiter(rate.Inf, 1), zap.NewNop())
	require.NoError(t, s.OnBlock(context.Background(), 1))
	assert.Empty(t, m.upserts)
}

func newWhitelistForTest() (*pool.Whitelist, error) {
	return pool.LoadWhitelistFromBytes([]byte(`{"version":1,"active":[],"observation":[],"blacklisted":[]}`))
}
