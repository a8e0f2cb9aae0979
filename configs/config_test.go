package configs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongca22-cpu/dexarb-sub003/internal/engine"
)

const testYAML = `
chain_id: 1
rpc_subscription: wss://example.invalid
rpc_execution: https://example.invalid
executor_address: "0x0000000000000000000000000000000000000099"
whitelist_path: configs/whitelist.json
persist_dir: ./data
pairs:
  WETH-USDC:
    base: "0x0000000000000000000000000000000000000001"
    quote: "0x0000000000000000000000000000000000000002"
    quote_decimals: 6
    quote_price_usd: 1.0
routers:
  uniswapv3-500: "0x0000000000000000000000000000000000000003"
detector:
  min_spread_margin_bps: 30
  min_profit_usd: 5
  max_stale_blocks: 3
  estimated_gas_cost_usd: 2
mempool:
  min_spread_margin_bps: 10
  min_profit_usd: 0.5
  estimated_gas_cost_usd: 2
  max_tick_spacing_advance: 2
  tick_spacing: 60
  max_signal_age_sec: 10
execution:
  priority_fee_floor_gwei: 2
  mempool_min_priority_gwei: 3
  mempool_gas_limit: 500000
  mempool_gas_profit_cap: 0.5
  max_mempool_signal_age_sec: 10
  live_mode: false
engine:
  mempool_mode: execute
  hybrid_mode: cache_and_wait
  mempool_channel_capacity: 256
  block_watchdog_sec: 30
  cooldown_cleanup_horizon_blocks: 2000
  native_gas_token_decimals: 18
  native_gas_token_price_usd: 3000
`

func loadTestConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(testYAML), 0o644))
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	return cfg
}

func TestLoadConfig_ParsesNestedSections(t *testing.T) {
	cfg := loadTestConfig(t)
	assert.Equal(t, int64(1), cfg.ChainID)
	assert.Equal(t, "wss://example.invalid", cfg.RPCSubscription)
	assert.Equal(t, uint32(30), cfg.Detector.MinSpreadMarginBps)
	assert.Equal(t, "execute", cfg.Engine.MempoolMode)
}

func TestToTokenPairs_DecodesAddressesAndPrice(t *testing.T) {
	cfg := loadTestConfig(t)
	pairs := cfg.ToTokenPairs()
	pair, ok := pairs["WETH-USDC"]
	require.True(t, ok)
	assert.Equal(t, common.HexToAddress("0x1"), pair.Base)
	assert.Equal(t, common.HexToAddress("0x2"), pair.Quote)
	assert.Equal(t, uint8(6), pair.QuoteDecimals)
	price, _ := pair.QuotePriceUSD.Float64()
	assert.Equal(t, 1.0, price)
}

func TestToRouters_DecodesVenueAddressMap(t *testing.T) {
	cfg := loadTestConfig(t)
	routers := cfg.ToRouters()
	assert.Equal(t, common.HexToAddress("0x3"), routers["uniswapv3-500"])
}

func TestToExecutionConfig_ConvertsGweiToWei(t *testing.T) {
	cfg := loadTestConfig(t)
	exec := cfg.ToExecutionConfig()
	assert.Equal(t, "2000000000", exec.PriorityFeeFloor.String())
	assert.Equal(t, "3000000000", exec.MempoolPriorityFeeFloor.String())
}

func TestToEngineConfig_ParsesModeStrings(t *testing.T) {
	cfg := loadTestConfig(t)
	eng := cfg.ToEngineConfig(cfg.ToRouters(), cfg.ToTokenPairs())
	assert.Equal(t, engine.MempoolModeAct, eng.MempoolMode)
	assert.Equal(t, engine.HybridModeCacheAndWait, eng.HybridMode)
}

func TestParseMempoolMode_DefaultsToOff(t *testing.T) {
	assert.Equal(t, engine.MempoolModeOff, parseMempoolMode("unknown"))
	assert.Equal(t, engine.MempoolModeObserve, parseMempoolMode("observe"))
}

func TestParseHybridMode_DefaultsToImmediate(t *testing.T) {
	assert.Equal(t, engine.HybridModeImmediate, parseHybridMode("unknown"))
}
