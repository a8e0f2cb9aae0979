// Package configs loads the process configuration (spec §6's configuration
// surface table) from a single YAML document and projects it into each
// component package's own Config type, the way the reference repo's
// LoadConfig/ToXConfig flat conversion-method pair did for its single
// strategy config.
package configs

import (
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/strongca22-cpu/dexarb-sub003/internal/detector"
	"github.com/strongca22-cpu/dexarb-sub003/internal/engine"
	"github.com/strongca22-cpu/dexarb-sub003/internal/execution"
	"github.com/strongca22-cpu/dexarb-sub003/internal/mempool"
	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

// PairYAMLData is one configured trading pair's token addresses and the
// quote token's USD reference price (spec §9 "Decimal generality": only
// the quote side carries one, see internal/engine/request.go).
type PairYAMLData struct {
	Base          string  `yaml:"base"`
	Quote         string  `yaml:"quote"`
	QuoteDecimals uint8   `yaml:"quote_decimals"`
	QuotePriceUSD float64 `yaml:"quote_price_usd"`
}

// DetectorYAMLData configures internal/detector.
type DetectorYAMLData struct {
	MinSpreadMarginBps  uint32  `yaml:"min_spread_margin_bps"`
	MinProfitUSD        float64 `yaml:"min_profit_usd"`
	MaxStaleBlocks      uint64  `yaml:"max_stale_blocks"`
	EstimatedGasCostUSD float64 `yaml:"estimated_gas_cost_usd"`
}

// MempoolYAMLData configures internal/mempool's simulator thresholds.
type MempoolYAMLData struct {
	MinSpreadMarginBps    uint32  `yaml:"min_spread_margin_bps"`
	MinProfitUSD          float64 `yaml:"min_profit_usd"`
	EstimatedGasCostUSD   float64 `yaml:"estimated_gas_cost_usd"`
	MaxTickSpacingAdvance int     `yaml:"max_tick_spacing_advance"`
	TickSpacing           int     `yaml:"tick_spacing"`
	MaxSignalAgeSec       int     `yaml:"max_signal_age_sec"`
}

// ExecutionYAMLData configures internal/execution's gas/profit policy.
type ExecutionYAMLData struct {
	PriorityFeeFloorGwei        int64   `yaml:"priority_fee_floor_gwei"`
	MempoolPriorityFeeFloorGwei int64   `yaml:"mempool_min_priority_gwei"`
	MempoolGasLimit             uint64  `yaml:"mempool_gas_limit"`
	ProfitCapFraction           float64 `yaml:"mempool_gas_profit_cap"`
	MaxMempoolSignalAgeSec      int     `yaml:"max_mempool_signal_age_sec"`
	LiveMode                    bool    `yaml:"live_mode"`
}

// EngineYAMLData configures internal/engine's mode switches and loop timing.
type EngineYAMLData struct {
	MempoolMode                  string  `yaml:"mempool_mode"` // "off" | "observe" | "execute"
	HybridMode                   string  `yaml:"hybrid_mode"`  // "immediate" | "cache_and_wait"
	MempoolChannelCapacity       int     `yaml:"mempool_channel_capacity"`
	BlockWatchdogSec             int     `yaml:"block_watchdog_sec"`
	CooldownCleanupHorizonBlocks uint64  `yaml:"cooldown_cleanup_horizon_blocks"`
	NativeGasTokenDecimals       uint8   `yaml:"native_gas_token_decimals"`
	NativeGasTokenPriceUSD       float64 `yaml:"native_gas_token_price_usd"`
	HybridCacheCapacity          int     `yaml:"hybrid_cache_capacity"`
}

// Config represents the entire configuration structure decoded from
// configs/config.yml.
type Config struct {
	ChainID         int64                   `yaml:"chain_id"`
	RPCSubscription string                  `yaml:"rpc_subscription"`
	RPCExecution    string                  `yaml:"rpc_execution"`
	ExecutorAddress string                  `yaml:"executor_address"`
	WhitelistPath   string                  `yaml:"whitelist_path"`
	PersistDir      string                  `yaml:"persist_dir"`
	RPCRateLimitPerSec float64              `yaml:"rpc_rate_limit_per_sec"`
	Pairs           map[string]PairYAMLData `yaml:"pairs"`
	Routers         map[string]string       `yaml:"routers"`
	Detector        DetectorYAMLData        `yaml:"detector"`
	Mempool         MempoolYAMLData         `yaml:"mempool"`
	Execution       ExecutionYAMLData       `yaml:"execution"`
	Engine          EngineYAMLData          `yaml:"engine"`
}

// LoadConfig reads and parses config.yml into a Config struct.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("configs: read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("configs: parse config YAML: %w", err)
	}
	return &config, nil
}

// ToTokenPairs builds internal/pool's Symbol->TokenPair table.
func (c *Config) ToTokenPairs() map[pool.PairSymbol]pool.TokenPair {
	pairs := make(map[pool.PairSymbol]pool.TokenPair, len(c.Pairs))
	for symbol, data := range c.Pairs {
		pairs[pool.PairSymbol(symbol)] = pool.TokenPair{
			Symbol:        pool.PairSymbol(symbol),
			Base:          common.HexToAddress(data.Base),
			Quote:         common.HexToAddress(data.Quote),
			QuoteDecimals: data.QuoteDecimals,
			QuotePriceUSD: big.NewFloat(data.QuotePriceUSD),
		}
	}
	return pairs
}

// ToRouters builds internal/engine's venue->router-address registry.
func (c *Config) ToRouters() map[pool.Venue]common.Address {
	routers := make(map[pool.Venue]common.Address, len(c.Routers))
	for venue, address := range c.Routers {
		routers[pool.Venue(venue)] = common.HexToAddress(address)
	}
	return routers
}

// ToDetectorConfig projects the detector's slice of the configuration surface.
func (c *Config) ToDetectorConfig() detector.Config {
	return detector.Config{
		MinSpreadMarginBps:  c.Detector.MinSpreadMarginBps,
		MinProfitUSD:        big.NewFloat(c.Detector.MinProfitUSD),
		MaxStaleBlocks:      c.Detector.MaxStaleBlocks,
		EstimatedGasCostUSD: big.NewFloat(c.Detector.EstimatedGasCostUSD),
	}
}

// ToMempoolConfig projects the mempool monitor's thresholds.
func (c *Config) ToMempoolConfig() mempool.Config {
	return mempool.Config{
		MinSpreadMarginBps:    c.Mempool.MinSpreadMarginBps,
		MinProfitUSD:          big.NewFloat(c.Mempool.MinProfitUSD),
		EstimatedGasCostUSD:   big.NewFloat(c.Mempool.EstimatedGasCostUSD),
		MaxTickSpacingAdvance: c.Mempool.MaxTickSpacingAdvance,
		TickSpacing:           c.Mempool.TickSpacing,
		MaxSignalAge:          time.Duration(c.Mempool.MaxSignalAgeSec) * time.Second,
	}
}

// ToExecutionConfig projects the execution pipeline's gas/profit policy.
func (c *Config) ToExecutionConfig() execution.Config {
	gwei := big.NewInt(1_000_000_000)
	return execution.Config{
		PriorityFeeFloor:        new(big.Int).Mul(big.NewInt(c.Execution.PriorityFeeFloorGwei), gwei),
		MempoolPriorityFeeFloor: new(big.Int).Mul(big.NewInt(c.Execution.MempoolPriorityFeeFloorGwei), gwei),
		MempoolGasLimit:         c.Execution.MempoolGasLimit,
		ProfitCapFraction:       big.NewFloat(c.Execution.ProfitCapFraction),
		MaxMempoolSignalAge:     time.Duration(c.Execution.MaxMempoolSignalAgeSec) * time.Second,
		LiveMode:                c.Execution.LiveMode,
	}
}

// ToEngineConfig projects the main loop's mode switches, gated by the
// already-built router/pair tables.
func (c *Config) ToEngineConfig(routers map[pool.Venue]common.Address, pairs map[pool.PairSymbol]pool.TokenPair) engine.Config {
	return engine.Config{
		MempoolMode:            parseMempoolMode(c.Engine.MempoolMode),
		HybridMode:             parseHybridMode(c.Engine.HybridMode),
		MempoolChannelCapacity: c.Engine.MempoolChannelCapacity,
		BlockWatchdog:          time.Duration(c.Engine.BlockWatchdogSec) * time.Second,
		CooldownCleanupHorizon: c.Engine.CooldownCleanupHorizonBlocks,
		Routers:                routers,
		Pairs:                  pairs,
		NativeGasTokenDecimals: c.Engine.NativeGasTokenDecimals,
		NativeGasTokenPriceUSD: big.NewFloat(c.Engine.NativeGasTokenPriceUSD),
	}
}

func parseMempoolMode(raw string) engine.MempoolMode {
	switch raw {
	case "observe":
		return engine.MempoolModeObserve
	case "execute":
		return engine.MempoolModeAct
	default:
		return engine.MempoolModeOff
	}
}

func parseHybridMode(raw string) engine.HybridMode {
	if raw == "cache_and_wait" {
		return engine.HybridModeCacheAndWait
	}
	return engine.HybridModeImmediate
}
