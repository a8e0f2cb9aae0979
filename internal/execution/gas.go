package execution

import (
	"math/big"
	"sync"
)

// BaseFeeCache holds the most recently observed block header's base fee,
// refreshed once per block by the main loop so the execution pipeline
// never issues an extra gas-price RPC per submission (spec §4.H step 2).
type BaseFeeCache struct {
	mu    sync.RWMutex
	value *big.Int
}

// NewBaseFeeCache builds an empty cache; Current returns nil until Set runs.
func NewBaseFeeCache() *BaseFeeCache {
	return &BaseFeeCache{}
}

// Set records a freshly observed base fee.
func (c *BaseFeeCache) Set(baseFee *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = new(big.Int).Set(baseFee)
}

// Current returns the cached base fee, or nil if never set.
func (c *BaseFeeCache) Current() *big.Int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == nil {
		return nil
	}
	return new(big.Int).Set(c.value)
}

// FeeCap derives max-fee-per-gas from the cached base fee and a tip,
// mirroring pkg/contractclient.Send's headroom convention (2x base fee
// plus tip) so a submission still lands if the base fee rises one block.
func (c *BaseFeeCache) FeeCap(tipCap *big.Int) *big.Int {
	base := c.Current()
	if base == nil {
		return new(big.Int).Set(tipCap)
	}
	return new(big.Int).Add(tipCap, new(big.Int).Mul(base, big.NewInt(2)))
}
