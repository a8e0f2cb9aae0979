// Package hybridcache implements spec component F: the hybrid cache of
// mempool-derived opportunities keyed by trigger-transaction identity.
// Built on hashicorp/golang-lru/v2 (present in the luxfi-evm/coreth
// dependency family retrieved alongside the reference repo), whose
// bounded-capacity/oldest-evicted contract matches spec §4.F's backpressure
// policy exactly: "insertion is non-blocking with bounded capacity; when
// full, the oldest entry is evicted."
package hybridcache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/strongca22-cpu/dexarb-sub003/internal/opportunity"
)

// defaultStaleness is the staleness bound from spec §3 CachedOpportunity
// ("default 10 seconds").
const defaultStaleness = 10 * time.Second

// Cache is exclusively owned by the main loop; the mempool task holds a
// shareable handle for Insert only (spec §3 Ownership).
type Cache struct {
	mu        sync.Mutex
	lru       *lru.Cache[string, opportunity.CachedOpportunity]
	staleness time.Duration
	now       func() time.Time
}

// New builds a Cache with the given bounded capacity.
func New(capacity int) *Cache {
	l, _ := lru.New[string, opportunity.CachedOpportunity](capacity) // a non-positive capacity is the only failure mode and is a programmer error
	return &Cache{lru: l, staleness: defaultStaleness, now: time.Now}
}

// Insert is idempotent (spec §4.F: "overwrites on duplicate key").
func (c *Cache) Insert(triggerTxID string, opp opportunity.ArbitrageOpportunity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(triggerTxID, opportunity.CachedOpportunity{
		TriggerTxID:        triggerTxID,
		Opp:                opp,
		CachedAtUnixMillis: c.now().UnixMilli(),
	})
}

// ConsumeIfConfirmed removes and returns every cached entry whose trigger
// appears in confirmedTxIDs (spec §4.F contract).
func (c *Cache) ConsumeIfConfirmed(confirmedTxIDs map[string]struct{}) []opportunity.CachedOpportunity {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []opportunity.CachedOpportunity
	for txID := range confirmedTxIDs {
		if entry, ok := c.lru.Get(txID); ok {
			out = append(out, entry)
			c.lru.Remove(txID)
		}
	}
	return out
}

// Prune drops entries older than the configured staleness bound, per spec
// §3 CachedOpportunity lifecycle ("when age exceeds a staleness bound").
func (c *Cache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	cutoff := c.now().Add(-c.staleness).UnixMilli()
	for _, key := range c.lru.Keys() {
		entry, ok := c.lru.Peek(key)
		if ok && entry.CachedAtUnixMillis < cutoff {
			c.lru.Remove(key)
		}
	}
}

// Keys returns every currently cached trigger_tx_id, letting the main loop
// poll each one's confirmation status in the "cache and wait" hybrid mode
// (spec §4.H mempool/hybrid path step 3).
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Keys()
}

// Len reports the current entry count, for observability.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
