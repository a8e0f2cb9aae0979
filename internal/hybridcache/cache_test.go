package hybridcache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongca22-cpu/dexarb-sub003/internal/opportunity"
)

func TestConsumeIfConfirmed_ReturnsOnlyMatchingTriggers(t *testing.T) {
	c := New(10)
	c.Insert("tx1", opportunity.ArbitrageOpportunity{Pair: "WETH-USDC"})
	c.Insert("tx2", opportunity.ArbitrageOpportunity{Pair: "WBTC-USDC"})

	got := c.ConsumeIfConfirmed(map[string]struct{}{"tx1": {}})
	require.Len(t, got, 1)
	assert.Equal(t, "tx1", got[0].TriggerTxID)
	assert.Equal(t, 1, c.Len())
}

func TestConsumeIfConfirmed_MissingTriggerReturnsNothing(t *testing.T) {
	c := New(10)
	got := c.ConsumeIfConfirmed(map[string]struct{}{"never-inserted": {}})
	assert.Empty(t, got)
}

func TestInsert_IsIdempotentOnDuplicateKey(t *testing.T) {
	c := New(10)
	c.Insert("tx1", opportunity.ArbitrageOpportunity{Pair: "WETH-USDC"})
	c.Insert("tx1", opportunity.ArbitrageOpportunity{Pair: "WBTC-USDC"})
	assert.Equal(t, 1, c.Len())

	got := c.ConsumeIfConfirmed(map[string]struct{}{"tx1": {}})
	require.Len(t, got, 1)
	assert.Equal(t, opportunity.ArbitrageOpportunity{Pair: "WBTC-USDC"}, got[0].Opp)
}

func TestInsert_EvictsOldestWhenFull(t *testing.T) {
	c := New(2)
	c.Insert("tx1", opportunity.ArbitrageOpportunity{Pair: "A"})
	c.Insert("tx2", opportunity.ArbitrageOpportunity{Pair: "B"})
	c.Insert("tx3", opportunity.ArbitrageOpportunity{Pair: "C"})

	assert.Equal(t, 2, c.Len())
	got := c.ConsumeIfConfirmed(map[string]struct{}{"tx1": {}})
	assert.Empty(t, got, "oldest entry (tx1) should have been evicted")
}

func TestPrune_DropsEntriesOlderThanStaleness(t *testing.T) {
	c := New(10)
	start := time.Unix(1000, 0)
	c.now = func() time.Time { return start }
	c.Insert("stale", opportunity.ArbitrageOpportunity{Pair: "A"})

	c.now = func() time.Time { return start.Add(20 * time.Second) }
	c.Prune()

	assert.Equal(t, 0, c.Len())
}

func TestPrune_KeepsFreshEntries(t *testing.T) {
	c := New(10)
	start := time.Unix(1000, 0)
	c.now = func() time.Time { return start }
	c.Insert("fresh", opportunity.ArbitrageOpportunity{Pair: "A"})

	c.now = func() time.Time { return start.Add(2 * time.Second) }
	c.Prune()

	assert.Equal(t, 1, c.Len())
}
