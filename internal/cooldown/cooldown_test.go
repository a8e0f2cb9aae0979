package cooldown

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strongca22-cpu/dexarb-sub003/internal/opportunity"
)

func testRoute() opportunity.Route {
	return opportunity.Route{Pair: "WETH-USDC", Buy: "venueA", Sell: "venueB"}
}

// TestEscalation_MatchesSpecScenario4 reproduces spec §8 scenario 4: 3
// failures at blocks 100, 150, 200; suppressed until (not including) block
// 110, then 200, then 450; success
// at 250 clears suppression immediately.
func TestEscalation_MatchesSpecScenario4(t *testing.T) {
	tr := New()
	route := testRoute()

	tr.RecordFailure(route, 100)
	assert.True(t, tr.IsSuppressed(route, 100))
	assert.True(t, tr.IsSuppressed(route, 109))
	assert.False(t, tr.IsSuppressed(route, 110))

	tr.RecordFailure(route, 150)
	assert.True(t, tr.IsSuppressed(route, 199))
	assert.False(t, tr.IsSuppressed(route, 200))

	tr.RecordFailure(route, 200)
	assert.True(t, tr.IsSuppressed(route, 449))
	assert.False(t, tr.IsSuppressed(route, 450))

	tr.RecordSuccess(route)
	assert.False(t, tr.IsSuppressed(route, 250))
}

func TestCooldownBlocks_CapsAtFiveOrMoreFailures(t *testing.T) {
	assert.Equal(t, uint64(1800), cooldownBlocks(5))
	assert.Equal(t, uint64(1800), cooldownBlocks(100))
}

func TestIsSuppressed_UnknownRouteIsNeverSuppressed(t *testing.T) {
	tr := New()
	assert.False(t, tr.IsSuppressed(testRoute(), 0))
}

func TestCleanup_PrunesStaleRecords(t *testing.T) {
	tr := New()
	route := testRoute()
	tr.RecordFailure(route, 100)

	tr.Cleanup(100+2000, 500)
	assert.False(t, tr.IsSuppressed(route, 100+2000))
	_, ok := tr.records[route]
	assert.False(t, ok)
}

func TestRecordSuccess_OnUnknownRoute_IsNoop(t *testing.T) {
	tr := New()
	tr.RecordSuccess(testRoute())
	assert.False(t, tr.IsSuppressed(testRoute(), 0))
}
