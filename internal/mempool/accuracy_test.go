package mempool

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

func TestAccuracyTracker_ConfirmComputesRelativeError(t *testing.T) {
	tr := NewAccuracyTracker(2 * time.Minute)
	start := time.Unix(1000, 0)
	pk := pool.PoolKey{Venue: "venueA", Pair: "WETH-USDC"}

	tr.Record("tx1", pk, big.NewFloat(2000), start)
	result, ok := tr.Confirm("tx1", big.NewFloat(2020), start.Add(time.Second))
	require.True(t, ok)
	assert.Equal(t, pk, result.PoolKey)

	// |2000-2020|/2020 ~= 0.0099
	f, _ := result.ErrorFraction.Float64()
	assert.InDelta(t, 0.0099, f, 0.001)
	assert.Equal(t, 0, tr.Len())
}

func TestAccuracyTracker_ConfirmUnknownTxReturnsFalse(t *testing.T) {
	tr := NewAccuracyTracker(2 * time.Minute)
	_, ok := tr.Confirm("never-recorded", big.NewFloat(1), time.Unix(0, 0))
	assert.False(t, ok)
}

func TestAccuracyTracker_PrunesEntriesOlderThanMaxAge(t *testing.T) {
	tr := NewAccuracyTracker(2 * time.Minute)
	start := time.Unix(1000, 0)
	tr.Record("tx1", pool.PoolKey{}, big.NewFloat(1), start)

	tr.Prune(start.Add(3 * time.Minute))
	assert.Equal(t, 0, tr.Len())

	_, ok := tr.Confirm("tx1", big.NewFloat(1), start.Add(3*time.Minute))
	assert.False(t, ok)
}

func TestAccuracyTracker_KeepsFreshEntriesOnPrune(t *testing.T) {
	tr := NewAccuracyTracker(2 * time.Minute)
	start := time.Unix(1000, 0)
	tr.Record("tx1", pool.PoolKey{}, big.NewFloat(1), start)

	tr.Prune(start.Add(30 * time.Second))
	assert.Equal(t, 1, tr.Len())
}
