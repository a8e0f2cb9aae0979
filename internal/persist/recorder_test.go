package persist

import (
	"encoding/csv"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/strongca22-cpu/dexarb-sub003/internal/execution"
	"github.com/strongca22-cpu/dexarb-sub003/internal/opportunity"
	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

func fixedRecorder(t *testing.T) (*Recorder, string) {
	t.Helper()
	dir := t.TempDir()
	r := NewRecorder(dir)
	fixed := time.Date(2026, 7, 31, 8, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }
	for _, w := range []*Writer{r.poolSnapshots, r.opportunities, r.decodedSwaps, r.simulated, r.accuracy, r.executions} {
		w.now = func() time.Time { return fixed }
	}
	return r, dir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

func TestRecordPoolSnapshot_WritesExpectedRow(t *testing.T) {
	r, dir := fixedRecorder(t)
	r.RecordPoolSnapshot(100, "venueA", "WETH-USDC", big.NewFloat(1800.5))

	rows := readCSV(t, filepath.Join(dir, "pool-snapshots-2026-07-31.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"timestamp", "block", "venue", "pair", "price"}, rows[0])
	assert.Equal(t, "100", rows[1][1])
	assert.Equal(t, "venueA", rows[1][2])
	assert.Equal(t, "WETH-USDC", rows[1][3])
}

func TestRecordExecution_EncodesInsufficientProfitFields(t *testing.T) {
	r, dir := fixedRecorder(t)
	opp := opportunity.ArbitrageOpportunity{
		Pair:        "WETH-USDC",
		BuyPoolKey:  pool.PoolKey{Venue: "venueA", Pair: "WETH-USDC"},
		SellPoolKey: pool.PoolKey{Venue: "venueB", Pair: "WETH-USDC"},
	}
	result := execution.Result{
		Outcome:              execution.OutcomeInsufficientProfit,
		TxHash:               common.HexToHash("0xabc"),
		InsufficientActual:   big.NewInt(5),
		InsufficientRequired: big.NewInt(10),
	}

	r.RecordExecution(opp, result)

	rows := readCSV(t, filepath.Join(dir, "executions-2026-07-31.csv"))
	require.Len(t, rows, 2)
	assert.Equal(t, "insufficient_profit", rows[1][5])
	assert.Equal(t, "5", rows[1][6])
	assert.Equal(t, "10", rows[1][7])
}

func TestRecordExecution_OmitsInsufficientFieldsOnSuccess(t *testing.T) {
	r, dir := fixedRecorder(t)
	opp := opportunity.ArbitrageOpportunity{Pair: "WETH-USDC"}
	result := execution.Result{Outcome: execution.OutcomeSuccess, TxHash: common.HexToHash("0xdef")}

	r.RecordExecution(opp, result)

	rows := readCSV(t, filepath.Join(dir, "executions-2026-07-31.csv"))
	assert.Equal(t, "success", rows[1][5])
	assert.Equal(t, "", rows[1][6])
	assert.Equal(t, "", rows[1][7])
}
