package persist

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/multierr"

	"github.com/strongca22-cpu/dexarb-sub003/internal/execution"
	"github.com/strongca22-cpu/dexarb-sub003/internal/mempool"
	"github.com/strongca22-cpu/dexarb-sub003/internal/opportunity"
	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

// Recorder owns the six append-only log kinds spec §6 names. Its
// RecordExecution method satisfies internal/engine.ResultSink structurally,
// without persist importing engine — the main loop is wired to whichever
// concrete ResultSink its caller supplies.
type Recorder struct {
	poolSnapshots *Writer
	opportunities *Writer
	decodedSwaps  *Writer
	simulated     *Writer
	accuracy      *Writer
	executions    *Writer
	now           func() time.Time
}

// NewRecorder builds a Recorder writing under dir, one file per log kind.
func NewRecorder(dir string) *Recorder {
	return &Recorder{
		poolSnapshots: NewWriter(dir, "pool-snapshots", []string{"timestamp", "block", "venue", "pair", "price"}),
		opportunities: NewWriter(dir, "opportunities", []string{"timestamp", "pair", "buy_venue", "sell_venue", "spread", "est_profit_usd"}),
		decodedSwaps: NewWriter(dir, "mempool-decoded", []string{
			"timestamp", "tx_id", "router", "selector", "token_in", "token_out", "amount_in", "fee_tier", "priority_gwei",
		}),
		simulated: NewWriter(dir, "mempool-simulated", []string{
			"timestamp", "trigger_tx", "pair", "buy_venue", "sell_venue", "predicted_price", "est_profit_usd",
		}),
		accuracy: NewWriter(dir, "mempool-accuracy", []string{"timestamp", "trigger_tx", "predicted", "actual", "error_pct"}),
		executions: NewWriter(dir, "executions", []string{
			"timestamp", "tx_id", "pair", "buy_venue", "sell_venue", "outcome", "insufficient_actual", "insufficient_required",
		}),
		now: time.Now,
	}
}

// Close closes every underlying Writer, reporting every failure rather than
// just the first: one disk going read-only shouldn't hide another's error.
func (r *Recorder) Close() error {
	var err error
	for _, w := range []*Writer{r.poolSnapshots, r.opportunities, r.decodedSwaps, r.simulated, r.accuracy, r.executions} {
		err = multierr.Append(err, w.Close())
	}
	return err
}

// RecordPoolSnapshot logs one pool's observed price (spec §6: "per-pool
// price snapshots: block, venue, pair, price").
func (r *Recorder) RecordPoolSnapshot(block uint64, venue pool.Venue, pair pool.PairSymbol, price *big.Float) {
	r.poolSnapshots.Write([]string{
		r.timestamp(), fmtUint(block), string(venue), string(pair), fmtFloat(price),
	})
}

// RecordOpportunity logs a detector-emitted opportunity (spec §6:
// "timestamp, pair, route, spread, est_profit").
func (r *Recorder) RecordOpportunity(opp opportunity.ArbitrageOpportunity, spread *big.Float) {
	r.opportunities.Write([]string{
		r.timestamp(), string(opp.Pair), string(opp.BuyPoolKey.Venue), string(opp.SellPoolKey.Venue),
		fmtFloat(spread), fmtFloat(opp.EstimatedNetProfitQuote),
	})
}

// RecordDecodedSwap logs one decoded pending-transaction leg (spec §6:
// "timestamp, tx_id, router, selector, token_in, token_out, amount_in,
// fee, priority_gwei").
func (r *Recorder) RecordDecodedSwap(txID string, router common.Address, selector string, leg mempool.DecodedSwap, priorityGwei *big.Float) {
	r.decodedSwaps.Write([]string{
		r.timestamp(), txID, router.Hex(), selector, leg.TokenIn.Hex(), leg.TokenOut.Hex(),
		fmtBigInt(leg.AmountIn), fmtUint(uint64(leg.FeeTier)), fmtFloat(priorityGwei),
	})
}

// RecordSimulated logs a mempool-derived simulated opportunity.
func (r *Recorder) RecordSimulated(sim opportunity.SimulatedOpportunity) {
	opp := sim.CrossVenueOpp
	r.simulated.Write([]string{
		r.timestamp(), sim.TriggerTxID, string(opp.Pair), string(opp.BuyPoolKey.Venue), string(opp.SellPoolKey.Venue),
		fmtFloat(sim.PredictedPostPrice), fmtFloat(opp.EstimatedNetProfitQuote),
	})
}

// RecordAccuracy logs one resolved prediction-vs-actual comparison (spec
// §6: "trigger_tx, predicted, actual, error_pct").
func (r *Recorder) RecordAccuracy(result mempool.AccuracyResult) {
	r.accuracy.Write([]string{
		r.timestamp(), result.TriggerTxID, fmtFloat(result.Predicted), fmtFloat(result.Actual), fmtFloat(result.ErrorFraction),
	})
}

// RecordExecution logs one execution attempt's outcome: tx_id, pair, buy
// and sell venue, outcome, and, for an InsufficientProfit revert, the actual
// and required profit. Estimated profit and gas used are not recorded.
// Satisfies internal/engine.ResultSink.
func (r *Recorder) RecordExecution(opp opportunity.ArbitrageOpportunity, result execution.Result) {
	actual, required := "", ""
	if result.InsufficientActual != nil {
		actual = result.InsufficientActual.String()
	}
	if result.InsufficientRequired != nil {
		required = result.InsufficientRequired.String()
	}
	r.executions.Write([]string{
		r.timestamp(), result.TxHash.Hex(), string(opp.Pair), string(opp.BuyPoolKey.Venue), string(opp.SellPoolKey.Venue),
		result.Outcome.String(), actual, required,
	})
}

func (r *Recorder) timestamp() string {
	return r.now().UTC().Format(time.RFC3339)
}

func fmtFloat(f *big.Float) string {
	if f == nil {
		return ""
	}
	return f.Text('f', 8)
}

func fmtBigInt(i *big.Int) string {
	if i == nil {
		return ""
	}
	return i.String()
}

func fmtUint(v uint64) string {
	return big.NewInt(0).SetUint64(v).String()
}
