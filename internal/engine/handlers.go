package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/strongca22-cpu/dexarb-sub003/internal/detector"
	"github.com/strongca22-cpu/dexarb-sub003/internal/execution"
	"github.com/strongca22-cpu/dexarb-sub003/internal/mempool"
	"github.com/strongca22-cpu/dexarb-sub003/internal/opportunity"
)

// onBlock runs the block-reactive side of spec §4.I: sync state, refresh
// the cached base fee, scan for opportunities, and execute the single best
// viable one not currently suppressed by cooldown. It also drives the
// hybrid cache's confirmation check and staleness pruning.
func (e *Engine) onBlock(ctx context.Context, header BlockHeader) {
	e.lastBlock = header.Number

	if err := e.sync.OnBlock(ctx, header.Number); err != nil {
		e.logger.Warn("engine: block sync failed", zap.Uint64("block", header.Number), zap.Error(err))
	}
	if header.BaseFee != nil {
		e.baseFee.Set(header.BaseFee)
	}

	e.executeBestViable(ctx, header.Number)

	e.cooldown.Cleanup(header.Number, e.cfg.CooldownCleanupHorizon)

	if e.cfg.HybridMode == HybridModeCacheAndWait {
		e.confirmHybridCache(ctx)
	}
	e.hybrid.Prune()
}

// executeBestViable scans the detector's ranked output and submits the
// first opportunity whose route is not currently cooling down (spec §4.G
// "suppressed routes are skipped, not queued").
func (e *Engine) executeBestViable(ctx context.Context, currentBlock uint64) {
	for _, opp := range e.detector.Scan(currentBlock) {
		e.metrics.OpportunitiesDetected.Inc()
		route := opp.RouteOf()
		if e.cooldown.IsSuppressed(route, currentBlock) {
			e.metrics.CooldownSuppressions.Inc()
			continue
		}
		req, err := e.buildRequest(opp, currentBlock)
		if err != nil {
			e.logger.Debug("engine: could not resolve opportunity into a request", zap.Error(err))
			continue
		}
		result := e.pipeline.ExecuteBlockReactive(ctx, req)
		e.recordResult(opp, result)
		return
	}
}

// confirmHybridCache polls every cached entry's trigger transaction and
// submits the ones that have landed (spec §4.H mempool/hybrid path step
// 3, "cache and wait for confirmation").
func (e *Engine) confirmHybridCache(ctx context.Context) {
	confirmed := make(map[string]struct{})
	for _, txID := range e.hybrid.Keys() {
		receipt, err := e.receipts.TransactionReceipt(ctx, common.HexToHash(txID))
		if err != nil {
			continue // not yet mined, or the node doesn't have it
		}
		if receipt.Status == types.ReceiptStatusSuccessful {
			confirmed[txID] = struct{}{}
		}
	}
	for _, cached := range e.hybrid.ConsumeIfConfirmed(confirmed) {
		req, err := e.buildRequest(cached.Opp, e.lastBlock)
		if err != nil {
			e.logger.Debug("engine: could not resolve cached opportunity into a request", zap.Error(err))
			continue
		}
		result := e.pipeline.ExecuteBlockReactive(ctx, req)
		e.recordResult(cached.Opp, result)
	}
}

// onMempoolSignal runs spec component E's consumer side: simulate the
// pending transaction's effect, and either execute immediately or cache
// the resulting opportunity for confirmation, per the configured hybrid
// mode. Observe mode never executes (spec §4.H/§6: useful for accuracy
// measurement without capital at risk).
func (e *Engine) onMempoolSignal(ctx context.Context, tx mempool.PendingTx) {
	if e.cfg.MempoolMode == MempoolModeOff {
		return
	}
	for _, sim := range e.monitor.Handle(tx) {
		e.metrics.MempoolSignalsSimulated.Inc()
		if e.cfg.MempoolMode == MempoolModeObserve {
			continue
		}

		req, err := e.buildRequest(sim.CrossVenueOpp, e.lastBlock)
		if err != nil {
			e.logger.Debug("engine: could not resolve simulated opportunity into a request", zap.Error(err))
			continue
		}
		req.EstimatedProfitWei = detector.UsdToRaw(sim.CrossVenueOpp.EstimatedNetProfitQuote, e.cfg.NativeGasTokenDecimals, e.cfg.NativeGasTokenPriceUSD)
		trigger := execution.TriggerInfo{SeenAt: tx.SeenAt, PriorityFeeWei: tx.PriorityFee}

		switch e.cfg.HybridMode {
		case HybridModeImmediate:
			result := e.pipeline.ExecuteMempoolSignal(ctx, req, trigger)
			e.recordResult(sim.CrossVenueOpp, result)
		case HybridModeCacheAndWait:
			e.hybrid.Insert(sim.TriggerTxID, sim.CrossVenueOpp)
		}
	}
}

func (e *Engine) recordResult(opp opportunity.ArbitrageOpportunity, result execution.Result) {
	e.metrics.ExecutionAttempts.WithLabelValues(result.Outcome.String()).Inc()
	if e.sink != nil {
		e.sink.RecordExecution(opp, result)
	}
	if result.Err != nil {
		e.logger.Warn("engine: execution attempt", zap.String("outcome", result.Outcome.String()), zap.Error(result.Err))
		return
	}
	e.logger.Info("engine: execution attempt", zap.String("outcome", result.Outcome.String()), zap.String("tx", result.TxHash.Hex()))
}
