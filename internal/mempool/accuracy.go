package mempool

import (
	"math/big"
	"sync"
	"time"

	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

type predictionRecord struct {
	pk         pool.PoolKey
	predicted  *big.Float
	recordedAt time.Time
}

// AccuracyTracker implements spec §4.E "Accuracy tracking": every
// simulation is retained indexed by trigger tx id; on confirmation the
// predicted price is compared against the pool's actual post-state. This
// is an observability surface, never a control loop input.
type AccuracyTracker struct {
	mu      sync.Mutex
	maxAge  time.Duration
	records map[string]predictionRecord
}

// NewAccuracyTracker builds a tracker that drops entries older than maxAge
// (spec §4.E: "entries older than 2 minutes are dropped").
func NewAccuracyTracker(maxAge time.Duration) *AccuracyTracker {
	return &AccuracyTracker{maxAge: maxAge, records: make(map[string]predictionRecord)}
}

// Record retains a simulation's predicted price, keyed by trigger tx id.
func (a *AccuracyTracker) Record(triggerTxID string, pk pool.PoolKey, predicted *big.Float, now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records[triggerTxID] = predictionRecord{pk: pk, predicted: predicted, recordedAt: now}
}

// AccuracyResult is one resolved prediction-vs-actual comparison.
type AccuracyResult struct {
	TriggerTxID   string
	PoolKey       pool.PoolKey
	Predicted     *big.Float
	Actual        *big.Float
	ErrorFraction *big.Float // |predicted-actual| / actual
}

// Confirm resolves triggerTxID's recorded prediction against actual, the
// pool's real post-confirmation price, and removes the record. ok is
// false when no prediction was recorded — already pruned, or the trigger
// never matched a tracked pool.
func (a *AccuracyTracker) Confirm(triggerTxID string, actual *big.Float, now time.Time) (AccuracyResult, bool) {
	a.mu.Lock()
	rec, ok := a.records[triggerTxID]
	if ok {
		delete(a.records, triggerTxID)
	}
	a.mu.Unlock()
	if !ok {
		return AccuracyResult{}, false
	}

	errFraction := big.NewFloat(0)
	if actual.Sign() != 0 {
		diff := new(big.Float).Sub(rec.predicted, actual)
		diff.Abs(diff)
		errFraction = new(big.Float).Quo(diff, actual)
	}
	return AccuracyResult{
		TriggerTxID:   triggerTxID,
		PoolKey:       rec.pk,
		Predicted:     rec.predicted,
		Actual:        actual,
		ErrorFraction: errFraction,
	}, true
}

// Prune drops recorded predictions older than maxAge.
func (a *AccuracyTracker) Prune(now time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, rec := range a.records {
		if now.Sub(rec.recordedAt) > a.maxAge {
			delete(a.records, id)
		}
	}
}

// Len reports the current record count, for observability.
func (a *AccuracyTracker) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.records)
}
