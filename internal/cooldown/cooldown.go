// Package cooldown implements spec component G: the route cooldown
// tracker. Pure logic, grounded directly on spec §4.G's backoff schedule
// table; no teacher analog exists (the reference repo never retried a
// failing route), so the code style follows the reference's plain
// struct-with-map pattern (e.g. blackhole.go's Blackhole.ccm registry).
package cooldown

import (
	"sync"

	"github.com/strongca22-cpu/dexarb-sub003/internal/opportunity"
)

// schedule is the backoff table from spec §4.G, indexed by failure count
// (1-based); counts beyond the table length are capped at the final entry.
var schedule = []uint64{10, 50, 250, 1250, 1800}

func cooldownBlocks(failureCount int) uint64 {
	if failureCount <= 0 {
		return 0
	}
	idx := failureCount - 1
	if idx >= len(schedule) {
		idx = len(schedule) - 1
	}
	return schedule[idx]
}

type record struct {
	failureCount    int
	cooldownUntil   uint64
	lastTouchedBlock uint64
}

// Tracker is the main-loop-exclusive owner of route failure records (spec
// §3 Ownership).
type Tracker struct {
	mu      sync.Mutex
	records map[opportunity.Route]*record
}

// New builds an empty Tracker.
func New() *Tracker {
	return &Tracker{records: make(map[opportunity.Route]*record)}
}

// RecordFailure increments route's failure count and sets its cooldown per
// the escalating schedule (spec §4.G).
func (t *Tracker) RecordFailure(route opportunity.Route, currentBlock uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[route]
	if !ok {
		r = &record{}
		t.records[route] = r
	}
	r.failureCount++
	r.cooldownUntil = currentBlock + cooldownBlocks(r.failureCount)
	r.lastTouchedBlock = currentBlock
}

// RecordSuccess removes route's record entirely — an instant reset, per
// spec §4.G and the Open Question resolution in SPEC_FULL.md (no decay).
func (t *Tracker) RecordSuccess(route opportunity.Route) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.records, route)
}

// IsSuppressed reports whether route is currently within its cooldown
// window at currentBlock.
func (t *Tracker) IsSuppressed(route opportunity.Route, currentBlock uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.records[route]
	if !ok {
		return false
	}
	return currentBlock < r.cooldownUntil
}

// Cleanup prunes records whose last touch is older than olderThanBlocks
// behind currentBlock (spec §4.G "cleanup(older_than)").
func (t *Tracker) Cleanup(currentBlock, olderThanBlocks uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for route, r := range t.records {
		if currentBlock > r.lastTouchedBlock && currentBlock-r.lastTouchedBlock > olderThanBlocks {
			delete(t.records, route)
		}
	}
}
