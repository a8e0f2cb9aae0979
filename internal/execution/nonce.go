package execution

import (
	"sync"
)

// NonceCache is the executor's single nonce counter (spec §9 "Global
// mutable state": "encapsulate in the executor as explicitly-owned
// fields"). It is initialized once via get_transaction_count and advanced
// only after a successful submit — a failed submit leaves it unchanged
// (spec §5 "Nonce is strictly monotonic").
type NonceCache struct {
	mu    sync.Mutex
	value uint64
	ready bool
}

// NewNonceCache builds an uninitialized cache; call Init before Current.
func NewNonceCache() *NonceCache {
	return &NonceCache{}
}

// Init seeds the counter. Safe to call more than once only before the
// first Advance; the main loop calls it exactly once at startup.
func (n *NonceCache) Init(value uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.value = value
	n.ready = true
}

// Current returns the nonce the next submission must use.
func (n *NonceCache) Current() (uint64, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.value, n.ready
}

// Advance increments the counter after a submission is confirmed sent
// (not confirmed mined — spec §4.H step 2: "incremented on send").
func (n *NonceCache) Advance() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.value++
}
