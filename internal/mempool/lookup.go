package mempool

import (
	"bytes"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

type tokenKey struct {
	TokenA, TokenB common.Address
}

type tokenFeeKey struct {
	tokenKey
	FeeTier uint32
}

// PoolLookup resolves a decoded swap's (token_in, token_out, fee_tier) to
// the PoolKey it most likely targets, built once from the whitelist and
// configured pairs (spec §4.E "Pool identification"). A token pair shared
// by more than one configured pair is a known ambiguity (§9): the first
// registered pair wins, by pair symbol then venue, and is never corrected
// later — the architecture tolerates the occasional mis-identification.
type PoolLookup struct {
	byTokensAndFee map[tokenFeeKey]pool.PoolKey
	byTokensOnly   map[tokenKey]pool.PoolKey
}

// NewPoolLookup builds the lookup table from every active whitelist entry
// across the given pairs.
func NewPoolLookup(whitelist *pool.Whitelist, pairs map[pool.PairSymbol]pool.TokenPair) *PoolLookup {
	lk := &PoolLookup{
		byTokensAndFee: make(map[tokenFeeKey]pool.PoolKey),
		byTokensOnly:   make(map[tokenKey]pool.PoolKey),
	}

	symbols := make([]string, 0, len(pairs))
	for symbol := range pairs {
		symbols = append(symbols, string(symbol))
	}
	sort.Strings(symbols)

	for _, s := range symbols {
		symbol := pool.PairSymbol(s)
		tp := pairs[symbol]
		entries := whitelist.ActiveForPair(symbol)
		sort.Slice(entries, func(i, j int) bool { return entries[i].Venue < entries[j].Venue })
		for _, e := range entries {
			tk := canonicalTokenKey(tp.Base, tp.Quote)
			pk := pool.PoolKey{Venue: e.Venue, Pair: symbol}

			fk := tokenFeeKey{tokenKey: tk, FeeTier: e.FeeTier}
			if _, exists := lk.byTokensAndFee[fk]; !exists {
				lk.byTokensAndFee[fk] = pk
			}
			if _, exists := lk.byTokensOnly[tk]; !exists {
				lk.byTokensOnly[tk] = pk
			}
		}
	}
	return lk
}

// Resolve looks up the PoolKey for a decoded swap leg. feeTier=0 (constant-
// product legs, and Algebra-style dynamic-fee legs, carry no fee in
// calldata) falls back to a token-only match.
func (lk *PoolLookup) Resolve(tokenIn, tokenOut common.Address, feeTier uint32) (pool.PoolKey, bool) {
	tk := canonicalTokenKey(tokenIn, tokenOut)
	if feeTier != 0 {
		if pk, ok := lk.byTokensAndFee[tokenFeeKey{tokenKey: tk, FeeTier: feeTier}]; ok {
			return pk, true
		}
	}
	pk, ok := lk.byTokensOnly[tk]
	return pk, ok
}

func canonicalTokenKey(a, b common.Address) tokenKey {
	if bytes.Compare(a.Bytes(), b.Bytes()) > 0 {
		a, b = b, a
	}
	return tokenKey{TokenA: a, TokenB: b}
}
