package pool

import (
	"fmt"
	"math/big"
	"os"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/common"
	jsoniter "github.com/json-iterator/go"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Status is a whitelist entry's participation class (spec §3 "Whitelist entry").
type Status string

const (
	StatusActive      Status = "active"
	StatusObservation Status = "observation"
	StatusBlacklisted Status = "blacklisted"
)

// rawWhitelistEntry is the on-disk JSON shape (§6): numeric-as-string for
// min_liquidity_threshold since raw token amounts can exceed float64
// precision.
type rawWhitelistEntry struct {
	Address               string `json:"address"`
	Venue                 string `json:"venue"`
	Pair                  string `json:"pair"`
	FeeTier               uint32 `json:"fee_tier"`
	Status                string `json:"status"`
	MinLiquidityThreshold string `json:"min_liquidity_threshold"`
	MaxTradeSizeUSD       float64 `json:"max_trade_size_usd"`
	LastVerifiedTimestamp int64  `json:"last_verified_timestamp"`
}

type rawWhitelistFile struct {
	Version     int                 `json:"version"`
	Active      []rawWhitelistEntry `json:"active"`
	Observation []rawWhitelistEntry `json:"observation"`
	Blacklisted []rawWhitelistEntry `json:"blacklisted"`
	Candidates  []rawWhitelistEntry `json:"candidates"`
}

// WhitelistEntry is the decoded, process-wide-immutable form of one pool's
// whitelist record.
type WhitelistEntry struct {
	Address               common.Address
	Venue                 Venue
	Pair                  PairSymbol
	FeeTier               uint32
	Status                Status
	MinLiquidityThreshold *big.Int
	MaxTradeSizeUSD       *big.Float
	LastVerifiedTimestamp int64
}

// FeeTierBps resolves the effective fee in bps for UnifiedPool construction:
// the whitelist's configured fee_tier takes precedence (it is the
// authoritative per-venue figure), falling back to the pool state's
// self-reported fee (e.g. an Algebra-style dynamic-fee pool with
// fee_tier=0 in the whitelist).
func (e WhitelistEntry) FeeTierBps(stateFeeBps uint32) uint32 {
	if e.FeeTier == 0 {
		return stateFeeBps
	}
	return e.FeeTier / 100
}

// Whitelist is the process-wide immutable allow/deny/observe classification
// (spec §3 "the whitelist is a process-wide, read-only input").
type Whitelist struct {
	Version      int
	byAddress    map[common.Address]WhitelistEntry
	activeByPair map[PairSymbol][]WhitelistEntry
	activeSet    mapset.Set[common.Address]
	candidates   []WhitelistEntry
}

// LoadWhitelist reads and decodes the §6 JSON whitelist file.
func LoadWhitelist(path string) (*Whitelist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pool: read whitelist %s: %w", path, err)
	}
	return LoadWhitelistFromBytes(data)
}

// LoadWhitelistFromBytes decodes an in-memory §6 whitelist document,
// exercised by tests and by callers that fetch the whitelist from a
// non-file source.
func LoadWhitelistFromBytes(data []byte) (*Whitelist, error) {
	var raw rawWhitelistFile
	if err := jsonAPI.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("pool: decode whitelist: %w", err)
	}
	return newWhitelist(raw)
}

func newWhitelist(raw rawWhitelistFile) (*Whitelist, error) {
	w := &Whitelist{
		Version:      raw.Version,
		byAddress:    make(map[common.Address]WhitelistEntry),
		activeByPair: make(map[PairSymbol][]WhitelistEntry),
		activeSet:    mapset.NewThreadUnsafeSet[common.Address](),
	}

	add := func(entries []rawWhitelistEntry, status Status) error {
		for _, re := range entries {
			entry, err := decodeEntry(re, status)
			if err != nil {
				return err
			}
			w.byAddress[entry.Address] = entry
			if status == StatusActive {
				w.activeByPair[entry.Pair] = append(w.activeByPair[entry.Pair], entry)
				w.activeSet.Add(entry.Address)
			}
		}
		return nil
	}

	if err := add(raw.Active, StatusActive); err != nil {
		return nil, err
	}
	if err := add(raw.Observation, StatusObservation); err != nil {
		return nil, err
	}
	if err := add(raw.Blacklisted, StatusBlacklisted); err != nil {
		return nil, err
	}
	for _, re := range raw.Candidates {
		entry, err := decodeEntry(re, Status(re.Status))
		if err != nil {
			return nil, err
		}
		w.candidates = append(w.candidates, entry)
	}
	return w, nil
}

func decodeEntry(re rawWhitelistEntry, status Status) (WhitelistEntry, error) {
	threshold := new(big.Int)
	if re.MinLiquidityThreshold != "" {
		if _, ok := threshold.SetString(re.MinLiquidityThreshold, 10); !ok {
			return WhitelistEntry{}, fmt.Errorf("pool: bad min_liquidity_threshold %q for %s", re.MinLiquidityThreshold, re.Address)
		}
	}
	return WhitelistEntry{
		Address:               common.HexToAddress(re.Address),
		Venue:                 Venue(re.Venue),
		Pair:                  PairSymbol(re.Pair),
		FeeTier:               re.FeeTier,
		Status:                status,
		MinLiquidityThreshold: threshold,
		MaxTradeSizeUSD:       big.NewFloat(re.MaxTradeSizeUSD),
		LastVerifiedTimestamp: re.LastVerifiedTimestamp,
	}, nil
}

// Entry looks up a pool's whitelist record by address.
func (w *Whitelist) Entry(addr common.Address) (WhitelistEntry, bool) {
	e, ok := w.byAddress[addr]
	return e, ok
}

// ActiveForPair returns every active entry for a pair symbol, the input to
// spec §4.D step 1.
func (w *Whitelist) ActiveForPair(pair PairSymbol) []WhitelistEntry {
	return w.activeByPair[pair]
}

// IsWhitelistedForSync reports whether addr should ever be synchronized:
// true for active and observation pools, false for blacklisted (spec §3
// "blacklisted pools are never synchronized") and unknown addresses.
func (w *Whitelist) IsWhitelistedForSync(addr common.Address) bool {
	e, ok := w.byAddress[addr]
	return ok && e.Status != StatusBlacklisted
}

// ActiveAddresses returns the set of active-pool addresses. internal/chainsync
// builds its per-block log filter from SyncAddresses, not from this set.
func (w *Whitelist) ActiveAddresses() mapset.Set[common.Address] {
	return w.activeSet.Clone()
}

// SyncAddresses returns every address the synchronizer should track
// (active + observation), split by family is the synchronizer's job once
// it knows each pool's family from its own bookkeeping.
func (w *Whitelist) SyncAddresses() []common.Address {
	addrs := make([]common.Address, 0, len(w.byAddress))
	for addr, e := range w.byAddress {
		if e.Status != StatusBlacklisted {
			addrs = append(addrs, addr)
		}
	}
	return addrs
}
