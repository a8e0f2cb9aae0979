// Package execution implements spec component H: the two-leg execution
// pipeline submitting against the on-chain ArbExecutor contract. Grounded
// on pkg/contractclient's Send implementation (nonce/fee-cap/sign/submit
// pattern, generalized from query-time RPC lookups to the cached counters
// spec §4.H calls for) and internal/cooldown for failure bookkeeping.
package execution

import (
	"fmt"
	"math/big"

	"github.com/strongca22-cpu/dexarb-sub003/internal/pool"
)

// maxFee24Bit is the largest value the executor's 24-bit fee field can
// hold: 2^24 - 1.
const maxFee24Bit = 1<<24 - 1

// ConstantProductSentinel routes a leg through the constant-product
// router (spec §4.H "Routing sentinels").
const ConstantProductSentinel uint32 = maxFee24Bit

// DynamicFeeSentinel routes a leg through the dynamic-fee (algebra-style)
// concentrated-liquidity router.
const DynamicFeeSentinel uint32 = 0

// EncodeFee resolves one leg's fee field for the executeArb call. family
// decides the encoding; feeTier is the whitelist-configured tier (bps*100
// units) for a standard concentrated-liquidity leg, ignored otherwise.
//
// The result is always built via big.Int.SetUint64 on a uint32-range
// value, never a narrowing integer cast, per spec §9's "Fee-sentinel
// 24-bit field" regression: a cast through int16/uint16 would silently
// truncate 16777215 (0xFFFFFF) to 65535 (0xFFFF) and misroute every
// constant-product leg on-chain.
func EncodeFee(family pool.Family, feeTier uint32) (*big.Int, error) {
	var value uint32
	switch family {
	case pool.FamilyConstantProduct:
		value = ConstantProductSentinel
	case pool.FamilyConcentratedLiquidity:
		if feeTier == 0 {
			value = DynamicFeeSentinel // algebra-style pool: no fixed tier, quoter/router resolve the live fee
		} else {
			value = feeTier
		}
	default:
		return nil, fmt.Errorf("execution: unknown pool family %d", family)
	}
	if value > maxFee24Bit {
		return nil, fmt.Errorf("execution: fee %d exceeds the executor's 24-bit field", value)
	}
	return new(big.Int).SetUint64(uint64(value)), nil
}
