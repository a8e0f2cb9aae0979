package execution

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Outcome classifies a submission's final disposition (spec §4.H step 5
// and §7's error taxonomy).
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeInsufficientProfit
	OutcomeOtherRevert
	OutcomeTransportFailure
	OutcomePreflightRejected
	OutcomeGasEstimationReverted
	OutcomeStaleSignal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeInsufficientProfit:
		return "insufficient_profit"
	case OutcomeOtherRevert:
		return "other_revert"
	case OutcomeTransportFailure:
		return "transport_failure"
	case OutcomePreflightRejected:
		return "preflight_rejected"
	case OutcomeGasEstimationReverted:
		return "gas_estimation_reverted"
	case OutcomeStaleSignal:
		return "stale_signal"
	default:
		return "unknown"
	}
}

// Result is what one execution attempt reports to the cooldown tracker
// (already applied by the pipeline) and to the persistence layer (spec §6
// "execution attempts and results").
type Result struct {
	Outcome              Outcome
	TxHash               common.Hash
	InsufficientActual   *big.Int
	InsufficientRequired *big.Int
	Err                  error
}
