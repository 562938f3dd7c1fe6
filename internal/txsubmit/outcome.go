package txsubmit

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/batch-swapper/internal/gasrisk"
)

type FailureReason string

const (
	EstimationFailed    FailureReason = "ESTIMATION_FAILED"
	InsufficientBalance FailureReason = "INSUFFICIENT_BALANCE"
	GasCeilingExceeded  FailureReason = "GAS_CEILING_EXCEEDED"
	NetworkRejected     FailureReason = "NETWORK_REJECTED"
	Reverted            FailureReason = "REVERTED"
	Timeout             FailureReason = "TIMEOUT"
)

// Outcome is the result of one submission attempt.
type Outcome struct {
	Success           bool
	TxHash            *common.Hash // set once broadcast
	GasUsed           uint64
	EffectiveGasPrice *big.Int
	Failure           FailureReason
	Err               string

	Op         gasrisk.Op
	From       common.Address
	To         common.Address
	Value      *big.Int
	Token      string
	Verdict    gasrisk.Verdict
	RetryAfter time.Duration
	Duration   time.Duration
}

// GasCost is gasUsed * effectiveGasPrice, zero before inclusion.
func (o Outcome) GasCost() *big.Int {
	if o.EffectiveGasPrice == nil || o.GasUsed == 0 {
		return big.NewInt(0)
	}
	return new(big.Int).Mul(o.EffectiveGasPrice, new(big.Int).SetUint64(o.GasUsed))
}

// Hash returns the tx hash hex or "".
func (o Outcome) Hash() string {
	if o.TxHash == nil {
		return ""
	}
	return o.TxHash.Hex()
}

// BuildFailure is the outcome for an intent whose call data could not be built.
func BuildFailure(op gasrisk.Op, from common.Address, err error) Outcome {
	o := Outcome{Op: op, From: from, Failure: EstimationFailed}
	if err != nil {
		o.Err = err.Error()
	}
	return o
}

func failureFor(v gasrisk.Verdict) FailureReason {
	if v == gasrisk.AbortInsufficientBalance {
		return InsufficientBalance
	}
	return GasCeilingExceeded
}
