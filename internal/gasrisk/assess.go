package gasrisk

import (
	"errors"
	"math/big"
	"strings"
	"time"
)

type Verdict string

const (
	ProceedImmediately       Verdict = "PROCEED_IMMEDIATELY"
	ProceedNormal            Verdict = "PROCEED_NORMAL"
	ProceedCautious          Verdict = "PROCEED_CAUTIOUS"
	ProceedExpensive         Verdict = "PROCEED_EXPENSIVE"
	AbortInsufficientBalance Verdict = "ABORT_INSUFFICIENT_BALANCE"
	AbortHighGas             Verdict = "ABORT_HIGH_GAS"
)

func (v Verdict) IsAbort() bool { return strings.HasPrefix(string(v), "ABORT") }

// tier is an upper bound (inclusive) on the cost ratio in percent.
type tier struct {
	maxPercent int64
	verdict    Verdict
	wait       time.Duration
}

var tiers = []tier{
	{30, ProceedImmediately, 0},
	{60, ProceedNormal, 0},
	{85, ProceedCautious, time.Second},
	{100, ProceedExpensive, 2 * time.Second},
}

const (
	highGasWait = 5 * time.Second

	RetryDefault  = 30 * time.Second
	RetryElevated = 45 * time.Second
	RetryMax      = 60 * time.Second
)

// GasRecommendation is the structured go/no-go for one evaluation.
type GasRecommendation struct {
	Verdict             Verdict
	CostRatioPercent    float64 // display only; tiering uses exact integers
	WaitBeforeSubmit    time.Duration
	SuggestedRetryDelay time.Duration
	Quote               GasQuote
	// Fallback is set when the recommendation was produced after an
	// internal error; Err holds that error.
	Fallback bool
	Err      error
}

// ErrNoCeiling marks a recommendation made without a usable gas ceiling.
var ErrNoCeiling = errors.New("gas ceiling must be positive")

// Assess tiers a quote against ceiling. A nil balanceOK skips the balance
// check; false forces ABORT_INSUFFICIENT_BALANCE. A nil or non-positive
// ceiling is a misconfiguration: the verdict is ABORT_HIGH_GAS with a zero
// ratio and Err set to ErrNoCeiling. Assess has no side effects.
func Assess(q GasQuote, ceiling *big.Int, balanceOK *bool) GasRecommendation {
	rec := GasRecommendation{Quote: q}
	cost := q.ProjectedCost()

	if ceiling == nil || ceiling.Sign() <= 0 {
		rec.Verdict = AbortHighGas
		rec.CostRatioPercent = 0
		rec.WaitBeforeSubmit = highGasWait
		rec.SuggestedRetryDelay = RetryMax
		rec.Err = ErrNoCeiling
		if balanceOK != nil && !*balanceOK {
			rec.Verdict = AbortInsufficientBalance
		}
		return rec
	}

	// cost*100 compared with ceiling*N avoids any rounding at the boundaries.
	scaled := new(big.Int).Mul(cost, big.NewInt(100))
	within := func(pct int64) bool {
		return scaled.Cmp(new(big.Int).Mul(ceiling, big.NewInt(pct))) <= 0
	}

	rec.CostRatioPercent = ratioPercent(cost, ceiling)
	rec.Verdict = AbortHighGas
	rec.WaitBeforeSubmit = highGasWait
	for _, t := range tiers {
		if within(t.maxPercent) {
			rec.Verdict = t.verdict
			rec.WaitBeforeSubmit = t.wait
			break
		}
	}

	switch {
	case !within(100):
		rec.SuggestedRetryDelay = RetryMax
	case !within(90):
		rec.SuggestedRetryDelay = RetryElevated
	default:
		rec.SuggestedRetryDelay = RetryDefault
	}

	if balanceOK != nil && !*balanceOK {
		rec.Verdict = AbortInsufficientBalance
		rec.WaitBeforeSubmit = 0
	}
	return rec
}

// HasBalance reports whether balance covers the projected gas cost plus value.
func HasBalance(balance *big.Int, q GasQuote, value *big.Int) bool {
	required := q.ProjectedCost()
	if value != nil {
		required.Add(required, value)
	}
	return balance != nil && balance.Cmp(required) >= 0
}

func ratioPercent(cost, ceiling *big.Int) float64 {
	r := new(big.Float).SetInt(cost)
	r.Mul(r, big.NewFloat(100))
	r.Quo(r, new(big.Float).SetInt(ceiling))
	f, _ := r.Float64()
	return f
}

func cautiousFallback(err error) GasRecommendation {
	return GasRecommendation{
		Verdict:             ProceedCautious,
		WaitBeforeSubmit:    time.Second,
		SuggestedRetryDelay: RetryMax,
		Fallback:            true,
		Err:                 err,
	}
}

func abortFallback(err error) GasRecommendation {
	return GasRecommendation{
		Verdict:             AbortHighGas,
		WaitBeforeSubmit:    highGasWait,
		SuggestedRetryDelay: RetryMax,
		Fallback:            true,
		Err:                 err,
	}
}
