// Package stats records transaction outcomes and batch summaries. Sinks are
// write-only from the engine's point of view and never fail the caller.
package stats

import (
	"context"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"github.com/ligun0805/batch-swapper/internal/txsubmit"
)

// OutcomeRecord is one submitted (or refused) intent.
type OutcomeRecord struct {
	RunID   string    `json:"runId,omitempty"`
	Index   int       `json:"index"`
	Op      string    `json:"op"`
	From    string    `json:"from"`
	To      string    `json:"to"`
	Token   string    `json:"token,omitempty"`
	Success bool      `json:"success"`
	Failure string    `json:"failure,omitempty"`
	Verdict string    `json:"verdict,omitempty"`
	TxHash  string    `json:"txHash,omitempty"`
	GasUsed uint64    `json:"gasUsed"`
	GasCost *big.Int  `json:"gasCost"`
	Value   *big.Int  `json:"value"`
	Err     string    `json:"error,omitempty"`
	At      time.Time `json:"at"`
}

// FromOutcome flattens an Outcome for storage.
func FromOutcome(runID string, index int, o txsubmit.Outcome) OutcomeRecord {
	r := OutcomeRecord{
		RunID:   runID,
		Index:   index,
		Op:      string(o.Op),
		From:    o.From.Hex(),
		To:      o.To.Hex(),
		Token:   o.Token,
		Success: o.Success,
		Failure: string(o.Failure),
		Verdict: string(o.Verdict),
		TxHash:  o.Hash(),
		GasUsed: o.GasUsed,
		GasCost: o.GasCost(),
		Value:   big.NewInt(0),
		Err:     o.Err,
		At:      time.Now().UTC(),
	}
	if o.Value != nil && o.Success {
		r.Value.Set(o.Value)
	}
	return r
}

// BatchRecord summarizes one orchestrated run.
type BatchRecord struct {
	RunID      string    `json:"runId"`
	Op         string    `json:"op"`
	Total      int       `json:"total"`
	Success    int       `json:"success"`
	Fail       int       `json:"fail"`
	Chunks     int       `json:"chunks"`
	Cancelled  bool      `json:"cancelled"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

type Sink interface {
	RecordOutcome(ctx context.Context, r OutcomeRecord)
	RecordBatch(ctx context.Context, r BatchRecord)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordOutcome(context.Context, OutcomeRecord) {}
func (Nop) RecordBatch(context.Context, BatchRecord)     {}

// Multi fans records out to every sink in order.
type Multi []Sink

func (m Multi) RecordOutcome(ctx context.Context, r OutcomeRecord) {
	for _, s := range m {
		if s != nil {
			s.RecordOutcome(ctx, r)
		}
	}
}

func (m Multi) RecordBatch(ctx context.Context, r BatchRecord) {
	for _, s := range m {
		if s != nil {
			s.RecordBatch(ctx, r)
		}
	}
}

// OpSummary is the aggregate for one operation tag. Amounts are decimal wei.
type OpSummary struct {
	Op      string `json:"op"`
	Success int64  `json:"success"`
	Fail    int64  `json:"fail"`
	GasUsed uint64 `json:"gasUsed"`
	GasCost string `json:"gasCost"`
	Value   string `json:"value"`
}

// totals accumulates exact wei sums.
type totals struct {
	success int64
	fail    int64
	gasUsed uint64
	gasCost uint256.Int
	value   uint256.Int
}

func addBig(dst *uint256.Int, v *big.Int) {
	if v == nil || v.Sign() <= 0 {
		return
	}
	u, overflow := uint256.FromBig(v)
	if overflow {
		return
	}
	dst.Add(dst, u)
}

func (t *totals) add(r OutcomeRecord) {
	if r.Success {
		t.success++
	} else {
		t.fail++
	}
	t.gasUsed += r.GasUsed
	addBig(&t.gasCost, r.GasCost)
	addBig(&t.value, r.Value)
}

func (t *totals) summary(op string) OpSummary {
	return OpSummary{
		Op:      op,
		Success: t.success,
		Fail:    t.fail,
		GasUsed: t.gasUsed,
		GasCost: t.gasCost.Dec(),
		Value:   t.value.Dec(),
	}
}
