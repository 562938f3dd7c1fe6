// Package batch drives a Submitter over an ordered list of independent
// items in fixed-size chunks.
package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ligun0805/batch-swapper/internal/gasrisk"
	"github.com/ligun0805/batch-swapper/internal/stats"
	"github.com/ligun0805/batch-swapper/internal/txsubmit"
)

var (
	ErrNoItems      = errors.New("batch: no items")
	ErrBadChunkSize = errors.New("batch: chunk size must be > 0")
	ErrRunning      = errors.New("batch: run already in progress")
)

// Submitter is satisfied by *txsubmit.Submitter.
type Submitter interface {
	Submit(ctx context.Context, signer txsubmit.Signer, in *txsubmit.Intent) txsubmit.Outcome
}

// Item is one unit of work. When Intent is nil, Build is called right before
// the item is submitted. Err, or a Build error, marks an intent that could
// not be built; such items are reported as ESTIMATION_FAILED without
// submitting.
type Item struct {
	Signer txsubmit.Signer
	Intent *txsubmit.Intent
	Build  func() (*txsubmit.Intent, error)
	Err    error
}

type State int32

const (
	Idle State = iota
	Running
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Done:
		return "done"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

type Config struct {
	Op              string // label for statistics
	ChunkSize       int
	InterChunkDelay time.Duration
	// Concurrent dispatches distinct signers of a chunk in parallel. Items
	// of the same signer always run one after another.
	Concurrent bool
	// OnOutcome is called for every finished item, serialized.
	OnOutcome func(IndexedOutcome)
}

type Boundary struct {
	Start int // inclusive
	End   int // exclusive
}

type IndexedOutcome struct {
	Index   int
	Outcome txsubmit.Outcome
}

// Result is the ordered record of one run. SuccessCount+FailCount always
// equals len(Items); items never started after cancellation are absent.
type Result struct {
	RunID           string
	Op              string
	Total           int
	Items           []IndexedOutcome
	SuccessCount    int
	FailCount       int
	ChunkBoundaries []Boundary
	Cancelled       bool
	StartedAt       time.Time
	FinishedAt      time.Time
}

type Orchestrator struct {
	sub  Submitter
	cfg  Config
	sink stats.Sink
	log  *zap.Logger

	state atomic.Int32
	stop  atomic.Bool
	sleep func(ctx context.Context, d time.Duration) error

	cbMu sync.Mutex
}

func New(sub Submitter, cfg Config, sink stats.Sink, log *zap.Logger) *Orchestrator {
	if sink == nil {
		sink = stats.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{sub: sub, cfg: cfg, sink: sink, log: log.Named("batch"), sleep: sleepCtx}
}

func (o *Orchestrator) State() State { return State(o.state.Load()) }

// Stop asks a running batch to not start any further item. Broadcast
// transactions are not affected.
func (o *Orchestrator) Stop() { o.stop.Store(true) }

func (o *Orchestrator) halted(ctx context.Context) bool {
	return o.stop.Load() || ctx.Err() != nil
}

// Run processes items chunk by chunk. It only returns an error for invalid
// input, before anything is submitted.
func (o *Orchestrator) Run(ctx context.Context, items []Item) (Result, error) {
	if len(items) == 0 {
		return Result{}, ErrNoItems
	}
	if o.cfg.ChunkSize <= 0 {
		return Result{}, ErrBadChunkSize
	}
	if !o.state.CompareAndSwap(int32(Idle), int32(Running)) &&
		!o.state.CompareAndSwap(int32(Done), int32(Running)) {
		return Result{}, ErrRunning
	}
	o.stop.Store(false)
	defer o.state.Store(int32(Done))

	res := Result{
		RunID:     uuid.NewString(),
		Op:        o.cfg.Op,
		Total:     len(items),
		Items:     make([]IndexedOutcome, 0, len(items)),
		StartedAt: time.Now(),
	}
	log := o.log.With(zap.String("run", res.RunID), zap.String("op", o.cfg.Op))
	log.Info("batch started",
		zap.Int("items", len(items)),
		zap.Int("chunk_size", o.cfg.ChunkSize),
		zap.Bool("concurrent", o.cfg.Concurrent))

	for start := 0; start < len(items); start += o.cfg.ChunkSize {
		if o.halted(ctx) {
			res.Cancelled = true
			break
		}
		end := start + o.cfg.ChunkSize
		if end > len(items) {
			end = len(items)
		}
		outs := o.runChunk(ctx, res.RunID, items, start, end)
		if len(outs) == 0 {
			res.Cancelled = true
			break
		}
		ok := 0
		for _, io := range outs {
			if io.Outcome.Success {
				ok++
			}
		}
		res.Items = append(res.Items, outs...)
		res.SuccessCount += ok
		res.FailCount += len(outs) - ok
		res.ChunkBoundaries = append(res.ChunkBoundaries, Boundary{Start: start, End: outs[len(outs)-1].Index + 1})
		log.Info("chunk done",
			zap.Int("chunk", len(res.ChunkBoundaries)),
			zap.Int("start", start),
			zap.Int("end", end),
			zap.Int("ok", ok),
			zap.Int("fail", len(outs)-ok))

		if start+len(outs) < end {
			res.Cancelled = true
			break
		}
		if end < len(items) && o.cfg.InterChunkDelay > 0 {
			if err := o.sleep(ctx, o.cfg.InterChunkDelay); err != nil {
				res.Cancelled = true
				break
			}
		}
	}

	res.FinishedAt = time.Now()
	o.sink.RecordBatch(context.WithoutCancel(ctx), stats.BatchRecord{
		RunID:      res.RunID,
		Op:         res.Op,
		Total:      res.Total,
		Success:    res.SuccessCount,
		Fail:       res.FailCount,
		Chunks:     len(res.ChunkBoundaries),
		Cancelled:  res.Cancelled,
		StartedAt:  res.StartedAt,
		FinishedAt: res.FinishedAt,
	})
	log.Info("batch finished",
		zap.Int("ok", res.SuccessCount),
		zap.Int("fail", res.FailCount),
		zap.Bool("cancelled", res.Cancelled),
		zap.Duration("took", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

// runChunk returns the outcomes of items[start:end] that were started,
// ordered by index. Items are grouped per signer; groups run in parallel
// only when Concurrent is set.
func (o *Orchestrator) runChunk(ctx context.Context, runID string, items []Item, start, end int) []IndexedOutcome {
	outs := make([]IndexedOutcome, end-start)
	ran := make([]bool, end-start)

	runGroup := func(idxs []int) {
		for _, i := range idxs {
			if o.halted(ctx) {
				return
			}
			outs[i-start] = IndexedOutcome{Index: i, Outcome: o.runItem(ctx, runID, i, items[i])}
			ran[i-start] = true
		}
	}

	groups := groupBySigner(items, start, end)
	if o.cfg.Concurrent && len(groups) > 1 {
		var g errgroup.Group
		g.SetLimit(end - start)
		for _, idxs := range groups {
			idxs := idxs
			g.Go(func() error {
				runGroup(idxs)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		all := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			all = append(all, i)
		}
		runGroup(all)
	}

	done := make([]IndexedOutcome, 0, end-start)
	for k, ok := range ran {
		if ok {
			done = append(done, outs[k])
		}
	}
	return done
}

func (o *Orchestrator) runItem(ctx context.Context, runID string, idx int, it Item) txsubmit.Outcome {
	var out txsubmit.Outcome
	if it.Err == nil && it.Intent == nil && it.Build != nil {
		it.Intent, it.Err = it.Build()
	}
	switch {
	case it.Err != nil || it.Intent == nil:
		err := it.Err
		if err == nil {
			err = errors.New("no intent")
		}
		op := gasrisk.Op(o.cfg.Op)
		if it.Intent != nil {
			op = it.Intent.Op()
		}
		out = txsubmit.BuildFailure(op, it.Signer.Address(), err)
	default:
		out = o.sub.Submit(ctx, it.Signer, it.Intent)
	}
	o.sink.RecordOutcome(context.WithoutCancel(ctx), stats.FromOutcome(runID, idx, out))
	if o.cfg.OnOutcome != nil {
		o.cbMu.Lock()
		o.cfg.OnOutcome(IndexedOutcome{Index: idx, Outcome: out})
		o.cbMu.Unlock()
	}
	return out
}

// groupBySigner splits [start,end) into per-signer index lists, ordered by
// first appearance.
func groupBySigner(items []Item, start, end int) [][]int {
	pos := map[common.Address]int{}
	var groups [][]int
	for i := start; i < end; i++ {
		addr := items[i].Signer.Address()
		k, ok := pos[addr]
		if !ok {
			k = len(groups)
			pos[addr] = k
			groups = append(groups, nil)
		}
		groups[k] = append(groups[k], i)
	}
	return groups
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
