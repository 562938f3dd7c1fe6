package batch

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/batch-swapper/internal/chain/chaintest"
	"github.com/ligun0805/batch-swapper/internal/gasrisk"
	"github.com/ligun0805/batch-swapper/internal/stats"
	"github.com/ligun0805/batch-swapper/internal/txsubmit"
)

var milli = big.NewInt(1_000_000_000_000_000)

func newSigner(t *testing.T) txsubmit.Signer {
	t.Helper()
	k, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	return txsubmit.NewSigner(k)
}

func recipientN(i int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0x1000 + i)))
}

func newEngine(fake *chaintest.Fake) *txsubmit.Submitter {
	ev := gasrisk.NewEvaluator(fake, gasrisk.Config{
		Ceiling:  big.NewInt(10_000_000_000_000_000),
		PriceTTL: time.Minute,
	}, nil)
	return txsubmit.New(fake, ev, txsubmit.Options{PollInterval: time.Millisecond, ReceiptTimeout: time.Second})
}

type memSink struct {
	mu       sync.Mutex
	outcomes []stats.OutcomeRecord
	batches  []stats.BatchRecord
}

func (m *memSink) RecordOutcome(_ context.Context, r stats.OutcomeRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, r)
}

func (m *memSink) RecordBatch(_ context.Context, r stats.BatchRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches = append(m.batches, r)
}

func TestAirdropFundsRunOutInThirdChunk(t *testing.T) {
	fake := chaintest.New()
	funder := newSigner(t)

	// per transfer: value + 21000 gas actually paid, and value + 25200 gas
	// required by the balance check at 1.2 gwei
	paid := new(big.Int).Add(milli, big.NewInt(21_000*1_200_000_000))
	required := new(big.Int).Add(milli, big.NewInt(25_200*1_200_000_000))
	funds := new(big.Int).Mul(paid, big.NewInt(79))
	funds.Add(funds, required)
	fake.Fund(funder.Address(), funds)

	items := make([]Item, 100)
	for i := range items {
		items[i] = Item{Signer: funder, Intent: txsubmit.NewIntent(recipientN(i), nil, milli, gasrisk.OpAirdrop, "")}
	}

	sink := &memSink{}
	o := New(newEngine(fake), Config{Op: "airdrop", ChunkSize: 40, InterChunkDelay: time.Millisecond}, sink, nil)
	var sleeps int
	o.sleep = func(context.Context, time.Duration) error { sleeps++; return nil }

	res, err := o.Run(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 80, res.SuccessCount)
	assert.Equal(t, 20, res.FailCount)
	assert.False(t, res.Cancelled)
	assert.Equal(t, []Boundary{{0, 40}, {40, 80}, {80, 100}}, res.ChunkBoundaries)
	assert.Equal(t, 2, sleeps, "no pause after the last chunk")
	assert.Equal(t, Done, o.State())

	require.Len(t, res.Items, 100)
	for i, io := range res.Items {
		assert.Equal(t, i, io.Index)
		if i < 80 {
			assert.True(t, io.Outcome.Success, "item %d: %s", i, io.Outcome.Err)
			continue
		}
		assert.Equal(t, gasrisk.AbortInsufficientBalance, io.Outcome.Verdict, "item %d", i)
		assert.Equal(t, txsubmit.InsufficientBalance, io.Outcome.Failure, "item %d", i)
	}
	assert.Equal(t, 80, fake.SentCount())

	assert.Len(t, sink.outcomes, 100)
	require.Len(t, sink.batches, 1)
	assert.Equal(t, 80, sink.batches[0].Success)
	assert.Equal(t, 3, sink.batches[0].Chunks)
	assert.Equal(t, res.RunID, sink.batches[0].RunID)
}

func TestEstimationAlwaysFailingUsesFallbackUnits(t *testing.T) {
	fake := chaintest.New()
	fake.EstimateErr = errors.New("execution reverted")
	router := common.HexToAddress("0x4752ba5DBc23f44D87826276BF6Fd6b1C372aD24")

	var items []Item
	for i := 0; i < 12; i++ {
		s := newSigner(t)
		fake.Fund(s.Address(), big.NewInt(1_000_000_000_000_000_000))
		op := gasrisk.OpSwap
		if i%2 == 1 {
			op = gasrisk.OpSwapV3
		}
		items = append(items, Item{Signer: s, Intent: txsubmit.NewIntent(router, []byte{0x01}, milli, op, "")})
	}

	o := New(newEngine(fake), Config{Op: "swap", ChunkSize: 5, Concurrent: true}, nil, nil)
	o.sleep = func(context.Context, time.Duration) error { return nil }
	res, err := o.Run(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 12, res.SuccessCount)
	assert.Zero(t, res.FailCount)

	require.Equal(t, 12, fake.SentCount())
	for _, tx := range fake.Sent {
		assert.Contains(t, []uint64{360_000, 600_000}, tx.Gas())
	}
}

func TestAllItemsFail(t *testing.T) {
	fake := chaintest.New()
	fake.SendErr = errors.New("503 Service Unavailable")
	var items []Item
	for i := 0; i < 7; i++ {
		s := newSigner(t)
		fake.Fund(s.Address(), big.NewInt(1_000_000_000_000_000_000))
		items = append(items, Item{Signer: s, Intent: txsubmit.NewIntent(recipientN(i), nil, milli, gasrisk.OpAirdrop, "")})
	}
	o := New(newEngine(fake), Config{ChunkSize: 3, Concurrent: true}, nil, nil)
	o.sleep = func(context.Context, time.Duration) error { return nil }

	res, err := o.Run(context.Background(), items)
	require.NoError(t, err)
	assert.Zero(t, res.SuccessCount)
	assert.Equal(t, 7, res.FailCount)
	assert.Equal(t, len(res.Items), res.SuccessCount+res.FailCount)
	for _, io := range res.Items {
		assert.Equal(t, txsubmit.NetworkRejected, io.Outcome.Failure)
	}
}

// stubSubmitter finishes later items first and tracks per-signer overlap.
type stubSubmitter struct {
	mu        sync.Mutex
	inFlight  map[common.Address]int
	maxSame   int
	calls     int
	afterCall func(n int)
}

func (s *stubSubmitter) Submit(_ context.Context, signer txsubmit.Signer, in *txsubmit.Intent) txsubmit.Outcome {
	s.mu.Lock()
	s.inFlight[signer.Address()]++
	if s.inFlight[signer.Address()] > s.maxSame {
		s.maxSame = s.inFlight[signer.Address()]
	}
	s.calls++
	n := s.calls
	s.mu.Unlock()

	time.Sleep(time.Duration(in.Value().Int64()) * time.Millisecond)

	s.mu.Lock()
	s.inFlight[signer.Address()]--
	s.mu.Unlock()
	if s.afterCall != nil {
		s.afterCall(n)
	}
	return txsubmit.Outcome{Success: in.Value().Int64()%2 == 0, From: signer.Address(), To: in.To(), Value: in.Value()}
}

func TestConcurrentOrderingAndPerSignerSequencing(t *testing.T) {
	signers := []txsubmit.Signer{newSigner(t), newSigner(t), newSigner(t)}
	var items []Item
	for i := 0; i < 18; i++ {
		// decreasing sleep: later items would finish first
		items = append(items, Item{
			Signer: signers[i%3],
			Intent: txsubmit.NewIntent(recipientN(i), nil, big.NewInt(int64(18-i)), gasrisk.OpSwap, ""),
		})
	}
	sub := &stubSubmitter{inFlight: map[common.Address]int{}}
	o := New(sub, Config{ChunkSize: 6, Concurrent: true}, nil, nil)

	res, err := o.Run(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, res.Items, 18)
	for i, io := range res.Items {
		assert.Equal(t, i, io.Index)
		assert.Equal(t, recipientN(i), io.Outcome.To)
		assert.Equal(t, signers[i%3].Address(), io.Outcome.From)
	}
	assert.Equal(t, 1, sub.maxSame, "one signer never has two submissions in flight")
	assert.Equal(t, 18, res.SuccessCount+res.FailCount)
	assert.Equal(t, 9, res.SuccessCount)
}

func TestStopPreventsNextItem(t *testing.T) {
	s := newSigner(t)
	var items []Item
	for i := 0; i < 10; i++ {
		items = append(items, Item{Signer: s, Intent: txsubmit.NewIntent(recipientN(i), nil, big.NewInt(0), gasrisk.OpAirdrop, "")})
	}
	sub := &stubSubmitter{inFlight: map[common.Address]int{}}
	o := New(sub, Config{ChunkSize: 4}, nil, nil)
	sub.afterCall = func(n int) {
		if n == 6 {
			o.Stop()
		}
	}

	res, err := o.Run(context.Background(), items)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Len(t, res.Items, 6)
	assert.Equal(t, 6, res.SuccessCount+res.FailCount)
	assert.Equal(t, []Boundary{{0, 4}, {4, 6}}, res.ChunkBoundaries)
	assert.Equal(t, 6, sub.calls)
}

func TestCancelledContextStartsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sub := &stubSubmitter{inFlight: map[common.Address]int{}}
	o := New(sub, Config{ChunkSize: 2}, nil, nil)

	res, err := o.Run(ctx, []Item{{Signer: newSigner(t), Intent: txsubmit.NewIntent(recipientN(0), nil, big.NewInt(0), gasrisk.OpAirdrop, "")}})
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Empty(t, res.Items)
	assert.Zero(t, sub.calls)
}

func TestBuildFailureItems(t *testing.T) {
	sub := &stubSubmitter{inFlight: map[common.Address]int{}}
	var seen []int
	o := New(sub, Config{Op: "swap_v3", ChunkSize: 10, OnOutcome: func(io IndexedOutcome) { seen = append(seen, io.Index) }}, nil, nil)
	s := newSigner(t)
	items := []Item{
		{Signer: s, Intent: txsubmit.NewIntent(recipientN(0), nil, big.NewInt(0), gasrisk.OpSwapV3, "")},
		{Signer: s, Err: errors.New("pack exactInputSingle: bad fee")},
		{Signer: s},
	}
	res, err := o.Run(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, 1, res.SuccessCount)
	assert.Equal(t, 2, res.FailCount)
	assert.Equal(t, txsubmit.EstimationFailed, res.Items[1].Outcome.Failure)
	assert.Equal(t, gasrisk.OpSwapV3, res.Items[1].Outcome.Op)
	assert.Equal(t, txsubmit.EstimationFailed, res.Items[2].Outcome.Failure)
	assert.Equal(t, 1, sub.calls)
	assert.Equal(t, []int{0, 1, 2}, seen)
}

func TestItemsAreBuiltWhenSubmitted(t *testing.T) {
	var built, builtAtSubmit []int
	sub := &stubSubmitter{inFlight: map[common.Address]int{}}
	sub.afterCall = func(int) { builtAtSubmit = append(builtAtSubmit, len(built)) }
	o := New(sub, Config{Op: "swap", ChunkSize: 2}, nil, nil)
	s := newSigner(t)
	build := func(i int) func() (*txsubmit.Intent, error) {
		return func() (*txsubmit.Intent, error) {
			built = append(built, i)
			if i == 2 {
				return nil, errors.New("pack swapExactETHForTokens: bad path")
			}
			return txsubmit.NewIntent(recipientN(i), nil, big.NewInt(0), gasrisk.OpSwap, ""), nil
		}
	}
	items := []Item{
		{Signer: s, Build: build(0)},
		{Signer: s, Build: build(1)},
		{Signer: s, Build: build(2)},
		{Signer: s, Build: build(3)},
	}
	assert.Empty(t, built)

	res, err := o.Run(context.Background(), items)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2, 3}, built)
	// nothing past the submitted item had been built yet
	assert.Equal(t, []int{1, 2, 4}, builtAtSubmit)
	assert.Equal(t, 3, res.SuccessCount)
	assert.Equal(t, txsubmit.EstimationFailed, res.Items[2].Outcome.Failure)
	assert.Contains(t, res.Items[2].Outcome.Err, "bad path")
	assert.Equal(t, 3, sub.calls)
}

func TestStoppedItemsAreNeverBuilt(t *testing.T) {
	sub := &stubSubmitter{inFlight: map[common.Address]int{}}
	o := New(sub, Config{ChunkSize: 5}, nil, nil)
	sub.afterCall = func(int) { o.Stop() }
	s := newSigner(t)
	builds := 0
	build := func() (*txsubmit.Intent, error) {
		builds++
		return txsubmit.NewIntent(recipientN(0), nil, big.NewInt(0), gasrisk.OpSwap, ""), nil
	}
	items := []Item{{Signer: s, Build: build}, {Signer: s, Build: build}, {Signer: s, Build: build}}

	res, err := o.Run(context.Background(), items)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 1, builds)
}

func TestRunValidation(t *testing.T) {
	o := New(&stubSubmitter{inFlight: map[common.Address]int{}}, Config{ChunkSize: 5}, nil, nil)
	_, err := o.Run(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoItems)
	assert.Equal(t, Idle, o.State())

	o = New(&stubSubmitter{}, Config{}, nil, nil)
	_, err = o.Run(context.Background(), []Item{{}})
	assert.ErrorIs(t, err, ErrBadChunkSize)
}

func TestGroupBySigner(t *testing.T) {
	a, b := newSigner(t), newSigner(t)
	items := []Item{{Signer: a}, {Signer: b}, {Signer: a}, {Signer: a}, {Signer: b}}
	assert.Equal(t, [][]int{{0, 2, 3}, {1, 4}}, groupBySigner(items, 0, 5))
	assert.Equal(t, [][]int{{2, 3}, {4}}, groupBySigner(items, 2, 5))
}
