package stats

import (
	"context"
	"math/big"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ligun0805/batch-swapper/internal/gasrisk"
	"github.com/ligun0805/batch-swapper/internal/txsubmit"
)

func bigDec(t *testing.T, s string) *big.Int {
	t.Helper()
	v, ok := new(big.Int).SetString(s, 10)
	require.True(t, ok)
	return v
}

func sampleRecords(t *testing.T) []OutcomeRecord {
	// 2^70 gas cost is far beyond float64's exact range
	huge := bigDec(t, "1180591620717411303424")
	return []OutcomeRecord{
		{Op: "airdrop", Success: true, GasUsed: 21000, GasCost: big.NewInt(25_200_000_000_000), Value: big.NewInt(1_000_000_000_000_000)},
		{Op: "airdrop", Success: true, GasUsed: 21000, GasCost: huge, Value: big.NewInt(1)},
		{Op: "airdrop", Success: false, Failure: "INSUFFICIENT_BALANCE"},
		{Op: "swap", Success: false, Failure: "REVERTED", GasUsed: 90000, GasCost: big.NewInt(100)},
	}
}

func TestFromOutcome(t *testing.T) {
	h := common.HexToHash("0x01")
	o := txsubmit.Outcome{
		Success: true, TxHash: &h, GasUsed: 21000, EffectiveGasPrice: big.NewInt(2),
		Op: gasrisk.OpAirdrop, Value: big.NewInt(7), Verdict: gasrisk.ProceedNormal,
	}
	r := FromOutcome("run-1", 3, o)
	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, 3, r.Index)
	assert.Equal(t, "airdrop", r.Op)
	assert.Equal(t, h.Hex(), r.TxHash)
	assert.Equal(t, "42000", r.GasCost.String())
	assert.Equal(t, "7", r.Value.String())
	assert.Equal(t, "PROCEED_NORMAL", r.Verdict)

	o.Success = false
	o.Failure = txsubmit.Reverted
	r = FromOutcome("run-1", 4, o)
	assert.Equal(t, "0", r.Value.String(), "value is only counted when delivered")
	assert.Equal(t, "REVERTED", r.Failure)
}

func TestFileStoreExactTotalsAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats", "stats.json")
	fs, err := OpenFile(path, nil)
	require.NoError(t, err)

	ctx := context.Background()
	for _, r := range sampleRecords(t) {
		fs.RecordOutcome(ctx, r)
	}
	fs.RecordBatch(ctx, BatchRecord{RunID: "r1", Op: "airdrop", Total: 3, Success: 2, Fail: 1})

	check := func(sum []OpSummary) {
		require.Len(t, sum, 2)
		assert.Equal(t, "airdrop", sum[0].Op)
		assert.Equal(t, int64(2), sum[0].Success)
		assert.Equal(t, int64(1), sum[0].Fail)
		assert.Equal(t, uint64(42000), sum[0].GasUsed)
		assert.Equal(t, "1180591645917411303424", sum[0].GasCost)
		assert.Equal(t, "1000000000000001", sum[0].Value)
		assert.Equal(t, "swap", sum[1].Op)
		assert.Equal(t, "100", sum[1].GasCost)
	}
	check(fs.Summary())
	assert.Len(t, fs.Failures(), 2)

	reopened, err := OpenFile(path, nil)
	require.NoError(t, err)
	check(reopened.Summary())
	require.Len(t, reopened.Batches(), 1)
	assert.Equal(t, "r1", reopened.Batches()[0].RunID)
}

func TestFileStoreCapsRecentLists(t *testing.T) {
	fs, err := OpenFile(filepath.Join(t.TempDir(), "s.json"), nil)
	require.NoError(t, err)
	ctx := context.Background()
	for i := 0; i < maxRecentFailures+10; i++ {
		fs.RecordOutcome(ctx, OutcomeRecord{Op: "swap", Index: i, Failure: "TIMEOUT"})
	}
	f := fs.Failures()
	require.Len(t, f, maxRecentFailures)
	assert.Equal(t, 10, f[0].Index)
	assert.Equal(t, int64(maxRecentFailures+10), fs.Summary()[0].Fail)
}

func TestSQLStore(t *testing.T) {
	s, err := OpenSQL(filepath.Join(t.TempDir(), "stats.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	ctx := context.Background()
	for i, r := range sampleRecords(t) {
		r.RunID = "run-a"
		r.Index = i
		r.From = "0xabc"
		r.At = time.Now()
		s.RecordOutcome(ctx, r)
	}
	now := time.Now()
	s.RecordBatch(ctx, BatchRecord{RunID: "run-a", Op: "airdrop", Total: 4, Success: 2, Fail: 2, StartedAt: now, FinishedAt: now})
	// same run id overwrites
	s.RecordBatch(ctx, BatchRecord{RunID: "run-a", Op: "airdrop", Total: 4, Success: 2, Fail: 2, Cancelled: true, StartedAt: now, FinishedAt: now})

	sum, err := s.Summary(ctx)
	require.NoError(t, err)
	require.Len(t, sum, 2)
	assert.Equal(t, "1180591645917411303424", sum[0].GasCost)
	assert.Equal(t, int64(1), sum[1].Fail)

	rows, err := s.Outcomes(ctx, "run-a")
	require.NoError(t, err)
	require.Len(t, rows, 4)
	for i, row := range rows {
		assert.Equal(t, i, row.Idx)
		assert.Equal(t, "0xabc", row.From)
	}

	batches, err := s.Batches(ctx, 10)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.True(t, batches[0].Cancelled)
}

func TestPromSink(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewPromSink(reg)
	ctx := context.Background()
	for _, r := range sampleRecords(t)[:1] {
		p.RecordOutcome(ctx, r)
	}
	p.RecordOutcome(ctx, OutcomeRecord{Op: "airdrop", Failure: "INSUFFICIENT_BALANCE"})
	p.RecordOutcome(ctx, OutcomeRecord{Op: "airdrop", Failure: "INSUFFICIENT_BALANCE"})
	p.RecordBatch(ctx, BatchRecord{Op: "airdrop", Success: 1, Fail: 2})

	assert.Equal(t, 1.0, testutil.ToFloat64(p.outcomes.WithLabelValues("airdrop", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.outcomes.WithLabelValues("airdrop", "INSUFFICIENT_BALANCE")))
	assert.InDelta(t, 0.0000252, testutil.ToFloat64(p.gasCost.WithLabelValues("airdrop")), 1e-12)
	assert.Equal(t, 2.0, testutil.ToFloat64(p.lastBatch.WithLabelValues("airdrop", "fail")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.batches.WithLabelValues("airdrop", "false")))
}

func TestLedgerCollectorReadsFileEachScrape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	c := NewLedgerCollector(FileLedger(path))
	assert.Equal(t, 0, testutil.CollectAndCount(c))

	f, err := OpenFile(path, nil)
	require.NoError(t, err)
	for _, r := range sampleRecords(t) {
		f.RecordOutcome(context.Background(), r)
	}
	// five series per op
	assert.Equal(t, 10, testutil.CollectAndCount(c))
	assert.Equal(t, 2, testutil.CollectAndCount(c, "swapper_ledger_gas_used_total"))

	reg := prometheus.NewRegistry()
	reg.MustRegister(NewLedgerCollector(func() ([]OpSummary, error) { return nil, assert.AnError }))
	_, err = reg.Gather()
	assert.Error(t, err)
}

type countingSink struct{ outcomes, batches int }

func (c *countingSink) RecordOutcome(context.Context, OutcomeRecord) { c.outcomes++ }
func (c *countingSink) RecordBatch(context.Context, BatchRecord)     { c.batches++ }

func TestMulti(t *testing.T) {
	a, b := &countingSink{}, &countingSink{}
	m := Multi{a, nil, b, Nop{}}
	m.RecordOutcome(context.Background(), OutcomeRecord{})
	m.RecordOutcome(context.Background(), OutcomeRecord{})
	m.RecordBatch(context.Background(), BatchRecord{})
	assert.Equal(t, 2, a.outcomes)
	assert.Equal(t, 2, b.outcomes)
	assert.Equal(t, 1, b.batches)
}
