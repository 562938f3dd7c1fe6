package stats

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	maxRecentFailures = 100
	maxRecentBatches  = 50
)

type opDoc struct {
	Success int64  `json:"success"`
	Fail    int64  `json:"fail"`
	GasUsed uint64 `json:"gasUsed"`
	GasCost string `json:"gasCost"`
	Value   string `json:"value"`
}

type fileDoc struct {
	UpdatedAt      time.Time         `json:"updatedAt"`
	Ops            map[string]*opDoc `json:"ops"`
	RecentFailures []OutcomeRecord   `json:"recentFailures"`
	Batches        []BatchRecord     `json:"batches"`
}

// FileStore keeps aggregate statistics in one JSON document. Totals are
// exact uint256 sums serialized as decimal strings.
type FileStore struct {
	path string
	log  *zap.Logger

	mu       sync.Mutex
	ops      map[string]*totals
	failures []OutcomeRecord
	batches  []BatchRecord
}

var _ Sink = (*FileStore)(nil)

// OpenFile loads path if it exists.
func OpenFile(path string, log *zap.Logger) (*FileStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	fs := &FileStore{path: path, log: log.Named("stats.file"), ops: map[string]*totals{}}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, errors.Wrap(err, "read stats")
	}
	var doc fileDoc
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, errors.Wrapf(err, "parse stats %s", path)
	}
	for op, d := range doc.Ops {
		t := &totals{success: d.Success, fail: d.Fail, gasUsed: d.GasUsed}
		if err := setDec(&t.gasCost, d.GasCost); err != nil {
			return nil, errors.Wrapf(err, "stats %s gasCost", op)
		}
		if err := setDec(&t.value, d.Value); err != nil {
			return nil, errors.Wrapf(err, "stats %s value", op)
		}
		fs.ops[op] = t
	}
	fs.failures = doc.RecentFailures
	fs.batches = doc.Batches
	return fs, nil
}

func setDec(dst *uint256.Int, s string) error {
	if s == "" {
		dst.Clear()
		return nil
	}
	return dst.SetFromDecimal(s)
}

func (f *FileStore) RecordOutcome(_ context.Context, r OutcomeRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.ops[r.Op]
	if !ok {
		t = &totals{}
		f.ops[r.Op] = t
	}
	t.add(r)
	if !r.Success {
		f.failures = append(f.failures, r)
		if n := len(f.failures); n > maxRecentFailures {
			f.failures = f.failures[n-maxRecentFailures:]
		}
	}
	f.flushLocked()
}

func (f *FileStore) RecordBatch(_ context.Context, r BatchRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, r)
	if n := len(f.batches); n > maxRecentBatches {
		f.batches = f.batches[n-maxRecentBatches:]
	}
	f.flushLocked()
}

// Summary returns per-op totals sorted by op name.
func (f *FileStore) Summary() []OpSummary {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]OpSummary, 0, len(f.ops))
	for op, t := range f.ops {
		out = append(out, t.summary(op))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Op < out[j].Op })
	return out
}

// Batches returns the most recent batch records, oldest first.
func (f *FileStore) Batches() []BatchRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]BatchRecord(nil), f.batches...)
}

// Failures returns the most recent failed outcomes, oldest first.
func (f *FileStore) Failures() []OutcomeRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]OutcomeRecord(nil), f.failures...)
}

func (f *FileStore) flushLocked() {
	if err := f.writeLocked(); err != nil {
		f.log.Warn("stats write failed", zap.String("path", f.path), zap.Error(err))
	}
}

func (f *FileStore) writeLocked() error {
	doc := fileDoc{
		UpdatedAt:      time.Now().UTC(),
		Ops:            make(map[string]*opDoc, len(f.ops)),
		RecentFailures: f.failures,
		Batches:        f.batches,
	}
	for op, t := range f.ops {
		s := t.summary(op)
		doc.Ops[op] = &opDoc{Success: s.Success, Fail: s.Fail, GasUsed: s.GasUsed, GasCost: s.GasCost, Value: s.Value}
	}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}
