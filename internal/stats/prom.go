package stats

import (
	"context"
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
)

// PromSink exposes outcomes as Prometheus metrics.
type PromSink struct {
	outcomes  *prometheus.CounterVec
	gasUsed   *prometheus.HistogramVec
	gasCost   *prometheus.CounterVec
	batches   *prometheus.CounterVec
	lastBatch *prometheus.GaugeVec
}

var _ Sink = (*PromSink)(nil)

// NewPromSink registers its collectors on reg.
func NewPromSink(reg prometheus.Registerer) *PromSink {
	p := &PromSink{
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swapper_tx_outcomes_total",
			Help: "Submitted intents by operation and result.",
		}, []string{"op", "result"}),
		gasUsed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "swapper_tx_gas_used",
			Help:    "Gas used per included transaction.",
			Buckets: []float64{21000, 50000, 100000, 150000, 200000, 300000, 500000},
		}, []string{"op"}),
		gasCost: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swapper_tx_gas_cost_eth_total",
			Help: "Gas paid in ETH.",
		}, []string{"op"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swapper_batches_total",
			Help: "Finished batch runs.",
		}, []string{"op", "cancelled"}),
		lastBatch: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "swapper_last_batch_items",
			Help: "Item counts of the most recent batch per operation.",
		}, []string{"op", "result"}),
	}
	reg.MustRegister(p.outcomes, p.gasUsed, p.gasCost, p.batches, p.lastBatch)
	return p
}

func weiToEth(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v)
	f.Quo(f, big.NewFloat(1e18))
	out, _ := f.Float64()
	return out
}

func (p *PromSink) RecordOutcome(_ context.Context, r OutcomeRecord) {
	result := "success"
	if !r.Success {
		result = r.Failure
		if result == "" {
			result = "failed"
		}
	}
	p.outcomes.WithLabelValues(r.Op, result).Inc()
	if r.GasUsed > 0 {
		p.gasUsed.WithLabelValues(r.Op).Observe(float64(r.GasUsed))
		p.gasCost.WithLabelValues(r.Op).Add(weiToEth(r.GasCost))
	}
}

func (p *PromSink) RecordBatch(_ context.Context, r BatchRecord) {
	cancelled := "false"
	if r.Cancelled {
		cancelled = "true"
	}
	p.batches.WithLabelValues(r.Op, cancelled).Inc()
	p.lastBatch.WithLabelValues(r.Op, "success").Set(float64(r.Success))
	p.lastBatch.WithLabelValues(r.Op, "fail").Set(float64(r.Fail))
}
