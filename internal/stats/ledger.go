package stats

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerCollector exports persisted totals. The source is read on every
// scrape, so a process that only serves metrics follows what batch runs
// write.
type LedgerCollector struct {
	source func() ([]OpSummary, error)

	outcomes *prometheus.Desc
	gasUsed  *prometheus.Desc
	gasCost  *prometheus.Desc
	value    *prometheus.Desc
}

var _ prometheus.Collector = (*LedgerCollector)(nil)

func NewLedgerCollector(source func() ([]OpSummary, error)) *LedgerCollector {
	return &LedgerCollector{
		source: source,
		outcomes: prometheus.NewDesc("swapper_ledger_outcomes_total",
			"Recorded outcomes by operation and result.", []string{"op", "result"}, nil),
		gasUsed: prometheus.NewDesc("swapper_ledger_gas_used_total",
			"Recorded gas used by operation.", []string{"op"}, nil),
		gasCost: prometheus.NewDesc("swapper_ledger_gas_cost_eth_total",
			"Recorded gas cost in ETH by operation.", []string{"op"}, nil),
		value: prometheus.NewDesc("swapper_ledger_value_eth_total",
			"Recorded value sent in ETH by operation.", []string{"op"}, nil),
	}
}

// FileLedger reads path afresh for each call.
func FileLedger(path string) func() ([]OpSummary, error) {
	return func() ([]OpSummary, error) {
		f, err := OpenFile(path, nil)
		if err != nil {
			return nil, err
		}
		return f.Summary(), nil
	}
}

func (c *LedgerCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.outcomes
	ch <- c.gasUsed
	ch <- c.gasCost
	ch <- c.value
}

func (c *LedgerCollector) Collect(ch chan<- prometheus.Metric) {
	sums, err := c.source()
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.outcomes, err)
		return
	}
	for _, s := range sums {
		ch <- prometheus.MustNewConstMetric(c.outcomes, prometheus.CounterValue, float64(s.Success), s.Op, "success")
		ch <- prometheus.MustNewConstMetric(c.outcomes, prometheus.CounterValue, float64(s.Fail), s.Op, "fail")
		ch <- prometheus.MustNewConstMetric(c.gasUsed, prometheus.CounterValue, float64(s.GasUsed), s.Op)
		ch <- prometheus.MustNewConstMetric(c.gasCost, prometheus.CounterValue, decToEth(s.GasCost), s.Op)
		ch <- prometheus.MustNewConstMetric(c.value, prometheus.CounterValue, decToEth(s.Value), s.Op)
	}
}

func decToEth(s string) float64 {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return 0
	}
	return weiToEth(v)
}
