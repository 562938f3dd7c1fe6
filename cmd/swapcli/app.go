package main

import (
	"context"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/ligun0805/batch-swapper/internal/chain"
	"github.com/ligun0805/batch-swapper/internal/config"
	"github.com/ligun0805/batch-swapper/internal/gasrisk"
	"github.com/ligun0805/batch-swapper/internal/stats"
	"github.com/ligun0805/batch-swapper/internal/txsubmit"
)

// app wires one chain connection to the evaluator, submitter and sinks.
type app struct {
	st      config.Settings
	log     *zap.Logger
	client  *chain.EthClient
	chainID *big.Int
	eval    *gasrisk.Evaluator
	sub     *txsubmit.Submitter

	reg  *prometheus.Registry
	file *stats.FileStore
	sql  *stats.SQLStore // nil unless STATS_DB is set
	sink stats.Sink
}

func newApp(ctx context.Context, st config.Settings, log *zap.Logger) (*app, error) {
	client, err := chain.Dial(st.RPCURL, chain.Options{RPS: st.RPCRPS, Burst: st.RPCBurst, Logger: log})
	if err != nil {
		return nil, err
	}
	a := &app{st: st, log: log, client: client}

	if st.ChainID > 0 {
		a.chainID = big.NewInt(st.ChainID)
	} else if a.chainID, err = client.ChainID(ctx); err != nil {
		client.Close()
		return nil, err
	}

	a.eval = gasrisk.NewEvaluator(client, gasrisk.Config{
		Ceiling:        st.GasCeiling,
		BufferPermille: gasrisk.MultiplierToPermille(st.BufferMultiplier),
		PriceFloor:     st.PriceFloor,
		PriceTTL:       st.PriceCacheTTL,
	}, log)
	a.sub = txsubmit.New(client, a.eval, txsubmit.Options{
		ChainID:        a.chainID,
		ReceiptTimeout: st.ReceiptTimeout,
		PollInterval:   st.ReceiptPoll,
		Logger:         log,
	})

	a.reg = prometheus.NewRegistry()
	a.reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	sinks := stats.Multi{stats.NewPromSink(a.reg)}
	if a.file, err = stats.OpenFile(st.StatsFile, log); err != nil {
		a.Close()
		return nil, err
	}
	sinks = append(sinks, a.file)
	a.reg.MustRegister(stats.NewLedgerCollector(func() ([]stats.OpSummary, error) { return a.file.Summary(), nil }))
	if st.StatsDB != "" {
		if a.sql, err = stats.OpenSQL(st.StatsDB, log); err != nil {
			a.Close()
			return nil, err
		}
		sinks = append(sinks, a.sql)
	}
	a.sink = sinks

	log.Info("connected",
		zap.String("rpc", st.RPCURL),
		zap.String("chain_id", a.chainID.String()),
		zap.String("gas_ceiling", a.eval.Ceiling().String()))
	return a, nil
}

func (a *app) Close() {
	if a.sql != nil {
		_ = a.sql.Close()
	}
	a.client.Close()
}

// stopHook lets the signal handler stop the running batch.
var stopHook = &hook{}

type hook struct {
	mu sync.Mutex
	fn func()
}

func (h *hook) set(fn func()) {
	h.mu.Lock()
	h.fn = fn
	h.mu.Unlock()
}

// fire calls the registered stop func and reports whether there was one.
func (h *hook) fire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.fn == nil {
		return false
	}
	h.fn()
	return true
}
