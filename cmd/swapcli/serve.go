package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ligun0805/batch-swapper/internal/config"
	"github.com/ligun0805/batch-swapper/internal/stats"
)

// statsView is the /stats payload.
type statsView struct {
	Summary  []stats.OpSummary     `json:"summary"`
	Batches  []stats.BatchRecord   `json:"batches"`
	Failures []stats.OutcomeRecord `json:"recentFailures"`
	Ledger   []stats.BatchRow      `json:"ledger,omitempty"`
}

type statsFunc func(ctx context.Context) (statsView, error)

func collectStats(ctx context.Context, file *stats.FileStore, sql *stats.SQLStore) (statsView, error) {
	v := statsView{Summary: file.Summary(), Batches: file.Batches(), Failures: file.Failures()}
	if sql != nil {
		rows, err := sql.Batches(ctx, 20)
		if err != nil {
			return v, err
		}
		v.Ledger = rows
	}
	return v, nil
}

// fileStats re-reads path on every call.
func fileStats(path string, sql *stats.SQLStore) statsFunc {
	return func(ctx context.Context) (statsView, error) {
		file, err := stats.OpenFile(path, nil)
		if err != nil {
			return statsView{}, err
		}
		return collectStats(ctx, file, sql)
	}
}

// liveStats reads the stores a running batch writes to.
func liveStats(file *stats.FileStore, sql *stats.SQLStore) statsFunc {
	return func(ctx context.Context) (statsView, error) {
		return collectStats(ctx, file, sql)
	}
}

func newRouter(g prometheus.Gatherer, read statsFunc, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	r.Get("/stats", func(w http.ResponseWriter, req *http.Request) {
		v, err := read(req.Context())
		if err != nil {
			log.Warn("stats query failed", zap.Error(err))
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	})
	return r
}

// listenAndServe runs h on addr until ctx is done.
func listenAndServe(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("serving", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ledgerRegistry exposes persisted totals from STATS_FILE.
func ledgerRegistry(path string) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		stats.NewLedgerCollector(stats.FileLedger(path)),
	)
	return reg
}

// cmdServe serves persisted statistics. It never dials the RPC endpoint.
func cmdServe(ctx context.Context, st config.Settings, log *zap.Logger) error {
	var sql *stats.SQLStore
	if st.StatsDB != "" {
		var err error
		if sql, err = stats.OpenSQL(st.StatsDB, log); err != nil {
			return err
		}
		defer sql.Close()
	}
	h := newRouter(ledgerRegistry(st.StatsFile), fileStats(st.StatsFile, sql), log)
	return listenAndServe(ctx, st.ListenAddr, h, log)
}

// serveLive exposes the running process' registry and stores on addr until
// the returned func is called.
func (a *app) serveLive(ctx context.Context, addr string) func() {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := listenAndServe(ctx, addr, newRouter(a.reg, liveStats(a.file, a.sql), a.log), a.log); err != nil {
			a.log.Warn("live metrics server failed", zap.String("addr", addr), zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// cmdStats prints persisted totals without touching the chain.
func cmdStats(ctx context.Context, st config.Settings, log *zap.Logger) error {
	var sql *stats.SQLStore
	if st.StatsDB != "" {
		var err error
		if sql, err = stats.OpenSQL(st.StatsDB, log); err != nil {
			return err
		}
		defer sql.Close()
	}
	v, err := fileStats(st.StatsFile, sql)(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
