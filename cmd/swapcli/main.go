package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/ligun0805/batch-swapper/internal/config"
	"github.com/ligun0805/batch-swapper/internal/logging"
)

const usage = `usage: swapcli [-config swapper.toml] <command> [flags]

commands:
  create-wallets -n N           generate N wallets and append them to WALLETS_FILE
  airdrop -start A -end B       fund wallets [A,B) from FUNDING_PRIVATE_KEY
  swap -start A -end B [-token] ETH -> token through ROUTER_V2
  swap-multi -start A -end B    ETH -> every token, amount split evenly
  swap-v3 -start A -end B [-token] [-fee] ETH -> token through ROUTER_V3
  batch-airdrop                 airdrop to all wallets
  batch-swap [-mode v2|multi|v3] swap from all wallets
  precheck -op OP               gas verdict for airdrop|swap|multi_swap|swap_v3
  netcheck [-blocks N]          fee market snapshot
  stats                         totals from STATS_FILE / STATS_DB
  serve                         /metrics, /stats and /healthz on LISTEN_ADDR (no RPC)

airdrop and swap commands accept -listen ADDR to serve the same endpoints
with live counters while the batch runs.
`

func main() {
	global := flag.NewFlagSet("swapcli", flag.ExitOnError)
	cfgPath := global.String("config", config.DefaultFile, "optional TOML settings file")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = global.Parse(os.Args[1:])
	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}
	cmd, args := global.Arg(0), global.Args()[1:]

	st, err := config.Load(*cfgPath)
	must(err, "load config")
	must(st.Validate(), "config")

	log, flush, err := logging.New(logging.Config{Level: st.LogLevel, Dir: st.LogDir, Name: cmd})
	must(err, "init logger")
	defer flush()

	ctx, stop := signalContext(log)
	defer stop()

	if err := run(ctx, cmd, args, st, log); err != nil {
		log.Error("command failed", zap.String("cmd", cmd), zap.Error(err))
		flush()
		die(err.Error())
	}
}

func run(ctx context.Context, cmd string, args []string, st config.Settings, log *zap.Logger) error {
	switch cmd {
	case "create-wallets":
		return cmdCreateWallets(args, st)
	case "stats":
		return cmdStats(ctx, st, log)
	case "serve":
		return cmdServe(ctx, st, log)
	}

	a, err := newApp(ctx, st, log)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "airdrop":
		return a.cmdAirdrop(ctx, args, false)
	case "batch-airdrop":
		return a.cmdAirdrop(ctx, args, true)
	case "swap":
		return a.cmdSwap(ctx, args, modeV2, false)
	case "swap-multi":
		return a.cmdSwap(ctx, args, modeMulti, false)
	case "swap-v3":
		return a.cmdSwap(ctx, args, modeV3, false)
	case "batch-swap":
		return a.cmdSwap(ctx, args, "", true)
	case "precheck":
		return a.cmdPrecheck(ctx, args)
	case "netcheck":
		return a.cmdNetcheck(ctx, args)
	}
	return fmt.Errorf("unknown command %q\n%s", cmd, usage)
}

// signalContext stops batches gracefully on the first SIGINT/SIGTERM
// (through stopHook) and cancels the context on the second.
func signalContext(log *zap.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		first := true
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-ch:
				if first && stopHook.fire() {
					log.Warn("stopping after in-flight items; signal again to abort", zap.Stringer("signal", sig))
					first = false
					continue
				}
				log.Warn("aborting", zap.Stringer("signal", sig))
				cancel()
				return
			}
		}
	}()
	return ctx, func() {
		signal.Stop(ch)
		cancel()
	}
}
