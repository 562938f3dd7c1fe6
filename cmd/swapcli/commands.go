package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/ligun0805/batch-swapper/internal/batch"
	"github.com/ligun0805/batch-swapper/internal/config"
	"github.com/ligun0805/batch-swapper/internal/ethunit"
	"github.com/ligun0805/batch-swapper/internal/gasrisk"
	"github.com/ligun0805/batch-swapper/internal/store"
	"github.com/ligun0805/batch-swapper/internal/txsubmit"
)

func cmdCreateWallets(args []string, st config.Settings) error {
	fs := flag.NewFlagSet("create-wallets", flag.ExitOnError)
	n := fs.Int("n", 10, "number of wallets to generate")
	_ = fs.Parse(args)

	ws, err := store.GenerateWallets(*n)
	if err != nil {
		return err
	}
	total, err := store.AppendWallets(st.WalletsFile, ws)
	if err != nil {
		return err
	}
	fmt.Printf("created %d wallets, %s now holds %d\n", len(ws), st.WalletsFile, total)
	return nil
}

func rangeFlags(fs *flag.FlagSet) (start, end *int) {
	start = fs.Int("start", 0, "first wallet index (inclusive)")
	end = fs.Int("end", 0, "last wallet index (exclusive, 0 = all)")
	return
}

func listenFlag(fs *flag.FlagSet) *string {
	return fs.String("listen", "", "serve /metrics and /stats on this address while the batch runs")
}

func (a *app) loadWallets(start, end int) (store.Wallets, error) {
	all, err := store.LoadWallets(a.st.WalletsFile)
	if err != nil {
		return nil, err
	}
	ws := all.Slice(start, end)
	if len(ws) == 0 {
		return nil, fmt.Errorf("no wallets in [%d,%d) of %s (%d total)", start, end, a.st.WalletsFile, len(all))
	}
	return ws, nil
}

func (a *app) fundingSigner() (txsubmit.Signer, error) {
	pk, err := fundingKey(a.st, stdinIsTerminal(), func() string { return readPassword("Funding private key: ") })
	if err != nil {
		return txsubmit.Signer{}, err
	}
	return txsubmit.SignerFromHex(pk)
}

// fundingKey prompts for a missing key only on an interactive terminal.
func fundingKey(st config.Settings, interactive bool, prompt func() string) (string, error) {
	if st.FundingPrivateKey != "" || !interactive {
		return st.FundingPrivateKey, st.RequireFunding()
	}
	return prompt(), nil
}

func (a *app) cmdAirdrop(ctx context.Context, args []string, all bool) error {
	fs := flag.NewFlagSet("airdrop", flag.ExitOnError)
	start, end := rangeFlags(fs)
	listen := listenFlag(fs)
	_ = fs.Parse(args)
	if all {
		*start, *end = 0, 0
	}

	funder, err := a.fundingSigner()
	if err != nil {
		return fmt.Errorf("funding key: %w", err)
	}
	ws, err := a.loadWallets(*start, *end)
	if err != nil {
		return err
	}
	printConfig(a.st, a.chainID)
	fmt.Printf("airdrop %s ETH from %s to %d wallets\n", ethunit.FormatEther(a.st.AirdropAmount), funder.Address().Hex(), len(ws))

	items := airdropItems(funder, ws, a.st.AirdropAmount)
	return a.runBatch(ctx, *listen, items, batch.Config{
		Op:              string(gasrisk.OpAirdrop),
		ChunkSize:       a.st.FundingChunkSize,
		InterChunkDelay: a.st.AirdropChunkDelay,
	})
}

func (a *app) cmdSwap(ctx context.Context, args []string, mode swapMode, all bool) error {
	fs := flag.NewFlagSet("swap", flag.ExitOnError)
	start, end := rangeFlags(fs)
	listen := listenFlag(fs)
	tokenKey := fs.String("token", "", "token symbol or address (default: first in TOKENS_FILE)")
	fee := fs.Uint("fee", 0, "V3 pool fee tier (0 = token v3Fee, then V3_FEE)")
	modeFlag := fs.String("mode", string(modeV2), "batch-swap mode: v2|multi|v3")
	_ = fs.Parse(args)
	if all {
		*start, *end = 0, 0
		m, err := parseMode(*modeFlag)
		if err != nil {
			return err
		}
		mode = m
	}
	if err := a.st.RequireSwap(mode == modeV3); err != nil {
		return err
	}

	tokens, err := store.LoadTokens(a.st.TokensFile)
	if err != nil {
		return err
	}
	plan, err := newSwapPlan(a.st, mode, tokens, *tokenKey, uint32(*fee))
	if err != nil {
		return err
	}

	ws, err := a.loadWallets(*start, *end)
	if err != nil {
		return err
	}
	printConfig(a.st, a.chainID)
	fmt.Printf("swap mode=%s wallets=%d token=%s\n", mode, len(ws), plan.Token.Symbol)

	op := gasrisk.OpSwap
	switch mode {
	case modeMulti:
		op = gasrisk.OpMultiSwap
	case modeV3:
		op = gasrisk.OpSwapV3
	}
	return a.runBatch(ctx, *listen, swapItems(ws, plan), batch.Config{
		Op:              string(op),
		ChunkSize:       a.st.SwapBatchSize,
		InterChunkDelay: a.st.SwapBatchDelay,
		Concurrent:      a.st.ConcurrentSigners,
	})
}

func (a *app) runBatch(ctx context.Context, listen string, items []batch.Item, cfg batch.Config) error {
	if listen != "" {
		stop := a.serveLive(ctx, listen)
		defer stop()
	}
	ok, bad := color.New(color.FgGreen).SprintFunc(), color.New(color.FgRed).SprintFunc()
	cfg.OnOutcome = func(io batch.IndexedOutcome) {
		o := io.Outcome
		if o.Success {
			fmt.Printf("  #%-4d %s %s gas=%d cost=%s ETH\n", io.Index, ok("OK  "), o.Hash(), o.GasUsed, ethunit.FormatEther(o.GasCost()))
			return
		}
		fmt.Printf("  #%-4d %s %s %s %s\n", io.Index, bad("FAIL"), o.Failure, o.Verdict, o.Err)
	}

	orch := batch.New(a.sub, cfg, a.sink, a.log)
	stopHook.set(orch.Stop)
	defer stopHook.set(nil)

	res, err := orch.Run(ctx, items)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, res)
	return nil
}

func (a *app) cmdPrecheck(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("precheck", flag.ExitOnError)
	opFlag := fs.String("op", string(gasrisk.OpAirdrop), "airdrop|swap|multi_swap|swap_v3")
	_ = fs.Parse(args)

	rec := a.eval.PreCheck(ctx, gasrisk.Op(strings.ToLower(*opFlag)))
	q := rec.Quote
	verdict := color.New(color.FgGreen, color.Bold).SprintFunc()
	if rec.Verdict.IsAbort() {
		verdict = color.New(color.FgRed, color.Bold).SprintFunc()
	} else if rec.Verdict == gasrisk.ProceedCautious || rec.Verdict == gasrisk.ProceedExpensive {
		verdict = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	fmt.Println("op             :", *opFlag)
	fmt.Println("verdict        :", verdict(string(rec.Verdict)))
	fmt.Printf("cost ratio     : %.2f%% of %s ETH\n", rec.CostRatioPercent, ethunit.FormatEther(a.eval.Ceiling()))
	if q.AdjustedGasPrice() != nil {
		fmt.Printf("gas price      : %s gwei (node %s gwei)\n", ethunit.FormatGwei(q.AdjustedGasPrice()), ethunit.FormatGwei(q.BaseGasPrice()))
		fmt.Printf("units          : %d buffered from %d\n", q.BufferedUnits(), q.EstimatedUnits())
		fmt.Printf("projected cost : %s ETH\n", ethunit.FormatEther(q.ProjectedCost()))
	}
	fmt.Println("wait / retry   :", rec.WaitBeforeSubmit, "/", rec.SuggestedRetryDelay)
	if rec.Fallback {
		fmt.Println("fallback       :", rec.Err)
	}
	a.log.Info("precheck", zap.String("op", *opFlag), zap.String("verdict", string(rec.Verdict)))
	return nil
}
