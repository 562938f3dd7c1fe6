package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"
	"strings"

	"github.com/ligun0805/batch-swapper/internal/ethunit"
	"github.com/ligun0805/batch-swapper/internal/gasrisk"
)

// cmdNetcheck prints the fee market and the verdict each operation would get
// right now.
func (a *app) cmdNetcheck(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("netcheck", flag.ExitOnError)
	blocks := fs.Int("blocks", 100, "fee history window")
	pctsFlag := fs.String("pcts", "50,95,99", "reward percentiles")
	_ = fs.Parse(args)
	pcts := parseCSVInts(*pctsFlag, []int{50, 95, 99})

	snap, err := a.client.NetworkSnapshot(ctx, *blocks, pcts)
	if err != nil {
		return err
	}
	fmt.Printf("[net] head: %d\n", snap.Head)
	if snap.BaseFee != nil {
		fmt.Printf("[net] baseFee(now): %s gwei\n", ethunit.FormatGwei(snap.BaseFee))
	}
	fmt.Printf("[net] gasPrice: %s gwei\n", ethunit.FormatGwei(snap.GasPrice))
	if len(snap.Rewards) > 0 {
		fmt.Printf("[net] reward stats last %d blocks:\n", snap.Blocks)
		for _, p := range pcts {
			st, ok := snap.Rewards[p]
			if !ok {
				continue
			}
			fmt.Printf("  p%-2d min/avg/max: %s / %s / %s gwei\n", p,
				ethunit.FormatGwei(st.Min), ethunit.FormatGwei(st.Avg), ethunit.FormatGwei(st.Max))
		}
	}

	for _, op := range []gasrisk.Op{gasrisk.OpAirdrop, gasrisk.OpSwap, gasrisk.OpMultiSwap, gasrisk.OpSwapV3} {
		rec := a.eval.PreCheck(ctx, op)
		fmt.Printf("[gas] %-10s %-22s %6.2f%%  cost=%s ETH\n", op, rec.Verdict, rec.CostRatioPercent,
			ethunit.FormatEther(rec.Quote.ProjectedCost()))
	}
	return nil
}

// parseCSVInts parses "a,b,c" into []int with defaults if empty/bad.
func parseCSVInts(s string, def []int) []int {
	var out []int
	for _, p := range strings.Split(s, ",") {
		if v, err := strconv.Atoi(strings.TrimSpace(p)); err == nil {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
