package main

import (
	"fmt"
	"io"
	"math/big"
	"time"

	"github.com/fatih/color"

	"github.com/ligun0805/batch-swapper/internal/batch"
	"github.com/ligun0805/batch-swapper/internal/config"
	"github.com/ligun0805/batch-swapper/internal/ethunit"
)

func printConfig(st config.Settings, chainID *big.Int) {
	swapMax := "-"
	if st.SwapAmountMax != nil {
		swapMax = ethunit.FormatEther(st.SwapAmountMax)
	}
	fmt.Println("=== CONFIG ===")
	fmt.Println("RPC_URL             :", st.RPCURL)
	fmt.Println("CHAIN_ID            :", chainID.String())
	fmt.Println("FUNDING_PRIVATE_KEY :", maskHex(st.FundingPrivateKey))
	fmt.Println("WALLETS_FILE        :", st.WalletsFile)
	fmt.Println("Gas ceiling (ETH)   :", ethunit.FormatEther(st.GasCeiling))
	fmt.Println("Buffer multiplier   :", st.BufferMultiplier)
	fmt.Println("Price floor (gwei)  :", ethunit.FormatGwei(st.PriceFloor))
	fmt.Println("Airdrop amount (ETH):", ethunit.FormatEther(st.AirdropAmount))
	fmt.Println("Swap amount (ETH)   :", ethunit.FormatEther(st.SwapAmount), "max", swapMax)
	fmt.Println("Chunks (fund/swap)  :", st.FundingChunkSize, "/", st.SwapBatchSize)
	fmt.Println("Concurrent signers  :", st.ConcurrentSigners)
	fmt.Println("==============")
}

// printSummary always reports success and fail counts.
func printSummary(w io.Writer, res batch.Result) {
	title := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(w, title("=== BATCH "+res.Op+" ==="))
	fmt.Fprintln(w, "run       :", res.RunID)
	fmt.Fprintf(w, "processed : %d / %d\n", len(res.Items), res.Total)
	fmt.Fprintln(w, "success   :", green(res.SuccessCount))
	fmt.Fprintln(w, "fail      :", red(res.FailCount))
	for i, b := range res.ChunkBoundaries {
		fmt.Fprintf(w, "chunk %-3d : [%d, %d)\n", i+1, b.Start, b.End)
	}
	if res.Cancelled {
		fmt.Fprintln(w, color.New(color.FgYellow).Sprint("stopped early; unprocessed items were not started"))
	}
	fmt.Fprintln(w, "took      :", res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond))
}
