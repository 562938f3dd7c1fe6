package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
)

// RewardStats aggregates min/avg/max of one priority fee percentile.
type RewardStats struct {
	Min *big.Int
	Avg *big.Int
	Max *big.Int
}

// Snapshot is a one-shot view of fee market conditions.
type Snapshot struct {
	Head     uint64
	BaseFee  *big.Int // nil on pre-1559 chains
	GasPrice *big.Int
	Rewards  map[int]RewardStats
	Blocks   int
}

// NetworkSnapshot returns base fee, legacy gas price and min/avg/max priority
// rewards for the given percentiles over the last `blocks` blocks.
func (c *EthClient) NetworkSnapshot(ctx context.Context, blocks int, percentiles []int) (Snapshot, error) {
	if blocks <= 0 {
		blocks = 100
	}
	if len(percentiles) == 0 {
		percentiles = []int{50, 95, 99}
	}
	out := Snapshot{Blocks: blocks}

	h, err := c.ec.HeaderByNumber(ctx, nil)
	if err != nil {
		return out, &UnavailableError{Op: "eth_getBlockByNumber", Err: err}
	}
	out.Head = h.Number.Uint64()
	if h.BaseFee != nil {
		out.BaseFee = new(big.Int).Set(h.BaseFee)
	}
	if out.GasPrice, err = c.GasPrice(ctx); err != nil {
		return out, err
	}

	pcts := make([]float64, len(percentiles))
	for i, p := range percentiles {
		pcts[i] = float64(p)
	}
	var reward [][]*big.Int
	err = c.read(ctx, "eth_feeHistory", func(ctx context.Context) error {
		res, err := c.ec.FeeHistory(ctx, uint64(blocks), nil, pcts)
		if err != nil {
			return err
		}
		reward = res.Reward
		return nil
	})
	if err != nil {
		return out, &UnavailableError{Op: "eth_feeHistory", Err: err}
	}
	out.Rewards, err = aggregateRewards(reward, percentiles)
	if err != nil {
		return out, fmt.Errorf("feeHistory: %w", err)
	}
	return out, nil
}

func aggregateRewards(rows [][]*big.Int, percentiles []int) (map[int]RewardStats, error) {
	if len(rows) == 0 {
		return nil, errors.New("empty reward")
	}
	res := make(map[int]RewardStats, len(percentiles))
	counts := make(map[int]int64, len(percentiles))
	for _, p := range percentiles {
		res[p] = RewardStats{Avg: big.NewInt(0), Max: big.NewInt(0)}
	}
	for _, row := range rows {
		for j := 0; j < len(percentiles) && j < len(row); j++ {
			v := row[j]
			if v == nil {
				continue
			}
			p := percentiles[j]
			st := res[p]
			if st.Min == nil || v.Cmp(st.Min) < 0 {
				st.Min = new(big.Int).Set(v)
			}
			if v.Cmp(st.Max) > 0 {
				st.Max = new(big.Int).Set(v)
			}
			st.Avg.Add(st.Avg, v)
			counts[p]++
			res[p] = st
		}
	}
	for p, st := range res {
		if n := counts[p]; n > 0 {
			st.Avg.Div(st.Avg, big.NewInt(n))
		}
		if st.Min == nil {
			st.Min = big.NewInt(0)
		}
		res[p] = st
	}
	return res, nil
}
