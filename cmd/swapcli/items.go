package main

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/batch-swapper/internal/batch"
	"github.com/ligun0805/batch-swapper/internal/config"
	"github.com/ligun0805/batch-swapper/internal/ops"
	"github.com/ligun0805/batch-swapper/internal/store"
	"github.com/ligun0805/batch-swapper/internal/txsubmit"
)

type swapMode string

const (
	modeV2    swapMode = "v2"
	modeMulti swapMode = "multi"
	modeV3    swapMode = "v3"
)

func parseMode(s string) (swapMode, error) {
	switch m := swapMode(s); m {
	case modeV2, modeMulti, modeV3:
		return m, nil
	}
	return "", fmt.Errorf("unknown swap mode %q (v2|multi|v3)", s)
}

// airdropItems sends amount from funder to every wallet address.
func airdropItems(funder txsubmit.Signer, ws store.Wallets, amount *big.Int) []batch.Item {
	items := make([]batch.Item, 0, len(ws))
	for _, w := range ws {
		it := batch.Item{Signer: funder}
		if !common.IsHexAddress(w.Address) {
			it.Err = fmt.Errorf("wallet %q: bad address", w.Address)
		} else {
			it.Intent, it.Err = ops.Airdrop(w.Addr(), amount)
		}
		items = append(items, it)
	}
	return items
}

// swapPlan is everything needed to turn wallets into swap items.
type swapPlan struct {
	Mode       swapMode
	Router     common.Address
	WETH       common.Address
	Token      store.Token  // v2 / v3
	Tokens     store.Tokens // multi
	Fee        uint32       // explicit tier; 0 = token override, then DefaultFee
	DefaultFee uint32
	MinOut     *big.Int
	Amount     *ops.AmountPicker
	Deadline   time.Duration // counted from build time; 0 = ops.DefaultDeadline
	Now        func() time.Time
}

func (p swapPlan) fee(tok store.Token) uint32 {
	switch {
	case p.Fee != 0:
		return p.Fee
	case tok.V3Fee != 0:
		return tok.V3Fee
	}
	return p.DefaultFee
}

func (p swapPlan) deadline() time.Time {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	d := p.Deadline
	if d <= 0 {
		d = ops.DefaultDeadline
	}
	return now().Add(d)
}

// swapItems yields one item per wallet (one per token for multi). Parameters
// are checked here but calldata is encoded by Item.Build right before
// submission, so every swap's deadline counts from its own send. A wallet
// whose key cannot be parsed still yields an item carrying the error so the
// batch reports it.
func swapItems(ws store.Wallets, p swapPlan) []batch.Item {
	var items []batch.Item
	for _, w := range ws {
		signer, err := w.Signer()
		if err != nil {
			items = append(items, batch.Item{Err: err})
			continue
		}
		sp := ops.SwapParams{
			Router:       p.Router,
			WETH:         p.WETH,
			Token:        p.Token,
			Recipient:    signer.Address(),
			AmountIn:     p.Amount.Pick(),
			AmountOutMin: p.MinOut,
			Fee:          p.fee(p.Token),
		}
		if p.Mode == modeMulti {
			if _, err := ops.MultiSwap(sp, p.Tokens); err != nil {
				items = append(items, batch.Item{Signer: signer, Err: err})
				continue
			}
			for k := range p.Tokens {
				k := k
				items = append(items, batch.Item{Signer: signer, Build: func() (*txsubmit.Intent, error) {
					q := sp
					q.Deadline = p.deadline()
					intents, err := ops.MultiSwap(q, p.Tokens)
					if err != nil {
						return nil, err
					}
					return intents[k], nil
				}})
			}
			continue
		}

		encode := ops.SwapV2
		if p.Mode == modeV3 {
			encode = ops.SwapV3
		}
		if _, err := encode(sp); err != nil {
			items = append(items, batch.Item{Signer: signer, Err: err})
			continue
		}
		items = append(items, batch.Item{Signer: signer, Build: func() (*txsubmit.Intent, error) {
			q := sp
			q.Deadline = p.deadline()
			return encode(q)
		}})
	}
	return items
}

// newSwapPlan resolves router, token and fee settings for mode. tokenKey
// selects the v2/v3 token (first entry when empty); fee is the explicit
// pool tier, 0 leaving the choice to the token and then V3_FEE.
func newSwapPlan(st config.Settings, mode swapMode, tokens store.Tokens, tokenKey string, fee uint32) (swapPlan, error) {
	if len(tokens) == 0 {
		return swapPlan{}, fmt.Errorf("%s has no tokens", st.TokensFile)
	}
	plan := swapPlan{
		Mode:       mode,
		Router:     common.HexToAddress(st.RouterV2),
		WETH:       common.HexToAddress(st.WETH),
		Tokens:     tokens,
		Fee:        fee,
		DefaultFee: st.V3Fee,
		MinOut:     st.SwapMinOut,
		Amount:     ops.NewAmountPicker(st.SwapAmount, st.SwapAmountMax, 0),
	}
	if mode == modeV3 {
		plan.Router = common.HexToAddress(st.RouterV3)
	}
	if mode != modeMulti {
		tok, ok := tokens[0], true
		if tokenKey != "" {
			tok, ok = tokens.Find(tokenKey)
		}
		if !ok {
			return swapPlan{}, fmt.Errorf("token %q not in %s", tokenKey, st.TokensFile)
		}
		plan.Token = tok
	}
	return plan, nil
}
