// Package ops builds transaction intents for the supported operations:
// airdrop transfers and router swaps.
package ops

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ligun0805/batch-swapper/internal/gasrisk"
	"github.com/ligun0805/batch-swapper/internal/store"
	"github.com/ligun0805/batch-swapper/internal/txsubmit"
)

const (
	routerV2JSON = `[{"inputs":[{"internalType":"uint256","name":"amountOutMin","type":"uint256"},{"internalType":"address[]","name":"path","type":"address[]"},{"internalType":"address","name":"to","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"}],"name":"swapExactETHForTokens","outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],"stateMutability":"payable","type":"function"}]`

	routerV3JSON = `[{"inputs":[{"components":[{"internalType":"address","name":"tokenIn","type":"address"},{"internalType":"address","name":"tokenOut","type":"address"},{"internalType":"uint24","name":"fee","type":"uint24"},{"internalType":"address","name":"recipient","type":"address"},{"internalType":"uint256","name":"deadline","type":"uint256"},{"internalType":"uint256","name":"amountIn","type":"uint256"},{"internalType":"uint256","name":"amountOutMinimum","type":"uint256"},{"internalType":"uint160","name":"sqrtPriceLimitX96","type":"uint160"}],"internalType":"struct ISwapRouter.ExactInputSingleParams","name":"params","type":"tuple"}],"name":"exactInputSingle","outputs":[{"internalType":"uint256","name":"amountOut","type":"uint256"}],"stateMutability":"payable","type":"function"}]`
)

var (
	routerV2ABI abi.ABI
	routerV3ABI abi.ABI
)

func init() {
	routerV2ABI = mustABI(routerV2JSON)
	routerV3ABI = mustABI(routerV3JSON)
}

func mustABI(s string) abi.ABI {
	ab, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return ab
}

// DefaultDeadline is added to now when SwapParams.Deadline is zero.
const DefaultDeadline = 20 * time.Minute

// DefaultV3Fee is the 0.3% pool tier.
const DefaultV3Fee uint32 = 3000

var errZeroAmount = errors.New("amount must be > 0")

// Airdrop is a plain ETH transfer.
func Airdrop(to common.Address, amount *big.Int) (*txsubmit.Intent, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, errZeroAmount
	}
	return txsubmit.NewIntent(to, nil, amount, gasrisk.OpAirdrop, ""), nil
}

// SwapParams describes one ETH -> token swap.
type SwapParams struct {
	Router       common.Address
	WETH         common.Address
	Token        store.Token
	Recipient    common.Address // the signing wallet
	AmountIn     *big.Int
	AmountOutMin *big.Int // nil = 0
	Deadline     time.Time
	Fee          uint32 // V3 only; 0 = token override or DefaultV3Fee
}

func (p SwapParams) validate() error {
	if p.AmountIn == nil || p.AmountIn.Sign() <= 0 {
		return errZeroAmount
	}
	if p.Router == (common.Address{}) {
		return errors.New("router address not set")
	}
	if p.WETH == (common.Address{}) {
		return errors.New("WETH address not set")
	}
	if !common.IsHexAddress(p.Token.Address) {
		return fmt.Errorf("token %s: bad address", p.Token.Symbol)
	}
	return nil
}

func (p SwapParams) deadline() *big.Int {
	d := p.Deadline
	if d.IsZero() {
		d = time.Now().Add(DefaultDeadline)
	}
	return big.NewInt(d.Unix())
}

func (p SwapParams) minOut() *big.Int {
	if p.AmountOutMin == nil {
		return big.NewInt(0)
	}
	return p.AmountOutMin
}

// SwapV2 encodes swapExactETHForTokens(WETH -> token).
func SwapV2(p SwapParams) (*txsubmit.Intent, error) {
	return swapV2(p, gasrisk.OpSwap)
}

func swapV2(p SwapParams, op gasrisk.Op) (*txsubmit.Intent, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	path := []common.Address{p.WETH, p.Token.Addr()}
	data, err := routerV2ABI.Pack("swapExactETHForTokens", p.minOut(), path, p.Recipient, p.deadline())
	if err != nil {
		return nil, fmt.Errorf("pack swapExactETHForTokens: %w", err)
	}
	return txsubmit.NewIntent(p.Router, data, p.AmountIn, op, p.Token.Symbol), nil
}

// MultiSwap splits AmountIn evenly across tokens, one V2 swap each. The
// division remainder goes to the first token. All intents share one signer
// and must be submitted sequentially.
func MultiSwap(p SwapParams, tokens store.Tokens) ([]*txsubmit.Intent, error) {
	if len(tokens) == 0 {
		return nil, errors.New("no tokens")
	}
	if p.AmountIn == nil || p.AmountIn.Sign() <= 0 {
		return nil, errZeroAmount
	}
	n := big.NewInt(int64(len(tokens)))
	share, rem := new(big.Int).QuoRem(p.AmountIn, n, new(big.Int))
	if share.Sign() == 0 {
		return nil, fmt.Errorf("amount %s too small to split across %d tokens", p.AmountIn, len(tokens))
	}
	out := make([]*txsubmit.Intent, 0, len(tokens))
	for i, tok := range tokens {
		q := p
		q.Token = tok
		q.AmountIn = new(big.Int).Set(share)
		if i == 0 {
			q.AmountIn.Add(q.AmountIn, rem)
		}
		in, err := swapV2(q, gasrisk.OpMultiSwap)
		if err != nil {
			return nil, fmt.Errorf("token %s: %w", tok.Symbol, err)
		}
		out = append(out, in)
	}
	return out, nil
}

type exactInputSingleParams struct {
	TokenIn           common.Address
	TokenOut          common.Address
	Fee               *big.Int
	Recipient         common.Address
	Deadline          *big.Int
	AmountIn          *big.Int
	AmountOutMinimum  *big.Int
	SqrtPriceLimitX96 *big.Int
}

// SwapV3 encodes exactInputSingle(WETH -> token) on a V3 SwapRouter.
func SwapV3(p SwapParams) (*txsubmit.Intent, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	fee := p.Fee
	if fee == 0 {
		fee = p.Token.V3Fee
	}
	if fee == 0 {
		fee = DefaultV3Fee
	}
	args := exactInputSingleParams{
		TokenIn:           p.WETH,
		TokenOut:          p.Token.Addr(),
		Fee:               new(big.Int).SetUint64(uint64(fee)),
		Recipient:         p.Recipient,
		Deadline:          p.deadline(),
		AmountIn:          new(big.Int).Set(p.AmountIn),
		AmountOutMinimum:  p.minOut(),
		SqrtPriceLimitX96: big.NewInt(0),
	}
	data, err := routerV3ABI.Pack("exactInputSingle", args)
	if err != nil {
		return nil, fmt.Errorf("pack exactInputSingle: %w", err)
	}
	return txsubmit.NewIntent(p.Router, data, p.AmountIn, gasrisk.OpSwapV3, p.Token.Symbol), nil
}
