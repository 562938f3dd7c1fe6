package chain

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options tunes the RPC client.
type Options struct {
	RPS         float64       // token bucket refill rate for all calls
	Burst       int           // token bucket size
	HTTPTimeout time.Duration // per request
	ReadRetries int           // extra attempts for transient read failures; 0 = 2, < 0 disables
	Logger      *zap.Logger
}

func (o *Options) withDefaults() {
	if o.RPS <= 0 {
		o.RPS = 20
	}
	if o.Burst <= 0 {
		o.Burst = 10
	}
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = 30 * time.Second
	}
	if o.ReadRetries == 0 {
		o.ReadRetries = 2
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

func (o Options) retries() int {
	if o.ReadRetries < 0 {
		return 0
	}
	return o.ReadRetries
}

// EthClient implements Client on top of go-ethereum's ethclient.
type EthClient struct {
	ec      *ethclient.Client
	limiter *rate.Limiter
	retries uint64
	log     *zap.Logger
}

var _ Client = (*EthClient)(nil)

// Dial connects to rpcURL with keep-alives and sane timeouts.
func Dial(rpcURL string, opts Options) (*EthClient, error) {
	opts.withDefaults()
	transport := &http.Transport{
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
	}
	httpClient := &http.Client{Timeout: opts.HTTPTimeout, Transport: transport}
	rc, err := rpc.DialHTTPWithClient(rpcURL, httpClient)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	return NewEthClient(ethclient.NewClient(rc), opts), nil
}

// NewEthClient wraps an already connected ethclient.
func NewEthClient(ec *ethclient.Client, opts Options) *EthClient {
	opts.withDefaults()
	return &EthClient{
		ec:      ec,
		limiter: rate.NewLimiter(rate.Limit(opts.RPS), opts.Burst),
		retries: uint64(opts.retries()),
		log:     opts.Logger,
	}
}

// Close releases the underlying connection.
func (c *EthClient) Close() { c.ec.Close() }


// read runs fn under the rate limiter and retries transient failures with
// exponential backoff. Non-transient errors are returned immediately.
func (c *EthClient) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attempt := 0
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if !IsTransient(err) {
			return backoff.Permanent(err)
		}
		c.log.Debug("transient rpc error",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.String("class", ClassifyRPCError(err)),
			zap.Error(err))
		return err
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, c.retries), ctx))
}

func (c *EthClient) GasPrice(ctx context.Context) (*big.Int, error) {
	var p *big.Int
	err := c.read(ctx, "eth_gasPrice", func(ctx context.Context) (err error) {
		p, err = c.ec.SuggestGasPrice(ctx)
		return err
	})
	if err != nil {
		return nil, &UnavailableError{Op: "eth_gasPrice", Err: err}
	}
	return p, nil
}

func (c *EthClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	var units uint64
	err := c.read(ctx, "eth_estimateGas", func(ctx context.Context) (err error) {
		units, err = c.ec.EstimateGas(ctx, msg)
		return err
	})
	if err != nil {
		if IsTransient(err) || ctx.Err() != nil {
			return 0, &UnavailableError{Op: "eth_estimateGas", Err: err}
		}
		return 0, &EstimationError{Err: err}
	}
	return units, nil
}

func (c *EthClient) Balance(ctx context.Context, addr common.Address) (*big.Int, error) {
	var bal *big.Int
	err := c.read(ctx, "eth_getBalance", func(ctx context.Context) (err error) {
		bal, err = c.ec.BalanceAt(ctx, addr, nil)
		return err
	})
	if err != nil {
		return nil, &UnavailableError{Op: "eth_getBalance", Err: err}
	}
	return bal, nil
}

func (c *EthClient) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	var n uint64
	err := c.read(ctx, "eth_getTransactionCount", func(ctx context.Context) (err error) {
		n, err = c.ec.PendingNonceAt(ctx, addr)
		return err
	})
	if err != nil {
		return 0, &UnavailableError{Op: "eth_getTransactionCount", Err: err}
	}
	return n, nil
}

func (c *EthClient) ChainID(ctx context.Context) (*big.Int, error) {
	var id *big.Int
	err := c.read(ctx, "eth_chainId", func(ctx context.Context) (err error) {
		id, err = c.ec.ChainID(ctx)
		return err
	})
	if err != nil {
		return nil, &UnavailableError{Op: "eth_chainId", Err: err}
	}
	return id, nil
}

// SendTransaction broadcasts tx exactly once; it is never retried.
func (c *EthClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	return c.ec.SendTransaction(ctx, tx)
}

func (c *EthClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return c.ec.TransactionReceipt(ctx, hash)
}
