package txsubmit

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/ligun0805/batch-swapper/internal/chain"
	"github.com/ligun0805/batch-swapper/internal/gasrisk"
)

// Options tunes receipt waiting.
type Options struct {
	ChainID        *big.Int // nil: read from the node on first submit
	ReceiptTimeout time.Duration
	PollInterval   time.Duration
	Logger         *zap.Logger
}

const (
	DefaultReceiptTimeout = 3 * time.Minute
	DefaultPollInterval   = 2 * time.Second
)

// Submitter performs exactly one submission attempt per call. Retrying is
// left to the caller.
type Submitter struct {
	client chain.Client
	eval   *gasrisk.Evaluator
	opts   Options
	log    *zap.Logger

	mu      sync.Mutex
	chainID *big.Int
}

func New(client chain.Client, eval *gasrisk.Evaluator, opts Options) *Submitter {
	if opts.ReceiptTimeout <= 0 {
		opts.ReceiptTimeout = DefaultReceiptTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	s := &Submitter{client: client, eval: eval, opts: opts, log: opts.Logger.Named("submit")}
	if opts.ChainID != nil {
		s.chainID = new(big.Int).Set(opts.ChainID)
	}
	return s
}

func (s *Submitter) resolveChainID(ctx context.Context) (*big.Int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chainID != nil {
		return s.chainID, nil
	}
	id, err := s.client.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	s.chainID = id
	return id, nil
}

// Submit evaluates, signs, broadcasts and waits for in. It never returns an
// error; every failure is described by the Outcome.
func (s *Submitter) Submit(ctx context.Context, signer Signer, in *Intent) Outcome {
	start := time.Now()
	out := s.submit(ctx, signer, in)
	out.Duration = time.Since(start)

	fields := []zap.Field{
		zap.String("op", string(out.Op)),
		zap.Stringer("from", out.From),
		zap.Stringer("to", out.To),
		zap.String("verdict", string(out.Verdict)),
		zap.String("tx", out.Hash()),
		zap.Duration("took", out.Duration),
	}
	if out.Success {
		s.log.Info("tx confirmed", append(fields, zap.Uint64("gas_used", out.GasUsed))...)
	} else {
		s.log.Warn("tx failed", append(fields,
			zap.String("reason", string(out.Failure)),
			zap.String("err", out.Err),
			zap.Duration("retry_after", out.RetryAfter))...)
	}
	return out
}

func (s *Submitter) submit(ctx context.Context, signer Signer, in *Intent) Outcome {
	out := Outcome{From: signer.Address()}
	if in == nil {
		out.Failure = EstimationFailed
		out.Err = "nil intent"
		return out
	}
	out.Op, out.To, out.Value, out.Token = in.Op(), in.To(), in.Value(), in.Token()

	if !in.claim() {
		out.Failure = NetworkRejected
		out.Err = ErrIntentConsumed.Error()
		return out
	}
	if !signer.Valid() {
		out.Failure = NetworkRejected
		out.Err = "signer has no key"
		return out
	}

	rec := s.eval.Evaluate(ctx, in.CallMsg(signer.Address()), in.Op())
	out.Verdict = rec.Verdict
	out.RetryAfter = rec.SuggestedRetryDelay
	if rec.Verdict.IsAbort() {
		out.Failure = failureFor(rec.Verdict)
		if rec.Err != nil {
			out.Err = rec.Err.Error()
		} else {
			out.Err = fmt.Sprintf("gas ratio %.2f%%", rec.CostRatioPercent)
		}
		return out
	}

	chainID, err := s.resolveChainID(ctx)
	if err != nil {
		out.Failure = NetworkRejected
		out.Err = fmt.Sprintf("chain id: %v", err)
		return out
	}
	nonce, err := s.client.PendingNonce(ctx, signer.Address())
	if err != nil {
		out.Failure = NetworkRejected
		out.Err = fmt.Sprintf("nonce: %v", err)
		return out
	}

	if rec.WaitBeforeSubmit > 0 {
		s.log.Debug("waiting before submit",
			zap.String("verdict", string(rec.Verdict)), zap.Duration("wait", rec.WaitBeforeSubmit))
		if err := sleepCtx(ctx, rec.WaitBeforeSubmit); err != nil {
			out.Failure = NetworkRejected
			out.Err = "cancelled before broadcast"
			return out
		}
	}

	to := in.To()
	tx, err := signer.sign(chainID, &types.LegacyTx{
		Nonce:    nonce,
		GasPrice: rec.Quote.AdjustedGasPrice(),
		Gas:      rec.Quote.BufferedUnits(),
		To:       &to,
		Value:    in.Value(),
		Data:     in.Data(),
	})
	if err != nil {
		out.Failure = NetworkRejected
		out.Err = fmt.Sprintf("sign: %v", err)
		return out
	}
	hash := tx.Hash()
	if err := s.client.SendTransaction(ctx, tx); err != nil {
		// a transport failure may still have delivered the tx; keep the
		// hash so it can be reconciled
		if chain.IsTransient(err) {
			out.TxHash = &hash
		}
		out.Failure = NetworkRejected
		out.Err = fmt.Sprintf("%s: %v", chain.ClassifyRPCError(err), err)
		return out
	}
	out.TxHash = &hash
	s.log.Debug("tx sent",
		zap.String("tx", hash.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas", tx.Gas()),
		zap.Stringer("gas_price", tx.GasPrice()))

	rcpt, err := s.waitReceipt(ctx, hash)
	if err != nil {
		out.Failure = Timeout
		out.Err = err.Error()
		return out
	}
	out.GasUsed = rcpt.GasUsed
	out.EffectiveGasPrice = rcpt.EffectiveGasPrice
	if out.EffectiveGasPrice == nil {
		out.EffectiveGasPrice = tx.GasPrice()
	}
	if rcpt.Status != types.ReceiptStatusSuccessful {
		out.Failure = Reverted
		out.Err = fmt.Sprintf("status %d", rcpt.Status)
		return out
	}
	out.Success = true
	return out
}

// waitReceipt polls until the receipt is found or ReceiptTimeout elapses.
func (s *Submitter) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.ReceiptTimeout)
	defer cancel()
	t := time.NewTicker(s.opts.PollInterval)
	defer t.Stop()
	for {
		rcpt, err := s.client.TransactionReceipt(ctx, hash)
		if err == nil && rcpt != nil {
			return rcpt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) && ctx.Err() == nil {
			s.log.Debug("receipt poll", zap.String("tx", hash.Hex()), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("receipt for %s not found within %s: %w", hash.Hex(), s.opts.ReceiptTimeout, ctx.Err())
		case <-t.C:
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
