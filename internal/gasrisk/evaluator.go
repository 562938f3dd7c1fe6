package gasrisk

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/ligun0805/batch-swapper/internal/chain"
)

const priceKey = "eth_gasPrice"

// Config holds the evaluator's thresholds.
type Config struct {
	Ceiling        *big.Int // max acceptable cost per operation, wei
	BufferPermille uint64   // 1200 = 1.2x
	PriceFloor     *big.Int // wei
	PriceTTL       time.Duration
}

// Evaluator turns live oracle reads into GasRecommendations. It never
// returns an error: failures become fallback recommendations.
type Evaluator struct {
	oracle chain.Oracle
	cfg    Config
	prices *expirable.LRU[string, *big.Int]
	log    *zap.Logger
}

func NewEvaluator(oracle chain.Oracle, cfg Config, log *zap.Logger) *Evaluator {
	if cfg.BufferPermille == 0 {
		cfg.BufferPermille = DefaultBufferPermille
	}
	if cfg.PriceFloor == nil {
		cfg.PriceFloor = DefaultPriceFloor
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &Evaluator{oracle: oracle, cfg: cfg, log: log.Named("gasrisk")}
	if cfg.PriceTTL > 0 {
		e.prices = expirable.NewLRU[string, *big.Int](1, nil, cfg.PriceTTL)
	}
	return e
}

// Ceiling returns a copy of the configured cost ceiling.
func (e *Evaluator) Ceiling() *big.Int { return copyInt(e.cfg.Ceiling) }

func (e *Evaluator) gasPrice(ctx context.Context) (*big.Int, error) {
	if e.prices != nil {
		if p, ok := e.prices.Get(priceKey); ok {
			return new(big.Int).Set(p), nil
		}
	}
	p, err := e.oracle.GasPrice(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, errors.New("empty gas price")
	}
	if e.prices != nil {
		e.prices.Add(priceKey, new(big.Int).Set(p))
	}
	return p, nil
}

// PreCheck evaluates a hypothetical operation with its fallback gas units
// and no balance check. Oracle failure yields PROCEED_CAUTIOUS.
func (e *Evaluator) PreCheck(ctx context.Context, op Op) GasRecommendation {
	price, err := e.gasPrice(ctx)
	if err != nil {
		e.log.Warn("pre-check fallback", zap.String("op", string(op)), zap.Error(err))
		return cautiousFallback(err)
	}
	q := NewQuote(price, e.cfg.PriceFloor, FallbackUnits(op), e.cfg.BufferPermille, true)
	rec := Assess(q, e.cfg.Ceiling, nil)
	e.log.Debug("pre-check",
		zap.String("op", string(op)),
		zap.String("verdict", string(rec.Verdict)),
		zap.Float64("ratio", rec.CostRatioPercent))
	return rec
}

// Evaluate checks a concrete call from msg.From. Estimation failure falls
// back to the op's table units; any other internal failure yields
// ABORT_HIGH_GAS.
func (e *Evaluator) Evaluate(ctx context.Context, msg ethereum.CallMsg, op Op) GasRecommendation {
	price, err := e.gasPrice(ctx)
	if err != nil {
		e.log.Warn("evaluate fallback", zap.String("op", string(op)), zap.Error(err))
		return abortFallback(err)
	}

	units, fallback := e.estimate(ctx, msg, op)
	q := NewQuote(price, e.cfg.PriceFloor, units, e.cfg.BufferPermille, fallback)

	bal, err := e.oracle.Balance(ctx, msg.From)
	if err != nil {
		e.log.Warn("evaluate fallback", zap.String("op", string(op)), zap.Error(err))
		rec := abortFallback(err)
		rec.Quote = q
		return rec
	}
	ok := HasBalance(bal, q, msg.Value)
	rec := Assess(q, e.cfg.Ceiling, &ok)
	e.log.Debug("evaluate",
		zap.String("op", string(op)),
		zap.Stringer("from", msg.From),
		zap.Stringer("quote", q),
		zap.String("verdict", string(rec.Verdict)),
		zap.Float64("ratio", rec.CostRatioPercent))
	return rec
}

func (e *Evaluator) estimate(ctx context.Context, msg ethereum.CallMsg, op Op) (uint64, bool) {
	units, err := e.oracle.EstimateGas(ctx, msg)
	if err == nil && units > 0 {
		return units, false
	}
	fb := FallbackUnits(op)
	var ee *chain.EstimationError
	if errors.As(err, &ee) {
		e.log.Info("estimate reverted, using fallback gas",
			zap.String("op", string(op)), zap.Uint64("gas", fb), zap.Error(err))
	} else {
		e.log.Warn("estimate unavailable, using fallback gas",
			zap.String("op", string(op)), zap.Uint64("gas", fb), zap.Error(err))
	}
	return fb, true
}
