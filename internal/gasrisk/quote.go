package gasrisk

import (
	"fmt"
	"math/big"
)

// GasQuote is a snapshot of pricing for one evaluation. The zero value is
// an empty quote; use NewQuote.
type GasQuote struct {
	basePrice     *big.Int
	adjustedPrice *big.Int
	estimated     uint64
	buffered      uint64
	projectedCost *big.Int
	fallback      bool
}

// NewQuote derives adjusted price, buffered units and projected cost from a
// network price and an estimate. fallback marks estimates taken from the
// per-operation table.
func NewQuote(base, floor *big.Int, estimated, bufferPermille uint64, fallback bool) GasQuote {
	adj := AdjustPrice(base, floor)
	buf := BufferUnits(estimated, bufferPermille)
	q := GasQuote{
		adjustedPrice: adj,
		estimated:     estimated,
		buffered:      buf,
		projectedCost: new(big.Int).Mul(adj, new(big.Int).SetUint64(buf)),
		fallback:      fallback,
	}
	if base != nil {
		q.basePrice = new(big.Int).Set(base)
	}
	return q
}

func copyInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}

func (q GasQuote) BaseGasPrice() *big.Int     { return copyInt(q.basePrice) }
func (q GasQuote) AdjustedGasPrice() *big.Int { return copyInt(q.adjustedPrice) }
func (q GasQuote) EstimatedUnits() uint64     { return q.estimated }
func (q GasQuote) BufferedUnits() uint64      { return q.buffered }
func (q GasQuote) ProjectedCost() *big.Int    { return copyInt(q.projectedCost) }
func (q GasQuote) UsedFallback() bool         { return q.fallback }

func (q GasQuote) String() string {
	return fmt.Sprintf("price=%s adj=%s units=%d buffered=%d cost=%s fallback=%v",
		copyInt(q.basePrice), copyInt(q.adjustedPrice), q.estimated, q.buffered, copyInt(q.projectedCost), q.fallback)
}
