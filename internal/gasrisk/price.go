// Package gasrisk decides whether current gas conditions are acceptable for
// an operation and with which gas price and limit it should be sent.
package gasrisk

import (
	"math/big"
)

// Op tags an operation for fallback gas units and statistics.
type Op string

const (
	OpAirdrop   Op = "airdrop"
	OpSwap      Op = "swap"
	OpMultiSwap Op = "multi_swap"
	OpSwapV3    Op = "swap_v3"
)

// DefaultFallbackUnits applies to operations missing from the fallback table.
const DefaultFallbackUnits uint64 = 500_000

var fallbackUnits = map[Op]uint64{
	OpAirdrop:   21_000,
	OpSwap:      300_000,
	OpMultiSwap: 400_000,
	OpSwapV3:    500_000,
}

// FallbackUnits is the gas limit used when live estimation is unavailable.
func FallbackUnits(op Op) uint64 {
	if u, ok := fallbackUnits[op]; ok {
		return u
	}
	return DefaultFallbackUnits
}

// DefaultPriceFloor is 0.001 gwei.
var DefaultPriceFloor = big.NewInt(1_000_000)

const (
	floorMultiplier = 5
	boostPercent    = 120

	// DefaultBufferPermille is a 1.2x gas unit buffer.
	DefaultBufferPermille uint64 = 1200
)

// AdjustPrice applies the floor/boost rule: below floor the price becomes
// floor*5, otherwise it is boosted by 20% and rounded down.
func AdjustPrice(p, floor *big.Int) *big.Int {
	if floor == nil {
		floor = DefaultPriceFloor
	}
	if p == nil || p.Cmp(floor) < 0 {
		// a sub-floor quote is unreliable; pay floor*5 instead of boosting a near-zero price
		return new(big.Int).Mul(floor, big.NewInt(floorMultiplier))
	}
	out := new(big.Int).Mul(p, big.NewInt(boostPercent))
	return out.Quo(out, big.NewInt(100))
}

// BufferUnits returns floor(units * permille / 1000).
func BufferUnits(units, permille uint64) uint64 {
	if permille == 0 {
		permille = DefaultBufferPermille
	}
	v := new(big.Int).Mul(new(big.Int).SetUint64(units), new(big.Int).SetUint64(permille))
	v.Quo(v, big.NewInt(1000))
	if !v.IsUint64() {
		return ^uint64(0)
	}
	return v.Uint64()
}

// MultiplierToPermille converts a buffer multiplier such as 1.2 into 1200.
func MultiplierToPermille(m float64) uint64 {
	if m <= 0 {
		return DefaultBufferPermille
	}
	return uint64(m*1000 + 0.5)
}
