package ops

import (
	"math/big"
	"math/rand"
	"sync"
	"time"
)

// AmountPicker returns Min, or a uniform random value in [Min, Max] when
// Max > Min. It is safe for concurrent use.
type AmountPicker struct {
	Min *big.Int
	Max *big.Int

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewAmountPicker(min, max *big.Int, seed int64) *AmountPicker {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &AmountPicker{Min: min, Max: max, rnd: rand.New(rand.NewSource(seed))}
}

func (a *AmountPicker) Pick() *big.Int {
	if a.Min == nil {
		return big.NewInt(0)
	}
	if a.Max == nil || a.Max.Cmp(a.Min) <= 0 {
		return new(big.Int).Set(a.Min)
	}
	span := new(big.Int).Sub(a.Max, a.Min)
	span.Add(span, big.NewInt(1))
	a.mu.Lock()
	v := new(big.Int).Rand(a.rnd, span)
	a.mu.Unlock()
	return v.Add(v, a.Min)
}
