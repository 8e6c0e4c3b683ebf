package math

import (
	gomath "math"
	"math/big"

	"github.com/holiman/uint256"
)

// Sizer computes trade amounts as a fraction of the shallower pool, scaled
// linearly by the observed price divergence within fixed bounds.
type Sizer struct {
	BaseFraction  float64
	DiffScale     float64
	MinMultiplier float64
	MaxMultiplier float64
}

// DefaultSizer returns the sizing rule used unless configured otherwise:
// 1% of the smaller pool, multiplier clamp(diff*10, 0.5, 2.0).
func DefaultSizer() Sizer {
	return Sizer{
		BaseFraction:  0.01,
		DiffScale:     10,
		MinMultiplier: 0.5,
		MaxMultiplier: 2.0,
	}
}

// OptimalAmount sizes a trade between pools holding sourceLiquidity and
// targetLiquidity. Nil liquidity counts as an empty pool.
func (s Sizer) OptimalAmount(sourceLiquidity, targetLiquidity *uint256.Int, priceDiff float64) float64 {
	base := toFloat(minLiquidity(sourceLiquidity, targetLiquidity)) * s.BaseFraction
	return base * s.Multiplier(priceDiff)
}

// Multiplier returns the clamped divergence multiplier. A NaN divergence
// takes the upper bound.
func (s Sizer) Multiplier(priceDiff float64) float64 {
	m := priceDiff * s.DiffScale
	if gomath.IsNaN(m) || m > s.MaxMultiplier {
		return s.MaxMultiplier
	}
	if m < s.MinMultiplier {
		return s.MinMultiplier
	}
	return m
}

// OptimalAmount applies the default sizing rule
func OptimalAmount(sourceLiquidity, targetLiquidity *uint256.Int, priceDiff float64) float64 {
	return DefaultSizer().OptimalAmount(sourceLiquidity, targetLiquidity, priceDiff)
}

func minLiquidity(a, b *uint256.Int) *uint256.Int {
	if a == nil || b == nil {
		return new(uint256.Int)
	}
	if a.Lt(b) {
		return a
	}
	return b
}

func toFloat(x *uint256.Int) float64 {
	f, _ := new(big.Float).SetInt(x.ToBig()).Float64()
	return f
}
