package math

import (
	gomath "math"
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceImpact(t *testing.T) {
	tests := []struct {
		name      string
		amount    float64
		liquidity float64
		want      float64
	}{
		{"empty pool", 500, 0, 1.0},
		{"negative pool", 500, -1, 1.0},
		{"zero amount", 0, 100000, 0},
		{"small trade", 500, 100000, 500.0 / 100500.0},
		{"equal to pool", 100, 100, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, PriceImpact(tt.amount, tt.liquidity), 1e-12)
		})
	}
}

func TestPriceImpactBounds(t *testing.T) {
	prev := -1.0
	for _, amount := range []float64{0, 1, 10, 1e3, 1e6, 1e9} {
		impact := PriceImpact(amount, 1e6)
		assert.GreaterOrEqual(t, impact, 0.0)
		assert.Less(t, impact, 1.0)
		assert.Greater(t, impact, prev, "impact must grow with amount")
		prev = impact
	}

	// deeper pools absorb the same trade better
	assert.Greater(t, PriceImpact(1000, 1e4), PriceImpact(1000, 1e6))
}

func TestOptimalAmount(t *testing.T) {
	src := uint256.NewInt(100000)
	dst := uint256.NewInt(80000)

	tests := []struct {
		name      string
		priceDiff float64
		want      float64
	}{
		{"lower clamp", 0.05, 400},
		{"zero diff", 0, 400},
		{"linear region", 0.15, 1200},
		{"upper clamp", 0.5, 1600},
		{"nan takes upper bound", gomath.NaN(), 1600},
		{"infinite diff", gomath.Inf(1), 1600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, OptimalAmount(src, dst, tt.priceDiff), 1e-9)
		})
	}
}

func TestOptimalAmountSymmetric(t *testing.T) {
	a := uint256.NewInt(12345)
	b := uint256.NewInt(67890)
	for _, diff := range []float64{0.01, 0.07, 0.12, 0.3} {
		assert.Equal(t, OptimalAmount(a, b, diff), OptimalAmount(b, a, diff))
	}
}

func TestOptimalAmountEmptyPool(t *testing.T) {
	assert.Zero(t, OptimalAmount(nil, uint256.NewInt(1000), 0.1))
	assert.Zero(t, OptimalAmount(uint256.NewInt(1000), new(uint256.Int), 0.1))
}

func TestSizerMultiplier(t *testing.T) {
	s := Sizer{BaseFraction: 0.05, DiffScale: 4, MinMultiplier: 1, MaxMultiplier: 3}

	assert.Equal(t, 1.0, s.Multiplier(0.1))
	assert.Equal(t, 2.0, s.Multiplier(0.5))
	assert.Equal(t, 3.0, s.Multiplier(10))
	assert.InDelta(t, 100.0, s.OptimalAmount(uint256.NewInt(1000), uint256.NewInt(2000), 0.5), 1e-9)
}

func TestMultiplierPercent(t *testing.T) {
	pct, err := MultiplierPercent(1.2)
	require.NoError(t, err)
	assert.Equal(t, uint64(120), pct)

	pct, err = MultiplierPercent(1.15)
	require.NoError(t, err)
	assert.Equal(t, uint64(115), pct)

	for _, bad := range []float64{0, -1, 0.001, gomath.NaN(), gomath.Inf(1)} {
		_, err := MultiplierPercent(bad)
		assert.Error(t, err, "multiplier %v", bad)
	}
}

func TestScalePercent(t *testing.T) {
	assert.Equal(t, uint64(180000), ScalePercent(uint256.NewInt(150000), 120).Uint64())
	assert.Equal(t, uint64(540000), ScalePercent(uint256.NewInt(450000), 120).Uint64())
	assert.Equal(t, uint64(1), ScalePercent(uint256.NewInt(3), 50).Uint64(), "division truncates")

	max := new(uint256.Int).SetAllOne()
	assert.Equal(t, max, ScalePercent(max, 120), "overflow saturates")

	in := uint256.NewInt(1000)
	ScalePercent(in, 200)
	assert.Equal(t, uint64(1000), in.Uint64(), "input must not be modified")
}
