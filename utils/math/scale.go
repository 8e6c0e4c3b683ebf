package math

import (
	"errors"
	gomath "math"

	"github.com/holiman/uint256"
)

var errNonPositiveMultiplier = errors.New("multiplier must be positive")

// MultiplierPercent converts a float multiplier such as 1.2 into an integer
// percentage (120). Rounding keeps 1.15 at 115 rather than 114.
func MultiplierPercent(multiplier float64) (uint64, error) {
	if !(multiplier > 0) || gomath.IsInf(multiplier, 0) {
		return 0, errNonPositiveMultiplier
	}
	pct := gomath.Round(multiplier * 100)
	if pct < 1 {
		return 0, errNonPositiveMultiplier
	}
	return uint64(pct), nil
}

// ScalePercent returns x * pct / 100 using 256-bit integer arithmetic.
// The multiplication saturates instead of wrapping on overflow.
func ScalePercent(x *uint256.Int, pct uint64) *uint256.Int {
	out, overflow := new(uint256.Int).MulOverflow(x, uint256.NewInt(pct))
	if overflow {
		out.SetAllOne()
		return out
	}
	return out.Div(out, uint256.NewInt(100))
}
