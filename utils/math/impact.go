package math

// PriceImpact estimates the slippage of trading amount against a
// constant-product pool holding liquidity of the traded asset. An empty (or
// negative) pool yields 1.0, the maximum impact.
func PriceImpact(amount, liquidity float64) float64 {
	if liquidity <= 0 {
		return 1.0
	}
	return amount / (liquidity + amount)
}
