package arbitrage

import (
	"fmt"
	gomath "math"

	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/config"
	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils"
	"github.com/michaelpento.lv/xchainarb/utils/math"
)

// RejectReason names the first check an opportunity failed
type RejectReason string

const (
	ReasonNone                 RejectReason = ""
	ReasonNonPositiveProfit    RejectReason = "non_positive_profit"
	ReasonLowConfidence        RejectReason = "low_confidence"
	ReasonInvalidSourceAddress RejectReason = "invalid_source_address"
	ReasonInvalidTargetAddress RejectReason = "invalid_target_address"
	ReasonExcessivePriceImpact RejectReason = "excessive_price_impact"
)

// Soft thresholds that only produce warnings
const (
	warnConfidence   = 0.8
	warnProfitMargin = 2.0
)

// Validator decides whether an opportunity is safe enough to execute
type Validator struct {
	maxSlippage   float64
	minConfidence float64
	logger        *zap.Logger
}

func NewValidator(cfg config.ValidationConfig, logger *zap.Logger) *Validator {
	return &Validator{
		maxSlippage:   cfg.MaxSlippage,
		minConfidence: cfg.MinConfidence,
		logger:        utils.OrNop(logger),
	}
}

// Validate reports whether opp passes every check. A failed check is not an
// error; errors are reserved for opportunities that cannot be evaluated.
func (v *Validator) Validate(opp types.ArbitrageOpportunity) (bool, error) {
	reason, err := v.Check(opp)
	if err != nil {
		return false, err
	}
	return reason == ReasonNone, nil
}

// Check runs the checks in order and returns the first failure
func (v *Validator) Check(opp types.ArbitrageOpportunity) (RejectReason, error) {
	if !opp.NetProfit.IsPositive() {
		return v.reject(opp, ReasonNonPositiveProfit, zap.String("net_profit", opp.NetProfit.String()))
	}

	if gomath.IsNaN(opp.Confidence) || gomath.IsInf(opp.Confidence, 0) {
		return ReasonNone, fmt.Errorf("%w: confidence is not finite", types.ErrInvalidInput)
	}
	if opp.Confidence < v.minConfidence {
		return v.reject(opp, ReasonLowConfidence, zap.Float64("confidence", opp.Confidence))
	}

	if !utils.IsValidAddress(opp.SourcePool.Address) {
		return v.reject(opp, ReasonInvalidSourceAddress, zap.String("address", opp.SourcePool.Address))
	}
	if !utils.IsValidAddress(opp.TargetPool.Address) {
		return v.reject(opp, ReasonInvalidTargetAddress, zap.String("address", opp.TargetPool.Address))
	}

	if opp.SourcePool.Liquidity == nil {
		return ReasonNone, fmt.Errorf("%w: source pool liquidity is unset", types.ErrInvalidInput)
	}
	if opp.RequiredAmount.IsNegative() {
		return ReasonNone, fmt.Errorf("%w: required amount is negative", types.ErrInvalidInput)
	}
	impact := math.PriceImpact(opp.RequiredAmount.InexactFloat64(), opp.SourcePool.LiquidityFloat())
	if impact > v.maxSlippage {
		return v.reject(opp, ReasonExcessivePriceImpact,
			zap.Float64("price_impact", impact),
			zap.Float64("max_slippage", v.maxSlippage))
	}

	return ReasonNone, nil
}

// Warnings lists soft concerns about an opportunity that passed validation
func (v *Validator) Warnings(opp types.ArbitrageOpportunity) []string {
	var warnings []string
	if opp.Confidence < warnConfidence {
		warnings = append(warnings, fmt.Sprintf("low confidence: %.2f", opp.Confidence))
	}
	if opp.ExecutionCost.IsPositive() {
		margin := opp.NetProfit.Div(opp.ExecutionCost).InexactFloat64()
		if margin < warnProfitMargin {
			warnings = append(warnings, fmt.Sprintf("low profit margin: %.2fx", margin))
		}
	}
	return warnings
}

func (v *Validator) reject(opp types.ArbitrageOpportunity, reason RejectReason, fields ...zap.Field) (RejectReason, error) {
	v.logger.Debug("Opportunity rejected",
		append([]zap.Field{
			zap.String("opportunity_id", opp.Fingerprint()),
			zap.String("reason", string(reason)),
		}, fields...)...)
	return reason, nil
}
