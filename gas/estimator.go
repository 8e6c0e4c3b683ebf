package gas

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/config"
	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils"
	"github.com/michaelpento.lv/xchainarb/utils/math"
)

// Estimator predicts the gas limit for one leg of an arbitrage. Trades on the
// home network need only the swap; anything else also pays for the bridge hop.
type Estimator struct {
	logger        *zap.Logger
	homeNetwork   string
	baseGas       uint64
	crossChainGas uint64
	multiplierPct uint64
}

// NewEstimator creates a new gas estimator
func NewEstimator(homeNetwork string, cfg config.GasConfig, logger *zap.Logger) (*Estimator, error) {
	if homeNetwork == "" {
		return nil, fmt.Errorf("%w: home network must be specified", types.ErrInvalidInput)
	}
	if cfg.BaseGas == 0 {
		return nil, fmt.Errorf("%w: base gas must be positive", types.ErrInvalidInput)
	}
	pct, err := math.MultiplierPercent(cfg.Multiplier)
	if err != nil {
		return nil, fmt.Errorf("%w: gas multiplier %v: %v", types.ErrInvalidInput, cfg.Multiplier, err)
	}
	return &Estimator{
		logger:        utils.OrNop(logger),
		homeNetwork:   homeNetwork,
		baseGas:       cfg.BaseGas,
		crossChainGas: cfg.CrossChainGas,
		multiplierPct: pct,
	}, nil
}

// Estimate returns the padded gas limit for a trade on network. The
// transaction is accepted for estimators that simulate it and ignored here.
func (e *Estimator) Estimate(ctx context.Context, network string, _ *types.SecureTransaction) (*uint256.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw := uint256.NewInt(e.baseGas)
	if network != e.homeNetwork {
		raw.Add(raw, uint256.NewInt(e.crossChainGas))
	}
	gas := math.ScalePercent(raw, e.multiplierPct)

	e.logger.Debug("Estimated gas",
		zap.String("network", network),
		zap.String("raw", raw.Dec()),
		zap.String("padded", gas.Dec()))

	return gas, nil
}

// EstimateArbitrageGas returns the padded gas for both legs of a round trip
func (e *Estimator) EstimateArbitrageGas(ctx context.Context, sourceNetwork, targetNetwork string) (*uint256.Int, error) {
	src, err := e.Estimate(ctx, sourceNetwork, nil)
	if err != nil {
		return nil, err
	}
	dst, err := e.Estimate(ctx, targetNetwork, nil)
	if err != nil {
		return nil, err
	}
	return src.Add(src, dst), nil
}

// EstimateCost returns gas * gasPrice, saturating at the uint256 maximum
func EstimateCost(gas, gasPrice *uint256.Int) *uint256.Int {
	if gas == nil || gasPrice == nil {
		return new(uint256.Int)
	}
	cost, overflow := new(uint256.Int).MulOverflow(gas, gasPrice)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return cost
}

// HomeNetwork returns the network that needs no bridge surcharge
func (e *Estimator) HomeNetwork() string {
	return e.homeNetwork
}
