package arbitrage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/config"
	"github.com/michaelpento.lv/xchainarb/gas"
	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils"
	"github.com/michaelpento.lv/xchainarb/utils/math"
)

var (
	weiPerEther = decimal.New(1, 18)
	hundred     = decimal.NewFromInt(100)
	two         = decimal.NewFromInt(2)
)

// Detector finds cross-chain opportunities between pool snapshots quoting
// the same token pair on different networks.
type Detector struct {
	sizer        math.Sizer
	estimator    *gas.Estimator
	minProfitPct decimal.Decimal
	maxPosition  decimal.Decimal
	bridgeFee    decimal.Decimal
	logger       *zap.Logger
	now          func() time.Time
}

// NewDetector creates a new arbitrage detector
func NewDetector(cfg config.DetectionConfig, sizer math.Sizer, estimator *gas.Estimator, logger *zap.Logger) (*Detector, error) {
	if estimator == nil {
		return nil, fmt.Errorf("%w: gas estimator is required", types.ErrInvalidInput)
	}
	return &Detector{
		sizer:        sizer,
		estimator:    estimator,
		minProfitPct: decimal.NewFromFloat(cfg.MinProfitPct),
		maxPosition:  decimal.NewFromFloat(cfg.MaxPosition),
		bridgeFee:    decimal.NewFromFloat(cfg.BridgeFeeRate),
		logger:       utils.OrNop(logger),
		now:          time.Now,
	}, nil
}

// Detect compares every pair of pools and returns the profitable ones, best
// net profit first. The higher-priced pool becomes the source (sell) leg.
// gasPrice is in wei. Execution cost is the padded gas of both legs in whole
// native units plus the bridge fee on the traded amount.
func (d *Detector) Detect(ctx context.Context, pools []types.PoolInfo, gasPrice *uint256.Int) ([]types.ArbitrageOpportunity, error) {
	var opportunities []types.ArbitrageOpportunity

	for i := 0; i < len(pools); i++ {
		for j := i + 1; j < len(pools); j++ {
			p1, p2 := pools[i], pools[j]
			if p1.Network == p2.Network || p1.Token0 != p2.Token0 || p1.Token1 != p2.Token1 {
				continue
			}
			if !p1.Price.IsPositive() || !p2.Price.IsPositive() {
				continue
			}

			diff := p1.Price.Sub(p2.Price).Abs()
			mid := p1.Price.Add(p2.Price).Div(two)
			spreadPct := diff.Div(mid).Mul(hundred)
			if spreadPct.LessThanOrEqual(d.minProfitPct) {
				continue
			}

			src, dst := p1, p2
			if p2.Price.GreaterThan(p1.Price) {
				src, dst = p2, p1
			}

			opp, ok, err := d.evaluate(ctx, src, dst, diff, mid, gasPrice)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}

			d.logger.Info("Found opportunity",
				zap.String("opportunity_id", opp.Fingerprint()),
				zap.String("source_network", src.Network),
				zap.String("target_network", dst.Network),
				zap.String("spread_pct", spreadPct.StringFixed(2)),
				zap.String("net_profit", opp.NetProfit.String()))
			opportunities = append(opportunities, opp)
		}
	}

	sort.SliceStable(opportunities, func(a, b int) bool {
		return opportunities[a].NetProfit.GreaterThan(opportunities[b].NetProfit)
	})
	return opportunities, nil
}

func (d *Detector) evaluate(ctx context.Context, src, dst types.PoolInfo, diff, mid decimal.Decimal, gasPrice *uint256.Int) (types.ArbitrageOpportunity, bool, error) {
	amount := decimal.NewFromFloat(d.sizer.OptimalAmount(src.Liquidity, dst.Liquidity, diff.InexactFloat64())).Truncate(6)
	if amount.GreaterThan(d.maxPosition) {
		amount = d.maxPosition
	}
	if !amount.IsPositive() {
		return types.ArbitrageOpportunity{}, false, nil
	}

	gasUnits, err := d.estimator.EstimateArbitrageGas(ctx, src.Network, dst.Network)
	if err != nil {
		return types.ArbitrageOpportunity{}, false, fmt.Errorf("failed to estimate gas: %w", err)
	}
	costWei := gas.EstimateCost(gasUnits, gasPrice)
	cost := decimal.NewFromBigInt(costWei.ToBig(), 0).Div(weiPerEther).
		Add(amount.Mul(d.bridgeFee))

	gross := amount.Mul(diff).Div(mid)
	net := gross.Sub(cost)
	if !net.IsPositive() {
		return types.ArbitrageOpportunity{}, false, nil
	}

	shallower := src.LiquidityFloat()
	if l := dst.LiquidityFloat(); l < shallower {
		shallower = l
	}

	return types.ArbitrageOpportunity{
		SourcePool:      src,
		TargetPool:      dst,
		ProfitPotential: gross,
		RequiredAmount:  amount,
		ExecutionCost:   cost,
		NetProfit:       net,
		Confidence:      1 - math.PriceImpact(amount.InexactFloat64(), shallower),
		Timestamp:       uint64(d.now().Unix()),
	}, true, nil
}
