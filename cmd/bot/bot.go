package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/engine"
	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils"
)

// PoolSource produces a fresh snapshot of one pool
type PoolSource interface {
	Snapshot(ctx context.Context) (types.PoolInfo, error)
}

// GasPricer quotes a gas price in wei
type GasPricer interface {
	SuggestGasPrice(ctx context.Context) (*uint256.Int, error)
}

// Bot periodically snapshots a set of pools, detects cross-chain
// opportunities among them and hands the profitable ones to the engine.
type Bot struct {
	engine   *engine.Engine
	sources  []PoolSource
	pricer   GasPricer
	fallback *uint256.Int
	interval time.Duration
	logger   *zap.Logger

	wg sync.WaitGroup
}

// New creates a bot. pricer may be nil, in which case fallbackGasPrice is
// always used.
func New(eng *engine.Engine, sources []PoolSource, pricer GasPricer, fallbackGasPrice *uint256.Int, interval time.Duration, logger *zap.Logger) (*Bot, error) {
	if eng == nil {
		return nil, fmt.Errorf("%w: engine is required", types.ErrInvalidInput)
	}
	if len(sources) < 2 {
		return nil, fmt.Errorf("%w: at least two pools are required", types.ErrInvalidInput)
	}
	if interval <= 0 {
		return nil, fmt.Errorf("%w: scan interval must be positive", types.ErrInvalidInput)
	}
	if fallbackGasPrice == nil {
		fallbackGasPrice = new(uint256.Int)
	}
	return &Bot{
		engine:   eng,
		sources:  sources,
		pricer:   pricer,
		fallback: fallbackGasPrice,
		interval: interval,
		logger:   utils.OrNop(logger),
	}, nil
}

// Start launches the scan loop. It returns immediately; the loop runs until
// ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	b.logger.Info("Starting arbitrage bot",
		zap.Int("pools", len(b.sources)),
		zap.Duration("interval", b.interval))

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.run(ctx)
	}()
}

// Stop waits for the scan loop to exit
func (b *Bot) Stop() {
	b.logger.Info("Stopping arbitrage bot...")
	b.wg.Wait()
}

func (b *Bot) run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		if _, err := b.Scan(ctx); err != nil && ctx.Err() == nil {
			b.logger.Error("Scan failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Scan runs one detection round and executes what it finds. Each pool is
// traded at most once per round.
func (b *Bot) Scan(ctx context.Context) ([]engine.BatchResult, error) {
	pools := make([]types.PoolInfo, 0, len(b.sources))
	for _, src := range b.sources {
		pool, err := src.Snapshot(ctx)
		if err != nil {
			// One unreachable network should not stall the others
			b.logger.Warn("Failed to snapshot pool", zap.Error(err))
			continue
		}
		pools = append(pools, pool)
	}

	opportunities, err := b.engine.Detect(ctx, pools, b.gasPrice(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to detect opportunities: %w", err)
	}
	if len(opportunities) == 0 {
		b.logger.Debug("No opportunities", zap.Int("pools", len(pools)))
		return nil, nil
	}

	if kept := disjoint(opportunities); len(kept) < len(opportunities) {
		b.logger.Debug("Dropped opportunities sharing a pool",
			zap.Int("detected", len(opportunities)),
			zap.Int("kept", len(kept)))
		opportunities = kept
	}

	records := make([][]byte, 0, len(opportunities))
	for _, opp := range opportunities {
		record, err := types.EncodeOpportunity(opp)
		if err != nil {
			return nil, fmt.Errorf("failed to encode opportunity: %w", err)
		}
		records = append(records, record)
	}

	results := b.engine.ExecuteBatch(ctx, records)
	for i, r := range results {
		opp := opportunities[i]
		if r.Err != nil {
			b.logger.Error("Failed to execute opportunity",
				zap.Error(r.Err),
				zap.String("opportunity", opp.Fingerprint()),
				zap.String("net_profit", opp.NetProfit.String()))
			continue
		}
		b.logger.Info("Executed opportunity",
			zap.String("opportunity", opp.Fingerprint()),
			zap.String("reference", r.Reference),
			zap.String("net_profit", opp.NetProfit.String()))
	}
	return results, nil
}

// disjoint keeps, in order, each opportunity whose pools are not used by an
// earlier one. opportunities arrive sorted by net profit, so the most
// profitable trade on a pool wins.
func disjoint(opportunities []types.ArbitrageOpportunity) []types.ArbitrageOpportunity {
	used := make(map[string]bool, 2*len(opportunities))
	kept := make([]types.ArbitrageOpportunity, 0, len(opportunities))
	for _, opp := range opportunities {
		src, dst := poolKey(opp.SourcePool), poolKey(opp.TargetPool)
		if used[src] || used[dst] {
			continue
		}
		used[src], used[dst] = true, true
		kept = append(kept, opp)
	}
	return kept
}

func poolKey(p types.PoolInfo) string {
	return strings.ToLower(p.Network) + "/" + strings.ToLower(p.Address)
}

func (b *Bot) gasPrice(ctx context.Context) *uint256.Int {
	if b.pricer == nil {
		return b.fallback
	}
	price, err := b.pricer.SuggestGasPrice(ctx)
	if err != nil {
		b.logger.Warn("Failed to get gas price, using fallback",
			zap.Error(err),
			zap.String("fallback_wei", b.fallback.Dec()))
		return b.fallback
	}
	return price
}
