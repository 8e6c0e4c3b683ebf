package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/michaelpento.lv/xchainarb/bridge"
	"github.com/michaelpento.lv/xchainarb/chain"
	"github.com/michaelpento.lv/xchainarb/config"
	"github.com/michaelpento.lv/xchainarb/dex"
	"github.com/michaelpento.lv/xchainarb/gas"
	"github.com/michaelpento.lv/xchainarb/journal"
	"github.com/michaelpento.lv/xchainarb/strategies/arbitrage"
	"github.com/michaelpento.lv/xchainarb/transaction"
	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils"
	"github.com/michaelpento.lv/xchainarb/utils/math"
	"github.com/michaelpento.lv/xchainarb/utils/metrics"
)

// Dependencies are the services the engine cannot build itself
type Dependencies struct {
	Venue    dex.TradeVenue
	Bridge   bridge.Service
	Observer chain.Observer

	// Journal overrides the SQLite journal configured by journal.dsn
	Journal journal.Recorder
	// Registerer receives the execution metrics; nil leaves them unregistered
	Registerer prometheus.Registerer
}

// Engine is the entry point for validating, sizing and executing
// cross-chain arbitrage opportunities.
type Engine struct {
	sourceRPC string
	targetRPC string
	cfg       *config.Config

	sizer        math.Sizer
	validator    *arbitrage.Validator
	estimator    *gas.Estimator
	builder      *transaction.Builder
	detector     *arbitrage.Detector
	orchestrator *arbitrage.Orchestrator
	metrics      *metrics.ExecutionMetrics
	store        *journal.SQLiteStore // owned; nil when the journal is injected or disabled
	logger       *zap.Logger

	mu     sync.Mutex
	closed bool
	flows  sync.WaitGroup
}

// New creates an engine for the given source and target endpoints. Empty
// endpoints fall back to the configured ones.
func New(sourceRPC, targetRPC string, cfg *config.Config, deps Dependencies, logger *zap.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}
	if sourceRPC == "" {
		sourceRPC = cfg.Engine.SourceRPC
	}
	if targetRPC == "" {
		targetRPC = cfg.Engine.TargetRPC
	}
	if sourceRPC == "" || targetRPC == "" {
		return nil, fmt.Errorf("%w: source and target RPC endpoints are required", types.ErrInvalidInput)
	}
	logger = utils.OrNop(logger)

	e := &Engine{
		sourceRPC: sourceRPC,
		targetRPC: targetRPC,
		cfg:       cfg,
		sizer: math.Sizer{
			BaseFraction:  cfg.Sizing.BaseFraction,
			DiffScale:     cfg.Sizing.DiffScale,
			MinMultiplier: cfg.Sizing.MinMultiplier,
			MaxMultiplier: cfg.Sizing.MaxMultiplier,
		},
		validator: arbitrage.NewValidator(cfg.Validation, logger),
		builder:   transaction.NewBuilder(cfg.Gas, logger),
		metrics:   metrics.NewExecutionMetrics(cfg.Metrics.Namespace, deps.Registerer),
		logger:    logger,
	}

	var err error
	if e.estimator, err = gas.NewEstimator(cfg.Engine.HomeNetwork, cfg.Gas, logger); err != nil {
		return nil, fmt.Errorf("failed to create gas estimator: %w", err)
	}
	if e.detector, err = arbitrage.NewDetector(cfg.Detection, e.sizer, e.estimator, logger); err != nil {
		return nil, fmt.Errorf("failed to create detector: %w", err)
	}

	recorder := deps.Journal
	if recorder == nil && cfg.Journal.DSN != "" {
		if e.store, err = journal.NewSQLiteStore(cfg.Journal.DSN); err != nil {
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		recorder = e.store
	}

	e.orchestrator, err = arbitrage.NewOrchestrator(e.validator, e.sizer, arbitrage.Collaborators{
		Venue:     deps.Venue,
		Bridge:    deps.Bridge,
		Observer:  deps.Observer,
		Journal:   recorder,
		Metrics:   e.metrics,
		Estimator: e.estimator,
	}, cfg.Execution, logger)
	if err != nil {
		if e.store != nil {
			e.store.Close()
		}
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	logger.Info("Engine created",
		zap.String("source_rpc", sourceRPC),
		zap.String("target_rpc", targetRPC),
		zap.String("home_network", cfg.Engine.HomeNetwork),
		zap.Bool("journal", recorder != nil))
	return e, nil
}

// ValidateOpportunity decodes a serialized opportunity and validates it
func (e *Engine) ValidateOpportunity(record []byte) (bool, error) {
	if err := e.checkOpen(); err != nil {
		return false, err
	}
	opp, err := types.DecodeOpportunity(record)
	if err != nil {
		return false, err
	}
	return e.validator.Validate(opp)
}

// OptimalAmount sizes a trade between two pools
func (e *Engine) OptimalAmount(sourceLiquidity, targetLiquidity *uint256.Int, priceDiff float64) float64 {
	return e.sizer.OptimalAmount(sourceLiquidity, targetLiquidity, priceDiff)
}

// ExecuteCrossChainArbitrage decodes and executes a serialized opportunity,
// returning the settlement reference of the target trade.
func (e *Engine) ExecuteCrossChainArbitrage(ctx context.Context, record []byte) (string, error) {
	if err := e.begin(); err != nil {
		return "", err
	}
	defer e.flows.Done()

	opp, err := types.DecodeOpportunity(record)
	if err != nil {
		return "", err
	}
	return e.orchestrator.Execute(ctx, opp)
}

// BatchResult is the outcome of one record in ExecuteBatch
type BatchResult struct {
	Index     int
	Reference string
	Err       error
}

// ExecuteBatch executes independent records concurrently, at most
// execution.max_concurrent_flows at a time. A failed flow never stops the
// others. Results are in record order.
func (e *Engine) ExecuteBatch(ctx context.Context, records [][]byte) []BatchResult {
	results := make([]BatchResult, len(records))

	var g errgroup.Group
	g.SetLimit(e.cfg.Execution.MaxConcurrentFlows)
	for i, record := range records {
		g.Go(func() error {
			ref, err := e.ExecuteCrossChainArbitrage(ctx, record)
			results[i] = BatchResult{Index: i, Reference: ref, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// BuildTransaction validates raw parameters into a SecureTransaction
func (e *Engine) BuildTransaction(to string, value *uint256.Int, data []byte, gasLimit, gasPrice, nonce *uint256.Int) (*types.SecureTransaction, error) {
	return e.builder.Build(to, value, data, gasLimit, gasPrice, nonce)
}

// EstimateGas returns the padded gas limit for a trade on network
func (e *Engine) EstimateGas(ctx context.Context, network string, tx *types.SecureTransaction) (*uint256.Int, error) {
	return e.estimator.Estimate(ctx, network, tx)
}

// Detect finds opportunities among pool snapshots priced at gasPrice wei
func (e *Engine) Detect(ctx context.Context, pools []types.PoolInfo, gasPrice *uint256.Int) ([]types.ArbitrageOpportunity, error) {
	return e.detector.Detect(ctx, pools, gasPrice)
}

// SourceRPC returns the source network endpoint
func (e *Engine) SourceRPC() string { return e.sourceRPC }

// TargetRPC returns the target network endpoint
func (e *Engine) TargetRPC() string { return e.targetRPC }

// Journal returns the engine-owned journal store, or nil
func (e *Engine) Journal() *journal.SQLiteStore { return e.store }

// Close refuses new work, waits for running executions to reach a terminal
// stage and then releases the engine's resources. A flow waiting on bridge
// finality can hold Close for up to execution.confirmation_timeout.
// Close is idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.flows.Wait()
	if e.store != nil {
		if err := e.store.Close(); err != nil {
			return fmt.Errorf("failed to close journal: %w", err)
		}
	}
	e.logger.Info("Engine closed")
	return nil
}

var errClosed = fmt.Errorf("%w: engine is closed", types.ErrInvalidInput)

func (e *Engine) checkOpen() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	return nil
}

// begin registers a running execution so Close can wait for it
func (e *Engine) begin() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errClosed
	}
	e.flows.Add(1)
	return nil
}
