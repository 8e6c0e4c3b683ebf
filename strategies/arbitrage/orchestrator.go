package arbitrage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/bridge"
	"github.com/michaelpento.lv/xchainarb/chain"
	"github.com/michaelpento.lv/xchainarb/config"
	"github.com/michaelpento.lv/xchainarb/dex"
	"github.com/michaelpento.lv/xchainarb/gas"
	"github.com/michaelpento.lv/xchainarb/journal"
	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils"
	"github.com/michaelpento.lv/xchainarb/utils/math"
	"github.com/michaelpento.lv/xchainarb/utils/metrics"
)

// Collaborators are the external services an execution depends on. Venue,
// Bridge and Observer are required; the rest are optional.
type Collaborators struct {
	Venue     dex.TradeVenue
	Bridge    bridge.Service
	Observer  chain.Observer
	Journal   journal.Recorder
	Metrics   *metrics.ExecutionMetrics
	Estimator *gas.Estimator
}

// Orchestrator drives an opportunity through
// validate -> sell on source -> bridge -> await finality -> buy on target.
// It keeps no per-execution state, so Execute may be called concurrently.
type Orchestrator struct {
	validator    *Validator
	sizer        math.Sizer
	venue        dex.TradeVenue
	bridge       bridge.Service
	observer     chain.Observer
	journal      journal.Recorder
	metrics      *metrics.ExecutionMetrics
	estimator    *gas.Estimator
	pollInterval time.Duration
	timeout      time.Duration
	logger       *zap.Logger
}

// flow is the state of a single execution
type flow struct {
	id        string
	oppID     string
	opp       types.ArbitrageOpportunity
	stage     types.Stage
	sourceTx  string
	bridgeRef string
	logger    *zap.Logger
}

// NewOrchestrator creates an orchestrator
func NewOrchestrator(validator *Validator, sizer math.Sizer, c Collaborators, cfg config.ExecutionConfig, logger *zap.Logger) (*Orchestrator, error) {
	if validator == nil || c.Venue == nil || c.Bridge == nil || c.Observer == nil {
		return nil, fmt.Errorf("%w: validator, venue, bridge and observer are required", types.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidInput, err)
	}

	o := &Orchestrator{
		validator:    validator,
		sizer:        sizer,
		venue:        c.Venue,
		bridge:       c.Bridge,
		observer:     c.Observer,
		journal:      c.Journal,
		metrics:      c.Metrics,
		estimator:    c.Estimator,
		pollInterval: cfg.PollInterval,
		timeout:      cfg.ConfirmationTimeout,
		logger:       utils.OrNop(logger),
	}
	if o.journal == nil {
		o.journal = journal.Nop{}
	}
	if o.metrics == nil {
		o.metrics = metrics.NewExecutionMetrics("xchainarb", nil)
	}
	return o, nil
}

// Execute runs one cross-chain arbitrage and returns the settlement reference
// of the target trade. Every failure is a *types.StageError.
//
// Cancelling ctx is honoured before the first submission and while waiting
// for bridge finality. Submissions themselves are never interrupted.
func (o *Orchestrator) Execute(ctx context.Context, opp types.ArbitrageOpportunity) (string, error) {
	f := &flow{
		id:    uuid.NewString(),
		oppID: opp.Fingerprint(),
		opp:   opp,
	}
	f.logger = o.logger.With(
		zap.String("execution_id", f.id),
		zap.String("opportunity_id", f.oppID))

	started := time.Now()
	o.metrics.Attempts.Inc()
	o.metrics.InFlight.Inc()
	defer func() {
		o.metrics.InFlight.Dec()
		o.metrics.FlowDuration.Observe(time.Since(started).Seconds())
	}()

	o.transition(ctx, f, types.StageStart, "")
	if err := ctx.Err(); err != nil {
		return "", o.fail(ctx, f, fmt.Errorf("%w: %v", types.ErrCancellationRequested, err))
	}

	o.transition(ctx, f, types.StageValidating, "")
	reason, err := o.validator.Check(opp)
	if err != nil {
		return "", o.fail(ctx, f, err)
	}
	if reason != ReasonNone {
		o.metrics.ObserveRejection(string(reason))
		o.transition(ctx, f, types.StageRejected, "")
		return "", &types.StageError{
			Stage:         types.StageRejected,
			ExecutionID:   f.id,
			OpportunityID: f.oppID,
			Err:           fmt.Errorf("%w: %s", types.ErrValidationRejected, reason),
		}
	}
	for _, w := range o.validator.Warnings(opp) {
		f.logger.Warn("Opportunity warning", zap.String("warning", w))
	}
	o.logPlan(ctx, f)

	// From here on calls reach the outside world and must not be torn down
	// half way by the caller.
	submitCtx := context.WithoutCancel(ctx)
	src, dst := opp.SourcePool, opp.TargetPool

	o.transition(ctx, f, types.StageSourceTrading, "")
	f.sourceTx, err = o.venue.Execute(submitCtx, src.Network, src.Address, opp.RequiredAmount, dex.Sell)
	if err != nil {
		return "", o.fail(ctx, f, fmt.Errorf("%w: source trade: %w", types.ErrCollaboratorFailure, err))
	}

	o.transition(ctx, f, types.StageBridging, f.sourceTx)
	f.bridgeRef, err = o.bridge.Transfer(submitCtx, src.Network, dst.Network, opp.RequiredAmount)
	if err != nil {
		return "", o.fail(ctx, f, fmt.Errorf("%w: bridge transfer: %w", types.ErrCollaboratorFailure, err))
	}

	o.transition(ctx, f, types.StageConfirmingBridge, f.bridgeRef)
	if err := o.awaitFinality(ctx, f); err != nil {
		return "", o.fail(ctx, f, err)
	}

	o.transition(ctx, f, types.StageTargetTrading, f.bridgeRef)
	settlement, err := o.venue.Execute(submitCtx, dst.Network, dst.Address, opp.RequiredAmount, dex.Buy)
	if err != nil {
		return "", o.fail(ctx, f, fmt.Errorf("%w: target trade: %w", types.ErrCollaboratorFailure, err))
	}

	o.metrics.Completions.Inc()
	o.transition(ctx, f, types.StageCompleted, settlement)
	f.logger.Info("Execution completed",
		zap.String("source_tx", f.sourceTx),
		zap.String("bridge_ref", f.bridgeRef),
		zap.String("settlement", settlement),
		zap.Duration("elapsed", time.Since(started)))
	return settlement, nil
}

// awaitFinality polls the observer until the bridge transfer is final, the
// confirmation timeout elapses or ctx is cancelled. The first poll is
// immediate. A reverted transfer ends the wait at once; other observer errors
// are counted and polling continues.
func (o *Orchestrator) awaitFinality(ctx context.Context, f *flow) error {
	started := time.Now()
	defer func() { o.metrics.ObserveConfirmationWait(time.Since(started)) }()

	deadline := time.NewTimer(o.timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	var lastErr error
	for polls := 1; ; polls++ {
		o.metrics.ObserverPolls.Inc()
		final, err := o.observer.IsFinalized(ctx, f.bridgeRef)
		switch {
		case errors.Is(err, chain.ErrTransactionReverted):
			o.metrics.ObserverErrors.Inc()
			return fmt.Errorf("%w: bridge %s: %w", types.ErrCollaboratorFailure, f.bridgeRef, err)
		case err != nil && ctx.Err() == nil:
			lastErr = err
			o.metrics.ObserverErrors.Inc()
			f.logger.Warn("Observer poll failed",
				zap.String("reference", f.bridgeRef),
				zap.Int("poll", polls),
				zap.Error(err))
		case err == nil && final:
			f.logger.Info("Bridge transfer finalized",
				zap.String("reference", f.bridgeRef),
				zap.Int("polls", polls),
				zap.Duration("waited", time.Since(started)))
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: stopped waiting for bridge %s: %v", types.ErrCancellationRequested, f.bridgeRef, ctx.Err())
		case <-deadline.C:
			if lastErr != nil {
				return fmt.Errorf("%w: bridge %s not final after %s (last observer error: %w)",
					types.ErrConfirmationTimeout, f.bridgeRef, o.timeout, lastErr)
			}
			return fmt.Errorf("%w: bridge %s not final after %s", types.ErrConfirmationTimeout, f.bridgeRef, o.timeout)
		case <-ticker.C:
		}
	}
}

// logPlan logs the sizing and gas the engine would choose for opp. It is
// advisory only; the traded amount is always the one the opportunity carries.
func (o *Orchestrator) logPlan(ctx context.Context, f *flow) {
	src, dst := f.opp.SourcePool, f.opp.TargetPool
	fields := []zap.Field{
		zap.String("required_amount", f.opp.RequiredAmount.String()),
		zap.Float64("optimal_amount", o.sizer.OptimalAmount(src.Liquidity, dst.Liquidity, f.opp.PriceDiff())),
		zap.Float64("price_impact", math.PriceImpact(f.opp.RequiredAmount.InexactFloat64(), src.LiquidityFloat())),
	}
	if o.estimator != nil {
		if g, err := o.estimator.Estimate(ctx, src.Network, nil); err == nil {
			fields = append(fields, zap.String("source_gas", g.Dec()))
		}
		if g, err := o.estimator.Estimate(ctx, dst.Network, nil); err == nil {
			fields = append(fields, zap.String("target_gas", g.Dec()))
		}
	}
	f.logger.Info("Execution plan", fields...)
}

func (o *Orchestrator) transition(ctx context.Context, f *flow, stage types.Stage, reference string) {
	f.stage = stage
	f.logger.Debug("Stage transition",
		zap.String("stage", string(stage)),
		zap.String("reference", reference))
	o.record(ctx, f, journal.Event{
		Stage:     stage,
		Reference: reference,
		Reconcile: f.sourceTx != "" && stage != types.StageCompleted,
	})
}

// fail ends the flow at its current stage
func (o *Orchestrator) fail(ctx context.Context, f *flow, err error) *types.StageError {
	se := &types.StageError{
		Stage:         f.stage,
		ExecutionID:   f.id,
		OpportunityID: f.oppID,
		SourceTx:      f.sourceTx,
		BridgeRef:     f.bridgeRef,
		Err:           err,
	}
	o.metrics.ObserveFailure(f.stage)
	f.logger.Error("Execution failed",
		zap.String("stage", string(f.stage)),
		zap.String("source_tx", f.sourceTx),
		zap.String("bridge_ref", f.bridgeRef),
		zap.Bool("requires_reconciliation", se.RequiresReconciliation()),
		zap.Error(err))

	f.stage = types.StageFailed
	o.record(ctx, f, journal.Event{
		Stage:     types.StageFailed,
		Error:     err.Error(),
		Reconcile: se.RequiresReconciliation(),
	})
	return se
}

func (o *Orchestrator) record(ctx context.Context, f *flow, ev journal.Event) {
	ev.ExecutionID = f.id
	ev.OpportunityID = f.oppID
	ev.At = time.Now()
	if err := o.journal.Record(context.WithoutCancel(ctx), ev); err != nil {
		f.logger.Warn("Failed to journal stage transition",
			zap.String("stage", string(ev.Stage)),
			zap.Error(err))
	}
}
