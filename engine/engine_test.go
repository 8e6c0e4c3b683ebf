package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/xchainarb/chain"
	"github.com/michaelpento.lv/xchainarb/config"
	"github.com/michaelpento.lv/xchainarb/journal"
	"github.com/michaelpento.lv/xchainarb/simulator"
	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils/testutils"
)

const (
	sourceRPC = "http://polygon.local:8545"
	targetRPC = "http://base.local:8545"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Execution.PollInterval = 5 * time.Millisecond
	cfg.Execution.ConfirmationTimeout = 50 * time.Millisecond
	cfg.Execution.MaxConcurrentFlows = 2
	return cfg
}

type paper struct {
	venue    *simulator.Venue
	bridge   *simulator.Bridge
	observer *simulator.Observer
}

func newPaper(pollsToFinality int) paper {
	return paper{
		venue:    simulator.NewVenue(nil),
		bridge:   simulator.NewBridge(nil),
		observer: simulator.NewObserver(pollsToFinality),
	}
}

func (p paper) deps() Dependencies {
	return Dependencies{Venue: p.venue, Bridge: p.bridge, Observer: p.observer}
}

func newTestEngine(t *testing.T, cfg *config.Config, deps Dependencies) *Engine {
	t.Helper()
	e, err := New(sourceRPC, targetRPC, cfg, deps, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestNew(t *testing.T) {
	e := newTestEngine(t, testConfig(), newPaper(1).deps())
	assert.Equal(t, sourceRPC, e.SourceRPC())
	assert.Equal(t, targetRPC, e.TargetRPC())
	assert.Nil(t, e.Journal())
}

func TestNewFallsBackToConfiguredEndpoints(t *testing.T) {
	cfg := testConfig()
	e, err := New("", "", cfg, newPaper(1).deps(), nil)
	require.NoError(t, err)
	defer e.Close()
	assert.Equal(t, cfg.Engine.SourceRPC, e.SourceRPC())
}

func TestNewRejectsBadInput(t *testing.T) {
	cfg := testConfig()
	cfg.Engine.SourceRPC = ""
	_, err := New("", targetRPC, cfg, newPaper(1).deps(), nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	_, err = New(sourceRPC, targetRPC, testConfig(), Dependencies{}, nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)

	bad := testConfig()
	bad.Gas.Multiplier = 0
	_, err = New(sourceRPC, targetRPC, bad, newPaper(1).deps(), nil)
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestValidateOpportunity(t *testing.T) {
	e := newTestEngine(t, testConfig(), newPaper(1).deps())

	ok, err := e.ValidateOpportunity(testutils.OpportunityRecord(t, nil))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = e.ValidateOpportunity(testutils.OpportunityRecord(t, func(o *types.ArbitrageOpportunity) {
		o.NetProfit = decimal.Zero
	}))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = e.ValidateOpportunity([]byte(`{"required_amount": 500}`))
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestOptimalAmount(t *testing.T) {
	e := newTestEngine(t, testConfig(), newPaper(1).deps())
	assert.InDelta(t, 400, e.OptimalAmount(uint256.NewInt(100000), uint256.NewInt(80000), 0.05), 1e-9)
}

func TestExecuteCrossChainArbitrage(t *testing.T) {
	p := newPaper(2)
	reg := prometheus.NewRegistry()
	deps := p.deps()
	deps.Registerer = reg
	e := newTestEngine(t, testConfig(), deps)

	ref, err := e.ExecuteCrossChainArbitrage(context.Background(), testutils.OpportunityRecord(t, nil))
	require.NoError(t, err)

	trades := p.venue.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, trades[1].Reference, ref)
	assert.Equal(t, "base", trades[1].Network)
	assert.Equal(t, 2, p.observer.Polls(p.bridge.Transfers()[0].Reference))

	count, err := testutil.GatherAndCount(reg, "xchainarb_execution_completions_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestExecuteRejectsMalformedRecord(t *testing.T) {
	p := newPaper(1)
	e := newTestEngine(t, testConfig(), p.deps())

	_, err := e.ExecuteCrossChainArbitrage(context.Background(), []byte("not json"))
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Empty(t, p.venue.Trades())
}

func TestExecuteWithJournal(t *testing.T) {
	cfg := testConfig()
	cfg.Journal.DSN = filepath.Join(t.TempDir(), "journal.db")
	p := newPaper(-1)
	e := newTestEngine(t, cfg, p.deps())
	require.NotNil(t, e.Journal())

	_, err := e.ExecuteCrossChainArbitrage(context.Background(), testutils.OpportunityRecord(t, nil))
	require.ErrorIs(t, err, types.ErrConfirmationTimeout)

	var se *types.StageError
	require.True(t, errors.As(err, &se))

	events, err := e.Journal().Events(context.Background(), se.ExecutionID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, types.StageFailed, events[len(events)-1].Stage)

	pending, err := e.Journal().Unreconciled(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, se.ExecutionID, pending[0].ExecutionID)
}

func TestExecuteBatch(t *testing.T) {
	p := newPaper(1)
	e := newTestEngine(t, testConfig(), p.deps())

	records := [][]byte{
		testutils.OpportunityRecord(t, func(o *types.ArbitrageOpportunity) { o.Timestamp = 1 }),
		testutils.OpportunityRecord(t, func(o *types.ArbitrageOpportunity) { o.Confidence = 0.1 }),
		[]byte("{"),
		testutils.OpportunityRecord(t, func(o *types.ArbitrageOpportunity) { o.Timestamp = 2 }),
	}
	results := e.ExecuteBatch(context.Background(), records)
	require.Len(t, results, len(records))

	for i, r := range results {
		assert.Equal(t, i, r.Index)
	}
	assert.NoError(t, results[0].Err)
	assert.NotEmpty(t, results[0].Reference)
	assert.ErrorIs(t, results[1].Err, types.ErrValidationRejected)
	assert.ErrorIs(t, results[2].Err, types.ErrInvalidInput)
	assert.NoError(t, results[3].Err)
	assert.Len(t, p.venue.Trades(), 4)
}

func TestBuildAndEstimate(t *testing.T) {
	e := newTestEngine(t, testConfig(), newPaper(1).deps())

	tx, err := e.BuildTransaction("0x1234567890123456789012345678901234567890",
		uint256.NewInt(1), nil, uint256.NewInt(21000), uint256.NewInt(1), nil)
	require.NoError(t, err)

	g, err := e.EstimateGas(context.Background(), "polygon", tx)
	require.NoError(t, err)
	assert.Equal(t, uint64(180000), g.Uint64())

	g, err = e.EstimateGas(context.Background(), "base", tx)
	require.NoError(t, err)
	assert.Equal(t, uint64(540000), g.Uint64())

	_, err = e.BuildTransaction("0x1234", nil, nil, uint256.NewInt(21000), nil, nil)
	assert.ErrorIs(t, err, types.ErrInvalidAddress)
}

func TestClose(t *testing.T) {
	cfg := testConfig()
	cfg.Journal.DSN = ":memory:"
	p := newPaper(1)
	e, err := New(sourceRPC, targetRPC, cfg, p.deps(), nil)
	require.NoError(t, err)

	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	_, err = e.ExecuteCrossChainArbitrage(context.Background(), testutils.OpportunityRecord(t, nil))
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.Empty(t, p.venue.Trades())

	ok, err := e.ValidateOpportunity(testutils.OpportunityRecord(t, nil))
	assert.ErrorIs(t, err, types.ErrInvalidInput)
	assert.False(t, ok)
}

func TestCloseWaitsForRunningFlows(t *testing.T) {
	cfg := testConfig()
	cfg.Execution.ConfirmationTimeout = 200 * time.Millisecond
	cfg.Journal.DSN = filepath.Join(t.TempDir(), "journal.db")
	p := newPaper(-1)
	e, err := New(sourceRPC, targetRPC, cfg, p.deps(), zaptest.NewLogger(t))
	require.NoError(t, err)

	record := testutils.OpportunityRecord(t, nil)
	done := make(chan error, 1)
	go func() {
		_, err := e.ExecuteCrossChainArbitrage(context.Background(), record)
		done <- err
	}()

	// wait until the flow is parked on bridge finality
	require.Eventually(t, func() bool { return len(p.bridge.Transfers()) == 1 }, time.Second, time.Millisecond)
	require.NoError(t, e.Close())

	var flowErr error
	select {
	case flowErr = <-done:
	case <-time.After(time.Second):
		t.Fatal("flow did not finish")
	}
	require.ErrorIs(t, flowErr, types.ErrConfirmationTimeout)
	var se *types.StageError
	require.ErrorAs(t, flowErr, &se)

	store, err := journal.NewSQLiteStore(cfg.Journal.DSN)
	require.NoError(t, err)
	defer store.Close()

	events, err := store.Events(context.Background(), se.ExecutionID)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, types.StageFailed, last.Stage)
	assert.NotEmpty(t, last.Error)
	assert.True(t, last.Reconcile)
}

func TestExecuteRevertedBridge(t *testing.T) {
	cfg := testConfig()
	cfg.Execution.ConfirmationTimeout = 10 * time.Second
	p := newPaper(-1)
	p.observer.Err = fmt.Errorf("%w: 0xbeef", chain.ErrTransactionReverted)
	e := newTestEngine(t, cfg, p.deps())

	start := time.Now()
	_, err := e.ExecuteCrossChainArbitrage(context.Background(), testutils.OpportunityRecord(t, nil))
	assert.Less(t, time.Since(start), time.Second)

	require.ErrorIs(t, err, types.ErrCollaboratorFailure)
	require.ErrorIs(t, err, chain.ErrTransactionReverted)
	var se *types.StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, types.StageConfirmingBridge, se.Stage)
	assert.Len(t, p.venue.Trades(), 1)
}
