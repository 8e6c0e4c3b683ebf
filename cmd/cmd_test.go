package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/michaelpento.lv/xchainarb/journal"
	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils/testutils"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "", "validate", testutils.WriteOpportunityRecord(t, nil))
	require.NoError(t, err)

	var report validationReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.Valid)
	assert.Empty(t, report.Reason)

	out, err = run(t, "", "validate", testutils.WriteOpportunityRecord(t, func(o *types.ArbitrageOpportunity) { o.Confidence = 0.5 }))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Valid)
	assert.Equal(t, "low_confidence", report.Reason)

	_, err = run(t, "{", "validate")
	assert.ErrorIs(t, err, types.ErrInvalidInput)
}

func TestSizeCommand(t *testing.T) {
	out, err := run(t, "", "size", "--source-liquidity", "100000", "--target-liquidity", "0x13880", "--price-diff", "0.05")
	require.NoError(t, err)

	var got map[string]float64
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.InDelta(t, 400, got["amount"], 1e-9)
	assert.InDelta(t, 0.5, got["multiplier"], 1e-9)
}

func TestGasCommand(t *testing.T) {
	out, err := run(t, "", "gas", "--network", "polygon", "--target", "base")
	require.NoError(t, err)

	var report gasReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "720000", report.GasLimit)
	assert.Empty(t, report.CostWei)
}

func TestBuildTxCommand(t *testing.T) {
	out, err := run(t, "", "build-tx", "--to", "0x1234567890123456789012345678901234567890", "--gas-price", "1000000000")
	require.NoError(t, err)

	var report buildReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "21000", report.Transaction.GasLimit)
	assert.NotEmpty(t, report.Unsigned)
	assert.Nil(t, report.Simulation)

	_, err = run(t, "", "build-tx", "--to", "0x1234", "--gas-price", "0")
	assert.ErrorIs(t, err, types.ErrInvalidAddress)
}

func TestExecuteCommand(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "journal.db")
	good := testutils.WriteOpportunityRecord(t, nil)
	out, err := run(t, "", "execute", "--polls", "1", "--journal", dsn, good)
	require.NoError(t, err)

	var reports []executionReport
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.NotEmpty(t, reports[0].Reference)
	assert.Empty(t, reports[0].Error)

	out, err = run(t, "", "execute", "--journal", dsn, testutils.WriteOpportunityRecord(t, func(o *types.ArbitrageOpportunity) { o.Confidence = 0.5 }))
	require.Error(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	assert.Equal(t, types.StageRejected, reports[0].Stage)
	assert.False(t, reports[0].Reconcile)

	out, err = run(t, "", "journal", "pending", "--journal", dsn)
	require.NoError(t, err)
	var pending []journal.Event
	require.NoError(t, json.Unmarshal([]byte(out), &pending))
	assert.Empty(t, pending, "completed and rejected executions need no reconciliation")
}

func TestDetectCommand(t *testing.T) {
	pools := `[
		{"address":"0x1111111111111111111111111111111111111111","network":"polygon","token0":"USDC","token1":"CQT","price":"1.00","liquidity":"100000","fee_tier":3000},
		{"address":"0x2222222222222222222222222222222222222222","network":"base","token0":"USDC","token1":"CQT","price":"1.05","liquidity":"80000","fee_tier":3000}
	]`
	out, err := run(t, pools, "detect", "--gas-price", "30000000000")
	require.NoError(t, err)

	var records []types.OpportunityRecord
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "base", records[0].SourcePool.Network)
	assert.Equal(t, "400", records[0].RequiredAmount)
	assert.Equal(t, "0.4216", records[0].ExecutionCost)
}

func TestBuildTxSwapCommand(t *testing.T) {
	out, err := run(t, "", "build-tx",
		"--to", "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
		"--gas-limit", "200000",
		"--gas-price", "1000000000",
		"--swap-path", "0x3c499c542cEF5E3811e1192ce70d8cC03d5c3359,0x72bD80445b0dB58ebe3E8dB056529D4C5FAF6F2f",
		"--swap-amount-in", "500000000",
		"--swap-recipient", "0x1234567890123456789012345678901234567890",
		"--swap-deadline", "1700000600")
	require.NoError(t, err)

	var report buildReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.GreaterOrEqual(t, len(report.Transaction.Data), 4)
	assert.Equal(t, "38ed1739", common.Bytes2Hex(report.Transaction.Data[:4]))
}
