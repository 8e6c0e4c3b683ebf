package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleOpportunity() ArbitrageOpportunity {
	return ArbitrageOpportunity{
		SourcePool: PoolInfo{
			Address:   "0x1111111111111111111111111111111111111111",
			Network:   "polygon",
			Token0:    "USDC",
			Token1:    "WETH",
			Price:     decimal.RequireFromString("1.00"),
			Liquidity: uint256.NewInt(100000),
			FeeTier:   3000,
		},
		TargetPool: PoolInfo{
			Address:   "0x2222222222222222222222222222222222222222",
			Network:   "base",
			Token0:    "USDC",
			Token1:    "WETH",
			Price:     decimal.RequireFromString("1.05"),
			Liquidity: uint256.NewInt(80000),
			FeeTier:   500,
		},
		ProfitPotential: decimal.RequireFromString("25"),
		RequiredAmount:  decimal.RequireFromString("500"),
		ExecutionCost:   decimal.RequireFromString("15"),
		NetProfit:       decimal.RequireFromString("10"),
		Confidence:      0.95,
		Timestamp:       1700000000,
	}
}

func TestOpportunityHelpers(t *testing.T) {
	opp := sampleOpportunity()
	assert.InDelta(t, 0.05, opp.PriceDiff(), 1e-12)
	assert.True(t, opp.IsCrossChain())
	assert.Equal(t, 100000.0, opp.SourcePool.LiquidityFloat())
	assert.Zero(t, PoolInfo{}.LiquidityFloat())

	opp.TargetPool.Price = decimal.RequireFromString("0.90")
	assert.InDelta(t, 0.10, opp.PriceDiff(), 1e-12, "divergence is absolute")

	opp.TargetPool.Network = "polygon"
	assert.False(t, opp.IsCrossChain())
}

func TestFingerprint(t *testing.T) {
	a := sampleOpportunity()
	b := sampleOpportunity()
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
	assert.NotEmpty(t, a.Fingerprint())

	b.Timestamp++
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())

	c := sampleOpportunity()
	c.RequiredAmount = decimal.RequireFromString("501")
	assert.NotEqual(t, a.Fingerprint(), c.Fingerprint())

	// field boundaries are delimited
	d := sampleOpportunity()
	d.SourcePool.Network = "polygo"
	d.SourcePool.Address = "n" + d.SourcePool.Address
	assert.NotEqual(t, a.Fingerprint(), d.Fingerprint())
}

func TestSecureTransactionCopies(t *testing.T) {
	value := uint256.NewInt(1000)
	data := []byte{0xde, 0xad}
	tx := NewSecureTransaction(common.HexToAddress("0x1234567890123456789012345678901234567890"),
		value, uint256.NewInt(21000), uint256.NewInt(1), nil, data)

	value.SetUint64(1)
	data[0] = 0
	assert.Equal(t, uint64(1000), tx.Value().Uint64())
	assert.Equal(t, []byte{0xde, 0xad}, tx.Data())
	assert.True(t, tx.Nonce().IsZero())

	got := tx.Value()
	got.SetUint64(7)
	assert.Equal(t, uint64(1000), tx.Value().Uint64())
}

func TestToLegacyTx(t *testing.T) {
	to := common.HexToAddress("0x1234567890123456789012345678901234567890")
	tx := NewSecureTransaction(to, uint256.NewInt(5), uint256.NewInt(21000),
		uint256.NewInt(30_000_000_000), uint256.NewInt(9), []byte{0x01})

	legacy, err := tx.ToLegacyTx()
	require.NoError(t, err)
	assert.Equal(t, uint8(ethtypes.LegacyTxType), legacy.Type())
	assert.Equal(t, uint64(21000), legacy.Gas())
	assert.Equal(t, uint64(9), legacy.Nonce())
	assert.Equal(t, to, *legacy.To())
	assert.Equal(t, int64(30_000_000_000), legacy.GasPrice().Int64())

	raw, err := tx.MarshalUnsigned()
	require.NoError(t, err)
	var decoded ethtypes.Transaction
	require.NoError(t, decoded.UnmarshalBinary(raw))
	assert.Equal(t, legacy.Hash(), decoded.Hash())
}

func TestToLegacyTxOverflow(t *testing.T) {
	huge := new(uint256.Int).Lsh(uint256.NewInt(1), 64)
	to := common.HexToAddress("0x1234567890123456789012345678901234567890")

	_, err := NewSecureTransaction(to, nil, huge, nil, nil, nil).ToLegacyTx()
	assert.ErrorIs(t, err, ErrGasLimitOverflow)

	_, err = NewSecureTransaction(to, nil, uint256.NewInt(21000), nil, huge, nil).ToLegacyTx()
	assert.ErrorIs(t, err, ErrNonceOverflow)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestStageError(t *testing.T) {
	err := &StageError{
		Stage:       StageConfirmingBridge,
		ExecutionID: "exec-1",
		SourceTx:    "0xsrc",
		BridgeRef:   "bridge-1",
		Err:         fmt.Errorf("%w: no finality after 600s", ErrConfirmationTimeout),
	}

	assert.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.True(t, err.RequiresReconciliation())
	assert.Contains(t, err.Error(), "confirming_bridge")
	assert.Contains(t, err.Error(), "bridge_ref=bridge-1")

	var stageErr *StageError
	wrapped := fmt.Errorf("execute: %w", err)
	require.True(t, errors.As(wrapped, &stageErr))
	assert.Equal(t, "0xsrc", stageErr.SourceTx)

	early := &StageError{Stage: StageSourceTrading, ExecutionID: "exec-2", Err: ErrCollaboratorFailure}
	assert.False(t, early.RequiresReconciliation())
	assert.NotContains(t, early.Error(), "source_tx")
}

func TestStageTerminal(t *testing.T) {
	for _, s := range []Stage{StageRejected, StageCompleted, StageFailed} {
		assert.True(t, s.Terminal(), string(s))
	}
	for _, s := range []Stage{StageStart, StageValidating, StageSourceTrading, StageBridging, StageConfirmingBridge, StageTargetTrading} {
		assert.False(t, s.Terminal(), string(s))
	}
}
