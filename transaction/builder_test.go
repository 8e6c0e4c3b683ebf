package transaction

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/michaelpento.lv/xchainarb/config"
	"github.com/michaelpento.lv/xchainarb/types"
)

const recipient = "0x1234567890123456789012345678901234567890"

func newTestBuilder(t *testing.T) *Builder {
	return NewBuilder(config.DefaultConfig().Gas, zaptest.NewLogger(t))
}

func TestBuild(t *testing.T) {
	b := newTestBuilder(t)
	tx, err := b.BuildUint64(recipient, 1000, []byte{0x01, 0x02}, 21000, 30_000_000_000, 7)
	require.NoError(t, err)

	assert.Equal(t, recipient, tx.To().Hex())
	assert.Equal(t, uint64(1000), tx.Value().Uint64())
	assert.Equal(t, uint64(21000), tx.GasLimit().Uint64())
	assert.Equal(t, uint64(30_000_000_000), tx.GasPrice().Uint64())
	assert.Equal(t, uint64(7), tx.Nonce().Uint64())
	assert.Equal(t, []byte{0x01, 0x02}, tx.Data())
}

func TestBuildBoundaries(t *testing.T) {
	b := newTestBuilder(t)

	tests := []struct {
		name     string
		to       string
		gasLimit uint64
		gasPrice uint64
		wantErr  error
	}{
		{"gas limit at floor", recipient, 21000, 1, nil},
		{"gas limit below floor", recipient, 20999, 1, types.ErrGasLimitTooLow},
		{"gas price at ceiling", recipient, 21000, 500_000_000_000, nil},
		{"gas price above ceiling", recipient, 21000, 500_000_000_001, types.ErrGasPriceTooHigh},
		{"zero gas price", recipient, 21000, 0, nil},
		{"short address", "0x123", 21000, 1, types.ErrInvalidAddress},
		{"address checked first", "0x123", 1, 600_000_000_000, types.ErrInvalidAddress},
		{"gas limit checked before price", recipient, 1, 600_000_000_000, types.ErrGasLimitTooLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := b.BuildUint64(tt.to, 0, nil, tt.gasLimit, tt.gasPrice, 0)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.NotNil(t, tx)
				return
			}
			assert.Nil(t, tx)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, types.ErrInvalidInput)
		})
	}
}

func TestBuildWideValues(t *testing.T) {
	b := newTestBuilder(t)
	value := new(uint256.Int).SetAllOne()

	tx, err := b.Build(recipient, value, nil, uint256.NewInt(21000), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, value, tx.Value())
	assert.True(t, tx.GasPrice().IsZero())
	assert.True(t, tx.Nonce().IsZero())

	_, err = b.Build(recipient, nil, nil, nil, nil, nil)
	assert.ErrorIs(t, err, types.ErrGasLimitTooLow)
}

func TestBuildCopiesInputs(t *testing.T) {
	b := newTestBuilder(t)
	data := []byte{0xaa}
	gasLimit := uint256.NewInt(50000)

	tx, err := b.Build(recipient, nil, data, gasLimit, uint256.NewInt(1), nil)
	require.NoError(t, err)

	data[0] = 0xbb
	gasLimit.SetUint64(1)
	assert.Equal(t, []byte{0xaa}, tx.Data())
	assert.Equal(t, uint64(50000), tx.GasLimit().Uint64())
}

func TestBuildCustomLimits(t *testing.T) {
	cfg := config.DefaultConfig().Gas
	cfg.MinGasLimit = 50000
	cfg.MaxGasPrice = 100
	b := NewBuilder(cfg, nil)

	_, err := b.BuildUint64(recipient, 0, nil, 49999, 1, 0)
	assert.ErrorIs(t, err, types.ErrGasLimitTooLow)
	_, err = b.BuildUint64(recipient, 0, nil, 50000, 101, 0)
	assert.ErrorIs(t, err, types.ErrGasPriceTooHigh)
}
