package transaction

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/config"
	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils"
)

// Builder turns raw transaction parameters into a SecureTransaction,
// enforcing a gas limit floor and a gas price ceiling.
type Builder struct {
	minGasLimit *uint256.Int
	maxGasPrice *uint256.Int
	logger      *zap.Logger
}

// NewBuilder creates a builder with the limits from cfg
func NewBuilder(cfg config.GasConfig, logger *zap.Logger) *Builder {
	return &Builder{
		minGasLimit: uint256.NewInt(cfg.MinGasLimit),
		maxGasPrice: uint256.NewInt(cfg.MaxGasPrice),
		logger:      utils.OrNop(logger),
	}
}

// Build validates the destination, gas limit and gas price, in that order,
// and returns the first violation. Nil amounts are treated as zero.
func (b *Builder) Build(to string, value *uint256.Int, data []byte, gasLimit, gasPrice, nonce *uint256.Int) (*types.SecureTransaction, error) {
	if !utils.IsValidAddress(to) {
		return nil, fmt.Errorf("%w: %q", types.ErrInvalidAddress, to)
	}
	if gasLimit == nil || gasLimit.Lt(b.minGasLimit) {
		return nil, fmt.Errorf("%w: %s < %s", types.ErrGasLimitTooLow, dec(gasLimit), b.minGasLimit.Dec())
	}
	if gasPrice != nil && gasPrice.Gt(b.maxGasPrice) {
		return nil, fmt.Errorf("%w: %s > %s", types.ErrGasPriceTooHigh, gasPrice.Dec(), b.maxGasPrice.Dec())
	}

	tx := types.NewSecureTransaction(common.HexToAddress(to), value, gasLimit, gasPrice, nonce, data)

	b.logger.Debug("Built transaction",
		zap.String("to", tx.To().Hex()),
		zap.String("gas_limit", dec(gasLimit)),
		zap.String("gas_price", dec(gasPrice)),
		zap.Int("data_len", len(data)))

	return tx, nil
}

// BuildUint64 is Build for callers holding 64-bit amounts
func (b *Builder) BuildUint64(to string, value uint64, data []byte, gasLimit, gasPrice, nonce uint64) (*types.SecureTransaction, error) {
	return b.Build(to, uint256.NewInt(value), data, uint256.NewInt(gasLimit), uint256.NewInt(gasPrice), uint256.NewInt(nonce))
}

func dec(x *uint256.Int) string {
	if x == nil {
		return "0"
	}
	return x.Dec()
}
