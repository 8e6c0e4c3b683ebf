package gas

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/utils"
)

// FeeReader is the subset of an RPC client needed to price gas.
// *ethclient.Client satisfies it.
type FeeReader interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
}

// Oracle suggests a legacy gas price from the latest base fee plus the
// node's priority fee suggestion. The last good quote is kept so a flaky
// node does not block transaction building.
type Oracle struct {
	client FeeReader
	logger *zap.Logger

	mu          sync.RWMutex
	baseFee     *uint256.Int
	priorityFee *uint256.Int
}

func NewOracle(client FeeReader, logger *zap.Logger) *Oracle {
	return &Oracle{
		client: client,
		logger: utils.OrNop(logger),
	}
}

// Update fetches the latest base fee and priority fee
func (o *Oracle) Update(ctx context.Context) error {
	header, err := o.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to get latest header: %w", err)
	}
	tip, err := o.client.SuggestGasTipCap(ctx)
	if err != nil {
		return fmt.Errorf("failed to get priority fee: %w", err)
	}

	baseFee := new(uint256.Int)
	if header.BaseFee != nil {
		if overflow := baseFee.SetFromBig(header.BaseFee); overflow {
			return fmt.Errorf("base fee %s overflows 256 bits", header.BaseFee)
		}
	}
	priorityFee, overflow := uint256.FromBig(tip)
	if overflow {
		return fmt.Errorf("priority fee %s overflows 256 bits", tip)
	}

	o.mu.Lock()
	o.baseFee = baseFee
	o.priorityFee = priorityFee
	o.mu.Unlock()

	o.logger.Debug("Updated gas prices",
		zap.String("base_fee", baseFee.Dec()),
		zap.String("priority_fee", priorityFee.Dec()))
	return nil
}

// SuggestGasPrice refreshes the quote and returns base fee plus priority fee.
// When the refresh fails the previous quote is returned if there is one.
func (o *Oracle) SuggestGasPrice(ctx context.Context) (*uint256.Int, error) {
	if err := o.Update(ctx); err != nil {
		o.mu.RLock()
		stale := o.baseFee != nil
		o.mu.RUnlock()
		if !stale {
			return nil, err
		}
		o.logger.Warn("Failed to update gas prices, using last quote", zap.Error(err))
	}

	o.mu.RLock()
	defer o.mu.RUnlock()
	return new(uint256.Int).Add(o.baseFee, o.priorityFee), nil
}
