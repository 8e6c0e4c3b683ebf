package simulator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils"
)

// SimulationResult represents the result of a transaction dry run
type SimulationResult struct {
	Success    bool
	GasUsed    uint64
	ReturnData []byte
	Error      error
}

// CallSimulator is the subset of an RPC client needed for dry runs.
// *ethclient.Client satisfies it.
type CallSimulator interface {
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Simulator dry-runs built transactions against a node without broadcasting
type Simulator struct {
	client CallSimulator
	logger *zap.Logger
}

// NewSimulator creates a new transaction simulator
func NewSimulator(client CallSimulator, logger *zap.Logger) *Simulator {
	return &Simulator{
		client: client,
		logger: utils.OrNop(logger),
	}
}

// SimulateTransaction estimates gas for tx sent from `from` and executes it as
// a call. Execution failures are reported in the result, not as an error.
func (s *Simulator) SimulateTransaction(ctx context.Context, from common.Address, tx *types.SecureTransaction) (*SimulationResult, error) {
	legacy, err := tx.ToLegacyTx()
	if err != nil {
		return nil, fmt.Errorf("failed to convert transaction: %w", err)
	}

	msg := ethereum.CallMsg{
		From:     from,
		To:       legacy.To(),
		Gas:      legacy.Gas(),
		GasPrice: legacy.GasPrice(),
		Value:    legacy.Value(),
		Data:     legacy.Data(),
	}

	gasUsed, err := s.client.EstimateGas(ctx, msg)
	if err != nil {
		s.logger.Debug("Gas estimation failed", zap.Error(err))
		return &SimulationResult{Success: false, Error: err}, nil
	}

	ret, err := s.client.CallContract(ctx, msg, nil)
	if err != nil {
		s.logger.Debug("Call failed", zap.Error(err))
		return &SimulationResult{Success: false, GasUsed: gasUsed, Error: err}, nil
	}

	if gasUsed > legacy.Gas() {
		return &SimulationResult{
			Success: false,
			GasUsed: gasUsed,
			Error:   fmt.Errorf("gas limit %d below estimated usage %d", legacy.Gas(), gasUsed),
		}, nil
	}

	return &SimulationResult{
		Success:    true,
		GasUsed:    gasUsed,
		ReturnData: ret,
	}, nil
}
