package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	lru "github.com/hashicorp/golang-lru"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/michaelpento.lv/xchainarb/config"
	xtypes "github.com/michaelpento.lv/xchainarb/types"
	"github.com/michaelpento.lv/xchainarb/utils"
)

// ErrTransactionReverted is returned for references whose receipt failed
var ErrTransactionReverted = errors.New("transaction reverted")

// Observer reports whether a submitted transfer has reached finality.
// An error wrapping ErrTransactionReverted is permanent: the transfer will
// never finalize. Any other error is treated as transient.
// Implementations must be safe for concurrent use.
type Observer interface {
	IsFinalized(ctx context.Context, reference string) (bool, error)
}

// ReceiptReader is the subset of an RPC client needed to follow receipts.
// *ethclient.Client satisfies it.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// ReceiptObserver treats a reference as a transaction hash and considers it
// final once a successful receipt is buried under MinConfirmations blocks.
type ReceiptObserver struct {
	client           ReceiptReader
	minConfirmations uint64
	limiter          *rate.Limiter
	finalized        *lru.Cache
	logger           *zap.Logger
}

// NewReceiptObserver creates an observer over client
func NewReceiptObserver(client ReceiptReader, cfg config.ObserverConfig, logger *zap.Logger) (*ReceiptObserver, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: receipt reader is required", xtypes.ErrInvalidInput)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", xtypes.ErrInvalidInput, err)
	}
	cache, err := lru.New(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create finality cache: %w", err)
	}
	return &ReceiptObserver{
		client:           client,
		minConfirmations: cfg.MinConfirmations,
		limiter:          rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.BurstSize),
		finalized:        cache,
		logger:           utils.OrNop(logger),
	}, nil
}

// IsFinalized implements Observer
func (o *ReceiptObserver) IsFinalized(ctx context.Context, reference string) (bool, error) {
	hash, err := parseHash(reference)
	if err != nil {
		return false, err
	}
	if o.finalized.Contains(hash) {
		return true, nil
	}

	if err := o.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("rate limiter wait: %w", err)
	}

	receipt, err := o.client.TransactionReceipt(ctx, hash)
	if errors.Is(err, ethereum.NotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get receipt: %w", err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return false, fmt.Errorf("%w: %s", ErrTransactionReverted, reference)
	}

	if o.minConfirmations > 0 {
		head, err := o.client.BlockNumber(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to get block number: %w", err)
		}
		included := receipt.BlockNumber.Uint64()
		if head < included || head-included+1 < o.minConfirmations {
			o.logger.Debug("Awaiting confirmations",
				zap.String("reference", reference),
				zap.Uint64("included", included),
				zap.Uint64("head", head))
			return false, nil
		}
	}

	o.finalized.Add(hash, receipt.BlockNumber.Uint64())
	o.logger.Info("Reference finalized",
		zap.String("reference", reference),
		zap.Uint64("block", receipt.BlockNumber.Uint64()))
	return true, nil
}

func parseHash(reference string) (common.Hash, error) {
	raw, err := hexutil.Decode(reference)
	if err != nil || len(raw) != common.HashLength {
		return common.Hash{}, fmt.Errorf("%w: reference %q is not a transaction hash", xtypes.ErrInvalidInput, reference)
	}
	return common.BytesToHash(raw), nil
}
