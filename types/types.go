package types

import (
	"encoding/binary"
	"math/big"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// PoolInfo is a snapshot of a liquidity pool on one network
type PoolInfo struct {
	Address   string
	Network   string
	Token0    string
	Token1    string
	Price     decimal.Decimal
	Liquidity *uint256.Int
	FeeTier   uint32
}

// LiquidityFloat returns the pool liquidity as a float64, zero when unset
func (p PoolInfo) LiquidityFloat() float64 {
	if p.Liquidity == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(p.Liquidity.ToBig()).Float64()
	return f
}

// ArbitrageOpportunity represents a detected cross-pool price discrepancy.
// NetProfit is taken as supplied by the detector; nothing here recomputes it
// from ProfitPotential and ExecutionCost.
type ArbitrageOpportunity struct {
	SourcePool      PoolInfo
	TargetPool      PoolInfo
	ProfitPotential decimal.Decimal
	RequiredAmount  decimal.Decimal
	ExecutionCost   decimal.Decimal
	NetProfit       decimal.Decimal
	Confidence      float64
	Timestamp       uint64
}

// PriceDiff returns the absolute price divergence between the two pools
func (o ArbitrageOpportunity) PriceDiff() float64 {
	return o.TargetPool.Price.Sub(o.SourcePool.Price).Abs().InexactFloat64()
}

// IsCrossChain reports whether the two legs settle on different networks
func (o ArbitrageOpportunity) IsCrossChain() bool {
	return o.SourcePool.Network != o.TargetPool.Network
}

// Fingerprint returns a stable identifier for the opportunity. Two records
// describing the same pools, amount and detection time share a fingerprint.
func (o ArbitrageOpportunity) Fingerprint() string {
	d := xxhash.New()
	for _, s := range []string{
		o.SourcePool.Network, o.SourcePool.Address,
		o.TargetPool.Network, o.TargetPool.Address,
		o.RequiredAmount.String(),
	} {
		_, _ = d.WriteString(s)
		_, _ = d.Write([]byte{0})
	}
	var ts [8]byte
	binary.BigEndian.PutUint64(ts[:], o.Timestamp)
	_, _ = d.Write(ts[:])
	return strconv.FormatUint(d.Sum64(), 16)
}

// SecureTransaction is a validated, unsigned transaction intent. It is only
// produced by the transaction builder and never mutated afterwards.
type SecureTransaction struct {
	to       common.Address
	value    *uint256.Int
	gasLimit *uint256.Int
	gasPrice *uint256.Int
	data     []byte
	nonce    *uint256.Int
}

// NewSecureTransaction copies every field. Callers outside the transaction
// builder should not use it directly.
func NewSecureTransaction(to common.Address, value, gasLimit, gasPrice, nonce *uint256.Int, data []byte) *SecureTransaction {
	return &SecureTransaction{
		to:       to,
		value:    cloneOrZero(value),
		gasLimit: cloneOrZero(gasLimit),
		gasPrice: cloneOrZero(gasPrice),
		data:     common.CopyBytes(data),
		nonce:    cloneOrZero(nonce),
	}
}

func (t *SecureTransaction) To() common.Address     { return t.to }
func (t *SecureTransaction) Value() *uint256.Int    { return t.value.Clone() }
func (t *SecureTransaction) GasLimit() *uint256.Int { return t.gasLimit.Clone() }
func (t *SecureTransaction) GasPrice() *uint256.Int { return t.gasPrice.Clone() }
func (t *SecureTransaction) Nonce() *uint256.Int    { return t.nonce.Clone() }
func (t *SecureTransaction) Data() []byte           { return common.CopyBytes(t.data) }

// ToLegacyTx converts the intent into an unsigned go-ethereum legacy
// transaction. Gas limit and nonce must fit in 64 bits for this form.
func (t *SecureTransaction) ToLegacyTx() (*ethtypes.Transaction, error) {
	if !t.gasLimit.IsUint64() {
		return nil, ErrGasLimitOverflow
	}
	if !t.nonce.IsUint64() {
		return nil, ErrNonceOverflow
	}
	to := t.to
	return ethtypes.NewTx(&ethtypes.LegacyTx{
		Nonce:    t.nonce.Uint64(),
		GasPrice: t.gasPrice.ToBig(),
		Gas:      t.gasLimit.Uint64(),
		To:       &to,
		Value:    t.value.ToBig(),
		Data:     common.CopyBytes(t.data),
	}), nil
}

// MarshalUnsigned returns the RLP encoding of the unsigned legacy transaction
func (t *SecureTransaction) MarshalUnsigned() ([]byte, error) {
	tx, err := t.ToLegacyTx()
	if err != nil {
		return nil, err
	}
	return tx.MarshalBinary()
}

func cloneOrZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x.Clone()
}
